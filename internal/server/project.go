package server

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	goa "goa.design/goa/v3/pkg"

	"pixelforge/internal/services"
	apperrors "pixelforge/pkg/errors"
)

const slideKeyPrefix = "projects/"

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	featured, err := queryBool(r, "featured")
	if err != nil {
		return err
	}
	page, err := s.svc.Project.List(r.Context(), services.ProjectFilter{
		ListParams: params,
		Category:   r.URL.Query().Get("category"),
		Featured:   featured,
	})
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	project, err := s.svc.Project.Get(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, project)
	return nil
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) error {
	var p services.ProjectPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	project, err := s.svc.Project.Create(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, project)
	return nil
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.ProjectUpdatePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	project, err := s.svc.Project.Update(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, project)
	return nil
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Project.Delete(r.Context(), id); err != nil {
		return err
	}
	encode(w, r, http.StatusOK, message("Project deleted"))
	return nil
}

// addSlide accepts a multipart form with the image in the "file" field.
func (s *Server) addSlide(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.ErrCodeTooLarge, "file is too large")
		}
		return goa.DecodePayloadError("multipart form with a file field is required")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return goa.DecodePayloadError("failed to read uploaded file")
	}
	if int64(len(data)) > s.maxUpload {
		return apperrors.New(apperrors.ErrCodeValidation, "file is too large")
	}

	project, err := s.svc.Project.AddSlide(r.Context(), id, data)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, project)
	return nil
}

// removeSlide accepts either the full public ID (URL-escaped) or just its
// final segment.
func (s *Server) removeSlide(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	publicID := s.mux.Vars(r)["slide_id"]
	if unescaped, err := url.PathUnescape(publicID); err == nil {
		publicID = unescaped
	}
	if !strings.HasPrefix(publicID, slideKeyPrefix) {
		publicID = slideKeyPrefix + publicID
	}

	project, err := s.svc.Project.RemoveSlide(r.Context(), id, publicID)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, project)
	return nil
}
