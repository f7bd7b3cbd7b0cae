package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	goahttp "goa.design/goa/v3/http"
	goamiddleware "goa.design/goa/v3/middleware"
	goa "goa.design/goa/v3/pkg"

	"pixelforge/internal/services"
	apperrors "pixelforge/pkg/errors"
)

const maxJSONBody = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Message string `json:"message"`
}

// decode reads a JSON payload into v.
func decode(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return goa.DecodePayloadError("missing request body")
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxJSONBody)
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.New(apperrors.ErrCodeTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxJSONBody))
		}
		if errors.Is(err, io.EOF) {
			return goa.DecodePayloadError("missing request body")
		}
		return goa.DecodePayloadError(err.Error())
	}
	return nil
}

// encode writes v as JSON with the given status.
func encode(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := goahttp.ResponseEncoder(r.Context(), w).Encode(v); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// encodeError maps err onto a status code and writes the error body. Raw
// messages of unexpected errors are only exposed in debug mode.
func (s *Server) encodeError(w http.ResponseWriter, r *http.Request, err error) {
	body := ErrorBody{ID: requestID(r)}
	status := http.StatusInternalServerError

	var serviceErr *goa.ServiceError
	if errors.As(err, &serviceErr) {
		status = http.StatusBadRequest
		body.Name = serviceErr.Name
		body.Message = serviceErr.Message
	} else if appErr, ok := apperrors.As(err); ok {
		status = apperrors.StatusCode(err)
		body.Name = appErr.Code.Name()
		body.Message = appErr.Message
	} else {
		body.Name = "internal_error"
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", body.ID),
			zap.Error(err))
		if s.debug {
			body.Message = err.Error()
		} else {
			body.Message = "internal server error"
		}
	}

	encode(w, r, status, body)
}

func requestID(r *http.Request) string {
	if id, ok := r.Context().Value(goamiddleware.RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// pathID parses the {id} path variable.
func (s *Server) pathID(r *http.Request) (uint, error) {
	raw := s.mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, goa.InvalidFieldTypeError("id", raw, "positive integer")
	}
	return uint(id), nil
}

// listParams reads the common paging and filter query parameters.
func listParams(r *http.Request) (services.ListParams, error) {
	q := r.URL.Query()
	page, err := queryInt(q.Get("page"), "page")
	if err != nil {
		return services.ListParams{}, err
	}
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		return services.ListParams{}, err
	}
	return services.ListParams{
		Page:   page,
		Limit:  limit,
		Status: q.Get("status"),
		Search: q.Get("search"),
	}, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, goa.InvalidFieldTypeError(name, raw, "integer")
	}
	return v, nil
}

// queryBool parses an optional boolean filter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, goa.InvalidFieldTypeError(name, raw, "boolean")
	}
	return &v, nil
}

func message(format string, args ...any) services.MessageResult {
	return services.MessageResult{Message: fmt.Sprintf(format, args...)}
}
