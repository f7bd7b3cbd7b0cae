package server

import (
	"net/http"

	"go.uber.org/zap"

	"pixelforge/internal/services"
	apperrors "pixelforge/pkg/errors"
)

func unauthorized(message string) error {
	return apperrors.New(apperrors.ErrCodeUnauthorized, message)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) error {
	res, err := s.svc.Health.Check(r.Context())
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		encode(w, r, http.StatusServiceUnavailable, res)
		return nil
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) error {
	var p services.RegisterPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Auth.Register(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, res)
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	var p services.LoginPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Auth.Login(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	res, err := s.svc.Auth.Logout(r.Context())
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) error {
	user, err := s.svc.Auth.Me(r.Context())
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, user)
	return nil
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) error {
	var p services.ProfilePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	user, err := s.svc.Auth.UpdateProfile(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, user)
	return nil
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) error {
	var p services.ChangePasswordPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Auth.ChangePassword(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) error {
	var p services.ForgotPasswordPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Auth.ForgotPassword(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) error {
	var p services.ResetPasswordPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Auth.ResetPassword(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, res)
	return nil
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	page, err := s.svc.Users.List(r.Context(), services.UserFilter{ListParams: params, Role: r.URL.Query().Get("role")})
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	user, err := s.svc.Users.Get(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, user)
	return nil
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) error {
	var p services.UserCreatePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	user, err := s.svc.Users.Create(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, user)
	return nil
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.UserUpdatePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	user, err := s.svc.Users.Update(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, user)
	return nil
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Users.Delete(r.Context(), id); err != nil {
		return err
	}
	encode(w, r, http.StatusOK, message("User deleted"))
	return nil
}
