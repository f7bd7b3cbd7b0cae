package server

import (
	"net/http"

	"pixelforge/internal/services"
)

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) error {
	var p services.SubscribePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	res, err := s.svc.Newsletter.Subscribe(r.Context(), &p)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	encode(w, r, status, res)
	return nil
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) error {
	var p services.UnsubscribePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	sub, err := s.svc.Newsletter.Unsubscribe(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, services.SubscribeResult{Subscriber: sub, Message: "Successfully unsubscribed"})
	return nil
}

func (s *Server) listSubscribers(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	subscribed, err := queryBool(r, "subscribed")
	if err != nil {
		return err
	}
	page, err := s.svc.Newsletter.ListSubscribers(r.Context(), services.SubscriberFilter{ListParams: params, Subscribed: subscribed})
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) error {
	var p services.CampaignPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	n, err := s.svc.Newsletter.CreateCampaign(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, n)
	return nil
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	page, err := s.svc.Newsletter.ListCampaigns(r.Context(), params)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	n, err := s.svc.Newsletter.GetCampaign(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, n)
	return nil
}

func (s *Server) updateCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.CampaignUpdatePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	n, err := s.svc.Newsletter.UpdateCampaign(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, n)
	return nil
}

func (s *Server) deleteCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Newsletter.DeleteCampaign(r.Context(), id); err != nil {
		return err
	}
	encode(w, r, http.StatusOK, message("Campaign deleted"))
	return nil
}

func (s *Server) sendCampaign(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	n, err := s.svc.Newsletter.SendCampaign(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, n)
	return nil
}
