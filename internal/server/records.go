package server

import (
	"net/http"

	"pixelforge/internal/services"
)

func (s *Server) submitContact(w http.ResponseWriter, r *http.Request) error {
	var p services.ContactSubmitPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	contact, err := s.svc.Contact.Submit(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, contact)
	return nil
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	page, err := s.svc.Contact.List(r.Context(), params)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	contact, err := s.svc.Contact.Get(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, contact)
	return nil
}

func (s *Server) updateContact(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.ContactUpdatePayload
	if err := decode(r, &p); err != nil {
		return err
	}
	contact, err := s.svc.Contact.Update(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, contact)
	return nil
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Contact.Delete(r.Context(), id); err != nil {
		return err
	}
	encode(w, r, http.StatusOK, message("Contact deleted"))
	return nil
}

func (s *Server) submitQuote(w http.ResponseWriter, r *http.Request) error {
	var p services.QuoteSubmitPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	quote, err := s.svc.Quote.Submit(r.Context(), &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusCreated, quote)
	return nil
}

func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) error {
	params, err := listParams(r)
	if err != nil {
		return err
	}
	page, err := s.svc.Quote.List(r.Context(), params)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, page)
	return nil
}

func (s *Server) getQuote(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	quote, err := s.svc.Quote.Get(r.Context(), id)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, quote)
	return nil
}

func (s *Server) updateQuoteStatus(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.QuoteStatusPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	quote, err := s.svc.Quote.UpdateStatus(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, quote)
	return nil
}

func (s *Server) replyQuote(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	var p services.QuoteReplyPayload
	if err := decode(r, &p); err != nil {
		return err
	}
	quote, err := s.svc.Quote.Reply(r.Context(), id, &p)
	if err != nil {
		return err
	}
	encode(w, r, http.StatusOK, quote)
	return nil
}

func (s *Server) deleteQuote(w http.ResponseWriter, r *http.Request) error {
	id, err := s.pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Quote.Delete(r.Context(), id); err != nil {
		return err
	}
	encode(w, r, http.StatusOK, message("Quote deleted"))
	return nil
}
