package http

import (
	"net/http"

	"eventledger/internal/core"
	"eventledger/internal/middleware/principal"
)

const msgEventNotFound = "Event not found"

// owner returns the principal's user id. Guarded routes always have one.
func owner(r *http.Request) core.UserID {
	p, _ := principal.FromContext(r.Context())
	return p.UserID
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.ledger.ListEvents(r.Context(), owner(r))
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	if events == nil {
		events = []core.EventSummary{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		_ = BadRequestError("Invalid request body").Write(w)
		return
	}
	event, err := s.ledger.CreateEvent(r.Context(), owner(r), p.Get("name"))
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	detail, err := s.ledger.GetEvent(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		_ = BadRequestError("Invalid request body").Write(w)
		return
	}
	event, err := s.ledger.UpdateEvent(r.Context(), owner(r), id, p.Get("name"))
	if err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		_ = NotFoundError(msgEventNotFound).Write(w)
		return
	}
	if err := s.ledger.DeleteEvent(r.Context(), owner(r), id); err != nil {
		writeError(w, r, err, msgEventNotFound)
		return
	}
	_ = SuccessResponse().Write(w)
}
