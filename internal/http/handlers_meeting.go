package http

import (
	"net/http"
	"strconv"

	"tontine/internal/core"
	applog "tontine/internal/log"
)

func (s *Server) handleMeetingView(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		fail(w, r, "meeting_view", err)
		return
	}
	view, err := s.svc.Meetings.MeetingView(r.Context(), id)
	if err != nil {
		fail(w, r, "meeting_view", err)
		return
	}
	NewResponse().JSON(view).Write(w)
}

type transitionRequest struct {
	To string `json:"to"`
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		fail(w, r, applog.OpTransition, err)
		return
	}
	var req transitionRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, applog.OpTransition, err)
		return
	}
	to, err := core.ParseMeetingStatus(req.To)
	if err != nil {
		fail(w, r, applog.OpTransition, invalidParam("to", "%v", err))
		return
	}

	m, err := s.svc.Meetings.Transition(r.Context(), id, to, ActorFrom(r))
	if err != nil {
		fail(w, r, applog.OpTransition, err)
		return
	}
	NewResponse().JSON(m).Write(w)
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
