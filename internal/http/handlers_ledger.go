package http

import (
	"net/http"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/services"
)

type expectedResponse struct {
	MemberID int64                     `json:"member_id"`
	TypeID   int64                     `json:"type_id"`
	PeriodID int64                     `json:"period_id"`
	Expected core.Money                `json:"expected"`
	Source   services.ResolutionSource `json:"source"`
}

func (s *Server) handleExpected(w http.ResponseWriter, r *http.Request) {
	memberID, err := QueryID(r, "member")
	if err != nil {
		fail(w, r, "expected", err)
		return
	}
	typeID, err := QueryID(r, "type")
	if err != nil {
		fail(w, r, "expected", err)
		return
	}
	periodID, err := QueryID(r, "period")
	if err != nil {
		fail(w, r, "expected", err)
		return
	}

	amount, source, err := s.svc.Ledger.Expected(r.Context(), memberID, typeID, periodID)
	if err != nil {
		fail(w, r, "expected", err)
		return
	}
	NewResponse().JSON(expectedResponse{
		MemberID: memberID,
		TypeID:   typeID,
		PeriodID: periodID,
		Expected: amount,
		Source:   source,
	}).Write(w)
}

type recordPaymentRequest struct {
	MemberID  int64     `json:"member_id"`
	TypeID    int64     `json:"type_id"`
	MeetingID int64     `json:"meeting_id"`
	Amount    Amount    `json:"amount"`
	PaidOn    core.Date `json:"paid_on"`
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, applog.OpRecord, err)
		return
	}
	for name, id := range map[string]int64{"member_id": req.MemberID, "type_id": req.TypeID, "meeting_id": req.MeetingID} {
		if id <= 0 {
			fail(w, r, applog.OpRecord, invalidParam(name, "must be a positive integer"))
			return
		}
	}

	c, err := s.svc.Ledger.RecordPayment(r.Context(), services.PaymentInput{
		MemberID:  req.MemberID,
		TypeID:    req.TypeID,
		MeetingID: req.MeetingID,
		Amount:    core.Money(req.Amount),
		PaidOn:    req.PaidOn,
	})
	if err != nil {
		fail(w, r, applog.OpRecord, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(c).Write(w)
}

func (s *Server) handleDeletePayment(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		fail(w, r, applog.OpDelete, err)
		return
	}
	if err := s.svc.Ledger.DeletePayment(r.Context(), id); err != nil {
		fail(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

type settlementResponse struct {
	MemberID int64  `json:"member_id"`
	TypeID   int64  `json:"type_id"`
	Scope    string `json:"scope"`
	core.Settlement
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	memberID, err := QueryID(r, "member")
	if err != nil {
		fail(w, r, "settlement", err)
		return
	}
	typeID, err := QueryID(r, "type")
	if err != nil {
		fail(w, r, "settlement", err)
		return
	}
	scope, err := ParseScope(r)
	if err != nil {
		fail(w, r, "settlement", err)
		return
	}

	st, err := s.svc.Ledger.Settlement(r.Context(), memberID, typeID, scope)
	if err != nil {
		fail(w, r, "settlement", err)
		return
	}
	NewResponse().JSON(settlementResponse{MemberID: memberID, TypeID: typeID, Scope: scope.String(), Settlement: st}).Write(w)
}

type previewRequest struct {
	MemberID  int64  `json:"member_id"`
	TypeID    int64  `json:"type_id"`
	MeetingID int64  `json:"meeting_id,omitempty"`
	PeriodID  int64  `json:"period_id,omitempty"`
	EditingID int64  `json:"editing_id,omitempty"`
	Candidate Amount `json:"candidate"`
}

// handlePreview answers while the user is still typing; nothing is stored.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := DecodeJSON(r, &req); err != nil {
		fail(w, r, "preview", err)
		return
	}
	scope, err := scopeOf(idString(req.MeetingID), idString(req.PeriodID))
	if err != nil {
		fail(w, r, "preview", err)
		return
	}

	st, err := s.svc.Ledger.PreviewPayment(r.Context(), services.PreviewInput{
		MemberID:  req.MemberID,
		TypeID:    req.TypeID,
		Scope:     scope,
		EditingID: req.EditingID,
		Candidate: core.Money(req.Candidate),
	})
	if err != nil {
		fail(w, r, "preview", err)
		return
	}
	NewResponse().JSON(settlementResponse{MemberID: req.MemberID, TypeID: req.TypeID, Scope: scope.String(), Settlement: st}).Write(w)
}
