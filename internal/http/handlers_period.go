package http

import (
	"errors"
	"net/http"
	"strings"

	"tontine/internal/core"
	applog "tontine/internal/log"
	"tontine/internal/services"
)

type summaryResponse struct {
	PeriodID int64                  `json:"period_id"`
	Mode     services.AggregateMode `json:"mode"`
	Members  []core.MemberSummary   `json:"members"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	periodID, err := PathID(r, "id")
	if err != nil {
		fail(w, r, applog.OpAggregate, err)
		return
	}
	opts, err := parseAggregateOptions(r)
	if err != nil {
		fail(w, r, applog.OpAggregate, err)
		return
	}

	rows, err := s.svc.Summaries.Aggregate(r.Context(), periodID, opts)
	if err != nil {
		fail(w, r, applog.OpAggregate, err)
		return
	}
	if rows == nil {
		rows = []core.MemberSummary{}
	}
	NewResponse().JSON(summaryResponse{PeriodID: periodID, Mode: opts.Mode, Members: rows}).Write(w)
}

func parseAggregateOptions(r *http.Request) (services.AggregateOptions, error) {
	q := r.URL.Query()
	mode, err := services.ParseAggregateMode(q.Get("mode"))
	if err != nil {
		return services.AggregateOptions{}, invalidParam("mode", "%v", err)
	}
	opts := services.AggregateOptions{Mode: mode, Group: strings.TrimSpace(q.Get("group"))}

	if raw := q.Get("type"); raw != "" {
		if opts.TypeID, err = parseID("type", raw); err != nil {
			return services.AggregateOptions{}, err
		}
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if opts.Status, err = core.ParseSettlementStatus(strings.ToLower(raw)); err != nil {
			return services.AggregateOptions{}, invalidParam("status", "%v", err)
		}
	}
	return opts, nil
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	periodID, err := PathID(r, "id")
	if err != nil {
		fail(w, r, applog.OpPayout, err)
		return
	}
	memberID, err := PathID(r, "member")
	if err != nil {
		fail(w, r, applog.OpPayout, err)
		return
	}

	payout, err := s.svc.Payouts.ComputeNetPayout(r.Context(), memberID, periodID)
	if err != nil {
		resp := ErrorResponse(err)
		if resp.statusCode == http.StatusInternalServerError && errors.Is(err, core.ErrPayoutUnavailable) {
			// Partial figures go back flagged incomplete, never as a clean zero.
			resp.body = ErrorBody{Error: core.ErrPayoutUnavailable.Error(), Code: "payout_unavailable", Payout: payout}
		}
		resp.Write(w)
		return
	}
	NewResponse().JSON(payout).Write(w)
}
