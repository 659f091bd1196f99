package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tontine/internal/core"
	"tontine/internal/ports"
	"tontine/internal/services"
)

const maxBodyBytes = 64 << 10

// Actor headers identify the caller of administrative operations. An
// authenticating proxy in front of the API is expected to set them.
const (
	HeaderActor      = "X-Actor"
	HeaderActorRoles = "X-Actor-Roles"
)

// requestError is a client mistake detected before reaching the engine.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func invalidParam(name, format string, args ...any) error {
	return &requestError{
		status: http.StatusUnprocessableEntity,
		code:   "invalid_parameter",
		msg:    name + ": " + fmt.Sprintf(format, args...),
	}
}

func malformedBody(err error) error {
	return &requestError{status: http.StatusBadRequest, code: "malformed_body", msg: "malformed request body: " + err.Error()}
}

// parseID parses a positive int64 identifier.
func parseID(name, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalidParam(name, "required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name, "must be a positive integer, got %q", raw)
	}
	return id, nil
}

// QueryID reads a required positive id from the query string.
func QueryID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.URL.Query().Get(name))
}

// PathID reads a positive id from a route wildcard.
func PathID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.PathValue(name))
}

// ParseScope reads exactly one of meeting= or period= from the query.
func ParseScope(r *http.Request) (services.Scope, error) {
	q := r.URL.Query()
	meeting, period := strings.TrimSpace(q.Get("meeting")), strings.TrimSpace(q.Get("period"))
	return scopeOf(meeting, period)
}

func scopeOf(meeting, period string) (services.Scope, error) {
	switch {
	case meeting != "" && period != "":
		return services.Scope{}, invalidParam("scope", "give either meeting or period, not both")
	case meeting != "":
		id, err := parseID("meeting", meeting)
		return services.MeetingScope(id), err
	case period != "":
		id, err := parseID("period", period)
		return services.PeriodScope(id), err
	default:
		return services.Scope{}, invalidParam("scope", "meeting or period is required")
	}
}

// DecodeJSON reads a bounded JSON body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, io.EOF):
			return malformedBody(errors.New("empty body"))
		case errors.Is(err, core.ErrInvalidAmount):
			return err
		}
		return malformedBody(err)
	}
	return nil
}

// Amount accepts either a JSON number or a user-typed string ("100 000").
type Amount core.Money

func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		m, err := core.ParseMoney(s)
		if err != nil {
			return err
		}
		*a = Amount(m)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return core.ErrInvalidAmount
	}
	*a = Amount(n)
	return nil
}

// ActorFrom builds the caller identity from the actor headers.
func ActorFrom(r *http.Request) ports.Actor {
	actor := ports.Actor{Name: strings.TrimSpace(r.Header.Get(HeaderActor))}
	for _, role := range strings.Split(r.Header.Get(HeaderActorRoles), ",") {
		if role = strings.TrimSpace(role); role != "" {
			actor.Roles = append(actor.Roles, role)
		}
	}
	return actor
}
