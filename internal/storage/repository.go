package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tontine/internal/core"
	"tontine/internal/ports"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One writer at a time avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers, for readiness probes.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// notFound maps sql.ErrNoRows to the domain sentinel.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(entity, id)
	}
	return err
}

func parseDate(s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toMember(m Member) core.Member {
	var groups []string
	for _, g := range strings.Split(m.GroupsCSV, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return core.Member{ID: m.ID, Name: m.Name, Active: m.Active, Groups: groups}
}

func toContributionType(t ContributionType) core.ContributionType {
	out := core.ContributionType{ID: t.ID, Name: t.Name, Mandatory: t.Mandatory, EntryMode: core.EntryMode(t.EntryMode)}
	if t.DefaultAmount.Valid {
		out.DefaultAmount = core.Money(t.DefaultAmount.Int64).Ptr()
	}
	return out
}

func toFiscalPeriod(p FiscalPeriod) core.FiscalPeriod {
	return core.FiscalPeriod{
		ID:     p.ID,
		Name:   p.Name,
		Start:  parseDate(p.StartDate),
		End:    parseDate(p.EndDate),
		Status: core.PeriodStatus(p.Status),
	}
}

func toMeeting(m Meeting) core.Meeting {
	return core.Meeting{ID: m.ID, Date: parseDate(m.MeetingDate), Status: core.MeetingStatus(m.Status), Notes: m.Notes}
}

func toContribution(c Contribution) core.Contribution {
	return core.Contribution{
		ID:        c.ID,
		MemberID:  c.MemberID,
		TypeID:    c.TypeID,
		MeetingID: c.MeetingID,
		PeriodID:  c.PeriodID,
		Amount:    core.Money(c.Amount),
		PaidOn:    parseDate(c.PaidOn),
		Status:    core.PaymentStatus(c.Status),
		UpdatedAt: parseTime(c.UpdatedAt),
	}
}

func fromContribution(c core.Contribution) Contribution {
	return Contribution{
		ID:        c.ID,
		MemberID:  c.MemberID,
		TypeID:    c.TypeID,
		MeetingID: c.MeetingID,
		PeriodID:  c.PeriodID,
		Amount:    int64(c.Amount),
		PaidOn:    c.PaidOn.String(),
		Status:    string(c.Status),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id int64) (core.Member, error) {
	m, err := r.queries.GetMember(ctx, id)
	if err != nil {
		return core.Member{}, fmt.Errorf("get member: %w", notFound(err, "member", id))
	}
	return toMember(m), nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.queries.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]core.Member, len(rows))
	for i, m := range rows {
		out[i] = toMember(m)
	}
	return out, nil
}

func (r *SQLiteRepository) GetContributionType(ctx context.Context, id int64) (core.ContributionType, error) {
	t, err := r.queries.GetContributionType(ctx, id)
	if err != nil {
		return core.ContributionType{}, fmt.Errorf("get contribution type: %w", notFound(err, "contribution type", id))
	}
	return toContributionType(t), nil
}

func (r *SQLiteRepository) ListContributionTypes(ctx context.Context) ([]core.ContributionType, error) {
	rows, err := r.queries.ListContributionTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contribution types: %w", err)
	}
	out := make([]core.ContributionType, len(rows))
	for i, t := range rows {
		out[i] = toContributionType(t)
	}
	return out, nil
}

func (r *SQLiteRepository) ListOverrides(ctx context.Context, periodID int64) ([]core.AmountOverride, error) {
	rows, err := r.queries.ListOverridesByPeriod(ctx, periodID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	out := make([]core.AmountOverride, len(rows))
	for i, o := range rows {
		out[i] = core.AmountOverride{
			ID:        o.ID,
			MemberID:  o.MemberID,
			TypeID:    o.TypeID,
			PeriodID:  o.PeriodID,
			Amount:    core.Money(o.Amount),
			Active:    o.Active,
			CreatedAt: parseTime(o.CreatedAt),
		}
	}
	return out, nil
}

func (r *SQLiteRepository) GetFiscalPeriod(ctx context.Context, id int64) (core.FiscalPeriod, error) {
	p, err := r.queries.GetFiscalPeriod(ctx, id)
	if err != nil {
		return core.FiscalPeriod{}, fmt.Errorf("get fiscal period: %w", notFound(err, "fiscal period", id))
	}
	return toFiscalPeriod(p), nil
}

func (r *SQLiteRepository) ListFiscalPeriods(ctx context.Context) ([]core.FiscalPeriod, error) {
	rows, err := r.queries.ListFiscalPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fiscal periods: %w", err)
	}
	out := make([]core.FiscalPeriod, len(rows))
	for i, p := range rows {
		out[i] = toFiscalPeriod(p)
	}
	return out, nil
}

func (r *SQLiteRepository) GetBeneficiaryConfig(ctx context.Context) (core.BeneficiaryConfig, error) {
	c, err := r.queries.GetBeneficiaryConfig(ctx)
	if err != nil {
		return core.BeneficiaryConfig{}, fmt.Errorf("get beneficiary config: %w", notFound(err, "beneficiary config", 1))
	}
	pct, err := decimal.NewFromString(c.Percentage)
	if err != nil {
		return core.BeneficiaryConfig{}, fmt.Errorf("parse beneficiary percentage %q: %w", c.Percentage, err)
	}
	return core.BeneficiaryConfig{Mode: core.PayoutMode(c.Mode), Percentage: pct, FixedAmount: core.Money(c.FixedAmount)}, nil
}

func (r *SQLiteRepository) SetBeneficiaryConfig(ctx context.Context, cfg core.BeneficiaryConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := r.queries.SetBeneficiaryConfig(ctx, BeneficiaryConfig{
		Mode:        string(cfg.Mode),
		Percentage:  cfg.Percentage.String(),
		FixedAmount: int64(cfg.FixedAmount),
	})
	if err != nil {
		return fmt.Errorf("set beneficiary config: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetMeeting(ctx context.Context, id int64) (core.Meeting, error) {
	m, err := r.queries.GetMeeting(ctx, id)
	if err != nil {
		return core.Meeting{}, fmt.Errorf("get meeting: %w", notFound(err, "meeting", id))
	}
	return toMeeting(m), nil
}

func (r *SQLiteRepository) ListMeetings(ctx context.Context, from, to core.Date) ([]core.Meeting, error) {
	rows, err := r.queries.ListMeetingsBetween(ctx, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	out := make([]core.Meeting, len(rows))
	for i, m := range rows {
		out[i] = toMeeting(m)
	}
	return out, nil
}

func (r *SQLiteRepository) UpdateMeetingStatus(ctx context.Context, id int64, status core.MeetingStatus) error {
	n, err := r.queries.UpdateMeetingStatus(ctx, id, string(status))
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	if n == 0 {
		return core.NotFound("meeting", id)
	}

	slog.InfoContext(ctx, "Meeting status updated", "meeting_id", id, "status", status)
	return nil
}

func (r *SQLiteRepository) GetContribution(ctx context.Context, id int64) (core.Contribution, error) {
	c, err := r.queries.GetContribution(ctx, id)
	if err != nil {
		return core.Contribution{}, fmt.Errorf("get contribution: %w", notFound(err, "contribution", id))
	}
	return toContribution(c), nil
}

func (r *SQLiteRepository) FindContribution(ctx context.Context, memberID, typeID, meetingID int64) (core.Contribution, bool, error) {
	c, err := r.queries.GetContributionByKey(ctx, memberID, typeID, meetingID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Contribution{}, false, nil
	}
	if err != nil {
		return core.Contribution{}, false, fmt.Errorf("find contribution: %w", err)
	}
	return toContribution(c), true, nil
}

// SaveContribution inserts when c.ID is zero and overwrites otherwise.
func (r *SQLiteRepository) SaveContribution(ctx context.Context, c core.Contribution) (core.Contribution, error) {
	if err := c.Amount.Validate(); err != nil {
		return core.Contribution{}, err
	}
	var (
		saved Contribution
		err   error
	)
	if c.ID == 0 {
		saved, err = r.queries.InsertContribution(ctx, fromContribution(c))
	} else {
		saved, err = r.queries.UpdateContribution(ctx, fromContribution(c))
		err = notFound(err, "contribution", c.ID)
	}
	if err != nil {
		return core.Contribution{}, fmt.Errorf("save contribution: %w", err)
	}

	slog.InfoContext(ctx, "Contribution saved to SQLite",
		"id", saved.ID,
		"member_id", saved.MemberID,
		"type_id", saved.TypeID,
		"meeting_id", saved.MeetingID,
		"amount", saved.Amount)

	return toContribution(saved), nil
}

func (r *SQLiteRepository) DeleteContribution(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteContribution(ctx, id)
	if err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	if n == 0 {
		return core.NotFound("contribution", id)
	}
	return nil
}

func (r *SQLiteRepository) ListContributions(ctx context.Context, f ports.ContributionFilter) ([]core.Contribution, error) {
	rows, err := r.queries.ListContributions(ctx, ListContributionsParams{
		MemberID:  f.MemberID,
		TypeID:    f.TypeID,
		MeetingID: f.MeetingID,
		PeriodID:  f.PeriodID,
	})
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	out := make([]core.Contribution, len(rows))
	for i, c := range rows {
		out[i] = toContribution(c)
	}
	return out, nil
}

func (r *SQLiteRepository) ListSanctions(ctx context.Context, memberID int64) ([]core.Sanction, error) {
	rows, err := r.queries.ListSanctionsByMember(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("list sanctions: %w", err)
	}
	out := make([]core.Sanction, len(rows))
	for i, s := range rows {
		out[i] = core.Sanction{
			ID:       s.ID,
			MemberID: s.MemberID,
			Amount:   core.Money(s.Amount),
			Status:   core.PaymentStatus(s.Status),
			Context:  s.Context,
			Reason:   s.Reason,
		}
	}
	return out, nil
}

// Load writes the seed in a single transaction. Rows keep their seeded IDs
// and existing rows with the same ID are overwritten.
func (r *SQLiteRepository) Load(ctx context.Context, seed core.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()
	q := r.queries.WithTx(tx)

	for _, m := range seed.Members {
		if err := q.UpsertMember(ctx, Member{ID: m.ID, Name: m.Name, Active: m.Active, GroupsCSV: strings.Join(m.Groups, ",")}); err != nil {
			return fmt.Errorf("seed member %d: %w", m.ID, err)
		}
	}
	for _, t := range seed.Types {
		row := ContributionType{ID: t.ID, Name: t.Name, Mandatory: t.Mandatory, EntryMode: string(t.EntryMode)}
		if t.DefaultAmount != nil {
			row.DefaultAmount = sql.NullInt64{Int64: int64(*t.DefaultAmount), Valid: true}
		}
		if err := q.UpsertContributionType(ctx, row); err != nil {
			return fmt.Errorf("seed contribution type %d: %w", t.ID, err)
		}
	}
	for _, p := range seed.Periods {
		row := FiscalPeriod{ID: p.ID, Name: p.Name, StartDate: p.Start.String(), EndDate: p.End.String(), Status: string(p.Status)}
		if err := q.UpsertFiscalPeriod(ctx, row); err != nil {
			return fmt.Errorf("seed fiscal period %d: %w", p.ID, err)
		}
	}
	for _, o := range seed.Overrides {
		row := AmountOverride{
			ID: o.ID, MemberID: o.MemberID, TypeID: o.TypeID, PeriodID: o.PeriodID,
			Amount: int64(o.Amount), Active: o.Active, CreatedAt: formatTime(o.CreatedAt),
		}
		if err := q.UpsertOverride(ctx, row); err != nil {
			return fmt.Errorf("seed override %d: %w", o.ID, err)
		}
	}
	for _, m := range seed.Meetings {
		if err := q.UpsertMeeting(ctx, Meeting{ID: m.ID, MeetingDate: m.Date.String(), Status: string(m.Status), Notes: m.Notes}); err != nil {
			return fmt.Errorf("seed meeting %d: %w", m.ID, err)
		}
	}
	for _, c := range seed.Contributions {
		if err := q.UpsertContributionWithID(ctx, fromContribution(c)); err != nil {
			return fmt.Errorf("seed contribution %d: %w", c.ID, err)
		}
	}
	for _, s := range seed.Sanctions {
		row := Sanction{ID: s.ID, MemberID: s.MemberID, Amount: int64(s.Amount), Status: string(s.Status), Context: s.Context, Reason: s.Reason}
		if err := q.UpsertSanction(ctx, row); err != nil {
			return fmt.Errorf("seed sanction %d: %w", s.ID, err)
		}
	}
	if b := seed.Beneficiary; b != nil {
		if err := q.SetBeneficiaryConfig(ctx, BeneficiaryConfig{Mode: string(b.Mode), Percentage: b.Percentage.String(), FixedAmount: int64(b.FixedAmount)}); err != nil {
			return fmt.Errorf("seed beneficiary config: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Seed loaded into SQLite",
		"members", len(seed.Members),
		"meetings", len(seed.Meetings),
		"contributions", len(seed.Contributions))
	return nil
}
