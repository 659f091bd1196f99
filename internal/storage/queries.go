package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Member struct {
	ID        int64
	Name      string
	Active    bool
	GroupsCSV string
}

type ContributionType struct {
	ID            int64
	Name          string
	DefaultAmount sql.NullInt64
	Mandatory     bool
	EntryMode     string
}

type AmountOverride struct {
	ID        int64
	MemberID  int64
	TypeID    int64
	PeriodID  int64
	Amount    int64
	Active    bool
	CreatedAt string
}

type FiscalPeriod struct {
	ID        int64
	Name      string
	StartDate string
	EndDate   string
	Status    string
}

type Meeting struct {
	ID          int64
	MeetingDate string
	Status      string
	Notes       string
}

type Contribution struct {
	ID        int64
	MemberID  int64
	TypeID    int64
	MeetingID int64
	PeriodID  int64
	Amount    int64
	PaidOn    string
	Status    string
	UpdatedAt string
}

type Sanction struct {
	ID       int64
	MemberID int64
	Amount   int64
	Status   string
	Context  string
	Reason   string
}

type BeneficiaryConfig struct {
	Mode        string
	Percentage  string
	FixedAmount int64
}

const getMember = `SELECT id, name, active, groups_csv FROM members WHERE id = ?`

func (q *Queries) GetMember(ctx context.Context, id int64) (Member, error) {
	var m Member
	err := q.db.QueryRowContext(ctx, getMember, id).Scan(&m.ID, &m.Name, &m.Active, &m.GroupsCSV)
	return m, err
}

const listMembers = `SELECT id, name, active, groups_csv FROM members ORDER BY id`

func (q *Queries) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := q.db.QueryContext(ctx, listMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Active, &m.GroupsCSV); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const upsertMember = `INSERT INTO members (id, name, active, groups_csv) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, active = excluded.active, groups_csv = excluded.groups_csv`

func (q *Queries) UpsertMember(ctx context.Context, m Member) error {
	_, err := q.db.ExecContext(ctx, upsertMember, m.ID, m.Name, m.Active, m.GroupsCSV)
	return err
}

const contributionTypeColumns = `id, name, default_amount, mandatory, entry_mode`

func scanContributionType(row interface{ Scan(...any) error }) (ContributionType, error) {
	var t ContributionType
	err := row.Scan(&t.ID, &t.Name, &t.DefaultAmount, &t.Mandatory, &t.EntryMode)
	return t, err
}

func (q *Queries) GetContributionType(ctx context.Context, id int64) (ContributionType, error) {
	return scanContributionType(q.db.QueryRowContext(ctx,
		`SELECT `+contributionTypeColumns+` FROM contribution_types WHERE id = ?`, id))
}

func (q *Queries) ListContributionTypes(ctx context.Context) ([]ContributionType, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+contributionTypeColumns+` FROM contribution_types ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ContributionType
	for rows.Next() {
		t, err := scanContributionType(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const upsertContributionType = `INSERT INTO contribution_types (id, name, default_amount, mandatory, entry_mode) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, default_amount = excluded.default_amount,
mandatory = excluded.mandatory, entry_mode = excluded.entry_mode`

func (q *Queries) UpsertContributionType(ctx context.Context, t ContributionType) error {
	_, err := q.db.ExecContext(ctx, upsertContributionType, t.ID, t.Name, t.DefaultAmount, t.Mandatory, t.EntryMode)
	return err
}

const listOverridesByPeriod = `SELECT id, member_id, type_id, period_id, amount, active, created_at
FROM amount_overrides WHERE period_id = ? ORDER BY id`

func (q *Queries) ListOverridesByPeriod(ctx context.Context, periodID int64) ([]AmountOverride, error) {
	rows, err := q.db.QueryContext(ctx, listOverridesByPeriod, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AmountOverride
	for rows.Next() {
		var o AmountOverride
		if err := rows.Scan(&o.ID, &o.MemberID, &o.TypeID, &o.PeriodID, &o.Amount, &o.Active, &o.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const upsertOverride = `INSERT INTO amount_overrides (id, member_id, type_id, period_id, amount, active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET member_id = excluded.member_id, type_id = excluded.type_id,
period_id = excluded.period_id, amount = excluded.amount, active = excluded.active, created_at = excluded.created_at`

func (q *Queries) UpsertOverride(ctx context.Context, o AmountOverride) error {
	_, err := q.db.ExecContext(ctx, upsertOverride, o.ID, o.MemberID, o.TypeID, o.PeriodID, o.Amount, o.Active, o.CreatedAt)
	return err
}

const fiscalPeriodColumns = `id, name, start_date, end_date, status`

func scanFiscalPeriod(row interface{ Scan(...any) error }) (FiscalPeriod, error) {
	var p FiscalPeriod
	err := row.Scan(&p.ID, &p.Name, &p.StartDate, &p.EndDate, &p.Status)
	return p, err
}

func (q *Queries) GetFiscalPeriod(ctx context.Context, id int64) (FiscalPeriod, error) {
	return scanFiscalPeriod(q.db.QueryRowContext(ctx,
		`SELECT `+fiscalPeriodColumns+` FROM fiscal_periods WHERE id = ?`, id))
}

func (q *Queries) ListFiscalPeriods(ctx context.Context) ([]FiscalPeriod, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+fiscalPeriodColumns+` FROM fiscal_periods ORDER BY start_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FiscalPeriod
	for rows.Next() {
		p, err := scanFiscalPeriod(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const upsertFiscalPeriod = `INSERT INTO fiscal_periods (id, name, start_date, end_date, status) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, start_date = excluded.start_date,
end_date = excluded.end_date, status = excluded.status`

func (q *Queries) UpsertFiscalPeriod(ctx context.Context, p FiscalPeriod) error {
	_, err := q.db.ExecContext(ctx, upsertFiscalPeriod, p.ID, p.Name, p.StartDate, p.EndDate, p.Status)
	return err
}

const meetingColumns = `id, meeting_date, status, notes`

func scanMeeting(row interface{ Scan(...any) error }) (Meeting, error) {
	var m Meeting
	err := row.Scan(&m.ID, &m.MeetingDate, &m.Status, &m.Notes)
	return m, err
}

func (q *Queries) GetMeeting(ctx context.Context, id int64) (Meeting, error) {
	return scanMeeting(q.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id = ?`, id))
}

const listMeetingsBetween = `SELECT ` + meetingColumns + ` FROM meetings
WHERE meeting_date >= ? AND meeting_date <= ? ORDER BY meeting_date, id`

func (q *Queries) ListMeetingsBetween(ctx context.Context, from, to string) ([]Meeting, error) {
	rows, err := q.db.QueryContext(ctx, listMeetingsBetween, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const updateMeetingStatus = `UPDATE meetings SET status = ? WHERE id = ?`

func (q *Queries) UpdateMeetingStatus(ctx context.Context, id int64, status string) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateMeetingStatus, status, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const upsertMeeting = `INSERT INTO meetings (id, meeting_date, status, notes) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET meeting_date = excluded.meeting_date, status = excluded.status, notes = excluded.notes`

func (q *Queries) UpsertMeeting(ctx context.Context, m Meeting) error {
	_, err := q.db.ExecContext(ctx, upsertMeeting, m.ID, m.MeetingDate, m.Status, m.Notes)
	return err
}

const contributionColumns = `id, member_id, type_id, meeting_id, period_id, amount, paid_on, status, updated_at`

func scanContribution(row interface{ Scan(...any) error }) (Contribution, error) {
	var c Contribution
	err := row.Scan(&c.ID, &c.MemberID, &c.TypeID, &c.MeetingID, &c.PeriodID, &c.Amount, &c.PaidOn, &c.Status, &c.UpdatedAt)
	return c, err
}

func (q *Queries) GetContribution(ctx context.Context, id int64) (Contribution, error) {
	return scanContribution(q.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id))
}

func (q *Queries) GetContributionByKey(ctx context.Context, memberID, typeID, meetingID int64) (Contribution, error) {
	return scanContribution(q.db.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE member_id = ? AND type_id = ? AND meeting_id = ?`,
		memberID, typeID, meetingID))
}

type ListContributionsParams struct {
	MemberID  int64
	TypeID    int64
	MeetingID int64
	PeriodID  int64
}

// ListContributions treats zero parameters as wildcards.
func (q *Queries) ListContributions(ctx context.Context, arg ListContributionsParams) ([]Contribution, error) {
	var (
		where []string
		args  []any
	)
	add := func(col string, v int64) {
		if v != 0 {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}
	add("member_id", arg.MemberID)
	add("type_id", arg.TypeID)
	add("meeting_id", arg.MeetingID)
	add("period_id", arg.PeriodID)

	query := `SELECT ` + contributionColumns + ` FROM contributions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const insertContribution = `INSERT INTO contributions (member_id, type_id, meeting_id, period_id, amount, paid_on, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(member_id, type_id, meeting_id) DO UPDATE SET period_id = excluded.period_id, amount = excluded.amount,
paid_on = excluded.paid_on, status = excluded.status, updated_at = excluded.updated_at
RETURNING ` + contributionColumns

// InsertContribution upserts on the (member, type, meeting) key so two
// concurrent first writes resolve to last-write-wins instead of a conflict.
func (q *Queries) InsertContribution(ctx context.Context, c Contribution) (Contribution, error) {
	return scanContribution(q.db.QueryRowContext(ctx, insertContribution,
		c.MemberID, c.TypeID, c.MeetingID, c.PeriodID, c.Amount, c.PaidOn, c.Status, c.UpdatedAt))
}

const updateContribution = `UPDATE contributions SET member_id = ?, type_id = ?, meeting_id = ?, period_id = ?,
amount = ?, paid_on = ?, status = ?, updated_at = ? WHERE id = ? RETURNING ` + contributionColumns

func (q *Queries) UpdateContribution(ctx context.Context, c Contribution) (Contribution, error) {
	return scanContribution(q.db.QueryRowContext(ctx, updateContribution,
		c.MemberID, c.TypeID, c.MeetingID, c.PeriodID, c.Amount, c.PaidOn, c.Status, c.UpdatedAt, c.ID))
}

const upsertContributionWithID = `INSERT INTO contributions (id, member_id, type_id, meeting_id, period_id, amount, paid_on, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET member_id = excluded.member_id, type_id = excluded.type_id, meeting_id = excluded.meeting_id,
period_id = excluded.period_id, amount = excluded.amount, paid_on = excluded.paid_on, status = excluded.status,
updated_at = excluded.updated_at`

func (q *Queries) UpsertContributionWithID(ctx context.Context, c Contribution) error {
	_, err := q.db.ExecContext(ctx, upsertContributionWithID,
		c.ID, c.MemberID, c.TypeID, c.MeetingID, c.PeriodID, c.Amount, c.PaidOn, c.Status, c.UpdatedAt)
	return err
}

const deleteContribution = `DELETE FROM contributions WHERE id = ?`

func (q *Queries) DeleteContribution(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteContribution, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listSanctionsByMember = `SELECT id, member_id, amount, status, context, reason FROM sanctions WHERE member_id = ? ORDER BY id`

func (q *Queries) ListSanctionsByMember(ctx context.Context, memberID int64) ([]Sanction, error) {
	rows, err := q.db.QueryContext(ctx, listSanctionsByMember, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Sanction
	for rows.Next() {
		var s Sanction
		if err := rows.Scan(&s.ID, &s.MemberID, &s.Amount, &s.Status, &s.Context, &s.Reason); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const upsertSanction = `INSERT INTO sanctions (id, member_id, amount, status, context, reason) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET member_id = excluded.member_id, amount = excluded.amount,
status = excluded.status, context = excluded.context, reason = excluded.reason`

func (q *Queries) UpsertSanction(ctx context.Context, s Sanction) error {
	_, err := q.db.ExecContext(ctx, upsertSanction, s.ID, s.MemberID, s.Amount, s.Status, s.Context, s.Reason)
	return err
}

const getBeneficiaryConfig = `SELECT mode, percentage, fixed_amount FROM beneficiary_config WHERE id = 1`

func (q *Queries) GetBeneficiaryConfig(ctx context.Context) (BeneficiaryConfig, error) {
	var c BeneficiaryConfig
	err := q.db.QueryRowContext(ctx, getBeneficiaryConfig).Scan(&c.Mode, &c.Percentage, &c.FixedAmount)
	return c, err
}

const setBeneficiaryConfig = `INSERT INTO beneficiary_config (id, mode, percentage, fixed_amount) VALUES (1, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET mode = excluded.mode, percentage = excluded.percentage, fixed_amount = excluded.fixed_amount`

func (q *Queries) SetBeneficiaryConfig(ctx context.Context, c BeneficiaryConfig) error {
	_, err := q.db.ExecContext(ctx, setBeneficiaryConfig, c.Mode, c.Percentage, c.FixedAmount)
	return err
}
