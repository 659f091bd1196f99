// Package memory is an in-process store seeded from JSON. It backs local
// development and the service tests.
package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"tontine/internal/core"
	"tontine/internal/ports"
)

const SeedFileName = "seed.json"

type Store struct {
	mu            sync.Mutex
	members       map[int64]core.Member
	types         map[int64]core.ContributionType
	overrides     []core.AmountOverride
	periods       map[int64]core.FiscalPeriod
	meetings      map[int64]core.Meeting
	contributions map[int64]core.Contribution
	sanctions     []core.Sanction
	beneficiary   *core.BeneficiaryConfig
	nextID        int64
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		members:       map[int64]core.Member{},
		types:         map[int64]core.ContributionType{},
		periods:       map[int64]core.FiscalPeriod{},
		meetings:      map[int64]core.Meeting{},
		contributions: map[int64]core.Contribution{},
	}
}

// NewFromSeed builds a store holding a copy of the seed.
func NewFromSeed(seed core.Seed) (*Store, error) {
	s := New()
	if err := s.Load(context.Background(), seed); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFromFiles loads base/seed.json; a missing file yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	path := filepath.Join(base, SeedFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	seed, err := core.ReadSeedFile(path)
	if err != nil {
		return nil, err
	}
	return NewFromSeed(seed)
}

// Load merges the seed into the store. Entities keep their seeded IDs.
func (s *Store) Load(_ context.Context, seed core.Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range seed.Members {
		m.Groups = append([]string(nil), m.Groups...)
		s.members[m.ID] = m
		s.bump(m.ID)
	}
	for _, t := range seed.Types {
		s.types[t.ID] = t
		s.bump(t.ID)
	}
	for _, o := range seed.Overrides {
		s.overrides = append(s.overrides, o)
		s.bump(o.ID)
	}
	for _, p := range seed.Periods {
		s.periods[p.ID] = p
		s.bump(p.ID)
	}
	for _, m := range seed.Meetings {
		s.meetings[m.ID] = m
		s.bump(m.ID)
	}
	for _, c := range seed.Contributions {
		s.contributions[c.ID] = c
		s.bump(c.ID)
	}
	for _, sc := range seed.Sanctions {
		s.sanctions = append(s.sanctions, sc)
		s.bump(sc.ID)
	}
	if seed.Beneficiary != nil {
		cfg := *seed.Beneficiary
		s.beneficiary = &cfg
	}
	return nil
}

func (s *Store) bump(id int64) {
	if id > s.nextID {
		s.nextID = id
	}
}

func (s *Store) GetMember(_ context.Context, id int64) (core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return core.Member{}, core.NotFound("member", id)
	}
	return m, nil
}

func (s *Store) ListMembers(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetContributionType(_ context.Context, id int64) (core.ContributionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.types[id]
	if !ok {
		return core.ContributionType{}, core.NotFound("contribution type", id)
	}
	return t, nil
}

func (s *Store) ListContributionTypes(_ context.Context) ([]core.ContributionType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ContributionType, 0, len(s.types))
	for _, t := range s.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListOverrides(_ context.Context, periodID int64) ([]core.AmountOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.AmountOverride
	for _, o := range s.overrides {
		if o.PeriodID == periodID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) GetFiscalPeriod(_ context.Context, id int64) (core.FiscalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return core.FiscalPeriod{}, core.NotFound("fiscal period", id)
	}
	return p, nil
}

func (s *Store) ListFiscalPeriods(_ context.Context) ([]core.FiscalPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FiscalPeriod, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start.Time) })
	return out, nil
}

func (s *Store) GetBeneficiaryConfig(_ context.Context) (core.BeneficiaryConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.beneficiary == nil {
		return core.BeneficiaryConfig{}, core.NotFound("beneficiary config", 0)
	}
	return *s.beneficiary, nil
}

// SetBeneficiaryConfig replaces the payout configuration.
func (s *Store) SetBeneficiaryConfig(_ context.Context, cfg core.BeneficiaryConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beneficiary = &cfg
	return nil
}

func (s *Store) GetMeeting(_ context.Context, id int64) (core.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return core.Meeting{}, core.NotFound("meeting", id)
	}
	return m, nil
}

// ListMeetings returns meetings dated within [from, to], oldest first.
func (s *Store) ListMeetings(_ context.Context, from, to core.Date) ([]core.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Meeting
	for _, m := range s.meetings {
		if m.Date.Before(from.Time) || m.Date.After(to.Time) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out, nil
}

func (s *Store) UpdateMeetingStatus(_ context.Context, id int64, status core.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return core.NotFound("meeting", id)
	}
	m.Status = status
	s.meetings[id] = m
	return nil
}

func (s *Store) GetContribution(_ context.Context, id int64) (core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contributions[id]
	if !ok {
		return core.Contribution{}, core.NotFound("contribution", id)
	}
	return c, nil
}

func (s *Store) FindContribution(_ context.Context, memberID, typeID, meetingID int64) (core.Contribution, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contributions {
		if c.MemberID == memberID && c.TypeID == typeID && c.MeetingID == meetingID {
			return c, true, nil
		}
	}
	return core.Contribution{}, false, nil
}

// SaveContribution inserts when c.ID is zero and overwrites otherwise.
func (s *Store) SaveContribution(_ context.Context, c core.Contribution) (core.Contribution, error) {
	if err := c.Amount.Validate(); err != nil {
		return core.Contribution{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		s.nextID++
		c.ID = s.nextID
	} else if _, ok := s.contributions[c.ID]; !ok {
		return core.Contribution{}, core.NotFound("contribution", c.ID)
	}
	s.contributions[c.ID] = c
	return c, nil
}

func (s *Store) DeleteContribution(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contributions[id]; !ok {
		return core.NotFound("contribution", id)
	}
	delete(s.contributions, id)
	return nil
}

func (s *Store) ListContributions(_ context.Context, f ports.ContributionFilter) ([]core.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Contribution
	for _, c := range s.contributions {
		if f.MemberID != 0 && c.MemberID != f.MemberID ||
			f.TypeID != 0 && c.TypeID != f.TypeID ||
			f.MeetingID != 0 && c.MeetingID != f.MeetingID ||
			f.PeriodID != 0 && c.PeriodID != f.PeriodID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSanctions(_ context.Context, memberID int64) ([]core.Sanction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Sanction
	for _, sc := range s.sanctions {
		if sc.MemberID == memberID {
			out = append(out, sc)
		}
	}
	return out, nil
}

// Close satisfies the backend contract; there is nothing to release.
func (s *Store) Close() error { return nil }
