// Package ports declares the collaborators the reconciliation engine reads
// from and writes to. Storage adapters implement them; services consume them.
package ports

import (
	"context"

	"tontine/internal/core"
)

// Ports for outbound adapters.
type (
	// MemberDirectory resolves members. Membership lifecycle is owned elsewhere.
	MemberDirectory interface {
		GetMember(ctx context.Context, id int64) (core.Member, error)
		ListMembers(ctx context.Context) ([]core.Member, error)
	}

	// ConfigReader exposes association configuration, read-only to the engine.
	ConfigReader interface {
		GetContributionType(ctx context.Context, id int64) (core.ContributionType, error)
		ListContributionTypes(ctx context.Context) ([]core.ContributionType, error)
		// ListOverrides returns every override recorded for the period, active or not.
		ListOverrides(ctx context.Context, periodID int64) ([]core.AmountOverride, error)
		GetFiscalPeriod(ctx context.Context, id int64) (core.FiscalPeriod, error)
		ListFiscalPeriods(ctx context.Context) ([]core.FiscalPeriod, error)
		GetBeneficiaryConfig(ctx context.Context) (core.BeneficiaryConfig, error)
	}

	MeetingStore interface {
		GetMeeting(ctx context.Context, id int64) (core.Meeting, error)
		ListMeetings(ctx context.Context, from, to core.Date) ([]core.Meeting, error)
		UpdateMeetingStatus(ctx context.Context, id int64, status core.MeetingStatus) error
	}

	// ContributionStore persists payment events. SaveContribution inserts when
	// ID is zero and overwrites the row otherwise.
	ContributionStore interface {
		GetContribution(ctx context.Context, id int64) (core.Contribution, error)
		FindContribution(ctx context.Context, memberID, typeID, meetingID int64) (core.Contribution, bool, error)
		SaveContribution(ctx context.Context, c core.Contribution) (core.Contribution, error)
		DeleteContribution(ctx context.Context, id int64) error
		ListContributions(ctx context.Context, f ContributionFilter) ([]core.Contribution, error)
	}

	SanctionReader interface {
		ListSanctions(ctx context.Context, memberID int64) ([]core.Sanction, error)
	}

	// Authorizer decides privileged lifecycle transitions.
	Authorizer interface {
		CanReopen(ctx context.Context, actor Actor) (bool, error)
	}

	// EventPublisher announces ledger changes to out-of-process consumers.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, ev core.LedgerEvent) error
	}

	// Invalidator drops derived views after the ledger changed.
	Invalidator interface {
		Invalidate(ctx context.Context, periodID int64)
	}

	// Store bundles every persistence port; both storage adapters satisfy it.
	Store interface {
		MemberDirectory
		ConfigReader
		MeetingStore
		ContributionStore
		SanctionReader
	}
)

// ContributionFilter narrows ListContributions. Zero fields match everything.
type ContributionFilter struct {
	MemberID  int64
	TypeID    int64
	MeetingID int64
	PeriodID  int64
}

// Actor identifies the caller of an administrative operation.
type Actor struct {
	Name  string
	Roles []string
}
