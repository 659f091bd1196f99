package backend

import (
	"context"

	"tontine/internal/core"
	"tontine/internal/ports"
)

// Store is what every backend offers: the engine's persistence ports plus
// the bootstrap operations used by the admin tool.
type Store interface {
	ports.Store
	Load(ctx context.Context, seed core.Seed) error
	SetBeneficiaryConfig(ctx context.Context, cfg core.BeneficiaryConfig) error
	Close() error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Type  BackendType
	Store Store
	// Ready reports whether the store answers; the HTTP readiness probe calls it.
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Beneficiary is stored when the backend holds no payout configuration yet.
	Beneficiary core.BeneficiaryConfig
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
