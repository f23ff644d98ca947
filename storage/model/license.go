package model

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// License represents one issued license key in the database. The plaintext
// key is never stored; KeyDigest is its irreversible SHA-256 digest and the
// only lookup handle.
type License struct {
	KeyDigest string    `gorm:"primaryKey;size:64" json:"key_digest"`
	IssuedAt  time.Time `gorm:"index:,sort:desc" json:"issued_at"`
	// ExpiryDate is an ISO calendar date (2006-01-02). It is immutable after
	// creation; renewal means issuing a new record for a new key.
	ExpiryDate string `json:"expiry"`
	// Active is false once the license has been administratively revoked.
	// Revocation is terminal for the record.
	Active bool `gorm:"index" json:"active"`
	// DeviceID is the device the license is bound to; nil means unbound.
	DeviceID *string `json:"device_id,omitempty"`
	// ActivatedAt is set together with DeviceID on first successful binding.
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
	// Metadata carries opaque contextual attributes (purchaser email, source
	// channel, sale id). Not interpreted by the core.
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`
}

// BindOutcome is the result of the atomic device-binding update.
type BindOutcome int

// Constants for BindOutcome
const (
	// BindNotFound means no active license exists for the digest.
	BindNotFound BindOutcome = iota
	// BoundNow means the license was unbound and is now bound to the caller.
	BoundNow
	// AlreadyBoundSame means the license is already bound to the caller.
	AlreadyBoundSame
	// BoundToOther means the license is bound to a different device.
	BoundToOther
)

// String returns the canonical string representation for the outcome.
func (o BindOutcome) String() string {
	switch o {
	case BindNotFound:
		return "not_found"
	case BoundNow:
		return "bound_now"
	case AlreadyBoundSame:
		return "already_bound_same"
	case BoundToOther:
		return "bound_to_other"
	default:
		return "unknown"
	}
}

// ListOptions controls pagination of license listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// LicenseStore abstracts persistence for license records. All methods are
// atomic with respect to concurrent callers on the same KeyDigest.
type LicenseStore interface {
	// Create stores a new license record; a colliding KeyDigest yields an
	// AlreadyExistsError.
	Create(ctx context.Context, lic License) error
	// FindActive returns the record for the digest only if it is active.
	// Absent and revoked records are indistinguishable: both return
	// (nil, nil) so that callers cannot leak revocation status.
	FindActive(ctx context.Context, keyDigest string) (*License, error)
	// BindDeviceIfUnbound atomically binds the license to deviceID if it is
	// active and unbound. The check and the write happen in a single
	// conditional UPDATE at the database layer.
	BindDeviceIfUnbound(ctx context.Context, keyDigest, deviceID string, now time.Time) (BindOutcome, error)
	// SetActive revokes (false) or unrevokes (true) the license and reports
	// how many records matched the digest and how many were modified.
	SetActive(ctx context.Context, keyDigest string, active bool) (matched, modified int64, err error)
	// ResetBinding clears DeviceID and ActivatedAt unconditionally.
	ResetBinding(ctx context.Context, keyDigest string) error
	// List returns records ordered by IssuedAt descending.
	List(ctx context.Context, opts ListOptions) ([]License, error)
	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)
}
