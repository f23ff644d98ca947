package model

import (
	"context"

	"gorm.io/gorm"
)

// Event types recorded for a license.
const (
	EventIssued    = "issued"
	EventActivated = "activated"
	EventRejected  = "rejected"
	EventRevoked   = "revoked"
	EventReset     = "reset"
)

// LicenseEvent stores an audit event related to a license record.
type LicenseEvent struct {
	gorm.Model
	KeyDigest string `gorm:"index;size:64"`
	Type      string `gorm:"index"`
	Message   string
	// Actor is who triggered the event: "admin", the webhook provider name,
	// or the device id for activation attempts.
	Actor string
	// Country is the ISO country code of the caller, if GeoIP is enabled.
	Country string
}

// LicenseEventStore abstracts the audit trail. Writes are best-effort;
// callers log failures and carry on.
type LicenseEventStore interface {
	Record(ctx context.Context, ev LicenseEvent) error
	ForLicense(ctx context.Context, keyDigest string) ([]LicenseEvent, error)
}
