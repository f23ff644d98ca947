package storage

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/thinkzone/keygate/storage/model"
)

// LicenseEventStorage implements the model.LicenseEventStore interface
type LicenseEventStorage struct {
	db *gorm.DB
}

// Record stores an audit event
func (s *LicenseEventStorage) Record(ctx context.Context, ev model.LicenseEvent) error {
	if err := s.db.WithContext(ctx).Create(&ev).Error; err != nil {
		return errors.Wrap(err, "failed to record license event")
	}
	return nil
}

// ForLicense returns all events for a license, oldest first
func (s *LicenseEventStorage) ForLicense(ctx context.Context, keyDigest string) ([]model.LicenseEvent, error) {
	var evs []model.LicenseEvent
	err := s.db.WithContext(ctx).
		Where("key_digest = ?", keyDigest).
		Order("created_at ASC").
		Find(&evs).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to query license events")
	}
	return evs, nil
}
