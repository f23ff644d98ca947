package storage

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/thinkzone/keygate/storage/model"
)

// LicenseStorage implements the model.LicenseStore interface
type LicenseStorage struct {
	db *gorm.DB
}

// Create stores a new license record
func (s *LicenseStorage) Create(ctx context.Context, lic model.License) error {
	err := s.db.WithContext(ctx).Create(&lic).Error
	if err != nil {
		if isDuplicateKeyError(err) {
			return model.AlreadyExistsErrorFmt("license already exists for digest %s", lic.KeyDigest)
		}
		return errors.Wrap(err, "failed to create license")
	}
	return nil
}

// FindActive returns the license for the digest only if it is active.
// Revoked and never-issued digests both return (nil, nil); callers must not
// be able to tell the two apart.
func (s *LicenseStorage) FindActive(ctx context.Context, keyDigest string) (*model.License, error) {
	var lic model.License
	err := s.db.WithContext(ctx).
		Where("key_digest = ? AND active = ?", keyDigest, true).
		First(&lic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find license")
	}
	return &lic, nil
}

// BindDeviceIfUnbound binds the license to deviceID with a single
// conditional UPDATE. Two devices racing on a fresh key both reach the
// UPDATE, but only one matches the `device_id IS NULL` predicate; the loser
// re-reads the row and is reported as bound elsewhere.
func (s *LicenseStorage) BindDeviceIfUnbound(
	ctx context.Context, keyDigest, deviceID string, now time.Time,
) (model.BindOutcome, error) {
	res := s.db.WithContext(ctx).
		Model(&model.License{}).
		Where("key_digest = ? AND active = ? AND device_id IS NULL", keyDigest, true).
		Updates(
			map[string]any{
				"device_id":    deviceID,
				"activated_at": now,
			},
		)
	if res.Error != nil {
		return model.BindNotFound, errors.Wrap(res.Error, "failed to bind device")
	}
	if res.RowsAffected > 0 {
		return model.BoundNow, nil
	}

	// Nothing matched: either the record is gone/revoked or already bound.
	lic, err := s.FindActive(ctx, keyDigest)
	if err != nil {
		return model.BindNotFound, err
	}
	if lic == nil {
		return model.BindNotFound, nil
	}
	if lic.DeviceID != nil && *lic.DeviceID == deviceID {
		return model.AlreadyBoundSame, nil
	}
	return model.BoundToOther, nil
}

// SetActive revokes or unrevokes the license
func (s *LicenseStorage) SetActive(ctx context.Context, keyDigest string, active bool) (
	matched, modified int64, err error,
) {
	db := s.db.WithContext(ctx)
	if err = db.Model(&model.License{}).
		Where("key_digest = ?", keyDigest).
		Count(&matched).Error; err != nil {
		return 0, 0, errors.Wrap(err, "failed to count licenses")
	}
	if matched == 0 {
		return 0, 0, nil
	}
	res := db.Model(&model.License{}).
		Where("key_digest = ? AND active = ?", keyDigest, !active).
		Update("active", active)
	if res.Error != nil {
		return matched, 0, errors.Wrap(res.Error, "failed to update license status")
	}
	return matched, res.RowsAffected, nil
}

// ResetBinding clears the device binding so the license can be activated on
// a different device
func (s *LicenseStorage) ResetBinding(ctx context.Context, keyDigest string) error {
	// Existence is checked separately: RowsAffected counts changed rows on
	// mysql, so an already-unbound license would look like a miss.
	var matched int64
	if err := s.db.WithContext(ctx).
		Model(&model.License{}).
		Where("key_digest = ?", keyDigest).
		Count(&matched).Error; err != nil {
		return errors.Wrap(err, "failed to reset license binding")
	}
	if matched == 0 {
		return model.NotFoundErrorFmt("no license for digest %s", keyDigest)
	}
	res := s.db.WithContext(ctx).
		Model(&model.License{}).
		Where("key_digest = ?", keyDigest).
		Updates(
			map[string]any{
				"device_id":    nil,
				"activated_at": nil,
			},
		)
	return errors.Wrap(res.Error, "failed to reset license binding")
}

// List returns license records ordered by issuance time, newest first
func (s *LicenseStorage) List(ctx context.Context, opts model.ListOptions) ([]model.License, error) {
	var lics []model.License
	q := s.db.WithContext(ctx).Order("issued_at DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Find(&lics).Error; err != nil {
		return nil, errors.Wrap(err, "failed to list licenses")
	}
	return lics, nil
}

// Count returns the total number of license records
func (s *LicenseStorage) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.License{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "failed to count licenses")
	}
	return count, nil
}

// isDuplicateKeyError reports whether err stems from a unique constraint
// violation. gorm.ErrDuplicatedKey covers drivers with translated errors;
// the string checks cover SQLite and MySQL variants that are not.
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "duplicate key value")
}
