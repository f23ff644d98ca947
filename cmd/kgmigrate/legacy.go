package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/datatypes"

	"github.com/thinkzone/keygate/internal/keys"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

// legacyLicenseRecord is the document shape of the pre-gorm license
// stores. Early exports carry the plaintext key; later ones only the
// digest. ValidTill and DaysValid are alternatives: exports carry one or
// the other.
type legacyLicenseRecord struct {
	Key         string         `json:"key,omitempty" msgpack:"key,omitempty"`
	KeyDigest   string         `json:"key_digest,omitempty" msgpack:"key_digest,omitempty"`
	IssuedOn    string         `json:"issuedOn" msgpack:"issuedOn"`
	ValidTill   string         `json:"validTill,omitempty" msgpack:"validTill,omitempty"`
	DaysValid   int            `json:"daysValid,omitempty" msgpack:"daysValid,omitempty"`
	Active      *bool          `json:"active,omitempty" msgpack:"active,omitempty"`
	DeviceID    string         `json:"deviceId,omitempty" msgpack:"deviceId,omitempty"`
	ActivatedOn string         `json:"activatedOn,omitempty" msgpack:"activatedOn,omitempty"`
	Email       string         `json:"email,omitempty" msgpack:"email,omitempty"`
	Extra       map[string]any `json:"extra,omitempty" msgpack:"extra,omitempty"`
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (rec *legacyLicenseRecord) UnmarshalJSON(src []byte) error {
	type licenseRecord legacyLicenseRecord
	rr := licenseRecord(*rec)
	if err := json.Unmarshal(src, &rr); err != nil {
		return err
	}
	*rec = legacyLicenseRecord(rr)
	return nil
}

// UnmarshalMsgpack implements the msgpack.Unmarshaler interface
func (rec *legacyLicenseRecord) UnmarshalMsgpack(src []byte) error {
	type licenseRecord legacyLicenseRecord
	rr := licenseRecord(*rec)
	if err := msgpack.Unmarshal(src, &rr); err != nil {
		return err
	}
	*rec = legacyLicenseRecord(rr)
	return nil
}

type loadLegacyLicenseRecords func() ([]legacyLicenseRecord, error)

// toLicense converts a legacy record to the gorm model. Plaintext keys
// are digested and dropped; they never reach the new database.
func (rec legacyLicenseRecord) toLicense() (model.License, error) {
	digest := rec.KeyDigest
	if digest == "" {
		if rec.Key == "" {
			return model.License{}, errors.New("record has neither key nor key_digest")
		}
		digest = keys.Digest(rec.Key)
	}
	digest = strings.ToLower(digest)
	if !keys.IsDigest(digest) {
		return model.License{}, errors.Errorf("'%s' is not a sha256 digest", digest)
	}

	issuedAt, err := parseLegacyTime(rec.IssuedOn)
	if err != nil {
		return model.License{}, errors.Wrap(err, "bad issuedOn")
	}

	expiry := rec.ValidTill
	if expiry == "" {
		if rec.DaysValid <= 0 {
			return model.License{}, errors.New("record has neither validTill nor daysValid")
		}
		if expiry, err = license.ComputeExpiry(issuedAt, rec.DaysValid); err != nil {
			return model.License{}, err
		}
	} else if _, err = time.Parse(license.DateLayout, expiry); err != nil {
		return model.License{}, errors.Wrap(err, "bad validTill")
	}

	active := true
	if rec.Active != nil {
		active = *rec.Active
	}

	lic := model.License{
		KeyDigest:  digest,
		IssuedAt:   issuedAt,
		ExpiryDate: expiry,
		Active:     active,
	}
	if rec.DeviceID != "" {
		deviceID := rec.DeviceID
		lic.DeviceID = &deviceID
		activatedAt := issuedAt
		if rec.ActivatedOn != "" {
			if activatedAt, err = parseLegacyTime(rec.ActivatedOn); err != nil {
				return model.License{}, errors.Wrap(err, "bad activatedOn")
			}
		}
		lic.ActivatedAt = &activatedAt
	}

	meta := datatypes.JSONMap{}
	if rec.Email != "" {
		meta["email"] = rec.Email
	}
	for k, v := range rec.Extra {
		meta[k] = v
	}
	if len(meta) > 0 {
		lic.Metadata = meta
	}
	return lic, nil
}

var legacyTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	license.DateLayout,
}

func parseLegacyTime(s string) (time.Time, error) {
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unparseable timestamp '%s'", s)
}
