package license

import (
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the calendar-date format used for expiry dates.
const DateLayout = "2006-01-02"

// ErrInvalidValidity is returned when a validity window of less than one
// day is requested.
var ErrInvalidValidity = errors.New("days_valid must be at least 1")

// ComputeExpiry returns the expiry date for a license issued on issuedOn
// with a validity of validDays calendar days. The rule is issued + N days:
// the issuance day itself does not count, and the expiry date is the last
// day on which the license is still valid.
func ComputeExpiry(issuedOn time.Time, validDays int) (string, error) {
	if validDays < 1 {
		return "", ErrInvalidValidity
	}
	return issuedOn.AddDate(0, 0, validDays).Format(DateLayout), nil
}

// IsExpired reports whether the passed expiry date lies strictly before
// now's calendar date. A malformed expiry value counts as expired so that a
// corrupt record can never validate.
func IsExpired(expiry string, now time.Time) bool {
	exp, err := time.ParseInLocation(DateLayout, expiry, time.UTC)
	if err != nil {
		return true
	}
	nowDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return nowDate.After(exp)
}
