package license_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage"
	"github.com/thinkzone/keygate/storage/model"
)

// testClock is a settable clock for expiry scenarios.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestLifecycle(t *testing.T) (*license.Lifecycle, model.Backends, *testClock) {
	t.Helper()
	backs, err := storage.LoadBackends(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	require.NoError(t, err)
	lc := license.NewLifecycle(backs.Licenses, backs.Events)
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	lc.Now = clock.Now
	return lc, backs, clock
}

func TestValidateUnknownKey(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	res, err := lc.Validate(context.Background(), "SMARTCOPY-NOPE-NOPE-NOPE", "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, license.MsgNotFound, res.Message)
	assert.Empty(t, res.Expiry)
}

func TestIssueAndActivate(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 365, Actor: "admin"})
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Key)
	assert.Equal(t, "2027-03-01", issued.Expiry)

	// First validation binds.
	res, err := lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, license.MsgActivated, res.Message)
	assert.Equal(t, issued.Expiry, res.Expiry)

	// Same device again is idempotent.
	res, err = lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, license.MsgValid, res.Message)

	// A different device is rejected.
	res, err = lc.Validate(ctx, issued.Key, "device-2", license.CallerInfo{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, license.MsgBoundElsewhere, res.Message)
}

func TestValidateMissingDevice(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 30})
	require.NoError(t, err)

	res, err := lc.Validate(ctx, issued.Key, "", license.CallerInfo{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, license.MsgMissingDevice, res.Message)

	// The missing device id must not have bound anything.
	res, err = lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestValidateExpired(t *testing.T) {
	lc, _, clock := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 10})
	require.NoError(t, err)

	// Still valid on the expiry date itself.
	clock.now = clock.now.AddDate(0, 0, 10)
	res, err := lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	// Expired the day after.
	clock.now = clock.now.AddDate(0, 0, 1)
	res, err = lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, license.MsgExpired, res.Message)
	assert.Equal(t, issued.Expiry, res.Expiry)
}

func TestRevokeLooksLikeNeverIssued(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 365})
	require.NoError(t, err)

	matched, modified, err := lc.Revoke(ctx, issued.Key)
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)
	assert.EqualValues(t, 1, modified)

	revoked, err := lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	unknown, err2 := lc.Validate(ctx, "SMARTCOPY-NOPE-NOPE-NOPE", "device-1", license.CallerInfo{})
	require.NoError(t, err2)
	// A revoked key and a never-issued key answer identically.
	assert.Equal(t, unknown, revoked)
}

func TestRevokeUnknown(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	_, _, err := lc.Revoke(context.Background(), "SMARTCOPY-NOPE-NOPE-NOPE")
	var notFound model.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestResetBindingAllowsRebind(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 365})
	require.NoError(t, err)
	_, err = lc.Validate(ctx, issued.Key, "old-laptop", license.CallerInfo{})
	require.NoError(t, err)

	require.NoError(t, lc.ResetBinding(ctx, issued.Key))

	res, err := lc.Validate(ctx, issued.Key, "new-laptop", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, license.MsgActivated, res.Message)
}

func TestIssueExplicitKeyConflict(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	_, err := lc.Issue(ctx, license.IssueRequest{Key: "SMARTCOPY-FIXD-FIXD-FIXD", DaysValid: 30})
	require.NoError(t, err)

	_, err = lc.Issue(ctx, license.IssueRequest{Key: "SMARTCOPY-FIXD-FIXD-FIXD", DaysValid: 30})
	var exists model.AlreadyExistsError
	assert.ErrorAs(t, err, &exists)
}

func TestIssueRejectsZeroValidity(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	_, err := lc.Issue(context.Background(), license.IssueRequest{DaysValid: 0})
	assert.ErrorIs(t, err, license.ErrInvalidValidity)
}

func TestLifecycleAuditTrail(t *testing.T) {
	lc, backs, _ := newTestLifecycle(t)
	ctx := context.Background()

	issued, err := lc.Issue(ctx, license.IssueRequest{DaysValid: 365, Actor: "gumroad"})
	require.NoError(t, err)
	_, err = lc.Validate(ctx, issued.Key, "device-1", license.CallerInfo{Country: "AT"})
	require.NoError(t, err)
	_, _, err = lc.Revoke(ctx, issued.Key)
	require.NoError(t, err)

	evs, err := backs.Events.ForLicense(ctx, issued.KeyDigest)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, model.EventIssued, evs[0].Type)
	assert.Equal(t, "gumroad", evs[0].Actor)
	assert.Equal(t, model.EventActivated, evs[1].Type)
	assert.Equal(t, "AT", evs[1].Country)
	assert.Equal(t, model.EventRevoked, evs[2].Type)
}
