// Package license implements the license lifecycle: issuance, validation
// with first-activation device binding, revocation, and binding resets.
// Records move between unbound-active, bound-active, and inactive; expiry
// is evaluated live on every validation rather than stored as a state.
package license

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/thinkzone/keygate/internal/keys"
	"github.com/thinkzone/keygate/storage/model"
)

// Validation messages are part of the client contract. Never-issued and
// revoked keys share MsgNotFound on purpose: a key guesser must not learn
// whether a key once existed.
const (
	MsgNotFound       = "license not found or inactive"
	MsgExpired        = "license expired"
	MsgMissingDevice  = "missing device id"
	MsgActivated      = "license activated on this device"
	MsgValid          = "license valid for this system"
	MsgBoundElsewhere = "license already activated on another system"
)

// generateAttempts bounds the retry loop on the (practically impossible)
// digest collision of a freshly generated key.
const generateAttempts = 3

// ValidateResult is the outcome of a validation call. Business rejections
// land here, not in an error: only infrastructure failures are errors.
type ValidateResult struct {
	Valid   bool   `json:"valid"`
	Expiry  string `json:"expiry,omitempty"`
	Message string `json:"message,omitempty"`
}

// IssueRequest describes a license to create.
type IssueRequest struct {
	// Key is the plaintext key to register; empty means generate one.
	Key       string
	DaysValid int
	Metadata  map[string]any
	// Actor is recorded in the audit trail: "admin", a webhook provider, …
	Actor string
}

// IssueResult carries the only copy of the plaintext key that ever leaves
// the server.
type IssueResult struct {
	Key       string
	KeyDigest string
	Expiry    string
}

// CallerInfo carries request context for the audit trail.
type CallerInfo struct {
	Country string
}

// Lifecycle orchestrates all license state transitions on top of a
// LicenseStore. It holds no in-process locks: the store's conditional
// update is the only synchronization point.
type Lifecycle struct {
	store  model.LicenseStore
	events model.LicenseEventStore

	// KeyPrefix is the product tag on generated keys.
	KeyPrefix string
	// Now is the clock used for issuance and expiry; replaced in tests.
	Now func() time.Time
}

// NewLifecycle creates a Lifecycle on the passed stores. events may be nil
// to disable the audit trail.
func NewLifecycle(store model.LicenseStore, events model.LicenseEventStore) *Lifecycle {
	return &Lifecycle{
		store:     store,
		events:    events,
		KeyPrefix: keys.DefaultPrefix,
		Now:       time.Now,
	}
}

// Validate checks a plaintext key for a device and performs the
// first-activation binding. The returned error is non-nil only for storage
// failures; every business outcome is a ValidateResult.
func (lc *Lifecycle) Validate(
	ctx context.Context, plaintextKey, deviceID string, caller CallerInfo,
) (ValidateResult, error) {
	digest := keys.Digest(plaintextKey)

	lic, err := lc.store.FindActive(ctx, digest)
	if err != nil {
		return ValidateResult{}, err
	}
	if lic == nil {
		return ValidateResult{Valid: false, Message: MsgNotFound}, nil
	}

	if IsExpired(lic.ExpiryDate, lc.Now()) {
		lc.recordEvent(ctx, digest, model.EventRejected, MsgExpired, deviceID, caller)
		return ValidateResult{Valid: false, Expiry: lic.ExpiryDate, Message: MsgExpired}, nil
	}

	if deviceID == "" {
		return ValidateResult{Valid: false, Message: MsgMissingDevice}, nil
	}

	outcome, err := lc.store.BindDeviceIfUnbound(ctx, digest, deviceID, lc.Now())
	if err != nil {
		return ValidateResult{}, err
	}
	switch outcome {
	case model.BoundNow:
		lc.recordEvent(ctx, digest, model.EventActivated, MsgActivated, deviceID, caller)
		return ValidateResult{Valid: true, Expiry: lic.ExpiryDate, Message: MsgActivated}, nil
	case model.AlreadyBoundSame:
		return ValidateResult{Valid: true, Expiry: lic.ExpiryDate, Message: MsgValid}, nil
	case model.BoundToOther:
		lc.recordEvent(ctx, digest, model.EventRejected, MsgBoundElsewhere, deviceID, caller)
		return ValidateResult{Valid: false, Message: MsgBoundElsewhere}, nil
	default:
		// The record vanished between FindActive and the bind, i.e. a
		// concurrent revocation. Same answer as for an unknown key.
		return ValidateResult{Valid: false, Message: MsgNotFound}, nil
	}
}

// Issue creates a new unbound active license and returns its plaintext key.
// A caller-supplied key that collides with an existing record propagates
// the store's AlreadyExistsError.
func (lc *Lifecycle) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	now := lc.Now()
	expiry, err := ComputeExpiry(now, req.DaysValid)
	if err != nil {
		return IssueResult{}, err
	}

	generate := req.Key == ""
	attempts := 1
	if generate {
		attempts = generateAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		plaintext := req.Key
		if generate {
			if plaintext, err = keys.Generate(lc.KeyPrefix); err != nil {
				return IssueResult{}, err
			}
		}
		digest := keys.Digest(plaintext)
		lic := model.License{
			KeyDigest:  digest,
			IssuedAt:   now,
			ExpiryDate: expiry,
			Active:     true,
			Metadata:   req.Metadata,
		}
		if err = lc.store.Create(ctx, lic); err != nil {
			var exists model.AlreadyExistsError
			if generate && errors.As(err, &exists) {
				lastErr = err
				continue
			}
			return IssueResult{}, err
		}
		lc.recordEvent(ctx, digest, model.EventIssued, "license issued", req.Actor, CallerInfo{})
		return IssueResult{Key: plaintext, KeyDigest: digest, Expiry: expiry}, nil
	}
	return IssueResult{}, errors.Wrap(lastErr, "could not generate a unique license key")
}

// Revoke marks the license inactive. Revocation is terminal for the
// record; a renewed customer gets a new key.
func (lc *Lifecycle) Revoke(ctx context.Context, keyOrDigest string) (matched, modified int64, err error) {
	digest := resolveDigest(keyOrDigest)
	matched, modified, err = lc.store.SetActive(ctx, digest, false)
	if err != nil {
		return 0, 0, err
	}
	if matched == 0 {
		return 0, 0, model.NotFoundErrorFmt("no license for digest %s", digest)
	}
	if modified > 0 {
		lc.recordEvent(ctx, digest, model.EventRevoked, "license revoked", "admin", CallerInfo{})
	}
	return matched, modified, nil
}

// ResetBinding clears the device binding so the license can be activated
// on a different device.
func (lc *Lifecycle) ResetBinding(ctx context.Context, keyOrDigest string) error {
	digest := resolveDigest(keyOrDigest)
	if err := lc.store.ResetBinding(ctx, digest); err != nil {
		return err
	}
	lc.recordEvent(ctx, digest, model.EventReset, "device binding reset", "admin", CallerInfo{})
	return nil
}

// List returns stored records, newest first, together with the total count.
func (lc *Lifecycle) List(ctx context.Context, opts model.ListOptions) ([]model.License, int64, error) {
	lics, err := lc.store.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := lc.store.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return lics, total, nil
}

// recordEvent writes an audit event; failures are logged, never surfaced.
func (lc *Lifecycle) recordEvent(
	ctx context.Context, digest, eventType, message, actor string, caller CallerInfo,
) {
	if lc.events == nil {
		return
	}
	ev := model.LicenseEvent{
		KeyDigest: digest,
		Type:      eventType,
		Message:   message,
		Actor:     actor,
		Country:   caller.Country,
	}
	if err := lc.events.Record(ctx, ev); err != nil {
		log.WithError(err).WithField("key_digest", digest).Warn("could not record license event")
	}
}

// resolveDigest accepts either a plaintext key or an already-derived
// digest and returns the digest.
func resolveDigest(keyOrDigest string) string {
	if keys.IsDigest(keyOrDigest) {
		return keyOrDigest
	}
	return keys.Digest(keyOrDigest)
}
