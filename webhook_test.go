package keygate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage"
	"github.com/thinkzone/keygate/storage/model"
)

// recordingNotifier captures deliveries so tests can wait for the async
// notification goroutine.
type recordingNotifier struct {
	sent chan [2]string
	fail bool
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: make(chan [2]string, 8)}
}

func (n *recordingNotifier) Send(_ context.Context, recipient, licenseKey string) error {
	n.sent <- [2]string{recipient, licenseKey}
	if n.fail {
		return assert.AnError
	}
	return nil
}

func signBody(secret string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestPurchaseWebhookIssuesLicense(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	notifier := newRecordingNotifier()
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf: EndpointConf{Path: "/webhook/gumroad"},
			Provider:     "gumroad",
			DaysValid:    365,
		}, notifier, NewMemoryReplayCache(),
	)

	res, body := ts.request(
		t, http.MethodPost, "/webhook/gumroad",
		map[string]any{"email": "buyer@example.com", "sale_id": "S-1"}, nil,
	)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["ok"])
	key, _ := body["license_key"].(string)
	require.NotEmpty(t, key)

	// The issued key validates.
	valRes, err := ts.lifecycle.Validate(context.Background(), key, "device-1", license.CallerInfo{})
	require.NoError(t, err)
	assert.True(t, valRes.Valid)

	// Notification went out with the plaintext key.
	select {
	case sent := <-notifier.sent:
		assert.Equal(t, "buyer@example.com", sent[0])
		assert.Equal(t, key, sent[1])
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never sent")
	}
}

func TestPurchaseWebhookMissingEmail(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf: EndpointConf{Path: "/webhook/gumroad"},
			Provider:     "gumroad",
		}, nil, nil,
	)

	res, body := ts.request(
		t, http.MethodPost, "/webhook/gumroad", map[string]any{"sale_id": "S-1"}, nil,
	)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "invalid_request", body["error"])
}

func TestPurchaseWebhookSignature(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf:    EndpointConf{Path: "/webhook/gumroad"},
			Provider:        "gumroad",
			Secret:          "hunter2",
			SignatureHeader: "X-Signature",
		}, nil, nil,
	)
	payload := []byte(`{"email": "buyer@example.com"}`)

	// Missing signature.
	res, body := ts.request(t, http.MethodPost, "/webhook/gumroad", payload, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "invalid_signature", body["error"])

	// Wrong signature.
	res, _ = ts.request(
		t, http.MethodPost, "/webhook/gumroad", payload,
		map[string]string{"X-Signature": signBody("wrong-secret", payload)},
	)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	// Correct signature.
	res, body = ts.request(
		t, http.MethodPost, "/webhook/gumroad", payload,
		map[string]string{"X-Signature": signBody("hunter2", payload)},
	)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, body["license_key"])
}

func TestPurchaseWebhookReplayDedup(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf: EndpointConf{Path: "/webhook/gumroad"},
			Provider:     "gumroad",
		}, nil, NewMemoryReplayCache(),
	)
	payload := map[string]any{"email": "buyer@example.com", "sale_id": "S-42"}

	res, body := ts.request(t, http.MethodPost, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, body["license_key"])

	// Redelivery acknowledges without issuing a second license.
	res, body = ts.request(t, http.MethodPost, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.NotContains(t, body, "license_key")

	total, err := ts.backends.Licenses.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

// flakyLicenseStore fails a configured number of Create calls before
// delegating to the real store.
type flakyLicenseStore struct {
	model.LicenseStore
	failures int
}

func (s *flakyLicenseStore) Create(ctx context.Context, lic model.License) error {
	if s.failures > 0 {
		s.failures--
		return assert.AnError
	}
	return s.LicenseStore.Create(ctx, lic)
}

func TestPurchaseWebhookRetryAfterStoreFailure(t *testing.T) {
	backs, err := storage.LoadBackends(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	require.NoError(t, err)
	flaky := &flakyLicenseStore{LicenseStore: backs.Licenses, failures: 1}
	lc := license.NewLifecycle(flaky, backs.Events)
	kg, err := NewKeygate(ServerConf{}, lc, backs, noAdmin())
	require.NoError(t, err)
	ts := &testServer{kg: kg, lifecycle: lc, backends: backs}
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf: EndpointConf{Path: "/webhook/gumroad"},
			Provider:     "gumroad",
		}, nil, NewMemoryReplayCache(),
	)
	payload := map[string]any{"email": "buyer@example.com", "sale_id": "S-7"}

	res, body := ts.request(t, http.MethodPost, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	assert.Equal(t, "store_unavailable", body["error"])

	// The provider retries the same sale id; the failed attempt must not
	// count as the first delivery, or the purchase is silently lost.
	res, body = ts.request(t, http.MethodPost, "/webhook/gumroad", payload, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, body["license_key"])

	total, err := backs.Licenses.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestPurchaseWebhookNotifierFailureStillIssues(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	notifier := newRecordingNotifier()
	notifier.fail = true
	ts.kg.AddPurchaseWebhookEndpoint(
		WebhookConf{
			EndpointConf: EndpointConf{Path: "/webhook/gumroad"},
			Provider:     "gumroad",
		}, notifier, nil,
	)

	res, body := ts.request(
		t, http.MethodPost, "/webhook/gumroad",
		map[string]any{"email": "buyer@example.com"}, nil,
	)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, body["license_key"])
	<-notifier.sent
}

func TestMemoryReplayCache(t *testing.T) {
	cache := NewMemoryReplayCache()
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "gumroad:S-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = cache.Seen(ctx, "gumroad:S-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = cache.Seen(ctx, "gumroad:S-2", time.Hour)
	require.NoError(t, err)
	assert.False(t, seen)

	// Forget releases a mark.
	require.NoError(t, cache.Forget(ctx, "gumroad:S-1"))
	seen, err = cache.Seen(ctx, "gumroad:S-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, seen)

	// Entries expire.
	seen, err = cache.Seen(ctx, "short", time.Millisecond)
	require.NoError(t, err)
	assert.False(t, seen)
	time.Sleep(5 * time.Millisecond)
	seen, err = cache.Seen(ctx, "short", time.Millisecond)
	require.NoError(t, err)
	assert.False(t, seen)
}
