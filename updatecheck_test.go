package keygate

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkzone/keygate/storage"
)

func TestVersionLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.0.0", "1.0.1", true},
		{"1.0.1", "1.0.0", false},
		{"1.0.0", "1.0.0", false},
		{"1.2", "1.2.0", false},
		{"1.2", "1.2.1", true},
		{"1.9.0", "1.10.0", true},
		{"v1.0.0", "1.0.1", true},
		{"2.0.0", "1.9.9", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, versionLess(tt.a, tt.b), "%s < %s", tt.a, tt.b)
	}
}

func TestUpdateCheckEndpoint(t *testing.T) {
	ts := newTestServer(t, noAdmin())
	ts.kg.AddUpdateCheckEndpoint(EndpointConf{Path: "/app/version"})

	// No manifest published yet.
	res, body := ts.request(t, http.MethodGet, "/app/version", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", body["error"])

	require.NoError(
		t, storage.SetUpdateManifest(
			ts.backends.KV, storage.UpdateManifest{
				LatestVersion: "2.4.0",
				DownloadURL:   "https://downloads.example.com/smartcopy-2.4.0.exe",
				Notes:         "faster copy engine",
			},
		),
	)

	res, body = ts.request(t, http.MethodGet, "/app/version?version=2.3.1", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2.4.0", body["latest_version"])
	assert.Equal(t, true, body["update_available"])
	assert.Equal(t, "faster copy engine", body["notes"])

	res, body = ts.request(t, http.MethodGet, "/app/version?version=2.4.0", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, false, body["update_available"])

	// Without a client version the flag is omitted.
	res, body = ts.request(t, http.MethodGet, "/app/version", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, body, "update_available")
}
