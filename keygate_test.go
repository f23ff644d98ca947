package keygate

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thinkzone/keygate/api/adminapi"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage"
	"github.com/thinkzone/keygate/storage/model"
)

type testServer struct {
	kg        *Keygate
	lifecycle *license.Lifecycle
	backends  model.Backends
	clock     *time.Time
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	backs, err := storage.LoadBackends(
		storage.Config{
			Driver:  storage.DriverSQLite,
			DataDir: t.TempDir(),
		},
	)
	require.NoError(t, err)

	lc := license.NewLifecycle(backs.Licenses, backs.Events)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	lc.Now = func() time.Time { return *clock }

	kg, err := NewKeygate(ServerConf{}, lc, backs, opts)
	require.NoError(t, err)
	return &testServer{kg: kg, lifecycle: lc, backends: backs, clock: clock}
}

func (ts *testServer) request(
	t *testing.T, method, target string, body any, header map[string]string,
) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewReader([]byte(b))
		case []byte:
			reader = bytes.NewReader(b)
		default:
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	res, err := ts.kg.Test(req)
	require.NoError(t, err)

	var parsed map[string]any
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &parsed), "body: %s", data)
	}
	return res, parsed
}

func noAdmin() Options {
	return Options{Admin: adminapi.Config{Enabled: false}}
}
