package robot

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	addr := srv.Listener.Addr().(*net.TCPAddr)
	cfg := DefaultConfig()
	cfg.Address = addr.IP.String()
	cfg.Port = addr.Port
	cfg.Timeout = time.Second

	c := NewClient(cfg, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed writing response: %s", err)
	}
}

func TestReduceSensorArray(t *testing.T) {
	raw := []float64{0.0, 0.1, 0.2, 0.33, 0.34, 0.5, 0.46, 0.7, 0.8}

	got, err := ReduceSensorArray(raw)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.0, 0.8, 0.7, 0.33, 0.46}, got)

	_, err = ReduceSensorArray(raw[:7])
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestSensors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(SensorArrayPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(t, w, []float64{0.4, 0.1, 0.2, 0.3, 0.25, 0.3, 0.35, 0.41, 0.42})
	})
	c := newTestClient(t, mux)

	got, err := c.Sensors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.4, 0.42, 0.41, 0.25, 0.3}, got)
}

func TestSensorsBadResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "wrong count",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, []float64{0.4, 0.4, 0.4})
			},
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("sensors offline"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			_, err := c.Sensors(context.Background())
			require.ErrorIs(t, err, ErrBadResponse)
		})
	}
}

func TestOdometry(t *testing.T) {
	count := 7
	mux := http.NewServeMux()
	mux.HandleFunc(OdometryPath, func(w http.ResponseWriter, r *http.Request) {
		values := []float64{1.5, -0.25, 0.1, 0, 0, 0, 42}
		writeJSON(t, w, values[:count])
	})
	c := newTestClient(t, mux)

	odom, err := c.Odometry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.5, odom.X)
	assert.Equal(t, -0.25, odom.Y)
	assert.Equal(t, 42.0, odom.Raw[6])

	count = 3
	_, err = c.Odometry(context.Background())
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestOmnidrive(t *testing.T) {
	var got []float64
	status := http.StatusOK
	mux := http.NewServeMux()
	mux.HandleFunc(OmnidrivePath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	})
	c := newTestClient(t, mux)

	require.NoError(t, c.Omnidrive(context.Background(), 0.2, -0.1, 0))
	assert.Equal(t, []float64{0.2, -0.1, 0}, got)

	status = http.StatusBadRequest
	err := c.Omnidrive(context.Background(), 0, 0, 0)
	require.ErrorIs(t, err, ErrBadResponse)
}

func TestConnect(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()), "connect is idempotent")
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestConnectUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)
	require.NoError(t, l.Close())

	cfg := DefaultConfig()
	cfg.Address = addr.IP.String()
	cfg.Port = addr.Port
	cfg.DialTimeout = 200 * time.Millisecond

	c := NewClient(cfg, zap.NewNop())
	require.Error(t, c.Connect(context.Background()))
}

func TestRequestsHonorContext(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Odometry(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
