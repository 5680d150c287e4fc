package app

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Speshl/gorrc_nav/internal/command/omnidrive"
	"github.com/Speshl/gorrc_nav/internal/command/pca9685"
	"github.com/Speshl/gorrc_nav/internal/config"
	"github.com/Speshl/gorrc_nav/internal/metrics"
	"github.com/Speshl/gorrc_nav/internal/robot"
	"github.com/Speshl/gorrc_nav/internal/vehicle/omni"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// robotServer simulates the robot's HTTP API. Every omnidrive command moves
// the robot for dt seconds.
type robotServer struct {
	*httptest.Server
	dt float64

	lock     sync.Mutex
	x, y     float64
	commands [][]float64
}

func newRobotServer(t *testing.T, dt float64) *robotServer {
	t.Helper()
	rs := &robotServer{dt: dt, x: -2, y: 4}

	mux := http.NewServeMux()
	mux.HandleFunc(robot.SensorArrayPath, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]float64{0.42, 0.42, 0.42, 0.42, 0.42, 0.42, 0.42, 0.42, 0.42})
	})
	mux.HandleFunc(robot.OdometryPath, func(w http.ResponseWriter, r *http.Request) {
		rs.lock.Lock()
		defer rs.lock.Unlock()
		_ = json.NewEncoder(w).Encode([]float64{rs.x, rs.y, 0, 0, 0, 0, 0})
	})
	mux.HandleFunc(robot.OmnidrivePath, func(w http.ResponseWriter, r *http.Request) {
		var cmd []float64
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || len(cmd) != 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rs.lock.Lock()
		defer rs.lock.Unlock()
		rs.commands = append(rs.commands, cmd)
		rs.x += cmd[0] * rs.dt
		rs.y += cmd[1] * rs.dt
		_, _ = w.Write([]byte("ok"))
	})

	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func (rs *robotServer) position() (float64, float64) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	return rs.x, rs.y
}

func (rs *robotServer) lastCommand() []float64 {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	if len(rs.commands) == 0 {
		return nil
	}
	return rs.commands[len(rs.commands)-1]
}

func testAppConfig(t *testing.T, rs *robotServer) config.Config {
	t.Helper()
	u, err := url.Parse(rs.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.RobotCfg.Address = host
	cfg.RobotCfg.Port = port
	cfg.LoopCfg = testLoopConfig()
	return cfg
}

func TestAppNavigatesToTarget(t *testing.T) {
	rs := newRobotServer(t, 0.2)
	a, err := NewApp(testAppConfig(t, rs), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Start(ctx))

	x, y := rs.position()
	assert.LessOrEqual(t, math.Hypot(0.3-(x+2), 0.2-(y-4)), 0.02)
	assert.Equal(t, []float64{0, 0, 0}, rs.lastCommand())
	assert.Positive(t, a.Navigator().Latency().TotalCount())
}

func TestAppCancelStopsRobot(t *testing.T) {
	rs := newRobotServer(t, 0)
	a, err := NewApp(testAppConfig(t, rs), zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Start(ctx))

	require.NotNil(t, rs.lastCommand())
	assert.Equal(t, []float64{0, 0, 0}, rs.lastCommand())
}

func TestAppRobotUnreachable(t *testing.T) {
	rs := newRobotServer(t, 0)
	cfg := testAppConfig(t, rs)
	rs.Close()

	a, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.Error(t, a.Start(ctx))
}

func TestAppServesMetrics(t *testing.T) {
	rs := newRobotServer(t, 0)
	cfg := testAppConfig(t, rs)
	cfg.MetricsCfg.Enabled = true

	a, err := NewApp(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.metricsServer)

	rec := httptest.NewRecorder()
	a.metricsServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), metrics.NavCyclesN)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNewCommandDriver(t *testing.T) {
	rs := newRobotServer(t, 0)
	cfg := testAppConfig(t, rs)
	client := robot.NewClient(robot.DefaultConfig(), zap.NewNop())

	driver, err := newCommandDriver(cfg, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &omnidrive.CommandDriver{}, driver)

	cfg.CommandCfg.Mix = omni.MixMecanum
	_, err = newCommandDriver(cfg, client, zap.NewNop())
	require.Error(t, err)

	cfg.CommandCfg.CommandDriver = "pca9685"
	driver, err = newCommandDriver(cfg, client, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &pca9685.CommandDriver{}, driver)

	cfg.CommandCfg.CommandDriver = "l298n"
	_, err = newCommandDriver(cfg, client, zap.NewNop())
	require.Error(t, err)
}
