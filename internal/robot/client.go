package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	SensorArrayPath = "/data/distancesensorarray"
	OdometryPath    = "/data/odometry"
	OmnidrivePath   = "/data/omnidrive"

	RawSensorCount = 9
	OdometryCount  = 7

	maxBodyBytes = 1 << 16
)

var ErrBadResponse = errors.New("bad robot response")

type Config struct {
	Address string
	Port    int

	// Timeout bounds each request, including reading the body.
	Timeout     time.Duration
	DialTimeout time.Duration
	KeepAlive   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Address:     "192.168.0.1",
		Port:        80,
		Timeout:     2 * time.Second,
		DialTimeout: 1 * time.Second,
		KeepAlive:   30 * time.Second,
	}
}

func (c Config) hostPort() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Odometry is one reading of the robot's dead reckoning. X and Y are in
// meters in the frame the robot booted in.
type Odometry struct {
	X   float64
	Y   float64
	Raw [OdometryCount]float64
}

// Client talks to the robot's onboard HTTP API. It is safe for concurrent use.
type Client struct {
	cfg     Config
	log     *zap.Logger
	http    *http.Client
	baseURL string
	dialer  *net.Dialer

	lock sync.Mutex
	conn net.Conn
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	tr := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          4,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &Client{
		cfg: cfg,
		log: log,
		http: &http.Client{
			Transport: tr,
			Timeout:   cfg.Timeout,
		},
		baseURL: "http://" + cfg.hostPort(),
		dialer:  dialer,
	}
}

// Connect opens and holds a TCP connection to the control port. It fails
// fast when the robot is unreachable before the control loop starts.
func (c *Client) Connect(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.hostPort())
	if err != nil {
		return fmt.Errorf("failed connecting to robot at %s: %w", c.cfg.hostPort(), err)
	}
	c.conn = conn
	c.log.Info("connected to robot", zap.String("address", c.cfg.hostPort()))
	return nil
}

func (c *Client) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.http.CloseIdleConnections()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed closing robot connection: %w", err)
	}
	return nil
}

// Sensors reads the distance sensor array and reduces it to the seven
// readings the navigation controller consumes.
func (c *Client) Sensors(ctx context.Context) ([]float64, error) {
	var raw []float64
	if err := c.getJSON(ctx, SensorArrayPath, &raw); err != nil {
		return nil, err
	}
	return ReduceSensorArray(raw)
}

// ReduceSensorArray maps the nine raw readings, indexed clockwise from the
// front, to left front, left rear, front, right front, right rear, back left
// and back right. Each back reading is the nearer of its two rear sensors.
func ReduceSensorArray(raw []float64) ([]float64, error) {
	if len(raw) != RawSensorCount {
		return nil, fmt.Errorf("%w: expected %d sensor readings, got %d", ErrBadResponse, RawSensorCount, len(raw))
	}
	return []float64{
		raw[1],
		raw[2],
		raw[0],
		raw[8],
		raw[7],
		min(raw[3], raw[4]),
		min(raw[6], raw[5]),
	}, nil
}

func (c *Client) Odometry(ctx context.Context) (Odometry, error) {
	var raw []float64
	if err := c.getJSON(ctx, OdometryPath, &raw); err != nil {
		return Odometry{}, err
	}
	if len(raw) != OdometryCount {
		return Odometry{}, fmt.Errorf("%w: expected %d odometry values, got %d", ErrBadResponse, OdometryCount, len(raw))
	}

	odom := Odometry{X: raw[0], Y: raw[1]}
	copy(odom.Raw[:], raw)
	return odom, nil
}

// Omnidrive commands a body velocity: vx forward and vy left in m/s, omega
// counter clockwise in rad/s.
func (c *Client) Omnidrive(ctx context.Context, vx, vy, omega float64) error {
	body, err := json.Marshal([]float64{vx, vy, omega})
	if err != nil {
		return fmt.Errorf("failed encoding omnidrive command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+OmnidrivePath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed building omnidrive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed sending omnidrive command: %w", err)
	}
	defer resp.Body.Close()

	reply, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: omnidrive returned %s", ErrBadResponse, resp.Status)
	}

	c.log.Debug("omnidrive",
		zap.Float64("vx", vx),
		zap.Float64("vy", vy),
		zap.Float64("omega", omega),
		zap.ByteString("reply", reply),
	)
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed building request for %s: %w", path, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrBadResponse, path, resp.Status)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: failed decoding %s: %s", ErrBadResponse, path, err)
	}
	return nil
}
