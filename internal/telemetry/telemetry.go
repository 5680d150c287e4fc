package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Speshl/gorrc_nav/internal/models"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/prometheus/procfs"
	"go.uber.org/zap"
)

const (
	EventConnect = "nav_connect"
	EventState   = "nav_state"
	EventHud     = "nav_hud"
	EventHealthy = "nav_healthy"
	EventReply   = "reply"
)

// Emitter is the part of a socket.io client the publisher uses.
type Emitter interface {
	OnEvent(event string, f interface{})
	Connect() error
	Emit(event string, args ...interface{})
	Close() error
}

func NewSocketClient(server string) (*socketio.Client, error) {
	socketURI := fmt.Sprintf("http://%s", server)
	client, err := socketio.NewClient(socketURI, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating socket client - %w", err)
	}
	return client, nil
}

type Config struct {
	Key          string
	Password     string
	HudPeriod    time.Duration
	HealthPeriod time.Duration
}

// NetStatsFunc returns the current counters of the network link.
type NetStatsFunc func() (procfs.NetDevLine, error)

// NetStats reads the counters of iface from this process's view of /proc.
func NetStats(iface string) NetStatsFunc {
	return func() (procfs.NetDevLine, error) {
		p, err := procfs.Self()
		if err != nil {
			return procfs.NetDevLine{}, fmt.Errorf("procfs could not get process: %w", err)
		}

		netDev, err := p.NetDev()
		if err != nil {
			return procfs.NetDevLine{}, fmt.Errorf("failed getting netstat: %w", err)
		}

		stats, ok := netDev[iface]
		if !ok {
			return procfs.NetDevLine{}, fmt.Errorf("failed getting %s stats: not found", iface)
		}
		return stats, nil
	}
}

// Publisher streams navigation state to the gorrc server. Update never
// blocks the control loop; the latest state is sent at the HUD rate.
type Publisher struct {
	cfg      Config
	client   Emitter
	runId    uuid.UUID
	netStats NetStatsFunc
	log      *zap.Logger

	lock   sync.Mutex
	state  models.NavState
	dirty  bool
	cycles uint64
}

func NewPublisher(cfg Config, client Emitter, runId uuid.UUID, netStats NetStatsFunc, log *zap.Logger) *Publisher {
	return &Publisher{
		cfg:      cfg,
		client:   client,
		runId:    runId,
		netStats: netStats,
		log:      log.With(zap.Stringer("run_id", runId)),
	}
}

func (p *Publisher) Update(state models.NavState) {
	p.lock.Lock()
	defer p.lock.Unlock()

	state.RunId = p.runId
	p.state = state
	p.dirty = true
	p.cycles++
}

func (p *Publisher) Start(ctx context.Context) error {
	p.client.OnEvent(EventReply, func(s socketio.Conn, msg string) {
		p.log.Debug("server reply", zap.String("msg", msg))
	})

	p.log.Info("attempting to connect to telemetry server...")
	err := p.client.Connect() //Client must have at least 1 event handler to work
	if err != nil {
		return fmt.Errorf("error connecting to telemetry server - %w", err)
	}
	p.log.Info("connected to telemetry server")

	defer func() {
		p.log.Info("stopping telemetry publisher")
		_ = p.client.Close()
	}()

	err = p.emit(EventConnect, models.ConnectReq{
		Key:      p.cfg.Key,
		Password: p.cfg.Password,
		RunId:    p.runId,
	})
	if err != nil {
		return err
	}

	hudTicker := time.NewTicker(p.cfg.HudPeriod)
	defer hudTicker.Stop()
	healthTicker := time.NewTicker(p.cfg.HealthPeriod)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.publish() // flush the final state
			return ctx.Err()
		case <-hudTicker.C:
			p.publish()
		case <-healthTicker.C:
			p.lock.Lock()
			cycles := p.cycles
			p.lock.Unlock()

			p.log.Debug("healthcheck: healthy", zap.Uint64("cycles", cycles))
			err := p.emit(EventHealthy, models.Healthy{
				RunId:     p.runId,
				Cycles:    cycles,
				TimeStamp: time.Now().UnixMilli(),
			})
			if err != nil {
				p.log.Warn("failed sending healthcheck", zap.Error(err))
			}
		}
	}
}

func (p *Publisher) publish() {
	p.lock.Lock()
	if !p.dirty {
		p.lock.Unlock()
		return
	}
	state := p.state
	p.dirty = false
	p.lock.Unlock()

	err := p.emit(EventState, state)
	if err != nil {
		p.log.Warn("failed sending state", zap.Error(err))
		return
	}

	var netInfo *procfs.NetDevLine
	if p.netStats != nil {
		stats, err := p.netStats()
		if err != nil {
			p.log.Debug("no network stats", zap.Error(err))
		} else {
			netInfo = &stats
		}
	}

	err = p.emit(EventHud, BuildHud(state, netInfo))
	if err != nil {
		p.log.Warn("failed sending hud", zap.Error(err))
	}
}

func (p *Publisher) emit(event string, msg any) error {
	encodedMsg, err := encode(msg)
	if err != nil {
		return fmt.Errorf("failed encoding %s: %w", event, err)
	}
	p.client.Emit(event, encodedMsg)
	return nil
}

// BuildHud renders the operator HUD lines for a navigation state.
func BuildHud(state models.NavState, netInfo *procfs.NetDevLine) models.Hud {
	lines := make([]string, 0, 3)

	if netInfo != nil {
		lines = append(lines, fmt.Sprintf("RxPkt:%d | RxErr:%d | RxDrop: %d | TxPkt:%d | TxErr:%d | TxDrop: %d",
			netInfo.RxPackets,
			netInfo.RxErrors,
			netInfo.RxDropped,
			netInfo.TxPackets,
			netInfo.TxErrors,
			netInfo.TxDropped,
		))
	}

	lines = append(lines, fmt.Sprintf("Mode:%s | dX:%.2f | dY:%.2f | Dist:%.3f",
		state.Mode,
		state.DX,
		state.DY,
		state.Distance,
	))

	fired := "-"
	if len(state.Fired) > 0 {
		fired = strings.Join(state.Fired, ",")
	}
	lines = append(lines, fmt.Sprintf("Vx:%.2f | Vy:%.2f | Rules:%s", state.VX, state.VY, fired))

	return models.Hud{
		Lines: lines,
	}
}

func encode(msg any) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
