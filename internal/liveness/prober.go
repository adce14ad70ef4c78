package liveness

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/wozamali/admin-console/internal/adapter/metrics"
	"github.com/wozamali/admin-console/internal/domain"
)

const (
	ProbeTimeout      = 5 * time.Second
	DefaultProbeTable = "admin_users"
)

var errProbeTimeout = errors.New("probe timed out")

// ConnectionProber detects a silently dead connection by issuing a one-row
// read and asking the realtime channel to reconnect when it fails.
type ConnectionProber struct {
	prober    domain.Prober
	reconnect *reconnector
	activity  *ActivityTracker
	clock     clockwork.Clock
	table     string
	timeout   time.Duration
	metrics   *metrics.LivenessMetrics
	logger    *slog.Logger
}

// Tick runs one probe. It returns after at most the probe timeout.
func (p *ConnectionProber) Tick(ctx context.Context) {
	err := p.probe(ctx)
	switch {
	case err == nil:
		p.metrics.Probe("ok")
		p.activity.Touch(ActivityProbe)
		return
	case ctx.Err() != nil:
		return
	case errors.Is(err, errProbeTimeout):
		p.metrics.Probe("timeout")
	default:
		p.metrics.Probe("error")
	}

	p.logger.WarnContext(ctx, "Connection probe failed, requesting reconnect", "table", p.table, "error", err)
	p.reconnect.now(ctx)
}

func (p *ConnectionProber) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		// "no rows" comes back as found=false and still counts as success
		_, err := p.prober.Probe(probeCtx, p.table, 1)
		result <- err
	}()

	timer := p.clock.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.Chan():
		return errProbeTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reconnector forwards reconnect requests while the manager is running.
type reconnector struct {
	channel domain.Reconnector
	active  func() bool
	metrics *metrics.LivenessMetrics
	logger  *slog.Logger
}

func (r *reconnector) now(ctx context.Context) {
	if !r.active() {
		r.logger.DebugContext(ctx, "Manager stopped, skipping reconnect")
		return
	}
	r.metrics.Reconnect()
	r.channel.ReconnectNow()
}
