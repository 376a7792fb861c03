package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/watchoor/internal/collector"
	"github.com/ethpandaops/watchoor/internal/ethrpc"
	"github.com/ethpandaops/watchoor/internal/export"
	"github.com/ethpandaops/watchoor/internal/txpool"
	"github.com/ethpandaops/watchoor/internal/ui"
)

// displayInterval is the render cadence. Ages and staleness move every
// second even when the poll interval is longer.
const displayInterval = time.Second

// Dashboard is the top-level orchestrator for watchoor.
type Dashboard interface {
	// Start dials all endpoints and begins polling and rendering.
	Start(ctx context.Context) error
	// Done is closed when the dashboard wants the process to exit,
	// e.g. because the user quit the terminal UI.
	Done() <-chan struct{}
	// Stop shuts down all components gracefully.
	Stop() error
}

type dashboard struct {
	log    logrus.FieldLogger
	cfg    *Config
	health *export.HealthMetrics

	clients    []ethrpc.Client
	collectors []*collector.Collector
	ui         *ui.UI

	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Dashboard.
func New(log logrus.FieldLogger, cfg *Config) (Dashboard, error) {
	return &dashboard{
		log:    log.WithField("component", "dashboard"),
		cfg:    cfg,
		health: export.NewHealthMetrics(log, cfg.Health),
		done:   make(chan struct{}),
	}, nil
}

func (d *dashboard) Start(ctx context.Context) error {
	ctx, d.cancel = context.WithCancel(ctx)

	// 1. Start the metrics server when enabled. Metrics are recorded
	// either way; this only controls whether they are served.
	if d.cfg.Health.Enabled {
		if err := d.health.Start(ctx); err != nil {
			return fmt.Errorf("starting health metrics: %w", err)
		}

		d.log.WithField("addr", d.health.Addr()).
			Info("Health metrics server started")
	}

	// 2. Dial every endpoint and build its collector.
	for _, ep := range d.cfg.Endpoints {
		rpcCfg := ep.RPC
		rpcCfg.Name = ep.Name

		client, err := ethrpc.Dial(ctx, d.log, rpcCfg)
		if err != nil {
			return fmt.Errorf("dialing endpoint %s: %w", ep.Name, err)
		}

		d.clients = append(d.clients, client)

		var pool *txpool.Aggregator
		if ep.TxPool.Endpoint != "" {
			pool = txpool.NewAggregator(d.log, ep.TxPool)
		}

		colCfg := ep.Collector
		colCfg.Name = ep.Name
		colCfg.RPCURL = ep.RPC.Endpoint

		d.collectors = append(
			d.collectors,
			collector.New(d.log, colCfg, client, pool, d.health),
		)

		d.log.WithFields(logrus.Fields{
			"endpoint": ep.Name,
			"rpc":      ep.RPC.Endpoint,
			"txpool":   ep.TxPool.Endpoint != "",
		}).Info("Endpoint configured")
	}

	// 3. Prime every collector in parallel so the first frame shows
	// data instead of placeholders.
	var prime sync.WaitGroup

	for _, col := range d.collectors {
		prime.Add(1)

		go func(col *collector.Collector) {
			defer prime.Done()

			col.Poll(ctx)
		}(col)
	}

	prime.Wait()

	// 4. Start one poll loop per endpoint.
	for _, col := range d.collectors {
		d.wg.Add(1)

		go d.pollLoop(ctx, col)
	}

	// 5. Start the terminal renderer, or the headless summary loop.
	if d.cfg.UI.Enabled {
		uiCfg := d.cfg.UI
		uiCfg.RefreshInterval = d.cfg.RefreshInterval

		infos := make([]ui.EndpointInfo, 0, len(d.collectors))
		for _, col := range d.collectors {
			infos = append(infos, ui.EndpointInfo{
				Name:            col.Name(),
				StaleAfter:      col.StaleAfter(),
				SpikeMultiplier: col.SpikeMultiplier(),
			})
		}

		d.ui = ui.New(d.log, uiCfg, infos)

		d.wg.Add(1)

		go d.runUI(ctx)

		d.wg.Add(1)

		go d.displayLoop(ctx)
	} else {
		d.wg.Add(1)

		go d.summaryLoop(ctx)
	}

	d.log.Info("Dashboard fully started")

	return nil
}

func (d *dashboard) Done() <-chan struct{} {
	return d.done
}

func (d *dashboard) Stop() error {
	if d.cancel != nil {
		d.cancel()
	}

	d.wg.Wait()

	// Stop in reverse order.
	if d.ui != nil {
		d.ui.Stop()
	}

	for _, client := range d.clients {
		client.Close()
	}

	if d.health != nil {
		if err := d.health.Stop(); err != nil {
			d.log.WithError(err).Error("Error stopping health metrics server")
		}
	}

	d.signalDone()

	return nil
}

func (d *dashboard) signalDone() {
	d.doneOnce.Do(func() { close(d.done) })
}

func (d *dashboard) pollLoop(ctx context.Context, col *collector.Collector) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			col.Poll(ctx)
		}
	}
}

func (d *dashboard) runUI(ctx context.Context) {
	defer d.wg.Done()

	if err := d.ui.Run(ctx); err != nil {
		d.log.WithError(err).Error("Terminal renderer failed")
	}

	// Run returns when the user quits; let main bring the rest down.
	d.signalDone()
}

// displayLoop feeds the renderer at display cadence, independent of the
// poll interval.
func (d *dashboard) displayLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(displayInterval)
	defer ticker.Stop()

	for {
		d.ui.Update(d.gatherSnapshots())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// summaryLoop replaces the renderer in headless mode, emitting one
// structured summary line per endpoint per refresh.
func (d *dashboard) summaryLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		for _, col := range d.collectors {
			col.CheckStaleness()
			d.logSnapshot(col.Name(), col.Snapshot())
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// gatherSnapshots runs the staleness check and reads one consistent
// snapshot per endpoint, in configuration order.
func (d *dashboard) gatherSnapshots() []*collector.Snapshot {
	snaps := make([]*collector.Snapshot, len(d.collectors))

	for i, col := range d.collectors {
		col.CheckStaleness()
		snaps[i] = col.Snapshot()
	}

	return snaps
}

func (d *dashboard) logSnapshot(name string, snap *collector.Snapshot) {
	fields := logrus.Fields{
		"endpoint": name,
		"status":   snap.ConnectionStatus.String(),
		"blocks":   len(snap.BlockHistory),
	}

	if snap.BlockNumber != nil {
		fields["block"] = *snap.BlockNumber
	}

	if snap.GasPriceWei != nil {
		fields["gas_wei"] = snap.GasPriceWei.String()
	}

	if snap.NextBaseFeePerGas != nil {
		fields["next_base_fee_wei"] = snap.NextBaseFeePerGas.String()
	}

	if snap.GasVolatilityPct != nil {
		fields["volatility_pct"] = fmt.Sprintf("%.1f", *snap.GasVolatilityPct)
	}

	if snap.PeerCount != nil {
		fields["peers"] = *snap.PeerCount
	}

	if snap.TxPool != nil {
		fields["pool_healthy"] = snap.TxPool.Healthy
	}

	d.log.WithFields(fields).Info("Endpoint snapshot")
}
