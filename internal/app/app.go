// Package app is the composition root: it wires storage, repositories,
// probes, schedulers, the alert engine, the notification dispatcher, the
// retention scheduler and the HTTP API together into one running process,
// the way the teacher's cmd/pulse bootstrap does.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rcourtman/netpulse/internal/alerts"
	"github.com/rcourtman/netpulse/internal/api"
	"github.com/rcourtman/netpulse/internal/config"
	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/rcourtman/netpulse/internal/logging"
	promcollectors "github.com/rcourtman/netpulse/internal/metrics"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/notify"
	"github.com/rcourtman/netpulse/internal/probe/snmp"
	"github.com/rcourtman/netpulse/internal/probe/tcpscan"
	"github.com/rcourtman/netpulse/internal/repositories"
	"github.com/rcourtman/netpulse/internal/retention"
	"github.com/rcourtman/netpulse/internal/scanengine"
	"github.com/rcourtman/netpulse/internal/scheduler"
	"github.com/rcourtman/netpulse/internal/storage"
	"github.com/rcourtman/netpulse/internal/wshub"
)

var log = logging.Component("app")

// App owns every long-lived subsystem for one running NetPulse process.
type App struct {
	cfg *config.Config
	db  *storage.DB
	rt  *ioruntime.Runtime

	hosts   *repositories.HostRepository
	groups  *repositories.HostGroupRepository
	metrics *repositories.MetricsRepository
	scans   *repositories.ScanRepository
	snmpRep *repositories.SnmpRepository
	hooks   *repositories.WebhookRepository

	icmpSched *scheduler.Scheduler
	scanEng   *scanengine.Engine
	snmpMon   *snmp.Monitor
	alertEng  *alerts.Engine
	dispatch  *notify.Dispatcher
	retainer  *retention.Scheduler
	server    *api.Server
	hub       *wshub.Hub
	metricsSrv *http.Server

	listener net.Listener
}

// loggerAdapter satisfies both notify.Logger and retention.Logger on top of
// the process-wide zerolog logger, so neither package needs to import
// logging directly.
type loggerAdapter struct {
	component string
}

func (l loggerAdapter) Info(msg string, args ...any) {
	logging.Component(l.component).Info().Fields(pairsToMap(args)).Msg(msg)
}

func (l loggerAdapter) Error(msg string, args ...any) {
	logging.Component(l.component).Error().Fields(pairsToMap(args)).Msg(msg)
}

// pairsToMap turns the notify.Logger/retention.Logger "key, value, key,
// value..." convention into the map zerolog's Fields wants.
func pairsToMap(args []any) map[string]any {
	out := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		out[key] = args[i+1]
	}
	return out
}

// New builds every subsystem against cfg but does not start accepting
// connections or scheduling probes; call Run for that.
func New(cfg *config.Config) (*App, error) {
	db, err := storage.Open(cfg.DataDir + "/netpulse.db")
	if err != nil {
		return nil, fmt.Errorf("app.New: open storage: %w", err)
	}

	secrets := config.NewSecretStore(cfg.DataDir)
	apiKey, err := secrets.LoadOrCreateAPIKey()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("app.New: load api key: %w", err)
	}

	rt := ioruntime.New(8)

	hosts := repositories.NewHostRepository(db)
	groups := repositories.NewHostGroupRepository(db)
	metrics := repositories.NewMetricsRepository(db)
	scans := repositories.NewScanRepository(db)
	snmpRep := repositories.NewSnmpRepository(db)
	hooks := repositories.NewWebhookRepository(db)

	dispatch := notify.NewDispatcher(hooks.FindEnabled, loggerAdapter{component: "notify"})

	thresholds := models.AlertThresholds{
		LatencyWarningMs:           cfg.LatencyWarningMs,
		LatencyCriticalMs:          cfg.LatencyCriticalMs,
		PacketLossWarningPercent:   cfg.PacketLossWarningPercent,
		PacketLossCriticalPercent:  cfg.PacketLossCriticalPercent,
		ConsecutiveFailuresForDown: cfg.ConsecutiveFailuresForDown,
	}
	alertEng := alerts.New(thresholds,
		func(ctx context.Context, a *models.Alert) error { return metrics.InsertAlert(ctx, a) },
		func(a *models.Alert) {
			ctx := context.Background()
			hostName := ""
			if host, err := hosts.FindByID(ctx, a.HostID); err == nil {
				hostName = host.Name
			}
			dispatch.Dispatch(ctx, a, hostName)
		})

	icmpSched := scheduler.New(rt)
	scanEng := scanengine.New(rt, tcpscan.New())
	snmpMon := snmp.NewMonitor(rt)
	retainer := retention.New(rt, metrics, snmpRep, scans, loggerAdapter{component: "retention"},
		cfg.RetentionDays, cfg.AutoCleanup)

	server := api.NewServer(rt, apiKey)
	server.SetAllowedOrigins(cfg.AllowedOrigins)
	api.RegisterRoutes(server, api.Deps{
		Hosts: hosts, Groups: groups, Metrics: metrics, Scans: scans, Version: "1.0.0",
	})

	hub := wshub.NewHub(func() any {
		snapshot, err := hosts.FindAll(context.Background())
		if err != nil {
			return nil
		}
		return snapshot
	})
	alertEng.Subscribe(func(a *models.Alert) {
		hub.BroadcastAlert(a)
		promcollectors.AlertsTotal.WithLabelValues(string(a.Type), string(a.Severity)).Inc()
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/ws", hub.HandleWebSocket)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	return &App{
		cfg: cfg, db: db, rt: rt,
		hosts: hosts, groups: groups, metrics: metrics, scans: scans, snmpRep: snmpRep, hooks: hooks,
		icmpSched: icmpSched, scanEng: scanEng, snmpMon: snmpMon,
		alertEng: alertEng, dispatch: dispatch, retainer: retainer, server: server,
		hub: hub, metricsSrv: metricsSrv,
	}, nil
}

// Run starts the listener, the retention scheduler, and monitoring timers
// for every enabled host/scan/SNMP device already in storage. It blocks
// until ctx is cancelled, then shuts down every subsystem in reverse order.
func (a *App) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("app.Run: listen on %q: %w", a.cfg.ListenAddr, err)
	}
	a.listener = listener

	a.dispatch.SetEnabled(true)
	a.retainer.Start(ctx)
	go a.hub.Run()

	go func() {
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", a.cfg.MetricsAddr).Msg("metrics server failed")
		}
	}()

	hosts, err := a.hosts.FindEnabled(ctx)
	if err != nil {
		return fmt.Errorf("app.Run: load enabled hosts: %w", err)
	}
	for _, h := range hosts {
		a.startMonitoring(*h)
	}
	promcollectors.HostsMonitored.Set(float64(len(hosts)))

	schedules, err := a.scans.FindEnabledScheduledScans(ctx)
	if err != nil {
		return fmt.Errorf("app.Run: load enabled scans: %w", err)
	}
	scheduleConfigs := make([]models.ScheduledScanConfig, len(schedules))
	for i, s := range schedules {
		scheduleConfigs[i] = *s
	}
	a.scanEng.Start(scheduleConfigs, scanengine.Callbacks{
		OnScanComplete: a.onScanComplete,
		OnDiff:         a.onScanDiff,
	})

	devices, err := a.snmpRep.FindEnabledDevices(ctx)
	if err != nil {
		return fmt.Errorf("app.Run: load enabled snmp devices: %w", err)
	}
	for _, d := range devices {
		host, err := a.hosts.FindByID(ctx, d.HostID)
		if err != nil {
			log.Warn().Err(err).Int64("hostId", d.HostID).Msg("snmp device references missing host")
			continue
		}
		a.snmpMon.StartMonitoring(*host, *d, a.onSnmpResult)
	}

	log.Info().Str("addr", a.cfg.ListenAddr).Msg("netpulse listening")
	go a.server.Serve(listener)

	<-ctx.Done()
	return a.shutdown()
}

func (a *App) startMonitoring(host models.Host) {
	a.icmpSched.StartMonitoring(host, func(result *models.PingResult) {
		a.onPingResult(host, result)
	})
}

func (a *App) onPingResult(host models.Host, result *models.PingResult) {
	ctx := context.Background()
	if _, err := a.metrics.InsertPingResult(ctx, result); err != nil {
		log.Error().Err(err).Int64("hostId", host.ID).Msg("failed to persist ping result")
		return
	}
	if err := a.hosts.UpdateLastChecked(ctx, host.ID); err != nil {
		log.Error().Err(err).Int64("hostId", host.ID).Msg("failed to update last-checked timestamp")
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	} else {
		promcollectors.ProbeLatencySeconds.Observe(float64(result.LatencyUs) / 1_000_000)
	}
	promcollectors.ProbesTotal.WithLabelValues(outcome).Inc()
	a.hub.BroadcastPingResult(result)

	if _, err := a.alertEng.Evaluate(ctx, host, result); err != nil {
		log.Error().Err(err).Int64("hostId", host.ID).Msg("alert evaluation failed")
	}
}

func (a *App) onScanComplete(cfg models.ScheduledScanConfig, results []models.PortScanResult) {
	ctx := context.Background()
	for i := range results {
		if _, err := a.metrics.InsertPortScanResult(ctx, &results[i]); err != nil {
			log.Error().Err(err).Str("target", cfg.TargetAddress).Msg("failed to persist port scan result")
		}
	}
	promcollectors.ScansTotal.Inc()
	promcollectors.ScanDurationSeconds.Observe(scanSpreadSeconds(results))
}

// scanSpreadSeconds approximates a scan run's wall-clock duration as the gap
// between its earliest and latest result timestamp; tcpscan stamps each
// result when its probe starts, so the last probe's own dial time is not
// counted and a single-port scan reports 0.
func scanSpreadSeconds(results []models.PortScanResult) float64 {
	if len(results) == 0 {
		return 0
	}
	earliest, latest := results[0].ScanTimestamp, results[0].ScanTimestamp
	for _, r := range results[1:] {
		if r.ScanTimestamp.Before(earliest) {
			earliest = r.ScanTimestamp
		}
		if r.ScanTimestamp.After(latest) {
			latest = r.ScanTimestamp
		}
	}
	return latest.Sub(earliest).Seconds()
}

func (a *App) onScanDiff(diff models.PortScanDiff) {
	if _, err := a.scans.InsertPortScanDiff(context.Background(), &diff); err != nil {
		log.Error().Err(err).Str("target", diff.TargetAddress).Msg("failed to persist port scan diff")
		return
	}
	for _, change := range diff.Changes {
		promcollectors.PortChangesTotal.WithLabelValues(string(change.ChangeType)).Inc()
	}
}

func (a *App) onSnmpResult(result *models.SnmpResult) {
	ctx := context.Background()
	if _, err := a.snmpRep.InsertResult(ctx, result); err != nil {
		log.Error().Err(err).Int64("hostId", result.HostID).Msg("failed to persist snmp result")
		return
	}
	if err := a.snmpRep.UpdateLastPolled(ctx, result.HostID); err != nil {
		log.Error().Err(err).Int64("hostId", result.HostID).Msg("failed to update snmp last-polled timestamp")
	}

	outcome := "success"
	if !result.Success {
		outcome = "failure"
	}
	promcollectors.SnmpPollsTotal.WithLabelValues(outcome).Inc()
}

func (a *App) shutdown() error {
	log.Info().Msg("shutting down")
	a.icmpSched.StopAll()
	a.scanEng.Stop()
	a.snmpMon.StopAllMonitoring()
	a.retainer.Stop()
	a.dispatch.Wait()
	a.rt.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server did not shut down cleanly")
	}
	a.hub.Close()

	if a.listener != nil {
		a.listener.Close()
	}
	return a.db.Close()
}
