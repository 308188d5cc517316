package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/boot"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/config"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/directory"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/domain"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/gauge"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/httpapi"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/metrics"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/session"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/store"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/subscription"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/util"
	"github.com/hitched212-stack/Mytradelog.final30-sub002/internal/viewstate"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfgPath := "config/mytradelog.yaml"
	if p := os.Getenv("MYTRADELOG_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	// Log to stdout and a dated file.
	logFileName := fmt.Sprintf("/tmp/mytradelog-server-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("opening log file: %v", err)
	}
	defer logFile.Close()

	w := io.MultiWriter(os.Stdout, logFile)
	logger := util.NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Session identity. This deployment is single-user; the identity comes
	// from the environment and settles immediately.
	userID := os.Getenv("MYTRADELOG_USER")
	if userID == "" {
		userID = "local"
	}
	sessions := session.NewManager(func(ctx context.Context) (string, error) {
		return userID, nil
	}, logger)

	// Subscription gate backed by the billing records in the store. Local
	// deployments without billing run fully unlocked unless explicitly
	// told to enforce.
	requireSub := os.Getenv("MYTRADELOG_REQUIRE_SUBSCRIPTION") == "1"
	gate := subscription.NewGate(func(ctx context.Context, uid string) (*domain.Subscription, error) {
		sub, err := db.GetSubscription(ctx, uid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) && !requireSub {
				return &domain.Subscription{
					UserID:           uid,
					Status:           "active",
					CurrentPeriodEnd: time.Now().Add(24 * time.Hour),
				}, nil
			}
			return nil, err
		}
		return sub, nil
	}, logger)

	dir := directory.NewDirectory(db, logger)

	collector := metrics.NewCollector(logger)
	metricsServer := collector.StartServer(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort))

	loader := func(ctx context.Context, accountID string) ([]domain.Trade, error) {
		return db.ListTrades(ctx, accountID)
	}
	ctrl := viewstate.NewController(sessions, gate, dir, loader, viewstate.Options{
		SwitchWindow:     cfg.UI.SwitchWindow(),
		SettleBuffer:     cfg.UI.SettleBuffer(),
		HydrationCeiling: cfg.UI.SplashCeiling(),
	}, collector, logger)
	go ctrl.Run(ctx)

	// Boot splash over the composed state.
	splash := boot.NewSplash(func() boot.Readiness {
		s := sessions.Current()
		return boot.DataReady(s.Settled(), s.SignedIn(), ctrl.IsHydrating())
	}, boot.Options{
		MinDisplay: cfg.UI.SplashMin(),
		Ceiling:    cfg.UI.SplashCeiling(),
	}, logger)

	splashStarted := time.Now()
	splashCh := make(chan boot.State, 4)
	splash.Notify(splashCh)
	go func() {
		for st := range splashCh {
			if st == boot.StateDismissing {
				collector.RecordSplash(time.Since(splashStarted))
			}
		}
	}()

	// Animated total PnL for the journal header, suppressed while an
	// account switch is in flight.
	pnlGauge := gauge.New(gauge.Options{Duration: cfg.UI.GaugeAnim()})

	// React to controller transitions: re-evaluate the splash and keep
	// the gauge in step with the switch lifecycle.
	subID, events := ctrl.Subscribe(32)
	defer ctrl.Unsubscribe(subID)
	go func() {
		for e := range events {
			switch e.Type {
			case viewstate.EventSwitchStarted:
				pnlGauge.SwitchStarted()
			case viewstate.EventSwitchEnded:
				pnlGauge.SwitchEnded()
			case viewstate.EventCacheUpdated:
				data, _ := ctrl.ReadForRender(e.AccountID)
				var total float64
				for _, t := range data.Trades {
					total += t.PnL
				}
				pnlGauge.SetTarget(total)
			}
			splash.Poke()
		}
	}()

	splash.Start()
	sessions.Refresh(ctx)

	srv := httpapi.NewServer(ctrl, dir, db, db, splash, pnlGauge, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("mytradelog server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown error", "error", err)
	}
}
