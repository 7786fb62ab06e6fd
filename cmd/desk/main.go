package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/eddiefleurent/schrute_spreads/internal/autoclose"
	"github.com/eddiefleurent/schrute_spreads/internal/config"
	"github.com/eddiefleurent/schrute_spreads/internal/dashboard"
	"github.com/eddiefleurent/schrute_spreads/internal/ledger"
	"github.com/eddiefleurent/schrute_spreads/internal/marketdata"
	"github.com/eddiefleurent/schrute_spreads/internal/models"
	"github.com/eddiefleurent/schrute_spreads/internal/storage"
	"github.com/eddiefleurent/schrute_spreads/internal/strategy"
)

const chainFetchTimeout = 10 * time.Second

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// .env is optional; env vars feed os.ExpandEnv in the config loader
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not load .env: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logOut := io.Writer(os.Stderr)
	if cfg.Environment.LogFile != "" {
		logOut = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Environment.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	logger := log.New(logOut, "[DESK] ", log.LstdFlags|log.Lshortfile)

	logger.Printf("Starting analytics desk in %s mode", cfg.Environment.Mode)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		logger.Fatalf("Failed to open position store: %v", err)
	}

	lgr := ledger.New(store, logger)

	var provider marketdata.Provider = marketdata.NewSimProvider()
	if cfg.Market.Breaker {
		provider = marketdata.NewCircuitBreakerProvider(provider)
	}
	cached := marketdata.NewCachedProvider(provider, cfg.QuoteTTL())

	chainFn := func(symbol, expiration string) *marketdata.ChainSnapshot {
		ctx, cancel := context.WithTimeout(context.Background(), chainFetchTimeout)
		defer cancel()
		snapshot, err := cached.GetOptionsChain(ctx, symbol, expiration)
		if err != nil {
			logger.Printf("Chain fetch failed for %s %s, using last snapshot: %v", symbol, expiration, err)
			return cached.LastChain(symbol, expiration)
		}
		return snapshot
	}

	markFn := func(pos *models.Position) *float64 {
		chains := make(marketdata.ChainSet)
		for _, leg := range pos.Legs {
			exp := leg.ExpirationOr(pos.Expiration).Format("2006-01-02")
			if _, ok := chains[exp]; ok {
				continue
			}
			snapshot := chainFn(pos.Symbol, exp)
			if snapshot == nil {
				return nil
			}
			chains[exp] = snapshot
		}
		return lgr.MarkToMarket(pos, chains)
	}

	var monitor *autoclose.Monitor
	if cfg.Monitor.Enabled {
		closer := autoclose.NewRetryCloser(&autoclose.LedgerCloser{Ledger: lgr}, logger)
		monitor = autoclose.NewMonitor(autoclose.Config{
			Ledger: lgr,
			Chains: chainFn,
			Closer: closer,
			Rule: func() autoclose.Rule {
				return autoclose.Rule{
					Enabled:                true,
					TakeProfitPercent:      cfg.Monitor.TakeProfitPercent,
					StopLossPercent:        cfg.Monitor.StopLossPercent,
					CloseBeforeExpiryHours: cfg.ExpiryCloseHours(),
				}
			},
			Logger:       logger,
			CloseTimeout: cfg.CloseTimeout(),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	if monitor != nil {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.MonitorInterval())
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					monitor.Wait()
					return nil
				case <-ticker.C:
					monitor.Tick(ctx)
				}
			}
		})
	}

	// Expired positions are settled at startup and once a day after.
	g.Go(func() error {
		runSweep := func() {
			n, err := lgr.ExpireSweep(time.Now(), markFn)
			if err != nil {
				logger.Printf("Expiry sweep finished with errors: %v", err)
			}
			if n > 0 {
				logger.Printf("Expiry sweep settled %d position(s)", n)
			}
		}
		runSweep()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				runSweep()
			}
		}
	})

	if cfg.Dashboard.Enabled {
		httpLogger := logrus.New()
		httpLogger.SetOutput(logOut)
		if level, err := logrus.ParseLevel(cfg.Environment.LogLevel); err == nil {
			httpLogger.SetLevel(level)
		}

		server := dashboard.NewServer(dashboard.Config{
			ListenAddr:    cfg.Dashboard.ListenAddr,
			AuthToken:     cfg.Dashboard.AuthToken,
			AccountSize:   cfg.Risk.AccountSize,
			Budget:        cfg.Sizing.Budget,
			RewardFloor:   cfg.Sizing.RewardFloor,
			RangeFraction: cfg.Curve.RangeFraction,
			Templates: strategy.TemplateConfig{
				CenterOffsetPct: cfg.Templates.CenterOffsetPct,
				SpreadWidthPct:  cfg.Templates.SpreadWidthPct,
				WingWidthPct:    cfg.Templates.WingWidthPct,
			},
		}, lgr, cached, monitor, httpLogger)

		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Fatalf("Desk error: %v", err)
	}
	logger.Println("Desk stopped")
}
