package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/routes"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/capture"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/checkout"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/decode"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/config"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	scanMetrics := metrics.NewScanMetrics(registry)

	policy, err := ledger.ParsePolicy(cfg.Tax.Rate, cfg.Tax.Rounding)
	if err != nil {
		logg.Error(context.Background(), "invalid tax policy", err)
		os.Exit(1)
	}
	store := ledger.NewStore(policy)
	go store.RunSweeper(context.Background(), cfg.Register.SweepInterval, cfg.Register.IdleTTL, logg)

	// Dummy mode swaps both collaborators out so the service runs standalone.
	var catalog products.Service
	var checkoutSvc checkout.Service
	if cfg.Catalog.UseDummy {
		catalog = products.DummyService{}
		checkoutSvc = &checkout.LocalService{}
	} else {
		catalog = products.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout)
		checkoutSvc = checkout.NewClient(cfg.Purchase.BaseURL, checkout.Identity{
			CashierCode: cfg.Purchase.CashierCode,
			StoreCode:   cfg.Purchase.StoreCode,
			PosID:       cfg.Purchase.PosID,
		}, cfg.Purchase.Timeout)
	}

	var native *decode.SymbologyReader
	if cfg.Decode.NativeReader {
		native = decode.NewSymbologyReader()
	}
	enhanced := decode.NewEnhancedReader(cfg.Decode.MinResolution)
	remote := decode.NewRemoteClient(cfg.Decode.RemoteScanURL, cfg.Decode.RemoteTimeout)

	// The live loop stays local; remote decode joins only the one-shot chain.
	liveChain := newChain(scanMetrics, native, enhanced, nil)
	stillChain := newChain(scanMetrics, native, enhanced, remote)

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		Metrics:       scanMetrics,
		Registry:      registry,
		Store:         store,
		Catalog:       catalog,
		Checkout:      checkoutSvc,
		LiveDetector:  capture.DetectorFunc(liveChain.Decode),
		StillDetector: capture.DetectorFunc(stillChain.Decode),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"strategies": stillChain.Strategies(),
	})
	logg.Info(ctx, "starting pos api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "pos api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// newChain assembles a decode chain while tolerating absent stages.
func newChain(m *metrics.ScanMetrics, native *decode.SymbologyReader, enhanced *decode.EnhancedReader, remote *decode.RemoteClient) *decode.Chain {
	stages := make([]decode.Strategy, 0, 3)
	if native != nil {
		stages = append(stages, native)
	}
	if enhanced != nil {
		stages = append(stages, enhanced)
	}
	if remote != nil {
		stages = append(stages, remote)
	}
	return decode.NewChain(m, stages...)
}
