package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/controllers"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/api/middleware"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/capture"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/checkout"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/ledger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/internal/products"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/config"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/logger"
	"github.com/LittleMouseBloodstock/tech0-pos-backend/pkg/metrics"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	Metrics       *metrics.ScanMetrics
	Registry      *prometheus.Registry
	Store         *ledger.Store
	Catalog       products.Service
	Checkout      checkout.Service
	LiveDetector  capture.Detector
	StillDetector capture.Detector
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config))
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}

	captureCfg := capture.Config{
		FrameInterval:  d.Config.Capture.FrameInterval,
		SessionTimeout: d.Config.Capture.SessionTimeout,
	}
	maxFrameBytes := d.Config.Capture.MaxFrameBytes

	r.Get("/ws/scan", controllers.LiveScan(d.LiveDetector, d.StillDetector, captureCfg, maxFrameBytes, d.Metrics, d.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", controllers.Scan(d.StillDetector, d.Catalog, maxFrameBytes, d.Logger))
		r.Get("/products", controllers.LookupProduct(d.Catalog, d.Logger))

		r.Route("/registers", func(r chi.Router) {
			r.Post("/", controllers.OpenRegister(d.Store, d.Logger))
			r.Route("/{registerId}", func(r chi.Router) {
				r.Get("/", controllers.GetRegister(d.Store, d.Logger))
				r.Delete("/", controllers.CloseRegister(d.Store, d.Logger))
				r.Post("/items", controllers.AddItem(d.Store, d.Catalog, d.Logger))
				r.Patch("/items/{code}", controllers.UpdateItem(d.Store, d.Logger))
				r.Delete("/items/{code}", controllers.RemoveItem(d.Store, d.Logger))
				r.Post("/purchase", controllers.Purchase(d.Store, d.Checkout, d.Metrics, d.Logger))
			})
		})
	})

	return r
}
