package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "POS"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv      = "POS_APP_ENV"
	EnvPort        = "POS_APP_PORT"
	EnvTaxRounding = "POS_TAX_ROUNDING"
)

type Config struct {
	App      AppConfig
	Catalog  CatalogConfig
	Purchase PurchaseConfig
	Decode   DecodeConfig
	Capture  CaptureConfig
	Tax      TaxConfig
	Register RegisterConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Tax.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// CatalogConfig points at the product lookup collaborator.
type CatalogConfig struct {
	BaseURL string        `envconfig:"POS_CATALOG_BASE_URL" default:"http://127.0.0.1:8000"`
	Timeout time.Duration `envconfig:"POS_CATALOG_TIMEOUT" default:"5s"`

	// UseDummy substitutes a synthetic product instead of calling the
	// collaborator; lookup requests never leave the process while set.
	UseDummy bool `envconfig:"POS_CATALOG_USE_DUMMY" default:"false"`
}

// PurchaseConfig points at the purchase submission collaborator.
type PurchaseConfig struct {
	BaseURL     string        `envconfig:"POS_PURCHASE_BASE_URL" default:"http://127.0.0.1:8000"`
	Timeout     time.Duration `envconfig:"POS_PURCHASE_TIMEOUT" default:"10s"`
	CashierCode string        `envconfig:"POS_CASHIER_CODE"`
	StoreCode   string        `envconfig:"POS_STORE_CODE"`
	PosID       string        `envconfig:"POS_POS_ID"`
}

type DecodeConfig struct {
	// NativeReader toggles the raw-frame symbology reader stage. The
	// enhanced stage runs regardless.
	NativeReader  bool   `envconfig:"POS_DECODE_NATIVE_READER" default:"true"`
	MinResolution int    `envconfig:"POS_DECODE_MIN_RESOLUTION" default:"1200"`
	RemoteScanURL string `envconfig:"POS_DECODE_REMOTE_SCAN_URL"`

	RemoteTimeout time.Duration `envconfig:"POS_DECODE_REMOTE_TIMEOUT" default:"10s"`
}

type CaptureConfig struct {
	FrameInterval  time.Duration `envconfig:"POS_CAPTURE_FRAME_INTERVAL" default:"16ms"`
	SessionTimeout time.Duration `envconfig:"POS_CAPTURE_SESSION_TIMEOUT" default:"2m"`
	MaxFrameBytes  int64         `envconfig:"POS_CAPTURE_MAX_FRAME_BYTES" default:"524288"`
}

type TaxConfig struct {
	// Rate is a decimal fraction, e.g. "0.10" for 10%.
	Rate     string `envconfig:"POS_TAX_RATE" default:"0.10"`
	Rounding string `envconfig:"POS_TAX_ROUNDING" default:"floor"`
}

type RegisterConfig struct {
	IdleTTL       time.Duration `envconfig:"POS_REGISTER_IDLE_TTL" default:"1h"`
	SweepInterval time.Duration `envconfig:"POS_REGISTER_SWEEP_INTERVAL" default:"5m"`
}

var validRoundingModes = map[string]struct{}{
	"floor": {},
	"round": {},
	"ceil":  {},
}

func (t TaxConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(t.Rounding))
	if _, ok := validRoundingModes[mode]; !ok {
		return fmt.Errorf("invalid %s %q: want floor, round or ceil", EnvTaxRounding, t.Rounding)
	}
	return nil
}
