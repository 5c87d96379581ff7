package upstream

import (
	"fmt"
	"time"

	"github.com/erp/portal/internal/infrastructure/config"
	"github.com/go-playground/validator/v10"
)

const (
	defaultTimeout         = 120 * time.Second
	defaultMaxResponseSize = 32 * 1024 * 1024
	defaultUserAgent       = "erp-portal/1.0"
	maxErrorBodyLength     = 512
)

// Options configures a Client
type Options struct {
	BaseURL         string        `validate:"required,url"`
	APIKey          string        `validate:"omitempty,printascii"`
	DefaultTimeout  time.Duration `validate:"gt=0"`
	RateLimit       float64       `validate:"gte=0"`
	RateBurst       int           `validate:"gte=0"`
	MaxResponseSize int64         `validate:"gt=0"`
	UserAgent       string
	// Timeouts overrides the per-resource timeout, keyed by entity name
	Timeouts map[string]time.Duration `validate:"dive,gt=0"`
}

// OptionsFromConfig builds client options from the upstream configuration section
func OptionsFromConfig(cfg config.UpstreamConfig) Options {
	return Options{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		DefaultTimeout:  cfg.DefaultTimeout,
		RateLimit:       cfg.RateLimit,
		RateBurst:       cfg.RateBurst,
		MaxResponseSize: cfg.MaxResponseSize,
		Timeouts:        cfg.Timeouts,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (o *Options) applyDefaults() {
	if o.DefaultTimeout <= 0 {
		o.DefaultTimeout = defaultTimeout
	}
	if o.MaxResponseSize <= 0 {
		o.MaxResponseSize = defaultMaxResponseSize
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	if o.RateLimit > 0 && o.RateBurst < 1 {
		o.RateBurst = 1
	}
}

// Validate applies defaults and checks the options
func (o *Options) Validate() error {
	o.applyDefaults()
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}
