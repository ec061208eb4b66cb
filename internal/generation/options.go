package generation

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

type options struct {
	timeout    time.Duration
	logger     *zap.Logger
	httpClient *http.Client
}

// Option configures a provider client.
type Option func(*options)

// WithTimeout bounds each request. Zero keeps the default of 30s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client (tests, proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func buildOptions(opts []Option) options {
	o := options{timeout: 30 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}
	return o
}
