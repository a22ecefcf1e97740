// Package httpretry builds the retrying HTTP client shared by outbound
// payment and payout integrations.
package httpretry

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// Options configures the retry budget of a client.
type Options struct {
	// Attempts is the total number of tries, including the first one.
	Attempts       int
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
	RequestTimeout time.Duration
	Logger         zerolog.Logger
}

// DefaultOptions returns three attempts with 1s to 4s exponential backoff.
func DefaultOptions(logger zerolog.Logger) Options {
	return Options{
		Attempts:       3,
		MinBackoff:     time.Second,
		MaxBackoff:     4 * time.Second,
		RequestTimeout: 30 * time.Second,
		Logger:         logger,
	}
}

// NewClient returns a standard *http.Client whose transport retries network
// errors, 429 and 5xx responses. After the last attempt the final response is
// handed back unchanged so callers can map its status.
func NewClient(opts Options) *http.Client {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Attempts - 1
	rc.RetryWaitMin = opts.MinBackoff
	rc.RetryWaitMax = opts.MaxBackoff
	rc.CheckRetry = CheckRetry
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{logger: opts.Logger}
	if opts.RequestTimeout > 0 {
		rc.HTTPClient.Timeout = opts.RequestTimeout
	}
	return rc.StandardClient()
}

// CheckRetry retries transport failures, 429 and any 5xx. Cancelled contexts
// stop immediately.
func CheckRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

type leveledLogger struct {
	logger zerolog.Logger
}

func (l leveledLogger) Error(msg string, kv ...interface{}) {
	l.logger.Error().Fields(kv).Msg("httpretry." + msg)
}

func (l leveledLogger) Warn(msg string, kv ...interface{}) {
	l.logger.Warn().Fields(kv).Msg("httpretry." + msg)
}

func (l leveledLogger) Info(msg string, kv ...interface{}) {
	l.logger.Debug().Fields(kv).Msg("httpretry." + msg)
}

func (l leveledLogger) Debug(msg string, kv ...interface{}) {
	l.logger.Debug().Fields(kv).Msg("httpretry." + msg)
}
