// Package collyfetcher validates candidate document URLs using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/metrics"
)

// AcceptHeader is sent with every validation and download request.
const AcceptHeader = "application/pdf,application/octet-stream,*/*"

const defaultTimeout = 10 * time.Second

// Waiter paces requests to a host.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// Config controls collector behavior. Limiter is optional.
type Config struct {
	UserAgent string
	Referer   string
	Timeout   time.Duration
	Limiter   Waiter
}

// Validator implements circular.Validator with header-only requests issued through Colly.
type Validator struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

type probeResult struct {
	status      int
	contentType string
	err         error
}

// New builds a Validator.
func New(cfg Config, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Validator{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Validate reports whether url answers a HEAD request with a success status and a PDF content type.
// Every failure, including timeouts, is a plain rejection; nothing is retried.
func (v *Validator) Validate(ctx context.Context, url string) bool {
	var result probeResult
	collector := v.buildCollector(&result)

	ctx, cancel := context.WithTimeout(ctx, v.timeout())
	defer cancel()

	ok := false
	if err := v.wait(ctx, url); err != nil {
		v.logger.Debug("candidate rejected", zap.String("url", url), zap.Error(err))
	} else if err := v.runCollector(ctx, collector, url, &result); err != nil {
		v.logger.Debug("candidate rejected", zap.String("url", url), zap.Error(err))
	} else {
		ok = accepts(result)
		v.logger.Debug("candidate checked",
			zap.String("url", url),
			zap.Int("status", result.status),
			zap.String("content_type", result.contentType),
			zap.Bool("valid", ok),
		)
	}
	metrics.ObserveValidation(ok)
	return ok
}

func accepts(result probeResult) bool {
	if result.status < 200 || result.status > 299 {
		return false
	}
	return strings.Contains(strings.ToLower(result.contentType), "pdf")
}

func (v *Validator) buildCollector(result *probeResult) *colly.Collector {
	collector := v.baseCollector.Clone()
	if v.cfg.UserAgent != "" {
		collector.UserAgent = v.cfg.UserAgent
	}
	collector.AllowURLRevisit = true
	// Non-2xx responses must reach OnResponse so the status can be inspected.
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(v.timeout())

	v.configureCollectorHooks(collector, result)
	return collector
}

func (v *Validator) configureCollectorHooks(hooks collectorHooks, result *probeResult) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", AcceptHeader)
		if v.cfg.Referer != "" {
			r.Headers.Set("Referer", v.cfg.Referer)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		if r.Headers != nil {
			result.contentType = r.Headers.Get("Content-Type")
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		result.err = err
	})
}

func (v *Validator) runCollector(ctx context.Context, collector *colly.Collector, url string, result *probeResult) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Head(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly head canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly head failed: %w", err)
		}
		if result.err != nil {
			return fmt.Errorf("colly response failed: %w", result.err)
		}
		return nil
	}
}

func (v *Validator) wait(ctx context.Context, url string) error {
	if v.cfg.Limiter == nil {
		return nil
	}
	if err := v.cfg.Limiter.Wait(ctx, url); err != nil {
		return fmt.Errorf("wait for request slot: %w", err)
	}
	return nil
}

func (v *Validator) timeout() time.Duration {
	if v.cfg.Timeout > 0 {
		return v.cfg.Timeout
	}
	return defaultTimeout
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
