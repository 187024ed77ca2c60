// Package render obtains script-rendered page markup via headless Chrome.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/circular-watch/internal/circular"
)

const (
	defaultNavTimeout = 10 * time.Second
	defaultSettle     = 2 * time.Second
)

// Config controls the behavior of the headless renderer.
type Config struct {
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	Settle            time.Duration
}

// Chromedp implements circular.Renderer using chromedp and headless Chrome.
// Every Render call launches its own browser process with a fresh profile and tears it
// down before returning, so no cookies or storage survive between calls.
type Chromedp struct {
	cfg    Config
	logger *zap.Logger
	exec   actionRunner
}

// actionRunner matches chromedp.Run; tests swap it to simulate a stalled page.
type actionRunner func(ctx context.Context, actions ...chromedp.Action) error

// NewChromedp creates a renderer backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) *Chromedp {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chromedp{cfg: cfg, logger: logger, exec: chromedp.Run}
}

// Render navigates to url, waits for the body, lets deferred scripts settle and returns the DOM.
func (c *Chromedp) Render(ctx context.Context, url string, opts ...circular.RenderOption) (string, error) {
	options := circular.RenderOptions{Settle: c.settle()}
	for _, opt := range opts {
		opt(&options)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	meta := newResponseMeta()
	chromedp.ListenTarget(browserCtx, meta.captureEvent)

	start := time.Now()
	html, err := c.run(browserCtx, url, options.Settle)
	if err != nil {
		c.logger.Warn("render failed", zap.String("url", url), zap.Error(err))
		return "", &circular.RenderError{URL: url, Cause: err}
	}

	c.logger.Debug("page rendered",
		zap.String("url", url),
		zap.Int("status", meta.statusCode()),
		zap.Int("bytes", len(html)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return html, nil
}

func (c *Chromedp) run(browserCtx context.Context, url string, settle time.Duration) (string, error) {
	// The first run starts the browser, so it must not carry the page deadline.
	if err := c.exec(browserCtx, c.networkSetupAction()); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	// Navigate blocks until the load event; a page that never finishes loading is cut off here.
	pageCtx, cancel := context.WithTimeout(browserCtx, c.navTimeout())
	defer cancel()
	if err := c.exec(pageCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("page not ready within %s: %w", c.navTimeout(), err)
		}
		return "", fmt.Errorf("navigate: %w", err)
	}

	var html string
	if err := c.exec(browserCtx,
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("read markup: %w", err)
	}
	return html, nil
}

func (c *Chromedp) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
	)
	if c.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return opts
}

func (c *Chromedp) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (c *Chromedp) navTimeout() time.Duration {
	if c.cfg.NavigationTimeout > 0 {
		return c.cfg.NavigationTimeout
	}
	return defaultNavTimeout
}

func (c *Chromedp) settle() time.Duration {
	if c.cfg.Settle > 0 {
		return c.cfg.Settle
	}
	return defaultSettle
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	if m.status == 0 {
		m.status = int(event.Response.Status)
	}
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) statusCode() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
