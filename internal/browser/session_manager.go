// internal/browser/session_manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// ErrSessionUnavailable is returned when even a cold start cannot produce a
// live page. It is the one fatal, unrecoverable error of this package.
var ErrSessionUnavailable = errors.New("browser session unavailable")

const livenessProbeTimeout = 3 * time.Second

// SessionManager owns the one shared browser resource as three nested layers:
// the engine (exec allocator), the isolated browser context, and the active
// page (tab). Every access self-heals whichever layers are found dead, under
// a single lock so concurrent callers never race creations.
type SessionManager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu sync.Mutex

	// Layer 1: engine (allocator). Owns the browser process.
	allocCtx    context.Context
	allocCancel context.CancelFunc

	// Layer 2: isolated browser context.
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// Layer 3: active page (tab).
	pageCtx    context.Context
	pageCancel context.CancelFunc

	sessionID string
}

var _ schemas.SessionManager = (*SessionManager)(nil)

// NewSessionManager creates the manager. Browser startup is deferred until
// the first GetHandle call.
func NewSessionManager(cfg config.BrowserConfig, logger *zap.Logger) *SessionManager {
	return &SessionManager{
		cfg:    cfg,
		logger: logger.Named("session_manager"),
	}
}

// GetHandle returns a context bound to a live page, recreating any dead layer
// first. It fails only when a cold start is impossible.
func (m *SessionManager) GetHandle(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureSessionLocked(ctx)
}

// Reset forcibly tears down every layer, swallowing close errors, and then
// cold-starts a fresh session. Afterwards IsReady reports true unless the
// cold start itself failed.
func (m *SessionManager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Warn("Resetting browser session.", zap.String("session_id", m.sessionID))
	m.teardownLocked()

	if _, err := m.ensureSessionLocked(ctx); err != nil {
		return err
	}
	return nil
}

// IsReady reports whether a live page handle currently exists. It probes the
// page layer but never creates anything.
func (m *SessionManager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pageCtx == nil || m.pageCtx.Err() != nil {
		return false
	}
	return m.probePageLocked() == nil
}

// Close releases the browser entirely. The manager can be reused afterwards;
// the next GetHandle cold-starts again.
func (m *SessionManager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.Info("Closing browser session.", zap.String("session_id", m.sessionID))
	m.teardownLocked()
	return nil
}

// ensureSessionLocked walks engine -> context -> page, recreating dead
// layers in order. Callers must hold m.mu.
func (m *SessionManager) ensureSessionLocked(ctx context.Context) (context.Context, error) {
	if err := m.ensureEngineLocked(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	if err := m.ensureBrowserLocked(ctx); err != nil {
		// A dead engine can masquerade as a context failure. One full
		// teardown and rebuild before declaring the session unavailable.
		m.teardownLocked()
		if err2 := m.ensureEngineLocked(); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err2)
		}
		if err2 := m.ensureBrowserLocked(ctx); err2 != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err2)
		}
	}
	if err := m.ensurePageLocked(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return m.pageCtx, nil
}

func (m *SessionManager) ensureEngineLocked() error {
	if m.allocCtx != nil && m.allocCtx.Err() == nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.WindowSize(m.cfg.WindowWidth, m.cfg.WindowHeight),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	for _, arg := range m.cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	m.logger.Debug("Browser engine layer (re)created.")
	return nil
}

func (m *SessionManager) ensureBrowserLocked(ctx context.Context) error {
	if m.browserCtx != nil && m.browserCtx.Err() == nil {
		return nil
	}

	m.browserCtx, m.browserCancel = chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	// The browser process starts on the first Run against the context.
	startCtx, cancel := CombineContext(m.browserCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		return fmt.Errorf("failed to start browser context: %w", err)
	}

	m.sessionID = uuid.New().String()
	m.logger.Info("Browser context layer (re)created.", zap.String("session_id", m.sessionID))
	return nil
}

func (m *SessionManager) ensurePageLocked(ctx context.Context) error {
	if m.pageCtx != nil && m.pageCtx.Err() == nil {
		if m.probePageLocked() == nil {
			return nil
		}
		// Probe failed: the tab died without canceling its context.
		m.pageCancel()
		m.pageCtx, m.pageCancel = nil, nil
	}

	m.pageCtx, m.pageCancel = chromedp.NewContext(m.browserCtx)

	var tasks chromedp.Tasks
	if m.cfg.UserAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(m.cfg.UserAgent))
	}

	probeCtx, cancel := CombineContext(m.pageCtx, ctx)
	defer cancel()
	if err := chromedp.Run(probeCtx, tasks...); err != nil {
		return fmt.Errorf("failed to open page: %w", err)
	}

	m.logger.Debug("Page layer (re)created.")
	return nil
}

// probePageLocked runs a trivial evaluation against the page to confirm the
// CDP connection is actually alive, not just uncancelled.
func (m *SessionManager) probePageLocked() error {
	probeCtx, cancel := context.WithTimeout(m.pageCtx, livenessProbeTimeout)
	defer cancel()

	var one int
	return chromedp.Run(probeCtx, chromedp.Evaluate("1", &one))
}

// teardownLocked closes all three layers, swallowing errors. Teardown must
// never itself fail.
func (m *SessionManager) teardownLocked() {
	if m.pageCancel != nil {
		m.pageCancel()
		m.pageCtx, m.pageCancel = nil, nil
	}
	if m.browserCancel != nil {
		m.browserCancel()
		m.browserCtx, m.browserCancel = nil, nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCtx, m.allocCancel = nil, nil
	}
	m.sessionID = ""
}
