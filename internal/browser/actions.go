// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// Actions exposes the browser capability surface. Every method acquires a
// live handle from the session manager first, so a dead layer is healed
// before the action runs, and every method is bounded by the configured
// per-action timeout.
type Actions struct {
	manager schemas.SessionManager
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewActions wires the action primitives to a session manager.
func NewActions(manager schemas.SessionManager, cfg config.BrowserConfig, logger *zap.Logger) *Actions {
	return &Actions{
		manager: manager,
		cfg:     cfg,
		logger:  logger.Named("actions"),
	}
}

// run executes chromedp actions against a fresh handle under a timeout.
func (a *Actions) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	handle, err := a.manager.GetHandle(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := CombineContext(handle, ctx)
	defer cancel()
	runCtx, timeoutCancel := context.WithTimeout(runCtx, timeout)
	defer timeoutCancel()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads the URL and waits for the document body to be ready.
func (a *Actions) Navigate(ctx context.Context, url string) error {
	a.logger.Debug("Navigating.", zap.String("url", url))
	return a.run(ctx, a.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// Click clicks the first element matching the selector.
func (a *Actions) Click(ctx context.Context, selector string) error {
	if selector == "" {
		return fmt.Errorf("click requires a selector")
	}
	a.logger.Debug("Clicking.", zap.String("selector", selector))
	if err := a.run(ctx, a.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	); err != nil {
		return err
	}
	return a.stabilize(ctx)
}

// Type clears the matching field and types text into it.
func (a *Actions) Type(ctx context.Context, selector, text string) error {
	if selector == "" {
		return fmt.Errorf("type requires a selector")
	}
	a.logger.Debug("Typing.", zap.String("selector", selector), zap.Int("chars", len(text)))
	return a.run(ctx, a.cfg.ActionTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// PressKey dispatches a single named key (e.g. "Enter") to the focused
// element.
func (a *Actions) PressKey(ctx context.Context, key string) error {
	code, ok := keyCodes[key]
	if !ok {
		return fmt.Errorf("unsupported key: %q", key)
	}
	if err := a.run(ctx, a.cfg.ActionTimeout, chromedp.KeyEvent(code)); err != nil {
		return err
	}
	return a.stabilize(ctx)
}

var keyCodes = map[string]string{
	"Enter":     kb.Enter,
	"Tab":       kb.Tab,
	"Escape":    kb.Escape,
	"Backspace": kb.Backspace,
	"ArrowDown": kb.ArrowDown,
	"ArrowUp":   kb.ArrowUp,
	"PageDown":  kb.PageDown,
	"PageUp":    kb.PageUp,
}

// Scroll moves the viewport one screen in the given direction ("down" or
// "up") and returns the page height afterwards, which the control loop uses
// to detect scroll dead ends.
func (a *Actions) Scroll(ctx context.Context, direction string) (int, error) {
	delta := "window.innerHeight"
	if direction == "up" {
		delta = "-window.innerHeight"
	}

	var height int
	err := a.run(ctx, a.cfg.ActionTimeout,
		chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %s); document.body ? document.body.scrollHeight : 0", delta), &height),
	)
	return height, err
}

// Wait pauses for the given duration without touching the page. The input
// context still bounds the wait.
func (a *Actions) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExtractContent returns the visible text of the page, falling back to
// stripping the raw DOM when innerText evaluation fails.
func (a *Actions) ExtractContent(ctx context.Context) (string, error) {
	var text string
	err := a.run(ctx, a.cfg.ActionTimeout,
		chromedp.Evaluate("document.body ? document.body.innerText : ''", &text),
	)
	if err == nil && text != "" {
		return capText(text, a.cfg.TextCap), nil
	}

	var rawHTML string
	if htmlErr := a.run(ctx, a.cfg.ActionTimeout,
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	); htmlErr != nil {
		if err != nil {
			return "", err
		}
		return "", htmlErr
	}
	return capText(ExtractText(rawHTML), a.cfg.TextCap), nil
}

// PageInfo returns the current URL and title.
func (a *Actions) PageInfo(ctx context.Context) (url, title string, err error) {
	err = a.run(ctx, a.cfg.ActionTimeout,
		chromedp.Location(&url),
		chromedp.Title(&title),
	)
	return url, title, err
}

// Screenshot captures the viewport as PNG bytes.
func (a *Actions) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := a.run(ctx, a.cfg.ActionTimeout, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// stabilize gives the page a moment to settle after a mutating interaction.
func (a *Actions) stabilize(ctx context.Context) error {
	wait := a.cfg.StabilizeWait
	if wait <= 0 {
		return nil
	}
	return a.run(ctx, a.cfg.ActionTimeout+wait,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
	)
}

// capText trims s to at most cap bytes without splitting a UTF-8 rune.
func capText(s string, cap int) string {
	if cap <= 0 || len(s) <= cap {
		return s
	}
	cut := cap
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
