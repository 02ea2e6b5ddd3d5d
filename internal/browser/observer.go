// internal/browser/observer.go
package browser

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/wayfinder/api/schemas"
	"github.com/xkilldash9x/wayfinder/internal/config"
)

// observeScript snapshots everything the planner needs in one evaluation:
// URL, title, visible text, page height, and the interactive elements with
// synthesized selectors (id > name > tag:nth-of-type).
const observeScript = `
(() => {
    const maxElements = %MAX_ELEMENTS%;
    const selectorFor = (el) => {
        if (el.id) { return '#' + CSS.escape(el.id); }
        const tag = el.tagName.toLowerCase();
        if (el.name) { return tag + '[name="' + CSS.escape(el.name) + '"]'; }
        const siblings = Array.from(el.parentNode ? el.parentNode.children : [])
            .filter(s => s.tagName === el.tagName);
        const idx = siblings.indexOf(el) + 1;
        return tag + ':nth-of-type(' + idx + ')';
    };
    const isVisible = (el) => {
        const r = el.getBoundingClientRect();
        return r.width > 0 && r.height > 0;
    };
    const elements = [];
    document.querySelectorAll('a, button, input, textarea, select').forEach(el => {
        if (elements.length >= maxElements) { return; }
        const text = (el.innerText || el.value || '').trim().slice(0, 120);
        elements.push({
            tag: el.tagName.toLowerCase(),
            selector: selectorFor(el),
            text: text,
            type: el.getAttribute('type') || '',
            placeholder: el.getAttribute('placeholder') || '',
            visible: isVisible(el),
        });
    });
    return {
        url: window.location.href,
        title: document.title,
        text: (document.body ? document.body.innerText : '').slice(0, %TEXT_CAP%),
        page_height: document.body ? document.body.scrollHeight : 0,
        elements: elements,
    };
})()
`

const observeMaxElements = 60

// Observer produces PageState snapshots from the managed session.
type Observer struct {
	manager schemas.SessionManager
	cfg     config.BrowserConfig
	logger  *zap.Logger
}

// NewObserver wires the observer to a session manager.
func NewObserver(manager schemas.SessionManager, cfg config.BrowserConfig, logger *zap.Logger) *Observer {
	return &Observer{
		manager: manager,
		cfg:     cfg,
		logger:  logger.Named("observer"),
	}
}

// Observe snapshots the current page. A failed observation degrades to a
// minimal state so the control loop can keep going; it never aborts the run.
func (o *Observer) Observe(ctx context.Context) schemas.PageState {
	state := schemas.PageState{CapturedAt: time.Now()}

	handle, err := o.manager.GetHandle(ctx)
	if err != nil {
		o.logger.Warn("Observation skipped: no live session.", zap.Error(err))
		return state
	}

	script := strings.NewReplacer(
		"%MAX_ELEMENTS%", strconv.Itoa(observeMaxElements),
		"%TEXT_CAP%", strconv.Itoa(o.textCap()),
	).Replace(observeScript)

	runCtx, cancel := CombineContext(handle, ctx)
	defer cancel()
	runCtx, timeoutCancel := context.WithTimeout(runCtx, o.cfg.ActionTimeout)
	defer timeoutCancel()

	var dto schemas.PageState
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &dto)); err != nil {
		o.logger.Warn("Observation failed, returning minimal state.", zap.Error(err))
		return state
	}

	dto.CapturedAt = state.CapturedAt
	return dto
}

func (o *Observer) textCap() int {
	if o.cfg.TextCap > 0 {
		return o.cfg.TextCap
	}
	return 4000
}

// ExtractText strips an HTML document down to its visible text. Used when the
// DOM string path is taken (extract_content on raw HTML) instead of a live
// innerText evaluation.
func ExtractText(rawHTML string) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
