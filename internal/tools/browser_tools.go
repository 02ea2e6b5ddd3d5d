// internal/tools/browser_tools.go
package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/xkilldash9x/wayfinder/internal/browser"
)

// Browser capability names. These are the entries the planner's actions map
// onto; each is idempotent-safe to retry after a session reset.
const (
	ToolOpenURL        = "open_url"
	ToolClick          = "click"
	ToolType           = "type"
	ToolPressKey       = "press_key"
	ToolScroll         = "scroll"
	ToolWait           = "wait"
	ToolExtractContent = "extract_content"
	ToolGetPageInfo    = "get_page_info"
	ToolScreenshot     = "screenshot"
)

// RegisterBrowserTools binds the browser capability surface into the registry.
func RegisterBrowserTools(reg *Registry, actions *browser.Actions) {
	reg.Register(ToolOpenURL, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		url, err := stringParam(params, "url")
		if err != nil {
			return nil, err
		}
		if err := actions.Navigate(ctx, url); err != nil {
			return nil, err
		}
		return fmt.Sprintf("opened %s", url), nil
	})

	reg.Register(ToolClick, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		selector, err := stringParam(params, "selector")
		if err != nil {
			return nil, err
		}
		if err := actions.Click(ctx, selector); err != nil {
			return nil, err
		}
		return fmt.Sprintf("clicked %s", selector), nil
	})

	reg.Register(ToolType, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		selector, err := stringParam(params, "selector")
		if err != nil {
			return nil, err
		}
		text, err := stringParam(params, "text")
		if err != nil {
			return nil, err
		}
		if err := actions.Type(ctx, selector, text); err != nil {
			return nil, err
		}
		return fmt.Sprintf("typed into %s", selector), nil
	})

	reg.Register(ToolPressKey, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		key, err := stringParam(params, "key")
		if err != nil {
			return nil, err
		}
		if err := actions.PressKey(ctx, key); err != nil {
			return nil, err
		}
		return fmt.Sprintf("pressed %s", key), nil
	})

	reg.Register(ToolScroll, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		direction, _ := params["direction"].(string)
		if direction == "" {
			direction = "down"
		}
		height, err := actions.Scroll(ctx, direction)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"detail":      fmt.Sprintf("scrolled %s", direction),
			"page_height": height,
		}, nil
	})

	reg.Register(ToolWait, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		seconds := floatParam(params, "seconds", 1)
		if err := actions.Wait(ctx, time.Duration(seconds*float64(time.Second))); err != nil {
			return nil, err
		}
		return fmt.Sprintf("waited %.1fs", seconds), nil
	})

	reg.Register(ToolExtractContent, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		return actions.ExtractContent(ctx)
	})

	reg.Register(ToolGetPageInfo, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		url, title, err := actions.PageInfo(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"url": url, "title": title}, nil
	})

	reg.Register(ToolScreenshot, func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		png, err := actions.Screenshot(ctx)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.EncodeToString(png), nil
	})
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return v, nil
}

func floatParam(params map[string]interface{}, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}
