package popup

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodBrowser drives a Chrome instance over CDP. CDP has no notion of a
// focused tab, so the active tab is the first page target.
type RodBrowser struct {
	b *rod.Browser
}

var _ Browser = (*RodBrowser)(nil)

// NewRodBrowser wraps b.
func NewRodBrowser(b *rod.Browser) *RodBrowser {
	return &RodBrowser{b: b}
}

func (r *RodBrowser) ActiveTab(ctx context.Context) (Tab, error) {
	pages, err := r.b.Context(ctx).Pages()
	if err != nil {
		return Tab{}, fmt.Errorf("popup: list pages: %w", err)
	}
	if len(pages) == 0 {
		return Tab{}, fmt.Errorf("popup: no open tab")
	}
	info, err := pages[0].Info()
	if err != nil {
		return Tab{}, fmt.Errorf("popup: page info: %w", err)
	}
	return Tab{ID: string(info.TargetID), URL: info.URL}, nil
}

func (r *RodBrowser) Reload(ctx context.Context, tabID string) error {
	page, err := r.b.PageFromTarget(proto.TargetTargetID(tabID))
	if err != nil {
		return fmt.Errorf("popup: tab %s: %w", tabID, err)
	}
	if err := page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("popup: reload %s: %w", tabID, err)
	}
	return nil
}

func (r *RodBrowser) CreateTab(ctx context.Context, url string) error {
	if _, err := r.b.Context(ctx).Page(proto.TargetCreateTarget{URL: url}); err != nil {
		return fmt.Errorf("popup: create tab %s: %w", url, err)
	}
	return nil
}

// OpenOptionsPage always fails: a CDP-driven browser has no extension
// options surface.
func (r *RodBrowser) OpenOptionsPage(context.Context) error {
	return ErrNoOptionsPage
}
