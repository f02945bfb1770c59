package popup

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNoOptionsPage is returned by Browser.OpenOptionsPage when the host has
// no native options surface.
var ErrNoOptionsPage = errors.New("popup: no options page")

// Tab is the active browser tab.
type Tab struct {
	ID  string
	URL string
}

// Browser is the subset of browser APIs the popup drives.
type Browser interface {
	ActiveTab(ctx context.Context) (Tab, error)
	Reload(ctx context.Context, tabID string) error
	CreateTab(ctx context.Context, url string) error
	OpenOptionsPage(ctx context.Context) error
}

// Config configures a Controller.
type Config struct {
	Hosts       Hosts
	FeedbackURL string
	HelpURL     string
	// OptionsURL is opened in a new tab when the browser has no options page.
	OptionsURL string
	Logger     *slog.Logger
}

const (
	DefaultFeedbackURL = "https://github.com/hazyhaar/statusfixer/issues"
	DefaultHelpURL     = "https://github.com/hazyhaar/statusfixer#readme"
	DefaultOptionsURL  = "http://127.0.0.1:8787/options"
)

func (c *Config) defaults() {
	def := DefaultHosts()
	if c.Hosts.SaaSSuffix == "" {
		c.Hosts.SaaSSuffix = def.SaaSSuffix
	}
	if c.Hosts.ProductSubstring == "" {
		c.Hosts.ProductSubstring = def.ProductSubstring
	}
	if c.FeedbackURL == "" {
		c.FeedbackURL = DefaultFeedbackURL
	}
	if c.HelpURL == "" {
		c.HelpURL = DefaultHelpURL
	}
	if c.OptionsURL == "" {
		c.OptionsURL = DefaultOptionsURL
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller wires popup actions to a Browser. No method returns an error:
// failures are logged and, for Check, reported as StateError.
type Controller struct {
	cfg     Config
	browser Browser
}

// NewController creates a Controller.
func NewController(b Browser, cfg Config) *Controller {
	cfg.defaults()
	return &Controller{cfg: cfg, browser: b}
}

// Check classifies the active tab.
func (c *Controller) Check(ctx context.Context) Status {
	tab, err := c.browser.ActiveTab(ctx)
	if err != nil {
		c.cfg.Logger.Error("popup: error checking page", "error", err)
		return NewStatus(StateError)
	}
	return Classify(tab.URL, c.cfg.Hosts)
}

// Refresh reloads the active tab. It reports true when the popup should
// close, which only happens after a successful reload.
func (c *Controller) Refresh(ctx context.Context) bool {
	tab, err := c.browser.ActiveTab(ctx)
	if err != nil {
		c.cfg.Logger.Error("popup: error refreshing page", "error", err)
		return false
	}
	if tab.ID == "" {
		return false
	}
	if err := c.browser.Reload(ctx, tab.ID); err != nil {
		c.cfg.Logger.Error("popup: error refreshing page", "tab", tab.ID, "error", err)
		return false
	}
	return true
}

// OpenSettings opens the native options page, or OptionsURL in a new tab.
func (c *Controller) OpenSettings(ctx context.Context) {
	err := c.browser.OpenOptionsPage(ctx)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrNoOptionsPage) {
		c.cfg.Logger.Warn("popup: open options page", "error", err)
	}
	c.open(ctx, c.cfg.OptionsURL)
}

// OpenFeedback opens the issue tracker in a new tab.
func (c *Controller) OpenFeedback(ctx context.Context) { c.open(ctx, c.cfg.FeedbackURL) }

// OpenHelp opens the readme in a new tab.
func (c *Controller) OpenHelp(ctx context.Context) { c.open(ctx, c.cfg.HelpURL) }

func (c *Controller) open(ctx context.Context, url string) {
	if err := c.browser.CreateTab(ctx, url); err != nil {
		c.cfg.Logger.Error("popup: create tab", "url", url, "error", err)
	}
}
