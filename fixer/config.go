package fixer

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/hazyhaar/statusfixer/browser"
	"github.com/hazyhaar/statusfixer/fixer/internal/config"
	"github.com/hazyhaar/statusfixer/patcher"
	"github.com/hazyhaar/statusfixer/patcher/schedule"
	"github.com/hazyhaar/statusfixer/popup"
)

// Config is the top-level configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig is one issue page to keep patched.
type PageConfig = config.PageConfig

// ScheduleConfig controls rescan timing.
type ScheduleConfig = config.ScheduleConfig

// PatcherConfig overrides the page contract.
type PatcherConfig = config.PatcherConfig

// PopupConfig controls the popup.
type PopupConfig = config.PopupConfig

// HTTPConfig controls the local status surface.
type HTTPConfig = config.HTTPConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig is the configuration of an empty YAML file.
func DefaultConfig() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// BrowserOptions maps the browser section onto a browser.Config.
func BrowserOptions(c *Config, logger *slog.Logger) browser.Config {
	return browser.Config{
		RemoteURL:        c.Browser.Remote,
		UserDataDir:      c.Browser.UserDataDir,
		MemoryLimit:      c.Browser.MemoryLimit,
		RecycleInterval:  c.Browser.RecycleInterval,
		ResourceBlocking: c.Browser.ResourceBlocking,
		Stealth:          c.Browser.Stealth,
		Mode:             browser.Mode(c.Browser.Mode),
		XvfbDisplay:      c.Browser.XvfbDisplay,
		Logger:           logger,
	}
}

// PatcherOptions maps the patcher section onto a patcher.Config.
func PatcherOptions(c *Config, logger *slog.Logger) patcher.Config {
	return patcher.Config{
		Selectors:               c.Patcher.Selectors,
		EditingKeywordThreshold: c.Patcher.EditingKeywordThreshold,
		Logger:                  logger,
	}
}

func scheduleConfig(c *Config, clock clockwork.Clock, logger *slog.Logger) schedule.Config {
	return schedule.Config{
		InitialDelay: c.Schedule.InitialDelay,
		Debounce:     c.Schedule.Debounce,
		Clock:        clock,
		Logger:       logger,
	}
}

// PopupOptions maps the popup section onto a popup.Config.
func PopupOptions(c *Config, logger *slog.Logger) popup.Config {
	return popup.Config{
		Hosts: popup.Hosts{
			SaaSSuffix:       c.Popup.SaaSSuffix,
			ProductSubstring: c.Popup.ProductSubstring,
		},
		FeedbackURL: c.Popup.FeedbackURL,
		HelpURL:     c.Popup.HelpURL,
		OptionsURL:  c.Popup.OptionsURL,
		Logger:      logger,
	}
}
