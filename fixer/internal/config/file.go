// Package config holds the fixer's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/statusfixer/patcher"
)

// Config is the top-level configuration.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	Pages    []PageConfig   `yaml:"pages"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Patcher  PatcherConfig  `yaml:"patcher"`
	Popup    PopupConfig    `yaml:"popup"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	UserDataDir      string        `yaml:"user_data_dir"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Mode             string        `yaml:"mode"` // headless | headful
	Stealth          *bool         `yaml:"stealth"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// PageConfig is one issue page to keep patched.
type PageConfig struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// ScheduleConfig controls rescan timing.
type ScheduleConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	Debounce     time.Duration `yaml:"debounce"`
}

// PatcherConfig overrides the page contract.
type PatcherConfig struct {
	Selectors               patcher.Selectors `yaml:"selectors"`
	EditingKeywordThreshold int               `yaml:"editing_keyword_threshold"`
}

// PopupConfig controls the popup's page detection and links.
type PopupConfig struct {
	SaaSSuffix       string `yaml:"saas_suffix"`
	ProductSubstring string `yaml:"product_substring"`
	FeedbackURL      string `yaml:"feedback_url"`
	HelpURL          string `yaml:"help_url"`
	OptionsURL       string `yaml:"options_url"`
}

// HTTPConfig controls the local status surface.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Schedule.InitialDelay <= 0 {
		c.Schedule.InitialDelay = time.Second
	}
	if c.Schedule.Debounce <= 0 {
		c.Schedule.Debounce = 100 * time.Millisecond
	}
	if c.Patcher.EditingKeywordThreshold <= 0 {
		c.Patcher.EditingKeywordThreshold = 2
	}
	if c.Popup.SaaSSuffix == "" {
		c.Popup.SaaSSuffix = "atlassian.net"
	}
	if c.Popup.ProductSubstring == "" {
		c.Popup.ProductSubstring = "jira.com"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = "127.0.0.1:8787"
	}
	if c.Popup.OptionsURL == "" {
		c.Popup.OptionsURL = "http://" + c.HTTP.Addr + "/options"
	}
	for i := range c.Pages {
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

func (c *Config) validate() error {
	switch c.Browser.Mode {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.mode %q: want headless or headful", c.Browser.Mode)
	}
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %q has no url", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
	}
	return nil
}
