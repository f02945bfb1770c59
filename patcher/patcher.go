// Package patcher relocates the issue status widget into the
// status-and-approval container and keeps a compact resolution badge next
// to it.
//
// A rescan is a best-effort pass over whatever the page currently looks
// like. Missing elements, rejected selectors and failed writes are all
// silent: the next rescan simply tries again.
package patcher

import (
	"log/slog"
	"regexp"

	"github.com/hazyhaar/statusfixer/dom"
	"github.com/hazyhaar/statusfixer/dom/locate"
)

// Config controls a Patcher.
type Config struct {
	Selectors Selectors

	// EditingKeywordThreshold is how many resolution keywords in the
	// resolution element's text mean "dropdown is open". Default: 2.
	EditingKeywordThreshold int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	c.Selectors = c.Selectors.withDefaults()
	if c.EditingKeywordThreshold <= 0 {
		c.EditingKeywordThreshold = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// State is the per-page memory carried between rescans.
type State struct {
	// LastText is the badge text last written, "" when the badge is empty.
	LastText string
}

// BadgeOutcome describes what a rescan did to the badge.
type BadgeOutcome string

const (
	BadgeUntouched BadgeOutcome = "untouched" // status or target absent
	BadgeEditing   BadgeOutcome = "editing"   // resolution UI open, left as is
	BadgeShown     BadgeOutcome = "shown"
	BadgeHidden    BadgeOutcome = "hidden"
)

// Result summarises one rescan.
type Result struct {
	Skipped     bool         `json:"skipped"`
	SlotCreated bool         `json:"slot_created,omitempty"`
	Moved       bool         `json:"moved,omitempty"`
	Badge       BadgeOutcome `json:"badge"`
	Text        string       `json:"text,omitempty"`
}

// Patcher holds the compiled page contract. It keeps no per-page state and
// can serve any number of pages.
type Patcher struct {
	sel        Selectors
	resolution locate.Locator
	threshold  int
	keywords   *regexp.Regexp
	logger     *slog.Logger
}

// New creates a Patcher.
func New(cfg Config) *Patcher {
	cfg.defaults()

	chain := make(locate.FirstOf, 0, len(cfg.Selectors.Resolution)+1)
	for _, s := range cfg.Selectors.Resolution {
		chain = append(chain, locate.CSS(s))
	}
	chain = append(chain, locate.Scan{Attrs: cfg.Selectors.ResolutionScanAttrs, Substr: "resolution"})

	return &Patcher{
		sel:        cfg.Selectors,
		resolution: chain,
		threshold:  cfg.EditingKeywordThreshold,
		keywords:   regexp.MustCompile(`(?i)\b(done|fixed|wontfix|duplicate|incomplete)\b`),
		logger:     cfg.Logger,
	}
}

// Selectors returns the effective selector set.
func (p *Patcher) Selectors() Selectors { return p.sel }

// Rescan runs the full patch against doc. st must not be shared between
// pages.
func (p *Patcher) Rescan(doc dom.Document, st *State) Result {
	status := locate.First(doc, p.sel.Status)
	target := locate.First(doc, p.sel.Target)
	if status == nil || target == nil {
		return Result{Skipped: true, Badge: BadgeUntouched}
	}

	var res Result
	slot := locate.AttrEquals("id", p.sel.SlotID).Locate(target)
	if slot == nil {
		el, err := doc.CreateElement("div", p.sel.SlotID)
		if err != nil {
			p.logger.Debug("patcher: create slot", "error", err)
			return Result{Skipped: true, Badge: BadgeUntouched}
		}
		p.setStyle(el, "padding-top", "8px")
		p.setStyle(el, "padding-left", "4px")
		if err := target.Prepend(el); err != nil {
			p.logger.Debug("patcher: insert slot", "error", err)
			return Result{Skipped: true, Badge: BadgeUntouched}
		}
		slot = el
		res.SlotCreated = true
	}

	if !slot.Contains(status) {
		if err := slot.AppendChild(status); err != nil {
			p.logger.Debug("patcher: move status", "error", err)
		} else {
			res.Moved = true
		}
	}

	p.syncBadge(doc, slot, st, &res)
	return res
}

func (p *Patcher) setStyle(el dom.Element, prop, value string) {
	if el.Style(prop) == value {
		return
	}
	if err := el.SetStyle(prop, value); err != nil {
		p.logger.Debug("patcher: set style", "prop", prop, "error", err)
	}
}
