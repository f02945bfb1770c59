// Package popup is the status popup: it tells whether the active tab is a
// Jira page the fixer patches and forwards the popup's buttons to browser
// actions.
package popup

import (
	"net/url"
	"strings"
)

// State is the page status shown in the popup header.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateError    State = "error"
)

var icons = map[State]string{
	StateActive:   "✅",
	StateInactive: "⚠️",
	StateError:    "❌",
}

var messages = map[State]string{
	StateActive:   "The extension is working on this Jira page.",
	StateInactive: "Please navigate to a Jira page to use this extension.",
	StateError:    "Unable to determine page status.",
}

// Status is what the popup renders.
type Status struct {
	State   State
	Message string
}

// NewStatus returns the status for s with its fixed message.
func NewStatus(s State) Status {
	return Status{State: s, Message: messages[s]}
}

// Title is the icon plus the capitalized state, e.g. "✅ Active".
func (s Status) Title() string {
	name := string(s.State)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return icons[s.State] + " " + name
}

// Hosts are the two patterns that identify a Jira page.
type Hosts struct {
	// SaaSSuffix matches hosted instances by host suffix.
	SaaSSuffix string `yaml:"saas_suffix"`
	// ProductSubstring matches any host containing it.
	ProductSubstring string `yaml:"product_substring"`
}

// DefaultHosts matches Atlassian Cloud and jira.com hosts.
func DefaultHosts() Hosts {
	return Hosts{SaaSSuffix: "atlassian.net", ProductSubstring: "jira.com"}
}

// Classify returns active when rawURL's host matches h, inactive otherwise.
// An unparseable URL is inactive: the tab query itself succeeded.
func Classify(rawURL string, h Hosts) Status {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return NewStatus(StateInactive)
	}
	host := strings.ToLower(u.Hostname())
	if h.SaaSSuffix != "" && strings.HasSuffix(host, strings.ToLower(h.SaaSSuffix)) {
		return NewStatus(StateActive)
	}
	if h.ProductSubstring != "" && strings.Contains(host, strings.ToLower(h.ProductSubstring)) {
		return NewStatus(StateActive)
	}
	return NewStatus(StateInactive)
}
