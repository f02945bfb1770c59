package patcher

// Selectors is the full contract with the host page. Defaults match the
// current issue-detail markup; any of them can be overridden from config
// when the host page changes.
type Selectors struct {
	Status string `yaml:"status"`
	Target string `yaml:"target"`

	// Resolution is tried in order before the attribute scan.
	Resolution []string `yaml:"resolution"`
	// ResolutionScanAttrs are the attributes the fallback scan inspects
	// for the substring "resolution".
	ResolutionScanAttrs []string `yaml:"resolution_scan_attrs"`

	StatusLabel  string `yaml:"status_label"`
	ResolvedDate string `yaml:"resolved_date"`
	// DatedButton is tied to one build of the host page's CSS-in-JS
	// class names.
	DatedButton string `yaml:"dated_button"`

	DropdownOpen []string `yaml:"dropdown_open"`

	SlotID  string `yaml:"slot_id"`
	BadgeID string `yaml:"badge_id"`
}

// DefaultSelectors returns the built-in selector set.
func DefaultSelectors() Selectors {
	return Selectors{
		Status: `[data-testid="issue.views.issue-base.foundation.status.status-field-wrapper"]`,
		Target: `[data-testid="issue.views.issue-base.context.status-and-approvals-wrapper.status-and-approval"]`,
		Resolution: []string{
			`[data-testid="issue-field-resolution"]`,
			`[data-testid*="resolution"]`,
			`[data-test-id*="resolution"]`,
			`[aria-label="Resolution"]`,
		},
		ResolutionScanAttrs: []string{"aria-label", "data-testid", "data-test-id"},
		StatusLabel:         `[data-testid="issue-field-resolution.ui.read.resolution-status-label"]`,
		ResolvedDate:        `[data-testid="resolved-date.ui.read.meta-date"], [data-testid*="resolved-date"]`,
		DatedButton:         `span.erd76u-0.ZPEnO[role="button"]`,
		DropdownOpen: []string{
			`[data-testid*="dropdown"][aria-expanded="true"]`,
			`[role="listbox"][aria-expanded="true"]`,
			`.ak-dropdown-menu[style*="display: block"]`,
			`[data-testid*="resolution"][aria-expanded="true"]`,
			`[aria-expanded="true"][data-testid*="select"]`,
			`.ak-select__menu[style*="display: block"]`,
			`[data-testid*="popup"][style*="display: block"]`,
			`[data-testid*="resolution"] [aria-expanded="true"]`,
			`[data-testid*="resolution"] .ak-dropdown-menu`,
			`[data-testid*="resolution"]:has(button[aria-expanded="true"])`,
		},
		SlotID:  "status-fixer-slot",
		BadgeID: "status-fixer-resolution",
	}
}

// withDefaults fills empty fields from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	d := DefaultSelectors()
	if s.Status == "" {
		s.Status = d.Status
	}
	if s.Target == "" {
		s.Target = d.Target
	}
	if len(s.Resolution) == 0 {
		s.Resolution = d.Resolution
	}
	if len(s.ResolutionScanAttrs) == 0 {
		s.ResolutionScanAttrs = d.ResolutionScanAttrs
	}
	if s.StatusLabel == "" {
		s.StatusLabel = d.StatusLabel
	}
	if s.ResolvedDate == "" {
		s.ResolvedDate = d.ResolvedDate
	}
	if s.DatedButton == "" {
		s.DatedButton = d.DatedButton
	}
	if len(s.DropdownOpen) == 0 {
		s.DropdownOpen = d.DropdownOpen
	}
	if s.SlotID == "" {
		s.SlotID = d.SlotID
	}
	if s.BadgeID == "" {
		s.BadgeID = d.BadgeID
	}
	return s
}
