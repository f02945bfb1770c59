package patcher

import (
	"fmt"
	"strings"
	"testing"

	"github.com/andybalholm/cascadia"

	"github.com/hazyhaar/statusfixer/dom"
	"github.com/hazyhaar/statusfixer/dom/htmldom"
)

const pageTmpl = `<html><body>
<div data-testid="issue.views.issue-base.context.status-and-approvals-wrapper.status-and-approval"><div class="approvals">Approvals</div></div>
<div class="sidebar"><div data-testid="issue.views.issue-base.foundation.status.status-field-wrapper"><button>In Progress</button></div></div>
<div id="meta">%s</div>
<div id="overlay"></div>
</body></html>`

const resolvedDate = `<span data-testid="resolved-date.ui.read.meta-date">2 days ago</span>`

func page(t *testing.T, meta string) *htmldom.Document {
	t.Helper()
	d, err := htmldom.ParseString(fmt.Sprintf(pageTmpl, meta))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func query(t *testing.T, q dom.Queryable, sel string) dom.Element {
	t.Helper()
	el, err := q.Query(sel)
	if err != nil {
		t.Fatalf("query %s: %v", sel, err)
	}
	if el == nil {
		t.Fatalf("query %s: no match", sel)
	}
	return el
}

func TestRescan_RelocatesStatusIdempotently(t *testing.T) {
	d := page(t, "")
	p := New(Config{})
	var st State

	res := p.Rescan(d, &st)
	if res.Skipped || !res.SlotCreated || !res.Moved {
		t.Fatalf("first rescan: got %+v", res)
	}

	sel := p.Selectors()
	target := query(t, d, sel.Target)
	slot := query(t, target, "*")
	if id, _ := slot.Attr("id"); id != sel.SlotID {
		t.Fatalf("target first child: got id %q, want %q", id, sel.SlotID)
	}
	status := query(t, d, sel.Status)
	if !slot.Contains(status) {
		t.Error("status should be inside the slot")
	}
	if got := slot.Style("padding-top"); got != "8px" {
		t.Errorf("slot padding-top: got %q, want %q", got, "8px")
	}

	rev := d.Revision()
	res = p.Rescan(d, &st)
	if res.SlotCreated || res.Moved {
		t.Errorf("second rescan: got %+v, want no structural change", res)
	}
	if d.Revision() != rev {
		t.Errorf("second rescan mutated the document: revision %d -> %d", rev, d.Revision())
	}
	if n := len(mustAll(t, d, "#"+sel.SlotID)); n != 1 {
		t.Errorf("slots: got %d, want 1", n)
	}
}

func TestRescan_IdempotentWhileShown(t *testing.T) {
	d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>Fixed</span></div>`)
	p := New(Config{})
	var st State
	p.Rescan(d, &st)
	rev := d.Revision()
	res := p.Rescan(d, &st)
	if res.Badge != BadgeShown {
		t.Fatalf("Badge: got %q, want %q", res.Badge, BadgeShown)
	}
	if d.Revision() != rev {
		t.Errorf("second rescan mutated the document: revision %d -> %d", rev, d.Revision())
	}
}

func TestRescan_SkipsWhenMarkersMissing(t *testing.T) {
	d, err := htmldom.ParseString(`<html><body><div>nothing here</div></body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	res := New(Config{}).Rescan(d, &State{})
	if !res.Skipped || res.Badge != BadgeUntouched {
		t.Errorf("got %+v, want skipped", res)
	}
	if d.Revision() != 0 {
		t.Errorf("Revision: got %d, want 0", d.Revision())
	}
}

func TestRescan_RejectedSelectorIsNoMatch(t *testing.T) {
	d := page(t, "")
	p := New(Config{Selectors: Selectors{Status: "[[broken"}})
	res := p.Rescan(d, &State{})
	if !res.Skipped {
		t.Errorf("got %+v, want skipped", res)
	}
}

func TestRescan_FixedWithResolvedDate(t *testing.T) {
	d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>Fixed</span></div>`)
	p := New(Config{})
	var st State

	res := p.Rescan(d, &st)
	if res.Badge != BadgeShown || res.Text != "Fixed" {
		t.Fatalf("got %+v, want shown Fixed", res)
	}
	badge := query(t, d, "#"+p.Selectors().BadgeID)
	if got := strings.TrimSpace(badge.TextContent()); got != "Fixed" {
		t.Errorf("badge text: got %q, want %q", got, "Fixed")
	}
	if got := badge.Style("display"); got != "inline-flex" {
		t.Errorf("badge display: got %q, want %q", got, "inline-flex")
	}
	if icon, _ := badge.Query("svg"); icon == nil {
		t.Error("badge icon: want svg")
	}
	if st.LastText != "Fixed" {
		t.Errorf("LastText: got %q, want %q", st.LastText, "Fixed")
	}
	source := query(t, d, `[data-testid="issue-field-resolution"]`)
	if got := source.Style("display"); got != "" {
		t.Errorf("editable source display: got %q, want unchanged", got)
	}
}

func TestRescan_Unresolved(t *testing.T) {
	d := page(t, `<div data-testid="issue-field-resolution"><span>Unresolved</span></div>`)
	p := New(Config{})
	st := State{LastText: "Fixed"}

	res := p.Rescan(d, &st)
	if res.Badge != BadgeHidden {
		t.Fatalf("Badge: got %q, want %q", res.Badge, BadgeHidden)
	}
	badge := query(t, d, "#"+p.Selectors().BadgeID)
	if badge.InnerHTML() != "" {
		t.Errorf("badge markup: got %q, want empty", badge.InnerHTML())
	}
	if got := badge.Style("display"); got != "none" {
		t.Errorf("badge display: got %q, want none", got)
	}
	source := query(t, d, `[data-testid="issue-field-resolution"]`)
	if got := source.Style("display"); got != "" {
		t.Errorf("source display: got %q, want shown", got)
	}
	if st.LastText != "" {
		t.Errorf("LastText: got %q, want empty", st.LastText)
	}
}

func TestRescan_ReadOnlySourceHiddenThenRestored(t *testing.T) {
	d := page(t, `<div id="dates">`+resolvedDate+`</div><div data-testid="issue-field-resolution"><span data-testid="issue-field-resolution.ui.read.resolution-status-label">Won't Do</span></div>`)
	p := New(Config{})
	var st State

	res := p.Rescan(d, &st)
	if res.Badge != BadgeShown || res.Text != "Won't Do" {
		t.Fatalf("got %+v, want shown Won't Do", res)
	}
	source := query(t, d, `[data-testid="issue-field-resolution"]`)
	if got := source.Style("display"); got != "none" {
		t.Errorf("read-only source display: got %q, want none", got)
	}

	if err := source.SetInnerHTML(`<span data-testid="issue-field-resolution.ui.read.resolution-status-label">Unresolved</span>`); err != nil {
		t.Fatal(err)
	}
	if err := query(t, d, "#dates").SetInnerHTML(""); err != nil {
		t.Fatal(err)
	}
	res = p.Rescan(d, &st)
	if res.Badge != BadgeHidden {
		t.Fatalf("Badge: got %q, want %q", res.Badge, BadgeHidden)
	}
	if got := source.Style("display"); got != "" {
		t.Errorf("source display after hide: got %q, want restored", got)
	}
}

func TestRescan_OpenDropdownLeavesBadge(t *testing.T) {
	d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>Fixed</span></div>`)
	p := New(Config{})
	var st State
	p.Rescan(d, &st)

	source := query(t, d, `[data-testid="issue-field-resolution"]`)
	if err := source.SetInnerHTML(`<span>Duplicate</span>`); err != nil {
		t.Fatal(err)
	}
	if err := query(t, d, "#overlay").SetInnerHTML(`<div role="listbox" aria-expanded="true"></div>`); err != nil {
		t.Fatal(err)
	}

	rev := d.Revision()
	res := p.Rescan(d, &st)
	if res.Badge != BadgeEditing {
		t.Fatalf("Badge: got %q, want %q", res.Badge, BadgeEditing)
	}
	if d.Revision() != rev {
		t.Error("editing rescan should not touch the document")
	}
	badge := query(t, d, "#"+p.Selectors().BadgeID)
	if got := strings.TrimSpace(badge.TextContent()); got != "Fixed" {
		t.Errorf("badge text: got %q, want stale %q", got, "Fixed")
	}
	if st.LastText != "Fixed" {
		t.Errorf("LastText: got %q, want %q", st.LastText, "Fixed")
	}
}

func TestRescan_TextChangeRewritesBadge(t *testing.T) {
	d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>Fixed</span></div>`)
	p := New(Config{})
	var st State
	p.Rescan(d, &st)

	source := query(t, d, `[data-testid="issue-field-resolution"]`)
	if err := source.SetInnerHTML(`<span>Duplicate</span>`); err != nil {
		t.Fatal(err)
	}
	res := p.Rescan(d, &st)
	if res.Text != "Duplicate" || st.LastText != "Duplicate" {
		t.Errorf("got %+v / %q, want Duplicate", res, st.LastText)
	}
}

func TestRescan_BadgeTextIsEscaped(t *testing.T) {
	d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>&lt;b&gt;x&lt;/b&gt;</span></div>`)
	p := New(Config{})
	res := p.Rescan(d, &State{})
	if res.Badge != BadgeShown {
		t.Fatalf("Badge: got %q", res.Badge)
	}
	badge := query(t, d, "#"+p.Selectors().BadgeID)
	if el, _ := badge.Query("b"); el != nil {
		t.Error("resolution text must not inject markup into the badge")
	}
	if got := strings.TrimSpace(badge.TextContent()); got != "<b>x</b>" {
		t.Errorf("badge text: got %q, want %q", got, "<b>x</b>")
	}
}

func TestEditing_EachDropdownSelector(t *testing.T) {
	overlays := map[string]string{
		`[data-testid*="dropdown"][aria-expanded="true"]`:               `<div data-testid="menu-dropdown" aria-expanded="true"></div>`,
		`[role="listbox"][aria-expanded="true"]`:                        `<div role="listbox" aria-expanded="true"></div>`,
		`.ak-dropdown-menu[style*="display: block"]`:                    `<div class="ak-dropdown-menu" style="display: block"></div>`,
		`[data-testid*="resolution"][aria-expanded="true"]`:             `<div data-testid="resolution-picker" aria-expanded="true"></div>`,
		`[aria-expanded="true"][data-testid*="select"]`:                 `<div aria-expanded="true" data-testid="field-select"></div>`,
		`.ak-select__menu[style*="display: block"]`:                     `<div class="ak-select__menu" style="display: block"></div>`,
		`[data-testid*="popup"][style*="display: block"]`:               `<div data-testid="inline-popup" style="display: block"></div>`,
		`[data-testid*="resolution"] [aria-expanded="true"]`:            `<div data-testid="resolution-field"><span aria-expanded="true"></span></div>`,
		`[data-testid*="resolution"] .ak-dropdown-menu`:                 `<div data-testid="resolution-field"><div class="ak-dropdown-menu"></div></div>`,
		`[data-testid*="resolution"]:has(button[aria-expanded="true"])`: `<div data-testid="resolution-field"><button aria-expanded="true"></button></div>`,
	}

	defaults := DefaultSelectors().DropdownOpen
	if len(defaults) != len(overlays) {
		t.Fatalf("DropdownOpen: got %d selectors, want %d", len(defaults), len(overlays))
	}
	for _, sel := range defaults {
		t.Run(sel, func(t *testing.T) {
			if _, err := cascadia.Compile(sel); err != nil {
				t.Fatalf("compile: %v", err)
			}
			overlay, ok := overlays[sel]
			if !ok {
				t.Fatalf("no fixture for %s", sel)
			}

			d := page(t, resolvedDate+`<div data-testid="issue-field-resolution"><span>Fixed</span></div>`)
			p := New(Config{Selectors: Selectors{DropdownOpen: []string{sel}}})
			var st State
			if res := p.Rescan(d, &st); res.Badge != BadgeShown {
				t.Fatalf("before overlay: got %q, want %q", res.Badge, BadgeShown)
			}
			if err := query(t, d, "#overlay").SetInnerHTML(overlay); err != nil {
				t.Fatal(err)
			}
			if res := p.Rescan(d, &st); res.Badge != BadgeEditing {
				t.Errorf("with overlay: got %q, want %q", res.Badge, BadgeEditing)
			}
		})
	}
}

func TestEditing_KeywordThreshold(t *testing.T) {
	d := page(t, `<div data-testid="issue-field-resolution"><span>Done</span> <span>Fixed</span></div>`)
	if !New(Config{}).Editing(d) {
		t.Error("two keywords with default threshold: want editing")
	}
	if New(Config{EditingKeywordThreshold: 3}).Editing(d) {
		t.Error("two keywords with threshold 3: want not editing")
	}
}

func TestEditing_Newline(t *testing.T) {
	d := page(t, `<div data-testid="issue-field-resolution"><div>Resolution</div><div>Done</div></div>`)
	if !New(Config{}).Editing(d) {
		t.Error("multi-line resolution text: want editing")
	}
}

func TestFindResolution_FallbackScan(t *testing.T) {
	d := page(t, `<div aria-label="Issue Resolution picker"><span>Fixed</span></div>`)
	el := New(Config{}).FindResolution(d)
	if el == nil {
		t.Fatal("fallback scan: want match")
	}
	if v, _ := el.Attr("aria-label"); v != "Issue Resolution picker" {
		t.Errorf("aria-label: got %q", v)
	}
}

func TestExtractText_CandidateOrder(t *testing.T) {
	long := strings.Repeat("x", 60)
	cases := []struct {
		name string
		html string
		want string
	}{
		{
			name: "status label wins",
			html: `<div id="r"><button>Other</button><span data-testid="issue-field-resolution.ui.read.resolution-status-label">Done</span></div>`,
			want: "Done",
		},
		{
			name: "single-line button",
			html: `<div id="r"><button>Duplicate</button><span>Other</span></div>`,
			want: "Duplicate",
		},
		{
			name: "multi-line button falls through to spans",
			html: "<div id=\"r\"><button>Done\nnow</button><span>Fixed</span></div>",
			want: "Fixed",
		},
		{
			name: "span filters",
			html: `<div id="r"><span>Resolution</span><span>` + long + `</span><span>Cannot Reproduce</span></div>`,
			want: "Cannot Reproduce",
		},
		{
			name: "full text",
			html: `<div id="r">Resolution: Done as planned</div>`,
			want: "Done",
		},
	}
	p := New(Config{})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := htmldom.ParseString(tc.html)
			if err != nil {
				t.Fatal(err)
			}
			if got := p.ExtractText(query(t, d, "#r")); got != tc.want {
				t.Errorf("ExtractText: got %q, want %q", got, tc.want)
			}
		})
	}
}

func mustAll(t *testing.T, q dom.Queryable, sel string) []dom.Element {
	t.Helper()
	els, err := q.QueryAll(sel)
	if err != nil {
		t.Fatal(err)
	}
	return els
}
