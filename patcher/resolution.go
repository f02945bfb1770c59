package patcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/hazyhaar/statusfixer/dom"
	"github.com/hazyhaar/statusfixer/dom/locate"
)

const checkIcon = `<svg width="12" height="12" viewBox="0 0 16 16" fill="none" style="margin-right: 4px;">` +
	`<path fill="currentColor" d="m13.959 3.97-7.25 9a.75.75 0 0 1-1.163.007l-3.5-4.25 1.158-.954 2.914 3.539 6.673-8.283z"></path>` +
	`</svg>`

// FindResolution returns the element carrying the page's resolution, or nil.
func (p *Patcher) FindResolution(doc dom.Document) dom.Element {
	return p.resolution.Locate(doc)
}

func (p *Patcher) syncBadge(doc dom.Document, slot dom.Element, st *State, res *Result) {
	source := p.FindResolution(doc)
	show := p.shouldShow(doc)

	if p.Editing(doc) {
		res.Badge = BadgeEditing
		return
	}

	value := ""
	if source != nil && show {
		value = p.ExtractText(source)
	}

	badge := locate.AttrEquals("id", p.sel.BadgeID).Locate(slot)
	if badge == nil {
		el, err := doc.CreateElement("span", p.sel.BadgeID)
		if err != nil {
			p.logger.Debug("patcher: create badge", "error", err)
			return
		}
		if err := slot.AppendChild(el); err != nil {
			p.logger.Debug("patcher: insert badge", "error", err)
			return
		}
		badge = el
	}

	if show && value != "" {
		if st.LastText != value || badge.InnerHTML() == "" {
			if err := badge.SetInnerHTML(badgeMarkup(value)); err != nil {
				p.logger.Debug("patcher: render badge", "error", err)
			} else {
				st.LastText = value
			}
		}
		p.setStyle(badge, "display", "inline-flex")
		if source != nil && p.readOnly(source) {
			p.setStyle(source, "display", "none")
		}
		res.Badge = BadgeShown
		res.Text = value
		return
	}

	if st.LastText != "" || badge.InnerHTML() != "" {
		if err := badge.SetInnerHTML(""); err != nil {
			p.logger.Debug("patcher: clear badge", "error", err)
		}
	}
	st.LastText = ""
	p.setStyle(badge, "display", "none")
	if source != nil {
		p.setStyle(source, "display", "")
	}
	res.Badge = BadgeHidden
}

// badgeMarkup renders value as text: tag-like labels display verbatim.
func badgeMarkup(value string) string {
	return fmt.Sprintf(`<span class="status-fixer-badge">%s%s</span>`, checkIcon, html.EscapeString(value))
}

// shouldShow applies the three visibility checks; the first positive wins.
func (p *Patcher) shouldShow(doc dom.Document) bool {
	if locate.First(doc, p.sel.ResolvedDate) != nil {
		return true
	}
	if b := locate.First(doc, p.sel.DatedButton); b != nil && strings.TrimSpace(b.TextContent()) != "" {
		return true
	}
	if src := p.FindResolution(doc); src != nil {
		v := p.ExtractText(src)
		if v != "" && !strings.EqualFold(v, "Unresolved") {
			return true
		}
	}
	return false
}

// ExtractText pulls a short display label out of a resolution element.
func (p *Patcher) ExtractText(el dom.Element) string {
	if label := locate.First(el, p.sel.StatusLabel); label != nil {
		return Sanitize(strings.TrimSpace(label.TextContent()))
	}

	if btn := locate.First(el, `button, [role="button"]`); btn != nil {
		t := strings.TrimSpace(btn.TextContent())
		if t != "" && !strings.Contains(t, "\n") {
			return Sanitize(t)
		}
	}

	for _, span := range locate.All(el, "span") {
		t := strings.TrimSpace(span.TextContent())
		if t != "" && !strings.Contains(t, "\n") && utf8.RuneCountInString(t) < 50 && !strings.Contains(t, "Resolution") {
			return Sanitize(t)
		}
	}

	return Sanitize(visibleText(el))
}

// Editing reports whether the resolution UI looks open for editing, in
// which case the badge is left alone.
func (p *Patcher) Editing(doc dom.Document) bool {
	if locate.Any(doc, p.sel.DropdownOpen) {
		return true
	}
	src := p.FindResolution(doc)
	if src == nil {
		return false
	}
	text := src.InnerText()
	if strings.Contains(text, "\n") {
		return true
	}
	return len(p.keywords.FindAllStringIndex(text, -1)) >= p.threshold
}

// readOnly checks the element and its descendants for read-only markers.
func (p *Patcher) readOnly(el dom.Element) bool {
	if el.HasClass("read-only") || locate.First(el, ".read-only") != nil {
		return true
	}
	if _, ok := el.Attr("readonly"); ok || locate.First(el, "[readonly]") != nil {
		return true
	}
	if tid, ok := el.Attr("data-testid"); ok && strings.Contains(tid, "read") {
		return true
	}
	return locate.First(el, `[data-testid*="read"]`) != nil
}

func visibleText(el dom.Element) string {
	if t := strings.TrimSpace(el.InnerText()); t != "" {
		return t
	}
	return strings.TrimSpace(el.TextContent())
}
