// Package roddom implements dom.Document over a live Chrome page through
// go-rod. Every element method is a single Runtime.callFunctionOn against
// the element's remote object.
package roddom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"

	"github.com/hazyhaar/statusfixer/dom"
)

// Document wraps a rod page.
type Document struct {
	page   *rod.Page
	logger *slog.Logger

	mu        sync.Mutex
	subs      map[string]dom.MutationFunc
	nextSub   int
	listening bool
	cancel    context.CancelFunc
}

var (
	_ dom.Document   = (*Document)(nil)
	_ dom.Observable = (*Document)(nil)
	_ dom.Element    = (*Element)(nil)
)

// New wraps page. logger may be nil.
func New(page *rod.Page, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	return &Document{
		page:   page,
		logger: logger,
		subs:   make(map[string]dom.MutationFunc),
	}
}

// Page returns the underlying rod page.
func (d *Document) Page() *rod.Page { return d.page }

func (d *Document) Query(sel string) (dom.Element, error) {
	els, err := d.page.Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", sel, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return d.wrap(els[0]), nil
}

func (d *Document) QueryAll(sel string) ([]dom.Element, error) {
	els, err := d.page.Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", sel, err)
	}
	return d.wrapAll(els), nil
}

func (d *Document) Body() dom.Element {
	el, err := d.Query("body")
	if err != nil {
		d.logger.Debug("roddom: body lookup failed", "error", err)
		return nil
	}
	return el
}

func (d *Document) CreateElement(tag, id string) (dom.Element, error) {
	el, err := d.page.ElementByJS(rod.Eval(`(tag, id) => {
		const el = document.createElement(tag);
		if (id) el.id = id;
		return el;
	}`, tag, id))
	if err != nil {
		return nil, fmt.Errorf("roddom: create %s: %w", tag, err)
	}
	return d.wrap(el), nil
}

// Close drops every subscription and stops the binding listener.
func (d *Document) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = make(map[string]dom.MutationFunc)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.listening = false
}

func (d *Document) wrap(el *rod.Element) *Element {
	return &Element{doc: d, el: el}
}

func (d *Document) wrapAll(els rod.Elements) []dom.Element {
	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = d.wrap(el)
	}
	return out
}

// Element wraps a rod element.
type Element struct {
	doc *Document
	el  *rod.Element
}

// Rod returns the underlying rod element.
func (e *Element) Rod() *rod.Element { return e.el }

func (e *Element) Query(sel string) (dom.Element, error) {
	els, err := e.el.Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", sel, err)
	}
	if len(els) == 0 {
		return nil, nil
	}
	return e.doc.wrap(els[0]), nil
}

func (e *Element) QueryAll(sel string) ([]dom.Element, error) {
	els, err := e.el.Elements(sel)
	if err != nil {
		return nil, fmt.Errorf("roddom: query %q: %w", sel, err)
	}
	return e.doc.wrapAll(els), nil
}

func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil {
		e.doc.logger.Debug("roddom: attribute", "name", name, "error", err)
		return "", false
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

func (e *Element) HasClass(name string) bool {
	res, err := e.el.Eval(`(c) => this.classList.contains(c)`, name)
	if err != nil {
		e.doc.logger.Debug("roddom: classList", "error", err)
		return false
	}
	return res.Value.Bool()
}

func (e *Element) TextContent() string {
	return e.str(`() => this.textContent || ""`)
}

func (e *Element) InnerText() string {
	return e.str(`() => this.innerText || ""`)
}

func (e *Element) InnerHTML() string {
	return e.str(`() => this.innerHTML`)
}

func (e *Element) SetInnerHTML(markup string) error {
	return e.call(`(m) => { this.innerHTML = m; }`, markup)
}

func (e *Element) Style(prop string) string {
	return e.str(`(p) => this.style.getPropertyValue(p)`, prop)
}

func (e *Element) SetStyle(prop, value string) error {
	return e.call(`(p, v) => {
		if (v) this.style.setProperty(p, v);
		else this.style.removeProperty(p);
	}`, prop, value)
}

func (e *Element) Contains(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	res, err := e.el.Eval(`(o) => this.contains(o)`, o.el.Object)
	if err != nil {
		e.doc.logger.Debug("roddom: contains", "error", err)
		return false
	}
	return res.Value.Bool()
}

func (e *Element) AppendChild(child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c == nil {
		return fmt.Errorf("roddom: child is not a roddom element")
	}
	return e.call(`(c) => { this.appendChild(c); }`, c.el.Object)
}

func (e *Element) Prepend(child dom.Element) error {
	c, ok := child.(*Element)
	if !ok || c == nil {
		return fmt.Errorf("roddom: child is not a roddom element")
	}
	return e.call(`(c) => { this.insertBefore(c, this.firstChild); }`, c.el.Object)
}

func (e *Element) str(js string, args ...interface{}) string {
	res, err := e.el.Eval(js, args...)
	if err != nil {
		e.doc.logger.Debug("roddom: eval", "error", err)
		return ""
	}
	return res.Value.Str()
}

func (e *Element) call(js string, args ...interface{}) error {
	if _, err := e.el.Eval(js, args...); err != nil {
		return fmt.Errorf("roddom: eval: %w", err)
	}
	return nil
}
