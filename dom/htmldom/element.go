package htmldom

import (
	"errors"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/statusfixer/dom"
)

// Element wraps one element node of a Document.
type Element struct {
	doc *Document
	n   *html.Node
}

// Node exposes the underlying x/net/html node.
func (e *Element) Node() *html.Node { return e.n }

func (e *Element) Query(sel string) (dom.Element, error) {
	return e.doc.queryUnder(e.n, sel)
}

func (e *Element) QueryAll(sel string) ([]dom.Element, error) {
	return e.doc.queryAllUnder(e.n, sel)
}

func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *Element) HasClass(name string) bool {
	class, _ := e.Attr("class")
	for _, c := range strings.Fields(class) {
		if c == name {
			return true
		}
	}
	return false
}

func (e *Element) TextContent() string {
	return textContent(e.n)
}

func (e *Element) InnerText() string {
	return innerText(e.n)
}

func (e *Element) InnerHTML() string {
	var b strings.Builder
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return ""
		}
	}
	return b.String()
}

func (e *Element) SetInnerHTML(markup string) error {
	var nodes []*html.Node
	if markup != "" {
		var err error
		nodes, err = html.ParseFragment(strings.NewReader(markup), e.n)
		if err != nil {
			return err
		}
	}
	var rendered strings.Builder
	for _, c := range nodes {
		if err := html.Render(&rendered, c); err != nil {
			return err
		}
	}
	if rendered.String() == e.InnerHTML() {
		return nil
	}
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	for _, c := range nodes {
		e.n.AppendChild(c)
	}
	e.doc.record(dom.ChildList, e.n)
	return nil
}

func (e *Element) Style(prop string) string {
	for _, d := range parseStyle(attr(e.n, "style")) {
		if d.prop == prop {
			return d.value
		}
	}
	return ""
}

func (e *Element) SetStyle(prop, value string) error {
	prop = strings.ToLower(strings.TrimSpace(prop))
	if prop == "" {
		return errors.New("htmldom: set style: empty property")
	}
	decls := parseStyle(attr(e.n, "style"))
	out := decls[:0:0]
	found := false
	for _, d := range decls {
		if d.prop != prop {
			out = append(out, d)
			continue
		}
		found = true
		if value != "" {
			out = append(out, styleDecl{prop: prop, value: value})
		}
	}
	if !found && value != "" {
		out = append(out, styleDecl{prop: prop, value: value})
	}

	next := formatStyle(out)
	prev, had := e.Attr("style")
	if next == prev && (had || next == "") {
		return nil
	}
	e.setAttr("style", next)
	e.doc.record(dom.Attributes, e.n)
	return nil
}

func (e *Element) setAttr(key, val string) {
	for i, a := range e.n.Attr {
		if a.Key == key {
			if val == "" && key == "style" {
				e.n.Attr = append(e.n.Attr[:i], e.n.Attr[i+1:]...)
				return
			}
			e.n.Attr[i].Val = val
			return
		}
	}
	if val == "" && key == "style" {
		return
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: key, Val: val})
}

func (e *Element) Contains(other dom.Element) bool {
	o, ok := other.(*Element)
	if !ok || o == nil {
		return false
	}
	return contains(e.n, o.n)
}

func (e *Element) AppendChild(child dom.Element) error {
	c, err := e.adopt(child)
	if err != nil {
		return err
	}
	if c.Parent == e.n && c.NextSibling == nil {
		return nil
	}
	e.detach(c)
	e.n.AppendChild(c)
	e.doc.record(dom.ChildList, e.n)
	return nil
}

func (e *Element) Prepend(child dom.Element) error {
	c, err := e.adopt(child)
	if err != nil {
		return err
	}
	if e.n.FirstChild == c {
		return nil
	}
	e.detach(c)
	if e.n.FirstChild == nil {
		e.n.AppendChild(c)
	} else {
		e.n.InsertBefore(c, e.n.FirstChild)
	}
	e.doc.record(dom.ChildList, e.n)
	return nil
}

func (e *Element) adopt(child dom.Element) (*html.Node, error) {
	c, ok := child.(*Element)
	if !ok || c == nil {
		return nil, errors.New("htmldom: child is not an htmldom element")
	}
	if c.doc != e.doc {
		return nil, errors.New("htmldom: child belongs to another document")
	}
	if contains(c.n, e.n) {
		return nil, errors.New("htmldom: child is an ancestor of the new parent")
	}
	return c.n, nil
}

func (e *Element) detach(c *html.Node) {
	if p := c.Parent; p != nil {
		p.RemoveChild(c)
		e.doc.record(dom.ChildList, p)
	}
}

type styleDecl struct {
	prop, value string
}

func parseStyle(s string) []styleDecl {
	var out []styleDecl
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		value = strings.TrimSpace(value)
		if prop == "" {
			continue
		}
		out = append(out, styleDecl{prop: prop, value: value})
	}
	return out
}

func formatStyle(decls []styleDecl) string {
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.prop + ": " + d.value + ";"
	}
	return strings.Join(parts, " ")
}
