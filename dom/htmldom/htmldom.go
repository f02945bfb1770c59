// Package htmldom implements dom.Document over a parsed golang.org/x/net/html
// tree, with CSS selectors compiled by cascadia.
//
// The tree is not safe for concurrent mutation; callers serialize rescans.
// Observer bookkeeping and the revision counter are safe to read from any
// goroutine.
package htmldom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/statusfixer/dom"
)

// Document is a mutable parsed HTML page.
type Document struct {
	root *html.Node

	selMu sync.Mutex
	sels  map[string]cascadia.Selector

	mu        sync.Mutex
	revision  uint64
	observers map[int]*observer
	nextObs   int
}

type observer struct {
	root *html.Node
	fn   dom.MutationFunc
}

var (
	_ dom.Document   = (*Document)(nil)
	_ dom.Observable = (*Document)(nil)
	_ dom.Element    = (*Element)(nil)
)

// Parse reads a full HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldom: parse: %w", err)
	}
	return &Document{
		root:      root,
		sels:      make(map[string]cascadia.Selector),
		observers: make(map[int]*observer),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render writes the current tree.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the current tree, or "" on error.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

// Revision counts effective mutations since parse. Writes that leave the
// tree unchanged do not bump it.
func (d *Document) Revision() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.revision
}

func (d *Document) compile(sel string) (cascadia.Selector, error) {
	d.selMu.Lock()
	defer d.selMu.Unlock()
	if s, ok := d.sels[sel]; ok {
		return s, nil
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("htmldom: selector %q: %w", sel, err)
	}
	d.sels[sel] = s
	return s, nil
}

func (d *Document) Query(sel string) (dom.Element, error) {
	return d.queryUnder(d.root, sel)
}

func (d *Document) QueryAll(sel string) ([]dom.Element, error) {
	return d.queryAllUnder(d.root, sel)
}

// queryUnder matches descendants of n, never n itself.
func (d *Document) queryUnder(n *html.Node, sel string) (dom.Element, error) {
	s, err := d.compile(sel)
	if err != nil {
		return nil, err
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := s.MatchFirst(c); m != nil {
			return d.wrap(m), nil
		}
	}
	return nil, nil
}

func (d *Document) queryAllUnder(n *html.Node, sel string) ([]dom.Element, error) {
	s, err := d.compile(sel)
	if err != nil {
		return nil, err
	}
	var out []dom.Element
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		for _, m := range s.MatchAll(c) {
			out = append(out, d.wrap(m))
		}
	}
	return out, nil
}

func (d *Document) wrap(n *html.Node) *Element {
	return &Element{doc: d, n: n}
}

// Body returns the <body> element, or nil for fragments without one.
func (d *Document) Body() dom.Element {
	if b := findAtom(d.root, atom.Body); b != nil {
		return d.wrap(b)
	}
	return nil
}

// CreateElement returns a detached element with the given id.
func (d *Document) CreateElement(tag, id string) (dom.Element, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return nil, errors.New("htmldom: create element: empty tag")
	}
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	if id != "" {
		n.Attr = []html.Attribute{{Key: "id", Val: id}}
	}
	return d.wrap(n), nil
}

// ObserveSubtree subscribes fn to childList mutations at or below root.
// Delivery is synchronous, one single-record batch per change.
func (d *Document) ObserveSubtree(root dom.Element, fn dom.MutationFunc) (func(), error) {
	el, ok := root.(*Element)
	if !ok || el == nil {
		return nil, errors.New("htmldom: observe: root is not an htmldom element")
	}
	d.mu.Lock()
	id := d.nextObs
	d.nextObs++
	d.observers[id] = &observer{root: el.n, fn: fn}
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers, id)
			d.mu.Unlock()
		})
	}, nil
}

// record bumps the revision and, for childList changes, notifies observers
// whose root contains target.
func (d *Document) record(kind dom.MutationKind, target *html.Node) {
	d.mu.Lock()
	d.revision++
	var fns []dom.MutationFunc
	if kind == dom.ChildList {
		for _, o := range d.observers {
			if contains(o.root, target) {
				fns = append(fns, o.fn)
			}
		}
	}
	d.mu.Unlock()

	batch := []dom.Mutation{{Kind: kind, Target: describe(target)}}
	for _, fn := range fns {
		fn(batch)
	}
}

func describe(n *html.Node) string {
	if n == nil {
		return ""
	}
	if id := attr(n, "id"); id != "" {
		return n.Data + "#" + id
	}
	return n.Data
}

func findAtom(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if f := findAtom(c, a); f != nil {
			return f
		}
	}
	return nil
}

func contains(ancestor, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == ancestor {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
