// Package locate finds elements by best-effort matching. Every locator
// swallows selector errors: a rejected selector is the same as no match.
package locate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/statusfixer/dom"
)

// Locator returns the first element it can find under root, or nil.
type Locator interface {
	Locate(root dom.Queryable) dom.Element
}

// CSS locates the first match of a selector.
type CSS string

func (c CSS) Locate(root dom.Queryable) dom.Element {
	return First(root, string(c))
}

func (c CSS) String() string { return string(c) }

// AttrEquals locates [name="value"].
func AttrEquals(name, value string) CSS {
	return CSS(fmt.Sprintf("[%s=%s]", name, strconv.Quote(value)))
}

// AttrContains locates [name*="substr"].
func AttrContains(name, substr string) CSS {
	return CSS(fmt.Sprintf("[%s*=%s]", name, strconv.Quote(substr)))
}

// Scan walks every element carrying one of Attrs and returns the first
// whose value contains Substr, case-insensitively.
type Scan struct {
	Attrs  []string
	Substr string
}

func (s Scan) Locate(root dom.Queryable) dom.Element {
	if len(s.Attrs) == 0 {
		return nil
	}
	sel := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		sel[i] = "[" + a + "]"
	}
	all := All(root, strings.Join(sel, ", "))
	needle := strings.ToLower(s.Substr)
	for _, el := range all {
		for _, a := range s.Attrs {
			v, ok := el.Attr(a)
			if ok && strings.Contains(strings.ToLower(v), needle) {
				return el
			}
		}
	}
	return nil
}

// FirstOf tries each locator in order.
type FirstOf []Locator

func (f FirstOf) Locate(root dom.Queryable) dom.Element {
	for _, l := range f {
		if el := l.Locate(root); el != nil {
			return el
		}
	}
	return nil
}

// First is Query with errors folded into "no match".
func First(root dom.Queryable, sel string) dom.Element {
	if root == nil || sel == "" {
		return nil
	}
	el, err := root.Query(sel)
	if err != nil {
		return nil
	}
	return el
}

// All is QueryAll with errors folded into "no match".
func All(root dom.Queryable, sel string) []dom.Element {
	if root == nil || sel == "" {
		return nil
	}
	els, err := root.QueryAll(sel)
	if err != nil {
		return nil
	}
	return els
}

// Any reports whether any selector in sels matches under root.
func Any(root dom.Queryable, sels []string) bool {
	for _, s := range sels {
		if First(root, s) != nil {
			return true
		}
	}
	return false
}
