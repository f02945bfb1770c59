// Package dom defines the document model the patcher works against.
//
// Two backends implement it: htmldom (a parsed x/net/html tree, used for
// saved page captures and tests) and roddom (a live Chrome page driven over
// CDP). The patcher never sees which one it is talking to.
//
// Reads are total: a failed read returns the zero value. Only lookups with a
// rejected selector and mutations report errors.
package dom

// Queryable is anything that supports CSS lookups over its descendants.
type Queryable interface {
	// Query returns the first descendant matching sel, or nil.
	// A selector the engine rejects returns an error.
	Query(sel string) (Element, error)
	// QueryAll returns all descendants matching sel in document order.
	QueryAll(sel string) ([]Element, error)
}

// Element is a handle on a single element node.
type Element interface {
	Queryable

	Attr(name string) (string, bool)
	HasClass(name string) bool

	// TextContent is the concatenated text of all descendant text nodes.
	TextContent() string
	// InnerText approximates rendered text: block boundaries and <br>
	// become newlines, hidden subtrees are skipped.
	InnerText() string

	InnerHTML() string
	SetInnerHTML(markup string) error

	// Style returns an inline style property ("" when unset).
	Style(prop string) string
	// SetStyle sets an inline style property. An empty value removes it.
	SetStyle(prop, value string) error

	// Contains reports whether other is this element or one of its
	// descendants.
	Contains(other Element) bool

	// AppendChild moves child to the end of this element's children.
	AppendChild(child Element) error
	// Prepend moves child before this element's first child.
	Prepend(child Element) error
}

// Document is a whole page.
type Document interface {
	Queryable
	Body() Element
	CreateElement(tag, id string) (Element, error)
}

// MutationKind mirrors MutationRecord.type.
type MutationKind string

const (
	ChildList     MutationKind = "childList"
	Attributes    MutationKind = "attributes"
	CharacterData MutationKind = "characterData"
)

// Mutation is one observed tree change.
type Mutation struct {
	Kind   MutationKind `json:"kind"`
	Target string       `json:"target,omitempty"` // tag name or id of the changed node
}

// MutationFunc receives one batch of mutations.
type MutationFunc func(batch []Mutation)

// Observable delivers childList mutations under a root, subtree included.
type Observable interface {
	ObserveSubtree(root Element, fn MutationFunc) (stop func(), err error)
}
