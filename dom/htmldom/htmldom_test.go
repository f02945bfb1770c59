package htmldom

import (
	"strings"
	"testing"

	"github.com/hazyhaar/statusfixer/dom"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := ParseString(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestQuery_DescendantsOnly(t *testing.T) {
	d := mustParse(t, `<div id="a" class="x"><div id="b" class="x"></div></div>`)
	a, err := d.Query("#a")
	if err != nil || a == nil {
		t.Fatalf("Query(#a): %v %v", a, err)
	}
	got, err := a.Query(".x")
	if err != nil {
		t.Fatal(err)
	}
	if id, _ := got.Attr("id"); id != "b" {
		t.Errorf("scoped query: got id %q, want %q", id, "b")
	}
}

func TestQuery_NoMatchIsNil(t *testing.T) {
	d := mustParse(t, `<p>hi</p>`)
	el, err := d.Query("#missing")
	if err != nil {
		t.Fatal(err)
	}
	if el != nil {
		t.Errorf("Query(#missing): got %v, want nil", el)
	}
}

func TestQuery_RejectedSelector(t *testing.T) {
	d := mustParse(t, `<p>hi</p>`)
	if _, err := d.Query("[[nope"); err == nil {
		t.Error("Query with bad selector: want error")
	}
}

func TestQuery_HasAndSubstring(t *testing.T) {
	d := mustParse(t, `<div data-testid="x-resolution-y"><button aria-expanded="true">v</button></div>`)
	el, err := d.Query(`[data-testid*="resolution"]:has(button[aria-expanded="true"])`)
	if err != nil {
		t.Fatal(err)
	}
	if el == nil {
		t.Error(":has selector: want match")
	}
}

func TestInnerText_BlocksAndBreaks(t *testing.T) {
	d := mustParse(t, `<div id="r"><span>Done</span><div>Fixed</div>a<br>b<span style="display:none">hidden</span></div>`)
	el, _ := d.Query("#r")
	got := el.InnerText()
	want := "Done\nFixed\na\nb"
	if got != want {
		t.Errorf("InnerText: got %q, want %q", got, want)
	}
	if tc := el.TextContent(); !strings.Contains(tc, "hidden") {
		t.Errorf("TextContent: got %q, want hidden text included", tc)
	}
}

func TestInnerText_HiddenRootFallsBackToText(t *testing.T) {
	d := mustParse(t, `<div id="r" style="display: none"><span>Done</span></div>`)
	el, _ := d.Query("#r")
	if got := el.InnerText(); got != "Done" {
		t.Errorf("InnerText: got %q, want %q", got, "Done")
	}
}

func TestSetStyle_NoOpDoesNotBumpRevision(t *testing.T) {
	d := mustParse(t, `<div id="r"></div>`)
	el, _ := d.Query("#r")
	if err := el.SetStyle("display", "none"); err != nil {
		t.Fatal(err)
	}
	rev := d.Revision()
	if err := el.SetStyle("display", "none"); err != nil {
		t.Fatal(err)
	}
	if d.Revision() != rev {
		t.Errorf("Revision: got %d, want %d", d.Revision(), rev)
	}
	if got := el.Style("display"); got != "none" {
		t.Errorf("Style: got %q, want %q", got, "none")
	}
	if err := el.SetStyle("display", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := el.Attr("style"); ok {
		t.Error("style attribute should be removed when empty")
	}
}

func TestMoveAndObserve(t *testing.T) {
	d := mustParse(t, `<body><div id="src"><span id="s">S</span></div><div id="dst"><i>x</i></div></body>`)
	var batches [][]dom.Mutation
	stop, err := d.ObserveSubtree(d.Body(), func(b []dom.Mutation) { batches = append(batches, b) })
	if err != nil {
		t.Fatal(err)
	}
	defer stop()

	s, _ := d.Query("#s")
	dst, _ := d.Query("#dst")
	if err := dst.Prepend(s); err != nil {
		t.Fatal(err)
	}
	if !dst.Contains(s) {
		t.Fatal("dst should contain s after Prepend")
	}
	first, _ := dst.Query(":first-child")
	if id, _ := first.Attr("id"); id != "s" {
		t.Errorf("first child: got %q, want %q", id, "s")
	}
	// remove from #src + insert into #dst
	if len(batches) != 2 {
		t.Errorf("batches: got %d, want 2", len(batches))
	}

	stop()
	if err := dst.Prepend(s); err != nil {
		t.Fatal(err)
	}
	if err := dst.AppendChild(s); err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 {
		t.Errorf("batches after stop: got %d, want 2", len(batches))
	}
}

func TestAppendChild_RejectsCycle(t *testing.T) {
	d := mustParse(t, `<div id="p"><div id="c"></div></div>`)
	p, _ := d.Query("#p")
	c, _ := d.Query("#c")
	if err := c.AppendChild(p); err == nil {
		t.Error("AppendChild of ancestor: want error")
	}
}

func TestSetInnerHTML(t *testing.T) {
	d := mustParse(t, `<span id="b"></span>`)
	b, _ := d.Query("#b")
	if err := b.SetInnerHTML(`<span class="k">Fixed</span>`); err != nil {
		t.Fatal(err)
	}
	if got := b.TextContent(); got != "Fixed" {
		t.Errorf("TextContent: got %q, want %q", got, "Fixed")
	}
	rev := d.Revision()
	if err := b.SetInnerHTML(`<span class="k">Fixed</span>`); err != nil {
		t.Fatal(err)
	}
	if d.Revision() != rev {
		t.Error("identical SetInnerHTML should not bump revision")
	}
	if err := b.SetInnerHTML(""); err != nil {
		t.Fatal(err)
	}
	if b.InnerHTML() != "" {
		t.Errorf("InnerHTML: got %q, want empty", b.InnerHTML())
	}
}

func TestCreateElement(t *testing.T) {
	d := mustParse(t, `<body></body>`)
	el, err := d.CreateElement("div", "slot")
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Body().AppendChild(el); err != nil {
		t.Fatal(err)
	}
	if got, _ := d.Query("#slot"); got == nil {
		t.Error("created element not found after append")
	}
}
