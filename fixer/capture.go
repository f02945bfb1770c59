package fixer

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/statusfixer/dom/htmldom"
	"github.com/hazyhaar/statusfixer/patcher"
)

// CheckCapture runs one rescan over a saved page and returns the outcome
// and the patched markup. Only unparseable input is an error.
func (f *Fixer) CheckCapture(page string) (patcher.Result, string, error) {
	return CheckCapture(f.patcher, page)
}

// CheckCapture is the offline form: no browser, no scheduler.
func CheckCapture(p *patcher.Patcher, page string) (patcher.Result, string, error) {
	doc, err := htmldom.Parse(strings.NewReader(page))
	if err != nil {
		return patcher.Result{}, "", fmt.Errorf("fixer: parse capture: %w", err)
	}
	var st patcher.State
	res := p.Rescan(doc, &st)
	return res, doc.String(), nil
}
