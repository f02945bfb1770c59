package roddom

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/statusfixer/dom"
)

const bindingName = "__statusfixer_binding"

// installJS attaches a MutationObserver to `this` under key. Records are
// reduced to {kind, target} and pushed through the CDP binding.
const installJS = `(binding, key) => {
	const reg = window.__statusfixer_observers = window.__statusfixer_observers || {};
	if (reg[key]) return;
	const obs = new MutationObserver((records) => {
		const batch = records.map((r) => {
			const n = r.target;
			let target = n && n.nodeName ? n.nodeName.toLowerCase() : "";
			if (n && n.id) target += "#" + n.id;
			return {kind: r.type, target: target};
		});
		const send = window[binding];
		if (typeof send === "function") send(JSON.stringify({key: key, records: batch}));
	});
	obs.observe(this, {childList: true, subtree: true});
	reg[key] = obs;
}`

const removeJS = `(key) => {
	const reg = window.__statusfixer_observers;
	if (!reg || !reg[key]) return;
	reg[key].disconnect();
	delete reg[key];
}`

type bindingPayload struct {
	Key     string         `json:"key"`
	Records []dom.Mutation `json:"records"`
}

// ObserveSubtree installs a MutationObserver on root. Batches arrive
// asynchronously on the binding listener goroutine.
func (d *Document) ObserveSubtree(root dom.Element, fn dom.MutationFunc) (func(), error) {
	r, ok := root.(*Element)
	if !ok || r == nil {
		return nil, fmt.Errorf("roddom: observe: root is not a roddom element")
	}
	if err := d.listen(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.nextSub++
	key := strconv.Itoa(d.nextSub)
	d.subs[key] = fn
	d.mu.Unlock()

	if _, err := r.el.Eval(installJS, bindingName, key); err != nil {
		d.mu.Lock()
		delete(d.subs, key)
		d.mu.Unlock()
		return nil, fmt.Errorf("roddom: inject observer: %w", err)
	}
	d.logger.Debug("roddom: observer installed", "key", key)

	return func() {
		d.mu.Lock()
		delete(d.subs, key)
		d.mu.Unlock()
		if _, err := d.page.Eval(removeJS, key); err != nil {
			d.logger.Debug("roddom: remove observer", "key", key, "error", err)
		}
	}, nil
}

// listen adds the runtime binding and starts the event loop once per
// document.
func (d *Document) listen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listening {
		return nil
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(d.page); err != nil {
		d.logger.Warn("roddom: addBinding failed (may already exist)", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.listening = true

	wait := d.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		d.dispatch(e.Payload)
	})
	go wait()
	return nil
}

func (d *Document) dispatch(payload string) {
	var p bindingPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		d.logger.Warn("roddom: parse binding payload", "error", err)
		return
	}
	if len(p.Records) == 0 {
		return
	}

	d.mu.Lock()
	fn := d.subs[p.Key]
	d.mu.Unlock()
	if fn != nil {
		fn(p.Records)
	}
}
