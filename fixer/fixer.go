// Package fixer keeps a set of Jira issue pages patched in a managed Chrome:
// one session per page, each with its own patch state and rescan
// scheduler. It also exposes the sessions over HTTP and MCP and can patch
// saved page captures offline.
package fixer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/jonboulle/clockwork"

	"github.com/hazyhaar/statusfixer/browser"
	"github.com/hazyhaar/statusfixer/dom"
	"github.com/hazyhaar/statusfixer/dom/roddom"
	"github.com/hazyhaar/statusfixer/idgen"
	"github.com/hazyhaar/statusfixer/patcher"
	"github.com/hazyhaar/statusfixer/patcher/schedule"
)

// ErrUnknownSession is returned for a session id that is not attached.
var ErrUnknownSession = errors.New("fixer: unknown session")

// ErrSessionClosed is returned for a session whose page is gone, for
// instance after a browser recycle that failed to relaunch.
var ErrSessionClosed = errors.New("fixer: session closed")

// Option configures a Fixer.
type Option func(*Fixer)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Fixer) { f.logger = l }
}

// WithClock sets the clock the schedulers use.
func WithClock(c clockwork.Clock) Option {
	return func(f *Fixer) { f.clock = c }
}

// Fixer is the orchestrator. Create one per process.
type Fixer struct {
	cfg     *Config
	mgr     *browser.Manager
	patcher *patcher.Patcher
	logger  *slog.Logger
	clock   clockwork.Clock

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*session
}

// New creates a Fixer. Nothing is launched until Start.
func New(cfg *Config, opts ...Option) *Fixer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	f := &Fixer{
		cfg:      cfg,
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		sessions: make(map[string]*session),
		ctx:      context.Background(),
	}
	for _, o := range opts {
		o(f)
	}
	f.patcher = patcher.New(PatcherOptions(cfg, f.logger))
	f.mgr = browser.NewManager(BrowserOptions(cfg, f.logger))
	return f
}

// Patcher returns the shared patcher.
func (f *Fixer) Patcher() *patcher.Patcher { return f.patcher }

// Browser returns the current Chrome handle, nil before Start.
func (f *Fixer) Browser() *rod.Browser { return f.mgr.Browser() }

// Start launches Chrome and attaches every configured page. A page that
// fails to attach is logged and skipped.
func (f *Fixer) Start(ctx context.Context) error {
	if _, err := f.mgr.Start(ctx); err != nil {
		return fmt.Errorf("fixer: start browser: %w", err)
	}
	f.mu.Lock()
	f.ctx = ctx
	f.mu.Unlock()

	f.mgr.SetRecycleCallback(&browser.RecycleCallback{
		BeforeRecycle: f.detachAll,
		AfterRecycle:  func(*rod.Browser) { f.reattach(ctx) },
	})

	for _, pc := range f.cfg.Pages {
		if err := f.Attach(ctx, pc); err != nil {
			f.logger.Error("fixer: failed to attach page", "id", pc.ID, "url", pc.URL, "error", err)
		}
	}
	return nil
}

// Attach opens pc in a new tab and starts patching it. Attaching an id that
// is already attached replaces the old session.
func (f *Fixer) Attach(ctx context.Context, pc PageConfig) error {
	if pc.ID == "" || pc.URL == "" {
		return fmt.Errorf("fixer: attach: page needs an id and a url")
	}
	tab, err := browser.OpenTab(ctx, f.mgr, pc.URL, pc.ID)
	if err != nil {
		return fmt.Errorf("fixer: attach %s: %w", pc.ID, err)
	}
	doc := roddom.New(tab.Page, f.logger.With("session", pc.ID))

	s, err := f.attachDoc(pc, doc, doc, func() {
		doc.Close()
		if err := tab.Close(); err != nil {
			f.logger.Debug("fixer: close tab", "id", pc.ID, "error", err)
		}
	})
	if err != nil {
		_ = tab.Close()
		return err
	}
	// The injected MutationObserver dies with the document; start over on
	// every load.
	loadCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.tab = tab
	s.stopLoad = cancel
	closed := s.closed
	s.mu.Unlock()
	if closed {
		cancel()
		return nil
	}
	wait := tab.Page.Context(loadCtx).EachEvent(func(*proto.PageLoadEventFired) {
		f.logger.Debug("fixer: page loaded", "id", pc.ID)
		if err := s.restart(); err != nil {
			f.logger.Warn("fixer: restart after load", "id", pc.ID, "error", err)
		}
	})
	go wait()

	f.logger.Info("fixer: patching page", "id", pc.ID, "url", pc.URL)
	return nil
}

// attachDoc registers a session over any document backend.
func (f *Fixer) attachDoc(pc PageConfig, doc dom.Document, obs dom.Observable, closeFn func()) (*session, error) {
	s := &session{
		id:      pc.ID,
		url:     pc.URL,
		page:    pc,
		doc:     doc,
		obs:     obs,
		closeFn: closeFn,
		patcher: f.patcher,
		logger:  f.logger.With("session", pc.ID),
	}
	s.newScheduler = func() *schedule.Scheduler {
		sc := scheduleConfig(f.cfg, f.clock, s.logger)
		sc.IDs = idgen.Prefixed(pc.ID+":", idgen.Default)
		return schedule.New(sc, s.rescan)
	}

	f.mu.Lock()
	old := f.sessions[pc.ID]
	f.sessions[pc.ID] = s
	f.mu.Unlock()
	if old != nil {
		old.close()
	}

	if err := s.restart(); err != nil {
		f.mu.Lock()
		if f.sessions[pc.ID] == s {
			delete(f.sessions, pc.ID)
		}
		f.mu.Unlock()
		s.close()
		return nil, fmt.Errorf("fixer: attach %s: %w", pc.ID, err)
	}
	return s, nil
}

// Detach stops patching id and closes its tab.
func (f *Fixer) Detach(id string) error {
	f.mu.Lock()
	s := f.sessions[id]
	delete(f.sessions, id)
	f.mu.Unlock()
	if s == nil {
		return ErrUnknownSession
	}
	s.close()
	return nil
}

// Rescan runs one rescan of id now and returns the updated session.
func (f *Fixer) Rescan(id string) (SessionInfo, error) {
	s := f.session(id)
	if s == nil {
		return SessionInfo{}, ErrUnknownSession
	}
	if !s.rescanNow() {
		return SessionInfo{}, fmt.Errorf("fixer: rescan %s: %w", id, ErrSessionClosed)
	}
	return s.info(), nil
}

// Session returns one session's status.
func (f *Fixer) Session(id string) (SessionInfo, error) {
	s := f.session(id)
	if s == nil {
		return SessionInfo{}, ErrUnknownSession
	}
	return s.info(), nil
}

// Sessions lists every session, ordered by id.
func (f *Fixer) Sessions() []SessionInfo {
	f.mu.Lock()
	list := make([]*session, 0, len(f.sessions))
	for _, s := range f.sessions {
		list = append(list, s)
	}
	f.mu.Unlock()

	out := make([]SessionInfo, len(list))
	for i, s := range list {
		out[i] = s.info()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Stop detaches every session and shuts Chrome down.
func (f *Fixer) Stop() {
	f.detachAll()
	if err := f.mgr.Close(); err != nil {
		f.logger.Warn("fixer: close browser", "error", err)
	}
}

// Snapshot serialises the session's document, patches included.
func (f *Fixer) Snapshot(ctx context.Context, id string) (string, error) {
	s := f.session(id)
	if s == nil {
		return "", ErrUnknownSession
	}
	s.mu.Lock()
	tab := s.tab
	s.mu.Unlock()
	if tab != nil {
		return tab.HTML(ctx)
	}
	if r, ok := s.doc.(interface{ String() string }); ok {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return r.String(), nil
	}
	return "", fmt.Errorf("fixer: session %s cannot be serialised", id)
}

func (f *Fixer) session(id string) *session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *Fixer) detachAll() {
	f.mu.Lock()
	list := make([]*session, 0, len(f.sessions))
	for _, s := range f.sessions {
		list = append(list, s)
	}
	f.mu.Unlock()
	for _, s := range list {
		s.close()
	}
}

// reattach reopens every known page after a browser recycle.
func (f *Fixer) reattach(ctx context.Context) {
	f.mu.Lock()
	pages := make([]PageConfig, 0, len(f.sessions))
	for _, s := range f.sessions {
		pages = append(pages, s.page)
	}
	f.mu.Unlock()

	for _, pc := range pages {
		if err := f.Attach(ctx, pc); err != nil {
			f.logger.Error("fixer: reattach failed", "id", pc.ID, "error", err)
		}
	}
}

// SessionInfo is the externally visible state of a session.
type SessionInfo struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Runs        uint64         `json:"runs"`
	LastTrigger string         `json:"last_trigger,omitempty"`
	LastRescan  time.Time      `json:"last_rescan,omitzero"`
	LastResult  patcher.Result `json:"last_result"`
	BadgeText   string         `json:"badge_text,omitempty"`
}

type session struct {
	id   string
	url  string
	page PageConfig

	doc     dom.Document
	obs     dom.Observable
	tab     *browser.Tab
	closeFn func()

	patcher      *patcher.Patcher
	newScheduler func() *schedule.Scheduler
	logger       *slog.Logger

	// runMu serializes rescans across scheduler restarts; state is only
	// touched under it.
	runMu sync.Mutex
	state patcher.State

	mu          sync.Mutex
	sched       *schedule.Scheduler
	runs        uint64
	lastTrigger schedule.Trigger
	lastAt      time.Time
	lastResult  patcher.Result
	badgeText   string
	stopLoad    context.CancelFunc
	closed      bool
}

// restart replaces the scheduler. The new one runs its load rescan before
// restart returns.
func (s *session) restart() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session %s is closed", s.id)
	}
	old := s.sched
	sched := s.newScheduler()
	s.sched = sched
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	var root dom.Element
	if s.obs != nil {
		root = s.doc.Body()
	}
	if root == nil {
		return sched.Start(nil, nil)
	}
	return sched.Start(s.obs, root)
}

func (s *session) rescan(id string, trigger schedule.Trigger) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	res := s.patcher.Rescan(s.doc, &s.state)

	s.mu.Lock()
	s.runs++
	s.lastTrigger = trigger
	s.lastAt = time.Now()
	s.lastResult = res
	s.badgeText = s.state.LastText
	s.mu.Unlock()

	s.logger.Debug("fixer: rescan",
		"rescan_id", id,
		"trigger", trigger,
		"skipped", res.Skipped,
		"moved", res.Moved,
		"badge", res.Badge,
		"text", res.Text)
}

// rescanNow reports false when the session is closed.
func (s *session) rescanNow() bool {
	s.mu.Lock()
	sched, closed := s.sched, s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	if sched != nil {
		sched.RescanNow()
	}
	return true
}

func (s *session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.id,
		URL:         s.url,
		Runs:        s.runs,
		LastTrigger: string(s.lastTrigger),
		LastRescan:  s.lastAt,
		LastResult:  s.lastResult,
		BadgeText:   s.badgeText,
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	sched := s.sched
	s.sched = nil
	stopLoad := s.stopLoad
	s.mu.Unlock()

	if stopLoad != nil {
		stopLoad()
	}
	if sched != nil {
		sched.Stop()
	}
	if s.closeFn != nil {
		s.closeFn()
	}
}
