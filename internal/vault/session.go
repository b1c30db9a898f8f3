// Package vault holds the interactive lookup flow: typing produces
// suggestions, a commit resolves one product, and a row fetch loads its print
// runs. All mutable state lives in a Session value owned by the caller.
package vault

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
)

// Phase is where a session is in the idle → loading → result/error cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Request identifies one row fetch. Gen orders requests within a session.
type Request struct {
	Gen   uint64
	Entry index.Entry
}

// Response is the result of fetching a Request.
type Response struct {
	Gen   uint64
	Entry index.Entry
	Rows  *backend.Rows
	Err   error
}

// View is a copy of the session state for rendering.
type View struct {
	Query       string
	Suggestions []index.Entry
	Selected    *index.Entry
	Phase       Phase
	Entry       index.Entry
	Rows        *backend.Rows
	Err         error
	Gen         uint64
}

// Session is one user's lookup state. Its methods are safe to call from
// several goroutines, but the flow is meant to be driven by one event loop.
type Session struct {
	catalogs *Catalogs
	lookup   *Lookup
	logger   *zap.Logger

	mu          sync.Mutex
	query       string
	suggestions []index.Entry
	selected    *index.Entry
	gen         uint64
	phase       Phase
	entry       index.Entry
	rows        *backend.Rows
	err         error
}

func NewSession(catalogs *Catalogs, lookup *Lookup, logger *zap.Logger) *Session {
	return &Session{
		catalogs: catalogs,
		lookup:   lookup,
		logger:   logger.Named("session"),
	}
}

// Type records the current query text, drops any selection and returns the
// suggestions for it.
func (s *Session) Type(query string) []index.Entry {
	hits := s.catalogs.Current().Suggest(query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.selected = nil
	s.suggestions = hits
	return hits
}

// Pick selects the entry with the given code, as clicking a suggestion does.
func (s *Session) Pick(code string) (index.Entry, error) {
	entry, ok := s.catalogs.Current().ByCode(code)
	if !ok {
		return index.Entry{}, ErrNoMatch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(entry)
	return entry, nil
}

// Commit settles on one product: the explicit selection if there is one,
// otherwise the best match for the query. With no match the session moves to
// the failed phase with ErrNoMatch.
func (s *Session) Commit() (index.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

func (s *Session) commitLocked() (index.Entry, error) {
	if s.selected != nil {
		return *s.selected, nil
	}

	entry, ok := s.catalogs.Current().Resolve(s.query)
	if !ok {
		s.lookup.metrics.Lookup("no_match")
		s.gen++
		s.phase = PhaseFailed
		s.entry = index.Entry{}
		s.rows = nil
		s.err = ErrNoMatch
		s.suggestions = nil
		return index.Entry{}, ErrNoMatch
	}
	s.lookup.metrics.Lookup("resolved")
	s.selectLocked(entry)
	return entry, nil
}

func (s *Session) selectLocked(entry index.Entry) {
	e := entry
	s.selected = &e
	s.query = entry.DisplayName
	s.suggestions = nil
}

// Begin commits the current input and issues a new request generation. Any
// response for an older generation will be discarded by Apply.
func (s *Session) Begin() (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.commitLocked()
	if err != nil {
		return Request{}, err
	}
	s.gen++
	s.phase = PhaseLoading
	s.entry = entry
	s.rows = nil
	s.err = nil
	return Request{Gen: s.gen, Entry: entry}, nil
}

// Fetch runs the network part of a request. It does not touch session state,
// so it can run off the event loop.
func (s *Session) Fetch(ctx context.Context, req Request) Response {
	rows, err := s.lookup.Fetch(ctx, req.Entry)
	return Response{Gen: req.Gen, Entry: req.Entry, Rows: rows, Err: err}
}

// Apply stores resp if it answers the latest request and reports whether it
// did. Responses for superseded requests are dropped.
func (s *Session) Apply(resp Response) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp.Gen != s.gen {
		s.logger.Debug("Discarding superseded response",
			zap.Uint64("gen", resp.Gen),
			zap.Uint64("latest", s.gen),
			zap.String("code", resp.Entry.Code))
		return false
	}
	s.entry = resp.Entry
	s.rows = resp.Rows
	s.err = resp.Err
	if resp.Err != nil {
		s.phase = PhaseFailed
	} else {
		s.phase = PhaseReady
	}
	return true
}

// Search is Begin, Fetch and Apply in one blocking call.
func (s *Session) Search(ctx context.Context) (*backend.Rows, error) {
	req, err := s.Begin()
	if err != nil {
		return nil, err
	}
	resp := s.Fetch(ctx, req)
	s.Apply(resp)
	return resp.Rows, resp.Err
}

// Clear resets the query, selection and result. In-flight responses become
// stale.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.query = ""
	s.suggestions = nil
	s.selected = nil
	s.phase = PhaseIdle
	s.entry = index.Entry{}
	s.rows = nil
	s.err = nil
}

// View returns a copy of the current state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Query:       s.query,
		Suggestions: append([]index.Entry(nil), s.suggestions...),
		Phase:       s.phase,
		Entry:       s.entry,
		Rows:        s.rows,
		Err:         s.err,
		Gen:         s.gen,
	}
	if s.selected != nil {
		sel := *s.selected
		v.Selected = &sel
	}
	return v
}

// Close waits for background telemetry started by this session's lookups.
func (s *Session) Close() {
	s.lookup.Wait()
}
