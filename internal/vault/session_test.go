package vault

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/aryannaik/printrun-vault/internal/backend"
	"github.com/aryannaik/printrun-vault/internal/index"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type staticSnapshots struct {
	snap *index.Snapshot
}

func (s *staticSnapshots) Current() *index.Snapshot { return s.snap }

type fakeRows struct {
	mu    sync.Mutex
	rows  map[string]*backend.Rows
	err   error
	hang  bool
	calls []string
}

func (f *fakeRows) RowsByCode(ctx context.Context, code string) (*backend.Rows, error) {
	f.mu.Lock()
	f.calls = append(f.calls, code)
	hang, err := f.hang, f.err
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if r, ok := f.rows[code]; ok {
		return r, nil
	}
	return &backend.Rows{}, nil
}

type fakeTelemetry struct {
	mu     sync.Mutex
	events []backend.SearchEvent
	err    error
}

func (f *fakeTelemetry) LogSearch(ctx context.Context, ev backend.SearchEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeTelemetry) Events() []backend.SearchEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.SearchEvent(nil), f.events...)
}

var catalogEntries = []index.Entry{
	{Code: "A1", DisplayName: "2021 Topps Chrome", Keywords: "baseball topps", Year: "2021", Sport: "Baseball", Manufacturer: "Topps"},
	{Code: "B2", DisplayName: "2022 Panini Prizm", Keywords: "basketball", Year: "2022", Sport: "Basketball", Manufacturer: "Panini"},
	{Code: "C3", DisplayName: "2021 Topps Chrome Update", Keywords: "baseball", Year: "2021", Sport: "Baseball", Manufacturer: "Topps"},
}

type fixture struct {
	session   *Session
	rows      *fakeRows
	telemetry *fakeTelemetry
	snaps     *staticSnapshots
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rows := &fakeRows{rows: map[string]*backend.Rows{
		"A1": {Meta: backend.ProductMeta{DisplayName: "2021 Topps Chrome"}, Rows: []backend.Row{{SetType: "Base", PrintRun: 1000}}},
		"B2": {Meta: backend.ProductMeta{DisplayName: "2022 Panini Prizm"}, Rows: []backend.Row{{SetType: "Silver", PrintRun: 99}}},
	}}
	tel := &fakeTelemetry{}
	snaps := &staticSnapshots{snap: &index.Snapshot{Entries: catalogEntries}}
	lookup := NewLookup(rows, timeout, NewReporter(tel, logger), nil, logger)
	s := NewSession(NewCatalogs(snaps), lookup, logger)
	t.Cleanup(s.Close)
	return &fixture{session: s, rows: rows, telemetry: tel, snaps: snaps}
}

func TestTypeClearsSelection(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	_, err := s.Pick("A1")
	require.NoError(t, err)
	require.NotNil(t, s.View().Selected)
	assert.Equal(t, "2021 Topps Chrome", s.View().Query)

	hits := s.Type("chrome")
	assert.Nil(t, s.View().Selected)
	assert.Equal(t, []string{"A1", "C3"}, []string{hits[0].Code, hits[1].Code})

	assert.Empty(t, s.Type("c"))
}

func TestPickUnknownCode(t *testing.T) {
	f := newFixture(t, time.Second)
	_, err := f.session.Pick("nope")
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestCommitPrefersSelection(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	s.Type("chrome")
	_, err := s.Pick("C3")
	require.NoError(t, err)

	got, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, "C3", got.Code)
}

func TestCommitResolvesFreeText(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	s.Type("  2021 TOPPS chrome update ")
	got, err := s.Commit()
	require.NoError(t, err)
	assert.Equal(t, "C3", got.Code)
	assert.Equal(t, "2021 Topps Chrome Update", s.View().Query)

	s.Type("prizm")
	got, err = s.Commit()
	require.NoError(t, err)
	assert.Equal(t, "B2", got.Code)
}

func TestCommitNoMatch(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	s.Type("hockey")
	_, err := s.Commit()
	assert.ErrorIs(t, err, ErrNoMatch)

	v := s.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.ErrorIs(t, v.Err, ErrNoMatch)
	assert.False(t, IsRetryable(v.Err))

	_, err = s.Search(context.Background())
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Empty(t, f.rows.calls)
}

func TestSearchLoadsRows(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	s.Type("chrome")
	rows, err := s.Search(context.Background())
	require.NoError(t, err)
	require.Len(t, rows.Rows, 1)
	assert.Equal(t, backend.Count(1000), rows.Rows[0].PrintRun)

	v := s.View()
	assert.Equal(t, PhaseReady, v.Phase)
	assert.Equal(t, "A1", v.Entry.Code)
	assert.Same(t, rows, v.Rows)
	assert.Equal(t, []string{"A1"}, f.rows.calls)
}

func TestSearchTimeoutIsRetryable(t *testing.T) {
	f := newFixture(t, 30*time.Millisecond)
	f.rows.hang = true
	s := f.session

	s.Type("prizm")
	start := time.Now()
	_, err := s.Search(context.Background())

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, ErrRowsFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))

	v := s.View()
	assert.Equal(t, PhaseFailed, v.Phase)
	assert.NotNil(t, v.Selected, "selection survives so the user can retry")

	// Retry after the backend recovers.
	f.rows.mu.Lock()
	f.rows.hang = false
	f.rows.mu.Unlock()
	rows, err := s.Search(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows.Rows, 1)
	assert.Equal(t, PhaseReady, s.View().Phase)
}

func TestBackendErrorIsRowsFetchFailed(t *testing.T) {
	f := newFixture(t, time.Second)
	f.rows.err = &backend.Error{Action: backend.ActionRows, Message: "sheet locked"}

	f.session.Type("chrome")
	_, err := f.session.Search(context.Background())

	assert.ErrorIs(t, err, ErrRowsFetchFailed)
	var berr *backend.Error
	assert.True(t, errors.As(err, &berr))
}

func TestStaleResponseIsDiscarded(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session
	ctx := context.Background()

	s.Type("chrome")
	first, err := s.Begin()
	require.NoError(t, err)

	s.Type("prizm")
	second, err := s.Begin()
	require.NoError(t, err)
	require.Greater(t, second.Gen, first.Gen)

	newer := s.Fetch(ctx, second)
	older := s.Fetch(ctx, first)

	assert.True(t, s.Apply(newer))
	assert.False(t, s.Apply(older), "late response for an old request must not win")

	v := s.View()
	assert.Equal(t, "B2", v.Entry.Code)
	assert.Equal(t, "2022 Panini Prizm", v.Rows.Meta.DisplayName)
	assert.Equal(t, PhaseReady, v.Phase)
}

func TestStaleResponseBeforeNewerArrives(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session
	ctx := context.Background()

	s.Type("chrome")
	first, _ := s.Begin()
	s.Type("prizm")
	second, _ := s.Begin()

	assert.False(t, s.Apply(s.Fetch(ctx, first)))
	assert.Equal(t, PhaseLoading, s.View().Phase, "still waiting on the latest request")
	assert.True(t, s.Apply(s.Fetch(ctx, second)))
}

func TestClearInvalidatesInFlight(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	s.Type("chrome")
	req, err := s.Begin()
	require.NoError(t, err)
	s.Clear()

	assert.False(t, s.Apply(s.Fetch(context.Background(), req)))
	v := s.View()
	assert.Equal(t, PhaseIdle, v.Phase)
	assert.Empty(t, v.Query)
	assert.Nil(t, v.Rows)
}

func TestTelemetryIsDetachedAndSilent(t *testing.T) {
	f := newFixture(t, time.Second)
	f.telemetry.err = errors.New("quota exceeded")
	s := f.session

	s.Type("prizm")
	_, err := s.Search(context.Background())
	require.NoError(t, err, "telemetry failure must not reach the caller")

	s.Close()
	assert.Equal(t, []backend.SearchEvent{{SelectedName: "2022 Panini Prizm", Year: "2022", Sport: "Basketball"}}, f.telemetry.Events())
}

func TestSessionSeesRefreshedSnapshot(t *testing.T) {
	f := newFixture(t, time.Second)
	s := f.session

	assert.Empty(t, s.Type("bowman"))

	f.snaps.snap = &index.Snapshot{Entries: append(append([]index.Entry(nil), catalogEntries...),
		index.Entry{Code: "D4", DisplayName: "2023 Bowman Draft"})}

	hits := s.Type("bowman")
	require.Len(t, hits, 1)
	assert.Equal(t, "D4", hits[0].Code)
}
