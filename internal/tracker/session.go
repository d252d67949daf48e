package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sadopc/habitlab/internal/export"
	"github.com/sadopc/habitlab/internal/store"
)

// Authenticator produces the identifier of the signed-in user.
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// StaticAuthenticator signs in as a fixed user id.
type StaticAuthenticator string

func (a StaticAuthenticator) Authenticate(context.Context) (string, error) {
	id := strings.TrimSpace(string(a))
	if id == "" {
		return "", errors.New("no user id configured")
	}
	return id, nil
}

type EventKind int

const (
	EventSignedIn EventKind = iota
	EventExperimentChanged
	EventSignedOut
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventExperimentChanged:
		return "experiment_changed"
	case EventSignedOut:
		return "signed_out"
	}
	return "unknown"
}

type Event struct {
	Kind       EventKind
	UserID     string
	Experiment *store.Experiment // nil when there is no active experiment
}

// Session holds the signed-in user, their active experiment and the record
// cache. It is created signed out; SignIn fills it and SignOut clears it.
type Session struct {
	deps  Deps
	cache *RecordCache

	lifecycle *Lifecycle
	records   *RecordManager
	results   *Aggregator

	mu         sync.Mutex
	userID     string
	experiment *store.Experiment
	subs       map[int]func(Event)
	nextSub    int
}

func NewSession(deps Deps) *Session {
	cache := NewRecordCache(deps.Metrics)
	return &Session{
		deps:      deps,
		cache:     cache,
		lifecycle: NewLifecycle(deps),
		records:   NewRecordManager(deps, cache),
		results:   NewAggregator(deps, cache),
		subs:      make(map[int]func(Event)),
	}
}

// Subscribe registers fn for session events. Callbacks run synchronously on
// the goroutine that caused the event. The returned func unsubscribes.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) emit(ev Event) {
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// SignIn authenticates and resolves the user's active experiment.
func (s *Session) SignIn(ctx context.Context, auth Authenticator) error {
	userID, err := auth.Authenticate(ctx)
	if err != nil {
		return err
	}
	active, err := s.lifecycle.ResolveActive(ctx, userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.userID = userID
	s.experiment = active
	s.mu.Unlock()
	s.cache.Clear()

	s.deps.logger().Info("signed in", "user_id", userID)
	s.emit(Event{Kind: EventSignedIn, UserID: userID, Experiment: active})
	return nil
}

// SignOut clears the user, experiment and cache, notifies subscribers and
// then drops every subscription.
func (s *Session) SignOut() {
	s.mu.Lock()
	userID := s.userID
	s.userID = ""
	s.experiment = nil
	s.mu.Unlock()
	s.cache.Clear()

	s.emit(Event{Kind: EventSignedOut, UserID: userID})

	s.mu.Lock()
	s.subs = make(map[int]func(Event))
	s.mu.Unlock()
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Experiment returns the active experiment as last resolved.
func (s *Session) Experiment() *store.Experiment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.experiment
}

func (s *Session) Cache() *RecordCache { return s.cache }

func (s *Session) user() (string, error) {
	id := s.UserID()
	if id == "" {
		return "", ErrNotSignedIn
	}
	return id, nil
}

func (s *Session) setExperiment(e *store.Experiment) {
	s.mu.Lock()
	prev := s.experiment
	s.experiment = e
	userID := s.userID
	s.mu.Unlock()

	if experimentID(prev) != experimentID(e) {
		s.emit(Event{Kind: EventExperimentChanged, UserID: userID, Experiment: e})
	}
}

func experimentID(e *store.Experiment) string {
	if e == nil {
		return ""
	}
	return e.ID
}

// Surface resolves the current state and updates the session's experiment,
// which picks up natural expiry.
func (s *Session) Surface(ctx context.Context) (Surface, error) {
	userID, err := s.user()
	if err != nil {
		return Surface{}, err
	}
	surf, err := s.lifecycle.Surface(ctx, userID)
	if err != nil {
		return Surface{}, err
	}
	s.setExperiment(surf.Experiment)
	return surf, nil
}

func (s *Session) CreateExperiment(ctx context.Context, in Settings, confirmed bool) (*store.Experiment, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	e, err := s.lifecycle.Create(ctx, userID, in, confirmed)
	if err != nil {
		return nil, err
	}
	s.setExperiment(e)
	return e, nil
}

func (s *Session) EndExperiment(ctx context.Context, confirmed bool) (*store.Experiment, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	e, err := s.lifecycle.End(ctx, userID, confirmed)
	if err != nil {
		return nil, err
	}
	s.setExperiment(nil)
	return e, nil
}

// SaveToday saves today's record for the active experiment.
func (s *Session) SaveToday(ctx context.Context, in RecordInput, confirmed bool) (*store.DailyRecord, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	e := s.Experiment()
	if e == nil {
		return nil, newNotFoundError("no active experiment")
	}
	return s.records.SaveToday(ctx, userID, e.ID, in, confirmed)
}

func (s *Session) LoadToday(ctx context.Context) (*store.DailyRecord, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	e := s.Experiment()
	if e == nil {
		return nil, nil
	}
	return s.records.LoadToday(ctx, userID, e.ID)
}

func (s *Session) ListExperiments(ctx context.Context) ([]store.Experiment, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	return s.results.ListExperiments(ctx, userID)
}

func (s *Session) Results(ctx context.Context, experimentID string) (*Results, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	return s.results.Results(ctx, userID, experimentID)
}

func (s *Session) ExportRows(ctx context.Context, experimentID string) ([]export.Row, error) {
	userID, err := s.user()
	if err != nil {
		return nil, err
	}
	return s.results.ExportRows(ctx, userID, experimentID)
}

// Now is the session clock.
func (s *Session) Now() time.Time { return s.deps.now() }

// Location is the zone calendar days are computed in.
func (s *Session) Location() *time.Location { return s.deps.location() }
