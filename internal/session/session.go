// Package session tracks the per-user workflow state: which dataset is
// loaded, which analyses are selected, and whether a report has been
// generated. Actions that are not valid in the current state are
// rejected rather than silently reordered.
package session

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"reportlab/internal/analysis"
	"reportlab/internal/dataset"
	apperrors "reportlab/internal/errors"
)

// State is a workflow stage. Stages only advance through the
// transition methods on Session.
type State string

const (
	// StateNoFile is the initial state: nothing uploaded yet.
	StateNoFile State = "no_file"
	// StateLoaded means a dataset is parsed and attached.
	StateLoaded State = "loaded"
	// StateAnalysisSelected means an analysis plan has been validated.
	StateAnalysisSelected State = "analysis_selected"
	// StateReportGenerated means at least one report has been produced.
	StateReportGenerated State = "report_generated"
)

// TemporalSpec selects one time-series analysis: aggregate Measure over
// Column buckets of Period using Fn.
type TemporalSpec struct {
	Column  string           `json:"column"`
	Measure string           `json:"measure"`
	Period  analysis.Period  `json:"period"`
	Fn      analysis.AggFunc `json:"fn"`
}

// Plan is a validated analysis selection.
type Plan struct {
	Numeric     []string       `json:"numeric"`
	Categorical []string       `json:"categorical"`
	Temporal    []TemporalSpec `json:"temporal"`
	TopN        int            `json:"top_n"`
}

// Empty reports whether the plan selects nothing.
func (p Plan) Empty() bool {
	return len(p.Numeric) == 0 && len(p.Categorical) == 0 && len(p.Temporal) == 0
}

// Session is one user workflow. All mutation goes through the
// transition methods, which enforce the workflow order.
type Session struct {
	mu sync.Mutex

	ID         string
	state      State
	Table      *dataset.Table
	CacheKey   string
	SourceName string
	LogoPath   string
	Plan       Plan

	CreatedAt  time.Time
	LastActive time.Time
}

// State returns the current workflow stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AttachTable records a freshly loaded dataset. Valid in every state:
// a re-upload replaces the previous dataset and discards any selection
// or generated report, returning the session to the loaded stage.
func (s *Session) AttachTable(table *dataset.Table, cacheKey, sourceName, logoPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LogoPath != "" && s.LogoPath != logoPath {
		os.Remove(s.LogoPath)
	}
	s.Table = table
	s.CacheKey = cacheKey
	s.SourceName = sourceName
	s.LogoPath = logoPath
	s.Plan = Plan{}
	s.state = StateLoaded
}

// SetPlan stores a validated analysis selection. Requires a loaded
// dataset; re-selection after a report is allowed and returns the
// session to the analysis-selected stage.
func (s *Session) SetPlan(plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateNoFile {
		return apperrors.InvalidTransition("select analyses", "no file is loaded")
	}
	s.Plan = plan
	s.state = StateAnalysisSelected
	return nil
}

// BeginReport checks that report generation is allowed and returns a
// copy of the plan to generate from.
func (s *Session) BeginReport() (Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateAnalysisSelected, StateReportGenerated:
		return s.Plan, nil
	case StateLoaded:
		return Plan{}, apperrors.InvalidTransition("generate report", "no analyses are selected")
	default:
		return Plan{}, apperrors.InvalidTransition("generate report", "no file is loaded")
	}
}

// MarkReportGenerated advances to the report-generated stage.
func (s *Session) MarkReportGenerated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReportGenerated
}

// Touch updates the last-activity timestamp used for expiry.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActive = now
}

// cleanup removes per-session temp files. Called with the session
// already detached from the store.
func (s *Session) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LogoPath != "" {
		os.Remove(s.LogoPath)
		s.LogoPath = ""
	}
}

// Store holds live sessions and expires idle ones.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	// OnCountChange, when set, receives the live session count after
	// every create, delete, and sweep. Used to drive the sessions gauge.
	OnCountChange func(n int)
}

// NewStore creates a session store with the given idle TTL.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger.With(slog.String("component", "session_store")),
		now:      time.Now,
	}
}

// Create registers a new session in the no-file state.
func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:         uuid.NewString(),
		state:      StateNoFile,
		CreatedAt:  now,
		LastActive: now,
	}

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	st.notify(n)
	st.logger.Debug("session created", slog.String("session_id", s.ID))
	return s
}

// Get returns the session for id, refreshing its activity timestamp.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	s.Touch(st.now())
	return s, nil
}

// Delete removes a session and its temp files. Deleting an unknown id
// is not an error.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok {
		delete(st.sessions, id)
	}
	n := len(st.sessions)
	st.mu.Unlock()

	if ok {
		s.cleanup()
		st.notify(n)
		st.logger.Debug("session deleted", slog.String("session_id", id))
	}
}

// Sweep removes sessions idle longer than the TTL and returns how many
// were evicted.
func (st *Store) Sweep() int {
	cutoff := st.now().Add(-st.ttl)

	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		s.mu.Lock()
		idle := s.LastActive.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(st.sessions, id)
			expired = append(expired, s)
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	for _, s := range expired {
		s.cleanup()
		st.logger.Info("session expired", slog.String("session_id", s.ID))
	}
	if len(expired) > 0 {
		st.notify(n)
	}
	return len(expired)
}

// StartJanitor sweeps expired sessions on the given interval until ctx
// is cancelled.
func (st *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := st.Sweep(); n > 0 {
					st.logger.Info("swept expired sessions", slog.Int("count", n))
				}
			}
		}
	}()
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) notify(n int) {
	if st.OnCountChange != nil {
		st.OnCountChange(n)
	}
}
