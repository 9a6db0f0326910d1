// Package jobs tracks asynchronous backtest jobs: an in-memory store of
// job records and a worker pool that executes queued jobs.
package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/analyzer"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/config"
	"github.com/heishi1HUMANITY/adaptive-turtle-system/internal/model"
)

// Status is the lifecycle state of a backtest job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var ErrNotFound = errors.New("job not found")

// Job is one queued backtest run and its eventual outcome.
type Job struct {
	ID           string                `json:"job_id"`
	Status       Status                `json:"status"`
	Config       config.StrategyConfig `json:"config"`
	Start        time.Time             `json:"start"`
	End          time.Time             `json:"end"`
	SubmittedAt  time.Time             `json:"submitted_at"`
	StartedAt    time.Time             `json:"started_at,omitempty"`
	FinishedAt   time.Time             `json:"finished_at,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`

	Result *model.BacktestResult `json:"-"`
	Report *analyzer.Report      `json:"-"`
}

// Store keeps job records in memory, keyed by job ID.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new pending job and returns a copy of it.
func (s *Store) Create(cfg config.StrategyConfig, start, end time.Time) Job {
	j := &Job{
		ID:          newJobID(),
		Status:      StatusPending,
		Config:      cfg,
		Start:       start,
		End:         end,
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return *j
}

// Get returns a copy of the job with the given ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

func (s *Store) setRunning(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = StatusRunning
		j.StartedAt = time.Now().UTC()
	}
}

func (s *Store) setCompleted(id string, result *model.BacktestResult, report *analyzer.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = StatusCompleted
		j.FinishedAt = time.Now().UTC()
		j.Result = result
		j.Report = report
	}
}

func (s *Store) setFailed(id string, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.Status = StatusFailed
		j.FinishedAt = time.Now().UTC()
		j.ErrorMessage = msg
	}
}

func newJobID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return hex.EncodeToString(b)
}
