package state

import (
	"sync"
)

// Stage is the pipeline position of the turn in flight.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageDatabase Stage = "database"
	StageVector   Stage = "vector"
	StageWeb      Stage = "web"
	StageSummary  Stage = "summary"
)

// Pipeline order of the streaming stages.
var Stages = []Stage{StageDatabase, StageVector, StageWeb, StageSummary}

// PanelStatus mirrors how a stage panel is rendered.
type PanelStatus string

const (
	PanelPending   PanelStatus = "pending"
	PanelStreaming PanelStatus = "streaming"
	PanelCompleted PanelStatus = "completed"
)

// Snapshot is a copy of the transient turn state, safe to hand to readers.
type Snapshot struct {
	Stage       Stage                 `json:"stage"`
	IsStreaming bool                  `json:"is_streaming"`
	Query       string                `json:"query,omitempty"`
	Text        map[Stage]string      `json:"text"`
	Sources     []string              `json:"sources"`
	Panels      map[Stage]PanelStatus `json:"panels"`
}

// Manager owns the transient state of one conversation's in-flight turn.
// The orchestrator is the only writer; everything else reads Snapshots.
type Manager struct {
	mu          sync.RWMutex
	stage       Stage
	isStreaming bool
	query       string
	text        map[Stage]string
	sources     []string
}

func NewManager() *Manager {
	m := &Manager{}
	m.reset()
	return m
}

// Begin moves idle → database for a new turn and clears every accumulator.
// It returns false when a turn is already in flight.
func (m *Manager) Begin(query string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isStreaming {
		return false
	}
	m.reset()
	m.isStreaming = true
	m.query = query
	m.stage = StageDatabase
	return true
}

func (m *Manager) SetStage(stage Stage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stage = stage
}

// SetText records the accumulated text of a stage. Fetchers only ever pass
// growing prefixes, so the accumulator never shrinks.
func (m *Manager) SetText(stage Stage, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text[stage] = text
}

// AddSources appends citations in arrival order.
func (m *Manager) AddSources(sources []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, sources...)
}

// Sources returns a copy of the citations collected so far.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.sources) == 0 {
		return nil
	}
	return append([]string(nil), m.sources...)
}

func (m *Manager) IsStreaming() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isStreaming
}

// Reset discards the turn and returns to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Manager) reset() {
	m.stage = StageIdle
	m.isStreaming = false
	m.query = ""
	m.text = make(map[Stage]string, len(Stages))
	m.sources = nil
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Stage:       m.stage,
		IsStreaming: m.isStreaming,
		Query:       m.query,
		Text:        make(map[Stage]string, len(Stages)),
		Sources:     append([]string{}, m.sources...),
		Panels:      make(map[Stage]PanelStatus, len(Stages)),
	}
	for _, stage := range Stages {
		s.Text[stage] = m.text[stage]
		s.Panels[stage] = m.panelStatus(stage)
	}
	return s
}

func (m *Manager) panelStatus(stage Stage) PanelStatus {
	if !m.isStreaming {
		return PanelPending
	}
	switch {
	case stage == m.stage:
		return PanelStreaming
	case position(stage) < position(m.stage):
		return PanelCompleted
	default:
		return PanelPending
	}
}

func position(stage Stage) int {
	for i, s := range Stages {
		if s == stage {
			return i
		}
	}
	return -1
}
