// Package model implements the Lmap data model: Agent, Capability,
// Task, Event, Suppression, Schedule, Action and the Result/Table/Row
// report tree, together with the referential-integrity invariants
// from spec §3.
//
// Collections are owned ordered slices, not intrusive linked lists —
// name lookup stays linear, which is fine for the hundreds-not-millions
// scale the spec assumes (see spec §9 "Intrusive linked lists → owned
// vectors").
package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the Event variants from §3.
type EventType string

const (
	EventPeriodic            EventType = "periodic"
	EventCalendar            EventType = "calendar"
	EventOneOff              EventType = "one_off"
	EventImmediate           EventType = "immediate"
	EventStartup             EventType = "startup"
	EventControllerLost      EventType = "controller_lost"
	EventControllerConnected EventType = "controller_connected"
)

// ExecutionMode enumerates a Schedule's concurrency policy.
type ExecutionMode string

const (
	ExecSequential ExecutionMode = "sequential"
	ExecParallel   ExecutionMode = "parallel"
	ExecPipelined  ExecutionMode = "pipelined"
)

// RunState enumerates the runtime states shared by Schedule and Action.
type RunState string

const (
	StateEnabled    RunState = "enabled"
	StateDisabled   RunState = "disabled"
	StateRunning    RunState = "running"
	StateSuppressed RunState = "suppressed"
)

// SuppressionState enumerates a Suppression's runtime state.
type SuppressionState string

const (
	SuppressionEnabled  SuppressionState = "enabled"
	SuppressionDisabled SuppressionState = "disabled"
	SuppressionActive   SuppressionState = "active"
)

// Agent is the Lmap root's singleton identity.
type Agent struct {
	AgentID          uuid.UUID
	GroupID          string
	MeasurementPoint string
	Version          string
	ReportDate       time.Time
	LastStarted      time.Time
	ControllerTimeout uint32 // seconds, default 604800 (7 days)

	ReportAgentID          bool
	ReportGroupID          bool
	ReportMeasurementPoint bool
}

// DefaultControllerTimeout is the default, per §3.
const DefaultControllerTimeout uint32 = 604800

// CapabilityTask names a program the agent has discovered it can run.
type CapabilityTask struct {
	Program string
	Tags    []string
}

// Capability describes what the agent is able to run.
type Capability struct {
	Version string
	Tasks   []CapabilityTask
}

// HasProgram reports whether some capability task has exactly this program path.
func (c *Capability) HasProgram(program string) bool {
	for _, t := range c.Tasks {
		if t.Program == program {
			return true
		}
	}
	return false
}

// Option is an ordered (id, name?, value?) Task/Action parameter.
type Option struct {
	ID    string
	Name  *string
	Value *string
}

// Registry is a Task's declared URI + roles.
type Registry struct {
	URI   string
	Roles []string
}

// Task is a named executable contract.
type Task struct {
	Name              string
	Program           string
	Options           []Option
	Registries        []Registry
	Tags              []string
	SuppressByDefault bool
}

// Event is a named time source; variant-specific fields are zero when unused.
type Event struct {
	Name string
	Type EventType

	// periodic
	Interval uint32 // seconds, >=1

	// calendar (bitsets; all-ones == wildcard "all")
	Months         uint64 // 12 bits
	DaysOfMonth    uint64 // 31 bits
	DaysOfWeek     uint64 // 7 bits, Monday=bit0
	Hours          uint64 // 24 bits
	Minutes        uint64 // 60 bits
	Seconds        uint64 // 60 bits
	TimezoneOffset *int   // minutes, -1439..1439

	// one_off
	Start *time.Time

	// common optional bounds (periodic/calendar)
	StartEpoch *time.Time
	EndEpoch   *time.Time

	// cycle bucket interval, seconds; 0 means unset
	CycleInterval uint32

	RandomSpread uint32 // seconds; must be < platform RAND ceiling
}

// Suppression is a named tag-glob gate between two Events.
type Suppression struct {
	Name         string
	Start        string // Event name
	End          string // Event name
	Match        []string
	StopRunning  bool
	State        SuppressionState

	mu sync.Mutex
}

// NewSuppression returns a Suppression defaulted to the enabled state.
func NewSuppression(name string) *Suppression {
	return &Suppression{Name: name, State: SuppressionEnabled}
}

// SetState atomically updates the suppression's runtime state.
func (s *Suppression) SetState(st SuppressionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = st
}

// GetState atomically reads the suppression's runtime state.
func (s *Suppression) GetState() SuppressionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Action is a single Task invocation bound into a Schedule.
type Action struct {
	Name             string
	Task             string // Task name
	Destinations     []string
	Options          []Option
	Tags             []string
	SuppressionTags  []string

	mu sync.Mutex

	state RunState

	CntInvocations        uint64
	CntSuppressions       uint64
	CntOverlaps           uint64
	CntFailures           uint64
	CntActiveSuppressions uint64

	PID              int
	LastInvocation   time.Time
	LastCompletion   time.Time
	LastStatus       int
	LastMessage      string
	LastFailedCompletion time.Time
	LastFailedStatus     int

	Workspace string
	Storage   int64
}

// NewAction returns an Action defaulted to the enabled state.
func NewAction(name, task string) *Action {
	return &Action{Name: name, Task: task, state: StateEnabled}
}

// State atomically reads the Action's runtime state.
func (a *Action) State() RunState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetState atomically updates the Action's runtime state.
func (a *Action) SetState(s RunState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

// Schedule is a named, ordered group of Actions driven by start/end Events.
type Schedule struct {
	Name             string
	Start            string // Event name, required
	End              string // Event name; mutually exclusive with Duration
	Duration         *uint32
	Actions          []*Action
	Tags             []string
	SuppressionTags  []string
	ExecutionMode    ExecutionMode

	mu sync.Mutex

	state RunState

	CntInvocations        uint64
	CntSuppressions       uint64
	CntOverlaps           uint64
	CntFailures           uint64
	CntActiveSuppressions uint64

	LastInvocation time.Time
	Workspace      string
	Storage        int64
	CycleNumber    *time.Time

	// StopRunning is set while a matching active, stop_running
	// Suppression demands termination of this schedule's Actions.
	StopRunning bool
}

// NewSchedule returns a Schedule defaulted to the enabled state and pipelined mode.
func NewSchedule(name string) *Schedule {
	return &Schedule{Name: name, state: StateEnabled, ExecutionMode: ExecPipelined}
}

// State atomically reads the Schedule's runtime state.
func (s *Schedule) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetState atomically updates the Schedule's runtime state.
func (s *Schedule) SetState(st RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

// SetEnd sets Schedule.End and clears Duration, per §3 ("exactly one of").
func (s *Schedule) SetEnd(eventName string) {
	s.End = eventName
	s.Duration = nil
}

// SetDuration sets Schedule.Duration and clears End, per §3.
func (s *Schedule) SetDuration(seconds uint32) {
	s.Duration = &seconds
	s.End = ""
}

// ActionByName performs the linear name lookup across a Schedule's Actions.
func (s *Schedule) ActionByName(name string) *Action {
	for _, a := range s.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Value is a single report cell.
type Value string

// Row is an ordered list of report Values.
type Row struct {
	Values []Value
}

// Table is an ordered list of report Rows.
type Table struct {
	Rows []Row
}

// Result names the Schedule/Action/Task invocation a report entry
// came from, plus its option/tag/time metadata and the Tables it holds.
type Result struct {
	Schedule string
	Action   string
	Task     string
	Options  []Option
	Tags     []string

	Event       time.Time
	Start       time.Time
	End         time.Time
	CycleNumber *time.Time

	Status int
	Tables []Table
}

// Lmap owns every entity under one root: Agent, Capability, Tasks,
// Events, Schedules (and their Actions), Suppressions and Results.
// Cross-references between entities are by name only.
type Lmap struct {
	Agent       Agent
	Capability  Capability
	Tasks       []*Task
	Events      []*Event
	Schedules   []*Schedule
	Suppressions []*Suppression
	Results     []*Result
}

// TaskByName performs the linear name lookup across Tasks.
func (l *Lmap) TaskByName(name string) *Task {
	for _, t := range l.Tasks {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// EventByName performs the linear name lookup across Events.
func (l *Lmap) EventByName(name string) *Event {
	for _, e := range l.Events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// ScheduleByName performs the linear name lookup across Schedules.
func (l *Lmap) ScheduleByName(name string) *Schedule {
	for _, s := range l.Schedules {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SuppressionByName performs the linear name lookup across Suppressions.
func (l *Lmap) SuppressionByName(name string) *Suppression {
	for _, s := range l.Suppressions {
		if s.Name == name {
			return s
		}
	}
	return nil
}
