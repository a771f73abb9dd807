package codec

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lmap-agent/lmapd/internal/identifier"
	"github.com/lmap-agent/lmapd/internal/model"
)

// configDocument is the top-level `{"lmap": {...}}` wrapper, §6.
type configDocument struct {
	Lmap lmapDTO `json:"lmap"`
}

type stateDocument struct {
	LmapState lmapStateDTO `json:"lmap-state"`
}

type reportDocument struct {
	Report reportBody `json:"report"`
}

type reportBody struct {
	Date                   string      `json:"date"`
	AgentID                string      `json:"agent-id,omitempty"`
	GroupID                string      `json:"group-id,omitempty"`
	MeasurementPoint       string      `json:"measurement-point,omitempty"`
	Results                []resultDTO `json:"result"`
}

type lmapDTO struct {
	Agent        agentDTO         `json:"agent"`
	Capabilities capabilityDTO    `json:"capabilities"`
	Tasks        []taskDTO        `json:"tasks,omitempty"`
	Schedules    []scheduleDTO    `json:"schedules,omitempty"`
	Suppressions []suppressionDTO `json:"suppressions,omitempty"`
	Events       []eventDTO       `json:"events,omitempty"`
}

type agentDTO struct {
	AgentID                string `json:"agent-id,omitempty"`
	GroupID                string `json:"group-id,omitempty"`
	MeasurementPoint       string `json:"measurement-point,omitempty"`
	Version                string `json:"version,omitempty"`
	ReportDate             string `json:"report-date,omitempty"`
	ControllerTimeout      uint32 `json:"controller-timeout,omitempty"`
	ReportAgentID          bool   `json:"report-agent-id"`
	ReportGroupID          bool   `json:"report-group-id"`
	ReportMeasurementPoint bool   `json:"report-measurement-point"`
}

type capabilityDTO struct {
	Version string              `json:"version,omitempty"`
	Tasks   []capabilityTaskDTO `json:"tasks,omitempty"`
}

type capabilityTaskDTO struct {
	Program string   `json:"program"`
	Tags    []string `json:"tags,omitempty"`
}

type optionDTO struct {
	ID    string  `json:"id"`
	Name  *string `json:"name,omitempty"`
	Value *string `json:"value,omitempty"`
}

type registryDTO struct {
	URI   string   `json:"uri"`
	Roles []string `json:"roles,omitempty"`
}

type taskDTO struct {
	Name              string        `json:"name"`
	Program           string        `json:"program"`
	Options           []optionDTO   `json:"option,omitempty"`
	Registries        []registryDTO `json:"registry,omitempty"`
	Tags              []string      `json:"tag,omitempty"`
	SuppressByDefault bool          `json:"suppress-by-default,omitempty"`
}

func registriesToDTO(regs []model.Registry) []registryDTO {
	out := make([]registryDTO, 0, len(regs))
	for _, r := range regs {
		out = append(out, registryDTO{URI: r.URI, Roles: r.Roles})
	}
	return out
}

func registriesFromDTO(regs []registryDTO) []model.Registry {
	out := make([]model.Registry, 0, len(regs))
	for _, r := range regs {
		out = append(out, model.Registry{URI: r.URI, Roles: r.Roles})
	}
	return out
}

type eventDTO struct {
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Interval       uint32  `json:"interval,omitempty"`
	Months         uint64  `json:"months,omitempty"`
	DaysOfMonth    uint64  `json:"day-of-month,omitempty"`
	DaysOfWeek     uint64  `json:"day-of-week,omitempty"`
	Hours          uint64  `json:"hour,omitempty"`
	Minutes        uint64  `json:"minute,omitempty"`
	Seconds        uint64  `json:"second,omitempty"`
	TimezoneOffset *int    `json:"timezone-offset,omitempty"`
	Start          *string `json:"start,omitempty"`
	StartEpoch     *string `json:"start-epoch,omitempty"`
	EndEpoch       *string `json:"end-epoch,omitempty"`
	CycleInterval  uint32  `json:"cycle-interval,omitempty"`
	RandomSpread   uint32  `json:"random-spread,omitempty"`
}

type actionDTO struct {
	Name            string      `json:"name"`
	Task            string      `json:"task"`
	Destinations    []string    `json:"destination,omitempty"`
	Options         []optionDTO `json:"option,omitempty"`
	Tags            []string    `json:"tag,omitempty"`
	SuppressionTags []string    `json:"suppression-tag,omitempty"`
}

type scheduleDTO struct {
	Name            string      `json:"name"`
	Start           string      `json:"start"`
	End             string      `json:"end,omitempty"`
	Duration        *uint32     `json:"duration,omitempty"`
	Actions         []actionDTO `json:"action,omitempty"`
	Tags            []string    `json:"tag,omitempty"`
	SuppressionTags []string    `json:"suppression-tag,omitempty"`
	ExecutionMode   string      `json:"execution-mode,omitempty"`
}

type suppressionDTO struct {
	Name        string   `json:"name"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Match       []string `json:"match,omitempty"`
	StopRunning bool      `json:"stop-running,omitempty"`
}

type resultDTO struct {
	Schedule    string      `json:"schedule"`
	Action      string      `json:"action"`
	Task        string      `json:"task"`
	Options     []optionDTO `json:"option,omitempty"`
	Tags        []string    `json:"tag,omitempty"`
	Event       string      `json:"event"`
	Start       string      `json:"start"`
	End         string      `json:"end,omitempty"`
	CycleNumber string      `json:"cycle-number,omitempty"`
	Status      int         `json:"status"`
	Tables      [][][]string `json:"table,omitempty"`
}

type lmapStateDTO struct {
	Agent     agentDTO           `json:"agent"`
	Schedules []scheduleStateDTO `json:"schedules,omitempty"`
}

type scheduleStateDTO struct {
	Name                  string            `json:"name"`
	State                 string            `json:"state"`
	CntInvocations        uint64            `json:"cnt-invocations"`
	CntSuppressions       uint64            `json:"cnt-suppressions"`
	CntOverlaps           uint64            `json:"cnt-overlaps"`
	CntFailures           uint64            `json:"cnt-failures"`
	CntActiveSuppressions uint64            `json:"cnt-active-suppressions"`
	LastInvocation        string            `json:"last-invocation,omitempty"`
	Storage               int64             `json:"storage"`
	Actions               []actionStateDTO  `json:"actions,omitempty"`
}

type actionStateDTO struct {
	Name                  string `json:"name"`
	State                 string `json:"state"`
	CntInvocations        uint64 `json:"cnt-invocations"`
	CntSuppressions       uint64 `json:"cnt-suppressions"`
	CntOverlaps           uint64 `json:"cnt-overlaps"`
	CntFailures           uint64 `json:"cnt-failures"`
	CntActiveSuppressions uint64 `json:"cnt-active-suppressions"`
	LastInvocation        string `json:"last-invocation,omitempty"`
	LastCompletion        string `json:"last-completion,omitempty"`
	LastStatus            int    `json:"last-status"`
	Storage               int64  `json:"storage"`
}

func rfc3339(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return identifier.FormatDateTime(t)
}

func optionsToDTO(opts []model.Option) []optionDTO {
	out := make([]optionDTO, 0, len(opts))
	for _, o := range opts {
		out = append(out, optionDTO{ID: o.ID, Name: o.Name, Value: o.Value})
	}
	return out
}

func optionsFromDTO(opts []optionDTO) []model.Option {
	out := make([]model.Option, 0, len(opts))
	for _, o := range opts {
		out = append(out, model.Option{ID: o.ID, Name: o.Name, Value: o.Value})
	}
	return out
}

func fromModel(l *model.Lmap) lmapDTO {
	doc := lmapDTO{
		Agent: agentDTO{
			AgentID:                l.Agent.AgentID.String(),
			GroupID:                l.Agent.GroupID,
			MeasurementPoint:       l.Agent.MeasurementPoint,
			Version:                l.Agent.Version,
			ReportDate:             rfc3339(l.Agent.ReportDate),
			ControllerTimeout:      l.Agent.ControllerTimeout,
			ReportAgentID:          l.Agent.ReportAgentID,
			ReportGroupID:          l.Agent.ReportGroupID,
			ReportMeasurementPoint: l.Agent.ReportMeasurementPoint,
		},
		Capabilities: capabilityDTO{Version: l.Capability.Version},
	}
	for _, t := range l.Capability.Tasks {
		doc.Capabilities.Tasks = append(doc.Capabilities.Tasks, capabilityTaskDTO{Program: t.Program, Tags: t.Tags})
	}
	for _, t := range l.Tasks {
		doc.Tasks = append(doc.Tasks, taskDTO{
			Name: t.Name, Program: t.Program,
			Options:           optionsToDTO(t.Options),
			Registries:        registriesToDTO(t.Registries),
			Tags:              t.Tags,
			SuppressByDefault: t.SuppressByDefault,
		})
	}
	for _, e := range l.Events {
		doc.Events = append(doc.Events, eventFromModel(e))
	}
	for _, s := range l.Schedules {
		doc.Schedules = append(doc.Schedules, scheduleFromModel(s))
	}
	for _, s := range l.Suppressions {
		doc.Suppressions = append(doc.Suppressions, suppressionDTO{
			Name: s.Name, Start: s.Start, End: s.End, Match: s.Match, StopRunning: s.StopRunning,
		})
	}
	return doc
}

func eventFromModel(e *model.Event) eventDTO {
	dto := eventDTO{
		Name: e.Name, Type: string(e.Type),
		Interval: e.Interval,
		Months:   e.Months, DaysOfMonth: e.DaysOfMonth, DaysOfWeek: e.DaysOfWeek,
		Hours: e.Hours, Minutes: e.Minutes, Seconds: e.Seconds,
		TimezoneOffset: e.TimezoneOffset,
		CycleInterval:  e.CycleInterval, RandomSpread: e.RandomSpread,
	}
	if e.Start != nil {
		s := rfc3339(*e.Start)
		dto.Start = &s
	}
	if e.StartEpoch != nil {
		s := rfc3339(*e.StartEpoch)
		dto.StartEpoch = &s
	}
	if e.EndEpoch != nil {
		s := rfc3339(*e.EndEpoch)
		dto.EndEpoch = &s
	}
	return dto
}

func scheduleFromModel(s *model.Schedule) scheduleDTO {
	dto := scheduleDTO{
		Name: s.Name, Start: s.Start, End: s.End, Duration: s.Duration,
		Tags: s.Tags, SuppressionTags: s.SuppressionTags,
		ExecutionMode: string(s.ExecutionMode),
	}
	for _, a := range s.Actions {
		dto.Actions = append(dto.Actions, actionDTO{
			Name: a.Name, Task: a.Task, Destinations: a.Destinations,
			Options: optionsToDTO(a.Options), Tags: a.Tags, SuppressionTags: a.SuppressionTags,
		})
	}
	return dto
}

func resultFromModel(r *model.Result) resultDTO {
	dto := resultDTO{
		Schedule: r.Schedule, Action: r.Action, Task: r.Task,
		Options: optionsToDTO(r.Options), Tags: r.Tags,
		Event: rfc3339(r.Event), Start: rfc3339(r.Start), End: rfc3339(r.End),
		Status: r.Status,
	}
	if r.CycleNumber != nil {
		dto.CycleNumber = rfc3339(*r.CycleNumber)
	}
	for _, tbl := range r.Tables {
		var rows [][]string
		for _, row := range tbl.Rows {
			var values []string
			for _, v := range row.Values {
				values = append(values, string(v))
			}
			rows = append(rows, values)
		}
		dto.Tables = append(dto.Tables, rows)
	}
	return dto
}

func stateFromModel(l *model.Lmap) lmapStateDTO {
	dto := lmapStateDTO{Agent: agentDTO{
		AgentID: l.Agent.AgentID.String(), GroupID: l.Agent.GroupID,
		MeasurementPoint: l.Agent.MeasurementPoint, Version: l.Agent.Version,
	}}
	for _, s := range l.Schedules {
		sdto := scheduleStateDTO{
			Name: s.Name, State: string(s.State()),
			CntInvocations: s.CntInvocations, CntSuppressions: s.CntSuppressions,
			CntOverlaps: s.CntOverlaps, CntFailures: s.CntFailures,
			CntActiveSuppressions: s.CntActiveSuppressions,
			LastInvocation:        rfc3339(s.LastInvocation),
			Storage:               s.Storage,
		}
		for _, a := range s.Actions {
			sdto.Actions = append(sdto.Actions, actionStateDTO{
				Name: a.Name, State: string(a.State()),
				CntInvocations: a.CntInvocations, CntSuppressions: a.CntSuppressions,
				CntOverlaps: a.CntOverlaps, CntFailures: a.CntFailures,
				CntActiveSuppressions: a.CntActiveSuppressions,
				LastInvocation:        rfc3339(a.LastInvocation),
				LastCompletion:        rfc3339(a.LastCompletion),
				LastStatus:            a.LastStatus,
				Storage:               a.Storage,
			})
		}
		dto.Schedules = append(dto.Schedules, sdto)
	}
	return dto
}

// toModel reconstitutes a model.Lmap from a decoded configDocument's
// lmapDTO, validating identifiers with internal/identifier as it goes
// (malformed values become ParseError-flavored errors, per §7).
func (d lmapDTO) toModel() (*model.Lmap, error) {
	l := &model.Lmap{}

	if d.Agent.AgentID != "" {
		id, err := uuid.Parse(d.Agent.AgentID)
		if err != nil {
			return nil, fmt.Errorf("codec: parse agent-id: %w", err)
		}
		l.Agent.AgentID = id
	}
	l.Agent.GroupID = d.Agent.GroupID
	l.Agent.MeasurementPoint = d.Agent.MeasurementPoint
	l.Agent.Version = d.Agent.Version
	l.Agent.ControllerTimeout = d.Agent.ControllerTimeout
	l.Agent.ReportAgentID = d.Agent.ReportAgentID
	l.Agent.ReportGroupID = d.Agent.ReportGroupID
	l.Agent.ReportMeasurementPoint = d.Agent.ReportMeasurementPoint
	if d.Agent.ReportDate != "" {
		t, err := identifier.DateTime(d.Agent.ReportDate)
		if err != nil {
			return nil, fmt.Errorf("codec: parse agent report-date: %w", err)
		}
		l.Agent.ReportDate = t
	}

	l.Capability.Version = d.Capabilities.Version
	for _, t := range d.Capabilities.Tasks {
		l.Capability.Tasks = append(l.Capability.Tasks, model.CapabilityTask{Program: t.Program, Tags: t.Tags})
	}

	for _, t := range d.Tasks {
		l.Tasks = append(l.Tasks, &model.Task{
			Name: t.Name, Program: t.Program,
			Options:           optionsFromDTO(t.Options),
			Registries:        registriesFromDTO(t.Registries),
			Tags:              t.Tags,
			SuppressByDefault: t.SuppressByDefault,
		})
	}

	for _, e := range d.Events {
		ev, err := e.toModel()
		if err != nil {
			return nil, err
		}
		l.Events = append(l.Events, ev)
	}

	for _, s := range d.Schedules {
		sched := model.NewSchedule(s.Name)
		sched.Start = s.Start
		sched.End = s.End
		sched.Duration = s.Duration
		sched.Tags = s.Tags
		sched.SuppressionTags = s.SuppressionTags
		if s.ExecutionMode != "" {
			sched.ExecutionMode = model.ExecutionMode(s.ExecutionMode)
		}
		for _, a := range s.Actions {
			action := model.NewAction(a.Name, a.Task)
			action.Destinations = a.Destinations
			action.Options = optionsFromDTO(a.Options)
			action.Tags = a.Tags
			action.SuppressionTags = a.SuppressionTags
			sched.Actions = append(sched.Actions, action)
		}
		l.Schedules = append(l.Schedules, sched)
	}

	for _, s := range d.Suppressions {
		sp := model.NewSuppression(s.Name)
		sp.Start = s.Start
		sp.End = s.End
		sp.Match = s.Match
		sp.StopRunning = s.StopRunning
		l.Suppressions = append(l.Suppressions, sp)
	}

	return l, nil
}

func (e eventDTO) toModel() (*model.Event, error) {
	ev := &model.Event{
		Name: e.Name, Type: model.EventType(e.Type),
		Interval: e.Interval,
		Months:   e.Months, DaysOfMonth: e.DaysOfMonth, DaysOfWeek: e.DaysOfWeek,
		Hours: e.Hours, Minutes: e.Minutes, Seconds: e.Seconds,
		TimezoneOffset: e.TimezoneOffset,
		CycleInterval:  e.CycleInterval, RandomSpread: e.RandomSpread,
	}
	var err error
	if e.Start != nil {
		if ev.Start, err = parseTimePtr(*e.Start); err != nil {
			return nil, fmt.Errorf("codec: parse event %q start: %w", e.Name, err)
		}
	}
	if e.StartEpoch != nil {
		if ev.StartEpoch, err = parseTimePtr(*e.StartEpoch); err != nil {
			return nil, fmt.Errorf("codec: parse event %q start-epoch: %w", e.Name, err)
		}
	}
	if e.EndEpoch != nil {
		if ev.EndEpoch, err = parseTimePtr(*e.EndEpoch); err != nil {
			return nil, fmt.Errorf("codec: parse event %q end-epoch: %w", e.Name, err)
		}
	}
	return ev, nil
}

func parseTimePtr(s string) (*time.Time, error) {
	t, err := identifier.DateTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
