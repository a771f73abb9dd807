// Package runner implements the Scheduler/Runner (spec §4.5): the
// single event-loop consumer that reacts to Event firings, dispatches
// Schedules under their execution mode, execs Actions as child
// processes and reaps them on a child-death tick. Structured around
// the teacher's cmd/scheduler.go + internal/digraph/executor process
// lifecycle (argv construction, stdout redirection, status/signal
// exit-code capture) generalized from a DAG-of-steps to the Lmap
// Schedule/Action model.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/lmap-agent/lmapd/internal/event"
	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/merr"
	"github.com/lmap-agent/lmapd/internal/model"
	"github.com/lmap-agent/lmapd/internal/suppression"
	"github.com/lmap-agent/lmapd/internal/workspace"
)

// Runner owns the Lmap model, the Event Engine, the Workspace and the
// reap loop for one daemon generation (startup through reload/shutdown).
type Runner struct {
	log   logger.Logger
	lmap  *model.Lmap
	ws    *workspace.Workspace
	ev    *event.Engine
	supp  *suppression.Engine
	errs  *merr.Aggregate

	exposeAgentEnv bool

	mu       sync.Mutex
	children map[int]childRef // pid -> owning Action
}

type childRef struct {
	schedule *model.Schedule
	action   *model.Action
	cmd      *exec.Cmd
	dataFile *os.File
	base     string
}

// New returns a Runner for one generation of the daemon.
func New(log logger.Logger, lmap *model.Lmap, ws *workspace.Workspace, ev *event.Engine, exposeAgentEnv bool) *Runner {
	r := &Runner{
		log:            log,
		lmap:           lmap,
		ws:             ws,
		ev:             ev,
		errs:           &merr.Aggregate{},
		exposeAgentEnv: exposeAgentEnv,
		children:       make(map[int]childRef),
	}
	r.supp = suppression.New(log, r)
	return r
}

// KillAction implements suppression.Killer.
func (r *Runner) KillAction(sched *model.Schedule, a *model.Action) {
	r.killAction(a)
}

func (r *Runner) killAction(a *model.Action) {
	if a.PID == 0 {
		return
	}
	if err := syscall.Kill(a.PID, syscall.SIGTERM); err != nil {
		r.log.Warn("runner: kill action failed", "action", a.Name, "pid", a.PID, "error", err)
	}
}

// KillSchedule terminates every running Action of sched.
func (r *Runner) KillSchedule(sched *model.Schedule) {
	for _, a := range sched.Actions {
		r.killAction(a)
	}
}

// Run starts the Event dispatch loop and the one-second reap tick
// (§4.5's "safety net" for CHLD coalescing), returning when ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	go r.ev.Dispatch(ctx, r.handleFiring)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

// handleFiring implements §4.5's "Event firing flow": run the
// Suppression Engine first for every Suppression whose start/end is
// this Event, then walk the Schedules whose start/end is this Event.
func (r *Runner) handleFiring(f event.Firing) {
	for _, s := range r.lmap.Suppressions {
		if s.Start == f.Event.Name {
			r.supp.FireStart(s, r.lmap)
		}
		if s.End == f.Event.Name {
			r.supp.FireEnd(s, r.lmap)
		}
	}

	for _, sched := range r.lmap.Schedules {
		if sched.End == f.Event.Name {
			r.KillSchedule(sched)
		}
		if sched.Start == f.Event.Name {
			r.startSchedule(sched, f)
		}
	}
}

func (r *Runner) startSchedule(sched *model.Schedule, f event.Firing) {
	switch sched.State() {
	case model.StateDisabled:
		return
	case model.StateSuppressed:
		sched.CntSuppressions++
		return
	case model.StateRunning:
		sched.CntOverlaps++
		return
	}

	if f.CycleNumber != nil {
		sched.CycleNumber = f.CycleNumber
	}

	if err := r.ws.MoveSchedule(sched.Name); err != nil {
		r.log.Warn("runner: schedule-move failed", "schedule", sched.Name, "error", err)
	}

	sched.LastInvocation = f.At
	sched.CntInvocations++
	sched.SetState(model.StateRunning)

	for _, a := range sched.Actions {
		if err := r.ws.ActionClean(sched.Name, a.Name); err != nil {
			r.log.Warn("runner: action-clean before dispatch failed", "action", a.Name, "error", err)
		}
	}

	switch sched.ExecutionMode {
	case model.ExecParallel:
		for _, a := range sched.Actions {
			r.startAction(sched, a, f)
		}
	case model.ExecSequential, model.ExecPipelined:
		if len(sched.Actions) > 0 {
			r.startAction(sched, sched.Actions[0], f)
		}
	}

	if f.Event.Type == model.EventOneOff || f.Event.Type == model.EventImmediate || f.Event.Type == model.EventStartup {
		sched.SetState(model.StateDisabled)
	}
}

// startAction implements §4.5's "Action execution" steps 1-8.
func (r *Runner) startAction(sched *model.Schedule, a *model.Action, f event.Firing) {
	switch a.State() {
	case model.StateSuppressed:
		a.CntSuppressions++
		return
	case model.StateDisabled:
		return
	}
	if a.PID != 0 {
		a.CntOverlaps++
		return
	}

	task := r.lmap.TaskByName(a.Task)
	if task == nil || !r.lmap.Capability.HasProgram(task.Program) {
		r.errs.Addf("action", "action %q: task %q has no matching capability", a.Name, a.Task)
		a.CntFailures++
		return
	}

	argv := buildArgv(task, a)

	now := time.Now()
	a.LastInvocation = now
	a.SetState(model.StateRunning)
	a.CntInvocations++

	base := workspace.ResultFileBase(now.Unix(), sched.Name, a.Name)
	metaPath := r.ws.MetaPath(sched.Name, a.Name, base)
	dataPath := r.ws.DataPath(sched.Name, a.Name, base)

	if err := workspace.WriteMetaStart(metaPath, workspace.MetaStartInfo{
		Schedule:           sched,
		Action:             a,
		Task:               task,
		TaskOptions:        task.Options,
		ActionOptions:      a.Options,
		ScheduleTags:       sched.Tags,
		ActionTags:         a.Tags,
		ScheduleInvocation: sched.LastInvocation,
		ActionInvocation:   a.LastInvocation,
		CycleNumber:        sched.CycleNumber,
	}); err != nil {
		r.log.Warn("runner: write meta start failed", "action", a.Name, "error", err)
	}

	dataFile, err := os.OpenFile(dataPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		r.log.Warn("runner: open data file failed, marking action failed", "action", a.Name, "error", err)
		a.CntFailures++
		a.SetState(model.StateEnabled)
		return
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = r.ws.ActionDir(sched.Name, a.Name)
	cmd.Stdout = dataFile
	cmd.Env = r.childEnv()

	if err := cmd.Start(); err != nil {
		r.log.Warn("runner: exec failed, marking action failed", "action", a.Name, "error", err)
		dataFile.Close()
		a.CntFailures++
		a.SetState(model.StateEnabled)
		return
	}

	a.PID = cmd.Process.Pid
	r.mu.Lock()
	r.children[a.PID] = childRef{schedule: sched, action: a, cmd: cmd, dataFile: dataFile, base: base}
	r.mu.Unlock()
}

func (r *Runner) childEnv() []string {
	env := os.Environ()
	if !r.exposeAgentEnv {
		return env
	}
	agent := r.lmap.Agent
	if agent.ReportAgentID && agent.AgentID != uuid.Nil {
		env = append(env, fmt.Sprintf("LMAP_AGENT_ID=%s", agent.AgentID))
	}
	if agent.ReportMeasurementPoint && agent.MeasurementPoint != "" {
		env = append(env, fmt.Sprintf("LMAP_MEASUREMENT_POINT=%s", agent.MeasurementPoint))
	}
	if agent.GroupID != "" {
		env = append(env, fmt.Sprintf("LMAP_GROUP_ID=%s", agent.GroupID))
	}
	return env
}

// buildArgv implements §4.5 step 5.
func buildArgv(task *model.Task, a *model.Action) []string {
	argv := []string{task.Program}
	argv = append(argv, optionArgs(task.Options)...)
	argv = append(argv, optionArgs(a.Options)...)
	return argv
}

func optionArgs(opts []model.Option) []string {
	var out []string
	for _, o := range opts {
		if o.Name != nil {
			out = append(out, *o.Name)
		}
		if o.Value != nil {
			out = append(out, *o.Value)
		}
	}
	return out
}

// reap implements §4.5's "Completion flow", driven by the one-second
// safety-net tick (CHLD-driven reaping is wired in cmd/lmapd via
// signal.Notify feeding the same path).
func (r *Runner) reap() {
	r.mu.Lock()
	pids := make([]int, 0, len(r.children))
	for pid := range r.children {
		pids = append(pids, pid)
	}
	r.mu.Unlock()

	for _, pid := range pids {
		var ws syscall.WaitStatus
		got, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
		if err != nil || got != pid {
			continue
		}
		r.completeChild(pid, ws)
	}
}

func (r *Runner) completeChild(pid int, ws syscall.WaitStatus) {
	r.mu.Lock()
	ref, ok := r.children[pid]
	if ok {
		delete(r.children, pid)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	ref.dataFile.Close()

	a := ref.action
	sched := ref.schedule
	completion := time.Now()

	a.PID = 0
	if a.State() == model.StateRunning {
		if a.CntActiveSuppressions > 0 {
			a.SetState(model.StateSuppressed)
		} else {
			a.SetState(model.StateEnabled)
		}
	}
	a.LastCompletion = completion
	if ws.Exited() {
		a.LastStatus = ws.ExitStatus()
	} else {
		a.LastStatus = -int(ws.Signal())
	}
	if a.LastStatus != 0 {
		a.LastFailedCompletion = completion
		a.LastFailedStatus = a.LastStatus
		a.CntFailures++
	}

	metaPath := r.ws.MetaPath(sched.Name, a.Name, ref.base)
	if err := workspace.AppendMetaEnd(metaPath, completion, a.LastStatus); err != nil {
		r.log.Warn("runner: append meta end failed", "action", a.Name, "error", err)
	}

	// pipelined: hard-link this Action's result pair into the next
	// Action's workspace before destinations move it out of this one.
	if sched.ExecutionMode == model.ExecPipelined && a.LastStatus == 0 {
		if next := nextAction(sched, a); next != nil {
			for _, src := range []string{metaPath, r.ws.DataPath(sched.Name, a.Name, ref.base)} {
				dst := filepath.Join(r.ws.ActionDir(sched.Name, next.Name), filepath.Base(src))
				if err := os.Link(src, dst); err != nil {
					r.log.Warn("runner: pipeline link failed", "from", src, "to", dst, "error", err)
				}
			}
		}
	}
	if a.LastStatus == 0 && len(a.Destinations) > 0 {
		r.ws.MoveAction(sched.Name, a.Name, ref.base, a.Destinations)
	}
	if err := r.ws.ActionClean(sched.Name, a.Name); err != nil {
		r.log.Warn("runner: action-clean after completion failed", "action", a.Name, "error", err)
	}

	if (sched.ExecutionMode == model.ExecSequential || sched.ExecutionMode == model.ExecPipelined) &&
		sched.State() != model.StateSuppressed && !sched.StopRunning {
		if next := nextAction(sched, a); next != nil && a.LastStatus == 0 {
			r.startAction(sched, next, event.Firing{At: completion})
		}
	}

	r.surveySchedule(sched)
}

func nextAction(sched *model.Schedule, current *model.Action) *model.Action {
	for i, act := range sched.Actions {
		if act == current && i+1 < len(sched.Actions) {
			return sched.Actions[i+1]
		}
	}
	return nil
}

// surveySchedule implements the tail of §4.5's completion flow: once
// no Action remains running, settle the Schedule's state and clean
// its queue on a fully-successful cycle.
func (r *Runner) surveySchedule(sched *model.Schedule) {
	if sched.State() != model.StateRunning {
		return
	}
	anyRunning := false
	anyFailed := false
	anySucceeded := false
	for _, a := range sched.Actions {
		if a.State() == model.StateRunning || a.PID != 0 {
			anyRunning = true
		}
		if a.LastStatus != 0 && !a.LastCompletion.IsZero() {
			anyFailed = true
		}
		if a.LastStatus == 0 && !a.LastCompletion.IsZero() {
			anySucceeded = true
		}
	}
	if anyRunning {
		return
	}
	if sched.CntActiveSuppressions > 0 {
		sched.SetState(model.StateSuppressed)
	} else {
		sched.SetState(model.StateEnabled)
	}
	if anyFailed {
		sched.CntFailures++
	} else if anySucceeded {
		if err := r.ws.ScheduleClean(sched.Name); err != nil {
			r.log.Warn("runner: schedule-clean failed", "schedule", sched.Name, "error", err)
		}
	}
}

// Errors returns the Aggregate of non-fatal per-Action errors
// accumulated this generation.
func (r *Runner) Errors() *merr.Aggregate { return r.errs }

// ReapNow runs one pass of the completion flow immediately, for the
// CHLD signal handler to call between the Run loop's one-second safety-net ticks.
func (r *Runner) ReapNow() { r.reap() }

// Lmap exposes the model this generation's Runner is driving, so the
// control surface can render status/state documents from the same instance.
func (r *Runner) Lmap() *model.Lmap { return r.lmap }
