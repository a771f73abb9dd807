// Package suppression implements the Suppression Engine (spec §4.4):
// tag-glob gating of Schedules and Actions between a Suppression's
// start and end Events. Match-glob compilation and matching use
// github.com/gobwas/glob, promoted here from an indirect dependency
// of the teacher's retrieval pack into a direct one — see DESIGN.md.
package suppression

import (
	"github.com/gobwas/glob"

	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
)

// Killer terminates a running Action's child process (SIGTERM-equivalent).
type Killer interface {
	KillAction(schedule *model.Schedule, action *model.Action)
}

// Engine evaluates Suppression start/end firings against a Lmap model.
type Engine struct {
	log    logger.Logger
	killer Killer
}

// New returns an Engine that uses killer to terminate running Actions
// when a stop_running Suppression demands it.
func New(log logger.Logger, killer Killer) *Engine {
	return &Engine{log: log, killer: killer}
}

// compileMatches compiles a Suppression's match-glob list under
// standard shell-glob semantics (no path separators are special).
func compileMatches(patterns []string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		globs = append(globs, g)
	}
	return globs
}

func anyMatch(globs []glob.Glob, tags []string) bool {
	for _, tag := range tags {
		for _, g := range globs {
			if g.Match(tag) {
				return true
			}
		}
	}
	return false
}

// isInert reports whether a Suppression has no match list or no name,
// per §4.4 ("A Suppression with no match list or no name is inert").
func isInert(s *model.Suppression) bool {
	return s.Name == "" || len(s.Match) == 0
}

// FireStart applies a Suppression's start-Event firing across every
// Schedule (and its Actions) in lmap, per §4.4.
func (e *Engine) FireStart(s *model.Suppression, lmap *model.Lmap) {
	if isInert(s) {
		return
	}
	if s.GetState() != model.SuppressionEnabled {
		e.log.Warn("suppression: start fired while not enabled, ignoring", "suppression", s.Name)
		return
	}
	s.SetState(model.SuppressionActive)

	globs := compileMatches(s.Match)
	for _, sched := range lmap.Schedules {
		if sched.State() == model.StateDisabled {
			continue
		}
		if anyMatch(globs, sched.SuppressionTags) {
			sched.CntActiveSuppressions++
			if sched.State() == model.StateEnabled {
				sched.SetState(model.StateSuppressed)
			}
			if s.StopRunning {
				sched.StopRunning = true
			}
		}

		for _, a := range sched.Actions {
			if a.State() == model.StateDisabled {
				continue
			}
			killed := false
			if sched.StopRunning && a.State() == model.StateRunning {
				e.killer.KillAction(sched, a)
				killed = true
			}
			if anyMatch(globs, a.SuppressionTags) {
				a.CntActiveSuppressions++
				if a.State() == model.StateEnabled {
					a.SetState(model.StateSuppressed)
				}
				if a.State() == model.StateRunning && s.StopRunning {
					if !killed {
						e.killer.KillAction(sched, a)
					}
					a.SetState(model.StateSuppressed)
				}
			}
		}
	}
}

// FireEnd applies a Suppression's end-Event firing: decrement
// cnt_active_suppressions (floored at zero) on every matching
// Schedule/Action and return it to enabled once the count reaches zero.
func (e *Engine) FireEnd(s *model.Suppression, lmap *model.Lmap) {
	if isInert(s) {
		return
	}
	if s.GetState() != model.SuppressionActive {
		e.log.Warn("suppression: end fired while not active, ignoring", "suppression", s.Name)
		return
	}
	s.SetState(model.SuppressionEnabled)

	globs := compileMatches(s.Match)
	for _, sched := range lmap.Schedules {
		if anyMatch(globs, sched.SuppressionTags) {
			decrement(&sched.CntActiveSuppressions)
			if sched.CntActiveSuppressions == 0 && sched.State() == model.StateSuppressed {
				sched.SetState(model.StateEnabled)
			}
		}
		for _, a := range sched.Actions {
			if anyMatch(globs, a.SuppressionTags) {
				decrement(&a.CntActiveSuppressions)
				if a.CntActiveSuppressions == 0 && a.State() == model.StateSuppressed {
					a.SetState(model.StateEnabled)
				}
			}
		}
	}
}

func decrement(n *uint64) {
	if *n > 0 {
		*n--
	}
}
