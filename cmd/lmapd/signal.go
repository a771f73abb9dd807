package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmap-agent/lmapd/internal/codec"
	"github.com/lmap-agent/lmapd/internal/config"
	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/runner"
	"github.com/lmap-agent/lmapd/internal/workspace"
)

// controlListener maps the signals of §4.6 onto one generation's
// Runner/Workspace, mirroring the teacher's listenSignals(ctx,
// listener) shape.
type controlListener struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Logger
	cfg    config.Config
	jc     *codec.JSON
	ws     *workspace.Workspace
	r      *runner.Runner

	sigs    chan os.Signal
	restart bool
}

func newControlListener(ctx context.Context, cancel context.CancelFunc, log logger.Logger, cfg config.Config, jc *codec.JSON, ws *workspace.Workspace, r *runner.Runner) *controlListener {
	return &controlListener{ctx: ctx, cancel: cancel, log: log, cfg: cfg, jc: jc, ws: ws, r: r, sigs: make(chan os.Signal, 16)}
}

func (c *controlListener) listen() {
	signal.Notify(c.sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGCHLD, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for {
			select {
			case <-c.ctx.Done():
				signal.Stop(c.sigs)
				return
			case sig := <-c.sigs:
				c.handle(sig)
			}
		}
	}()
}

func (c *controlListener) handle(sig os.Signal) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		c.shutdownAll()
		c.restart = false
		c.cancel()
	case syscall.SIGHUP:
		c.shutdownAll()
		c.restart = true
		c.cancel()
	case syscall.SIGCHLD:
		c.r.ReapNow()
	case syscall.SIGUSR1:
		c.dumpState()
	case syscall.SIGUSR2:
		c.cleanAndReinit()
	}
}

func (c *controlListener) shutdownAll() {
	for _, sched := range c.r.Lmap().Schedules {
		c.r.KillSchedule(sched)
	}
}

func (c *controlListener) dumpState() {
	c.ws.RefreshStorage(c.r.Lmap())
	f, err := os.Create(c.cfg.StatusFilePath())
	if err != nil {
		c.log.Warn("lmapd: open status file failed", "error", err)
		return
	}
	defer f.Close()
	if err := c.jc.EncodeState(f, c.r.Lmap()); err != nil {
		c.log.Warn("lmapd: write status file failed", "error", err)
	}
}

func (c *controlListener) cleanAndReinit() {
	if err := c.ws.CleanAll(); err != nil {
		c.log.Warn("lmapd: clean-all on USR2 failed", "error", err)
	}
	if err := initWorkspaces(c.ws, c.r.Lmap()); err != nil {
		c.log.Warn("lmapd: workspace re-init on USR2 failed", "error", err)
	}
}
