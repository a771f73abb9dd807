package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lmap-agent/lmapd/internal/codec"
	"github.com/lmap-agent/lmapd/internal/config"
	"github.com/lmap-agent/lmapd/internal/control"
	"github.com/lmap-agent/lmapd/internal/event"
	"github.com/lmap-agent/lmapd/internal/logger"
	"github.com/lmap-agent/lmapd/internal/model"
	"github.com/lmap-agent/lmapd/internal/runner"
	"github.com/lmap-agent/lmapd/internal/workspace"
)

// version is stamped at build time the way the teacher's cmd/version.go does.
var version = "0.0.0"

var flags struct {
	daemonize    bool
	printConfig  bool
	printState   bool
	cleanOnStart bool
	queuePath    string
	configPath   string
	runPath      string
	showVersion  bool
}

var rootCmd = &cobra.Command{
	Use:   "lmapd",
	Short: "Measurement Agent daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&flags.daemonize, "daemonize", "f", false, "run as a daemon")
	rootCmd.Flags().BoolVarP(&flags.printConfig, "print-config", "n", false, "parse config and print it, then exit")
	rootCmd.Flags().BoolVarP(&flags.printState, "print-state", "s", false, "parse config and print state, then exit")
	rootCmd.Flags().BoolVarP(&flags.cleanOnStart, "clean", "z", false, "clean the queue before starting")
	rootCmd.Flags().StringVarP(&flags.queuePath, "queue-path", "q", "", "queue root directory")
	rootCmd.Flags().StringVarP(&flags.configPath, "config-path", "c", "", "config document path")
	rootCmd.Flags().StringVarP(&flags.runPath, "run-path", "r", "", "run directory (pid/status files)")
	rootCmd.Flags().BoolVarP(&flags.showVersion, "version", "v", false, "print version and exit")
}

// Execute runs the daemon's single root command and returns a process
// exit code, matching the teacher's cmd.Execute() / EXIT_FAILURE contract.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runDaemon(ctx context.Context) error {
	if flags.showVersion {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load("", config.Overrides{
		QueuePath:  flags.queuePath,
		ConfigPath: flags.configPath,
		RunPath:    flags.runPath,
		YAMLFile:   discoverYAMLConfig(),
	})
	if err != nil {
		return err
	}

	log := logger.New(logger.WithDebug())

	lmap, err := loadConfigDocument(cfg)
	if err != nil {
		return fmt.Errorf("lmapd: load config: %w", err)
	}
	if err := lmap.Validate(); err != nil {
		return fmt.Errorf("lmapd: invalid config: %w", err)
	}

	jsonCodec := codec.NewJSON()

	if flags.printConfig {
		return jsonCodec.EncodeConfig(os.Stdout, lmap)
	}
	if flags.printState {
		return jsonCodec.EncodeState(os.Stdout, lmap)
	}

	if flags.daemonize {
		if err := daemonize(); err != nil {
			return fmt.Errorf("lmapd: daemonize: %w", err)
		}
	}

	pidFile := control.NewPIDFile(cfg.PIDFilePath())
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer pidFile.Release()

	ws := workspace.New(cfg.QueuePath, log)
	if flags.cleanOnStart {
		if err := ws.CleanAll(); err != nil {
			log.Warn("lmapd: clean-all at startup failed", "error", err)
		}
	}
	if err := initWorkspaces(ws, lmap); err != nil {
		return fmt.Errorf("lmapd: workspace init: %w", err)
	}

	return runGeneration(ctx, log, cfg, jsonCodec, ws, lmap)
}

// runGeneration runs one event-loop generation, returning when the
// context is cancelled by shutdown, or looping again on reload.
func runGeneration(ctx context.Context, log logger.Logger, cfg config.Config, jsonCodec *codec.JSON, ws *workspace.Workspace, lmap *model.Lmap) error {
	for {
		genCtx, cancel := context.WithCancel(ctx)

		eng := event.New(log, cfg.RandCeiling)
		armed := make(map[string]bool)
		for _, sched := range lmap.Schedules {
			armReferenced(eng, lmap, armed, sched.Start)
			if sched.End != "" {
				armReferenced(eng, lmap, armed, sched.End)
			}
		}
		for _, sp := range lmap.Suppressions {
			armReferenced(eng, lmap, armed, sp.Start)
			armReferenced(eng, lmap, armed, sp.End)
		}

		r := runner.New(log, lmap, ws, eng, cfg.ExposeAgentEnv)

		ctrl := newControlListener(genCtx, cancel, log, cfg, jsonCodec, ws, r)
		ctrl.listen()

		r.Run(genCtx)
		cancel()

		if !ctrl.restart {
			return nil
		}

		reloaded, err := loadConfigDocument(cfg)
		if err != nil {
			log.Warn("lmapd: reload failed, keeping previous config", "error", err)
			continue
		}
		if err := reloaded.Validate(); err != nil {
			log.Warn("lmapd: reloaded config invalid, keeping previous config", "error", err)
			continue
		}
		lmap = reloaded
		if err := initWorkspaces(ws, lmap); err != nil {
			log.Warn("lmapd: workspace re-init after reload failed", "error", err)
		}
	}
}

func armReferenced(eng *event.Engine, lmap *model.Lmap, armed map[string]bool, name string) {
	if name == "" || armed[name] {
		return
	}
	ev := lmap.EventByName(name)
	if ev == nil {
		return
	}
	armed[name] = true
	eng.Arm(ev)
}

func loadConfigDocument(cfg config.Config) (*model.Lmap, error) {
	f, err := os.Open(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	lmap, err := codec.NewJSON().DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	if lmap.Agent.ControllerTimeout == 0 {
		lmap.Agent.ControllerTimeout = cfg.ControllerTimeoutDefault
	}
	return lmap, nil
}

// discoverYAMLConfig uses viper's search-path convention (the
// teacher's cmd/config.go does the same XDG-plus-cwd lookup) to find
// the daemon's own operational config file. An empty return means
// none was found, and config.Load falls back to defaults and flags.
func discoverYAMLConfig() string {
	v := viper.New()
	v.SetConfigName("lmapd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lmap-agent")
	v.AddConfigPath("/etc/lmap-agent")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

func initWorkspaces(ws *workspace.Workspace, lmap *model.Lmap) error {
	for _, sched := range lmap.Schedules {
		if err := ws.EnsureSchedule(sched.Name); err != nil {
			return err
		}
		sched.Workspace = ws.ScheduleDir(sched.Name)
		for _, a := range sched.Actions {
			if err := ws.EnsureAction(sched.Name, a.Name); err != nil {
				return err
			}
			a.Workspace = ws.ActionDir(sched.Name, a.Name)
		}
	}
	return nil
}
