package main

import (
	"os"
	"os/exec"
	"syscall"
)

// lmapdReexecEnv marks a process that has already been re-spawned into
// its own session by daemonize, so a second call is a no-op.
const lmapdReexecEnv = "LMAPD_DAEMONIZED"

// daemonize backgrounds the process the way the C daemon's daemonize()
// in lmapd.c does: detach from the controlling terminal, start a new
// session, and point stdin/stdout/stderr at /dev/null. Go cannot
// fork() a running runtime safely (goroutines, the scheduler, and
// file descriptors opened by the standard library do not survive a
// bare fork), so the double-fork is reimplemented as a self re-exec
// into a new session via syscall.SysProcAttr{Setsid: true}: the parent
// starts a detached copy of itself and exits, and the child continues
// as the real daemon.
func daemonize() error {
	if os.Getenv(lmapdReexecEnv) == "1" {
		return nil
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devnull.Close()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	cmd.Env = append(os.Environ(), lmapdReexecEnv+"=1")
	cmd.Dir = "/"
	cmd.Stdin = devnull
	cmd.Stdout = devnull
	cmd.Stderr = devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}
