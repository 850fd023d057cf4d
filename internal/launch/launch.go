// Package launch starts task targets as detached OS processes.
package launch

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	logx "tickrun/pkg/logx"
)

var ErrEmptyTarget = errors.New("empty launch target")

// Launcher starts a target. Only the start itself is observed; the launched
// process is never waited on for its result.
type Launcher interface {
	Start(target string) error
}

// Exec launches targets with os/exec: no arguments, no captured output, in a
// new session/process group so the target outlives the scheduler.
type Exec struct {
	dir string
	log logx.Logger
}

// NewExec returns a launcher running targets in dir (empty means the
// scheduler's own working directory).
func NewExec(dir string, log logx.Logger) *Exec {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Exec{dir: strings.TrimSpace(dir), log: log}
}

func (e *Exec) Start(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrEmptyTarget
	}
	cmd := exec.Command(target)
	if e.dir != "" {
		cmd.Dir = e.dir
	}
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", target, err)
	}
	pid := cmd.Process.Pid
	e.log.Debug("target launched", logx.String("target", target), logx.Int("pid", pid))

	// Reap the child so it doesn't linger as a zombie.
	go func() {
		err := cmd.Wait()
		e.log.Debug("target exited", logx.String("target", target), logx.Int("pid", pid), logx.Err(err))
	}()
	return nil
}

// Func adapts a function to Launcher.
type Func func(target string) error

func (f Func) Start(target string) error { return f(target) }
