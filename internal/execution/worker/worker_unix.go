//go:build aix || darwin || dragonfly || freebsd || (js && wasm) || linux || nacl || netbsd || openbsd || solaris

package worker

import (
	"os/exec"
	"syscall"
)

func (p *proc) killProcess() error {
	if pgid, err := syscall.Getpgid(p.pid); err == nil {
		// Negative pid sends signal to all in process group
		return syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		return syscall.Kill(p.pid, syscall.SIGKILL)
	}
}

func initCmd(cmd *exec.Cmd) {
	// run the child in its own process group, so that killing it
	// also takes down the tools it spawned (dart, adb, ...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
