package worker

import "os/exec"

func (p *proc) killProcess() error {
	return p.cmd.Process.Kill()
}

func initCmd(cmd *exec.Cmd) {
	// No-op on Windows.
}
