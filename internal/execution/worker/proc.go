package worker

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"
)

type proc struct {
	cmd         *exec.Cmd
	pid         int
	termination chan struct{}
	exitErr     error

	stdin     io.WriteCloser
	stdinBuf  *bufio.Writer
	stdinLock sync.Mutex

	log *zap.Logger
}

func startProc(config StartConfig, log *zap.Logger) (*proc, error) {
	cmd := exec.Command(config.Cmd, config.Args...)

	if config.Env != nil {
		env := os.Environ()
		for k, v := range config.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	if config.Cwd != "" {
		cmd.Dir = config.Cwd
	}

	// the child draws its own ui, so its output
	// goes straight to our terminal by default
	cmd.Stdout = os.Stdout
	if config.Stdout != nil {
		cmd.Stdout = config.Stdout
	}

	cmd.Stderr = os.Stderr
	if config.Stderr != nil {
		cmd.Stderr = config.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	initCmd(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	process := &proc{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		termination: make(chan struct{}),
		stdin:       stdin,
		stdinBuf:    bufio.NewWriter(stdin),
		log:         log.Named("proc").With(zap.Int("pid", cmd.Process.Pid)),
	}

	go func() {
		// block until the process exits
		process.exitErr = cmd.Wait()

		// signal termination to all waiters
		close(process.termination)
	}()

	return process, nil
}

// write writes p to the stdin pipe of the process and flushes it, as
// the process reads stdin as a line-oriented control channel.
func (p *proc) write(data []byte) error {
	p.stdinLock.Lock()
	defer p.stdinLock.Unlock()

	if _, err := p.stdinBuf.Write(data); err != nil {
		return err
	}

	return p.stdinBuf.Flush()
}

// closeStdin closes the stdin pipe of the process.
func (p *proc) closeStdin() error {
	p.stdinLock.Lock()
	defer p.stdinLock.Unlock()

	return p.stdin.Close()
}

func (p *proc) done() <-chan struct{} {
	return p.termination
}

func (p *proc) exited() bool {
	select {
	case <-p.termination:
		return true
	default:
		return false
	}
}

// kill sends SIGKILL to the process group of the process. It reports
// success if the process terminated by the time kill is called.
func (p *proc) kill() error {
	if p.exited() {
		p.log.Debug("process already terminated")
		return nil
	}

	p.log.Debug("killing process")

	return p.killProcess()
}

// wait blocks until the process exits and returns the exit error.
func (p *proc) wait() error {
	<-p.termination
	return p.exitErr
}
