//go:build aix || darwin || dragonfly || freebsd || (js && wasm) || linux || nacl || netbsd || openbsd || solaris

package shell

import (
	"os"
	"syscall"
)

// shutdownSignals stop the app in addition to SIGINT and SIGTERM,
// which are handled by fx.
var shutdownSignals = []os.Signal{syscall.SIGHUP, syscall.SIGQUIT}
