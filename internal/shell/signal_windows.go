//go:build windows

package shell

import "os"

var shutdownSignals = []os.Signal{}
