package supervisor

import "errors"

var (
	ErrSupervisorClosed = errors.New("supervisor closed")
	ErrInvalidConfig    = errors.New("invalid flutter configuration")
)

// reloadSequence is written to the child's stdin to trigger a hot reload.
var reloadSequence = []byte("r\n")

const reloadNotice = "\n🔄 Change detected, triggering hot reload...\n"
