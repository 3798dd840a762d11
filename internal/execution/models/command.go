package models

import "fmt"

// CommandKind identifies the variant of a Command.
type CommandKind int

const (
	// ReloadCommand requests a hot reload of the running application.
	ReloadCommand CommandKind = iota

	// KeyInputCommand carries a single raw byte typed on the terminal.
	KeyInputCommand
)

// Command is a single instruction for the supervised child process.
type Command struct {
	// Kind is the command variant
	Kind CommandKind

	// Key is the byte to forward, only set for KeyInputCommand
	Key byte
}

// Reload returns a command requesting a hot reload.
func Reload() Command {
	return Command{Kind: ReloadCommand}
}

// KeyInput returns a command forwarding b verbatim to the child.
func KeyInput(b byte) Command {
	return Command{Kind: KeyInputCommand, Key: b}
}

func (c Command) IsReload() bool {
	return c.Kind == ReloadCommand
}

func (c Command) String() string {
	switch c.Kind {
	case ReloadCommand:
		return "reload"
	case KeyInputCommand:
		return fmt.Sprintf("key(%q)", c.Key)
	default:
		return fmt.Sprintf("unknown(%d)", c.Kind)
	}
}
