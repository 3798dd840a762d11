package supervisor

import (
	"fmt"
	"time"
)

// DefaultBinary is the name of the flutter command line tool.
const DefaultBinary = "flutter"

// DefaultDebounce is the default minimum interval between two reloads.
const DefaultDebounce = 1000

// Mode is the flutter build mode of the child.
type Mode string

const (
	DebugMode   Mode = "debug"
	ProfileMode Mode = "profile"
	ReleaseMode Mode = "release"
)

type Config struct {
	// Binary is the name or path of the flutter executable
	Binary string `conf:"binary"`

	// ProjectPath is the flutter project directory, which is
	// used as working directory for the child
	ProjectPath string `conf:"project_path"`

	// DeviceID is the device to run the application on
	DeviceID string `conf:"device_id"`

	// Flavor is the build flavor to use
	Flavor string `conf:"flavor"`

	// Release runs the application in release mode
	Release bool `conf:"release"`

	// Profile runs the application in profile mode
	Profile bool `conf:"profile"`

	// Debounce is the minimum interval between two
	// dispatched reloads, in milliseconds
	Debounce int `conf:"debounce"`

	// Args are passed through to `flutter run` verbatim,
	// after all other arguments
	Args []string `conf:"args"`

	// Env holds environment variables set for flutter in
	// addition to the environment of this process
	Env map[string]string `conf:"env"`
}

// Validate rejects configurations flutter cannot be run with.
func (c Config) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("%w: debounce must not be negative, got %d", ErrInvalidConfig, c.Debounce)
	}

	return nil
}

// Mode returns the build mode. Release takes precedence over profile.
func (c Config) Mode() Mode {
	if c.Release {
		return ReleaseMode
	}

	if c.Profile {
		return ProfileMode
	}

	return DebugMode
}

// DebounceInterval returns the debounce interval as a duration.
func (c Config) DebounceInterval() time.Duration {
	return time.Duration(c.Debounce) * time.Millisecond
}

// BinaryOrDefault returns the configured binary, or DefaultBinary.
func (c Config) BinaryOrDefault() string {
	if c.Binary == "" {
		return DefaultBinary
	}

	return c.Binary
}

// RunArgs assembles the argument list for `flutter run`.
func (c Config) RunArgs() []string {
	args := []string{"run"}

	if c.DeviceID != "" {
		args = append(args, "--device-id", c.DeviceID)
	}

	if c.Flavor != "" {
		args = append(args, "--flavor", c.Flavor)
	}

	switch c.Mode() {
	case ReleaseMode:
		args = append(args, "--release")
	case ProfileMode:
		args = append(args, "--profile")
	}

	return append(args, c.Args...)
}
