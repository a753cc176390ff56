package pakstream

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode selects the provider an archive is streamed from.
type Mode int

const (
	// ModeLocal reads archives from the local content directory.
	ModeLocal Mode = iota

	// ModeRemote reads archives from the remote file host.
	ModeRemote
)

// String returns "local" or "remote".
func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// ParseMode parses "local" or "remote", ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return ModeLocal, nil
	case "remote":
		return ModeRemote, nil
	default:
		return 0, fmt.Errorf("pakstream: unknown mode %q (want local or remote)", s)
	}
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	v, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}
