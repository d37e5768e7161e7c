package notify

import (
	"fmt"
	"strings"
)

// Mode fixes whether reports reach the network.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeLogOnly
	ModeEnabled
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeLogOnly:
		return "log"
	case ModeEnabled:
		return "enabled"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the configuration forms of the enabled setting: a boolean
// or the literal "log".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on", "enabled":
		return ModeEnabled, nil
	case "false", "0", "no", "off", "disabled", "":
		return ModeDisabled, nil
	case "log":
		return ModeLogOnly, nil
	default:
		return ModeDisabled, fmt.Errorf("notify: unrecognized mode %q (want true, false, or log)", s)
	}
}
