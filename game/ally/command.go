package ally

import (
	"fmt"
	"strings"
)

// Command is an explicit order from the controlling player.
type Command int

const (
	CommandNone Command = iota
	CommandAttack
	CommandHold
	CommandDefensive
	CommandFollow
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandAttack:
		return "attack"
	case CommandHold:
		return "hold"
	case CommandDefensive:
		return "defensive"
	case CommandFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// ParseCommand resolves an order name (case-insensitive).
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CommandNone, nil
	case "attack":
		return CommandAttack, nil
	case "hold":
		return CommandHold, nil
	case "defensive":
		return CommandDefensive, nil
	case "follow":
		return CommandFollow, nil
	}
	return CommandNone, fmt.Errorf("ally: unknown command %q", s)
}

// MoveMode tags the movement intent written by actions.
type MoveMode int

const (
	MoveIdle MoveMode = iota
	MoveFollow
	MoveTo
	MoveHold
)

func (m MoveMode) String() string {
	switch m {
	case MoveIdle:
		return "idle"
	case MoveFollow:
		return "follow"
	case MoveTo:
		return "move_to"
	case MoveHold:
		return "hold"
	default:
		return "unknown"
	}
}

func (m MoveMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *MoveMode) UnmarshalText(b []byte) error {
	for mode := MoveIdle; mode <= MoveHold; mode++ {
		if mode.String() == string(b) {
			*m = mode
			return nil
		}
	}
	return fmt.Errorf("ally: unknown move mode %q", b)
}
