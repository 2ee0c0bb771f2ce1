package arena

import (
	"context"

	"github.com/kasuganosora/allyai/game/ally"
	"github.com/kasuganosora/allyai/plugin/hook"
)

// RejectCommands registers a BeforeCommand hook that vetoes the given
// orders. Clearing an order is always allowed.
func RejectCommands(hc *hook.Center, cmds ...ally.Command) {
	if len(cmds) == 0 {
		return
	}
	blocked := make(map[ally.Command]bool, len(cmds))
	for _, c := range cmds {
		if c != ally.CommandNone {
			blocked[c] = true
		}
	}
	hc.Register(hook.BeforeCommand, 0, "reject_commands", func(_ context.Context, _ string, data any) (any, error) {
		if ev, ok := data.(CommandEvent); ok && blocked[ev.Command] {
			return data, hook.ErrInterrupt
		}
		return data, nil
	})
}
