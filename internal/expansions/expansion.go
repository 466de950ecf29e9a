// Package expansions holds the optional rule variants that can be installed
// into a room's hook pipeline at creation time. Each variant is independent:
// it owns its hook callbacks, any private state it stashes on the room, and
// any transport-boundary commands it exposes.
package expansions

import (
	"fmt"

	"github.com/calebdunn/subterfuge/internal/game"
)

// Expansion is one named, versioned rule variant. Install registers its
// callbacks into the room's private pipeline; it must be called exactly once
// per room (the pipeline runs duplicate registrations twice). Uninstall
// exists for symmetry only: callbacks are not individually removable, and
// pipelines die with their room, so there is nothing to tear down.
type Expansion interface {
	Name() string
	Version() string
	Install(r *game.Room)
	Uninstall(r *game.Room)
}

// factories maps variant id -> constructor. A fresh expansion instance is
// built per room so plugin-held state never crosses sessions.
var factories = map[string]func() Expansion{
	"assassin":   func() Expansion { return NewAssassin() },
	"blackout":   func() Expansion { return NewBlackout() },
	"inquisitor": func() Expansion { return NewInquisitor() },
}

// Known reports whether a variant id is registered.
func Known(id string) bool {
	_, ok := factories[id]
	return ok
}

// Install builds the named variant and installs it into the room. It is the
// RoomStore.Installer used by the server.
func Install(r *game.Room, id string) error {
	f, ok := factories[id]
	if !ok {
		return fmt.Errorf("unknown variant %q", id)
	}
	f().Install(r)
	return nil
}

// IDs lists the registered variant ids.
func IDs() []string {
	out := make([]string, 0, len(factories))
	for id := range factories {
		out = append(out, id)
	}
	return out
}
