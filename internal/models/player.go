package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Team is the base allegiance assigned at game start.
type Team string

const (
	TeamResistance Team = "resistance" // the visible majority team
	TeamSpies      Team = "spies"      // the hidden minority team
)

// SpecialRole is an optional marker layered on top of the base team by a
// variant. The base engine never assigns one.
type SpecialRole string

const (
	SpecialNone       SpecialRole = ""
	SpecialSeer       SpecialRole = "seer"
	SpecialEliminator SpecialRole = "eliminator"
)

// Player is one seat in a room. DurableID is the stable per-human identity
// that survives reconnects; ConnID is the transient websocket identity and is
// rewritten in place on reconnect. All game bookkeeping keys off DurableID.
type Player struct {
	ConnID      uuid.UUID   `json:"connId"`
	DurableID   uuid.UUID   `json:"durableId"`
	DisplayName string      `json:"displayName"`
	Team        Team        `json:"-"`
	Special     SpecialRole `json:"-"`
	IsLeader    bool        `json:"isLeader"`
	Connected   bool        `json:"connected"`

	Conn *websocket.Conn `json:"-"`
}
