package game

import (
	"context"

	"github.com/google/uuid"

	"github.com/calebdunn/subterfuge/internal/models"
)

// SelfView is the viewer's own identity, including the hidden fields only the
// viewer may see.
type SelfView struct {
	DurableID   uuid.UUID          `json:"durableId"`
	ConnID      uuid.UUID          `json:"connId"`
	DisplayName string             `json:"displayName"`
	Team        models.Team        `json:"team,omitempty"`
	Special     models.SpecialRole `json:"special,omitempty"`
	IsLeader    bool               `json:"isLeader"`
	HasVoted    bool               `json:"hasVoted"`
}

// PlayerView is the public projection of one roster seat: who has voted or
// acted, never what they voted or did.
type PlayerView struct {
	ConnID      uuid.UUID `json:"connId"`
	DurableID   uuid.UUID `json:"durableId"`
	DisplayName string    `json:"displayName"`
	IsLeader    bool      `json:"isLeader"`
	Connected   bool      `json:"connected"`
	HasVoted    bool      `json:"hasVoted"`
	HasActed    bool      `json:"hasActed"`
}

// StateView is the per-viewer projection of a room. It is produced by the
// base engine and then passed through state:sync, so no field is guaranteed
// to survive variant rewriting.
type StateView struct {
	RoomID            uuid.UUID              `json:"roomId"`
	Phase             Phase                  `json:"phase"`
	You               SelfView               `json:"you"`
	Players           []PlayerView           `json:"players"`
	LeaderID          uuid.UUID              `json:"leaderId"`
	MissionIndex      int                    `json:"missionIndex"`
	TeamSize          int                    `json:"teamSize,omitempty"`
	SelectedTeam      []uuid.UUID            `json:"selectedTeam,omitempty"`
	RejectionStreak   int                    `json:"rejectionStreak"`
	SucceededMissions int                    `json:"succeededMissions"`
	FailedMissions    int                    `json:"failedMissions"`
	History           []MissionOutcome       `json:"history,omitempty"`
	Winner            *models.Team           `json:"winner,omitempty"`
	// KnownTeammates carries the default visibility rule: durable ids of the
	// hidden roster, revealed to hidden-team viewers when the room's
	// RevealTeammates option is on. Variants may strip or replace it.
	KnownTeammates []uuid.UUID            `json:"knownTeammates,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

// BuildStateView assembles the projection for the player identified by
// durableID and runs it through state:sync. Returns nil for an unknown
// durable id. Safe to call concurrently with other views; it holds the read
// lock for the duration, including the hook pass.
func (r *Room) BuildStateView(ctx context.Context, durableID uuid.UUID) *StateView {
	r.Mu.RLock()
	defer r.Mu.RUnlock()

	viewer := r.playerByDurable(durableID)
	if viewer == nil {
		return nil
	}

	view := &StateView{
		RoomID: r.ID,
		Phase:  r.Phase,
		You: SelfView{
			DurableID:   viewer.DurableID,
			ConnID:      viewer.ConnID,
			DisplayName: viewer.DisplayName,
			Team:        viewer.Team,
			Special:     viewer.Special,
			IsLeader:    viewer.IsLeader,
		},
		MissionIndex:      r.MissionIndex,
		SelectedTeam:      append([]uuid.UUID(nil), r.SelectedTeam...),
		RejectionStreak:   r.RejectionStreak,
		SucceededMissions: r.SucceededMissions,
		FailedMissions:    r.FailedMissions,
		History:           append([]MissionOutcome(nil), r.History...),
		Winner:            r.winnerLocked(),
		Extra:             make(map[string]interface{}),
	}
	if _, voted := r.pendingVotes[viewer.DurableID]; voted {
		view.You.HasVoted = true
	}
	if size, ok := TeamSize(len(r.Players), r.MissionIndex); ok {
		view.TeamSize = size
	}

	for i, p := range r.Players {
		pv := PlayerView{
			ConnID:      p.ConnID,
			DurableID:   p.DurableID,
			DisplayName: p.DisplayName,
			IsLeader:    p.IsLeader,
			Connected:   p.Connected,
		}
		if _, ok := r.pendingVotes[p.DurableID]; ok {
			pv.HasVoted = true
		}
		if _, ok := r.pendingActions[p.DurableID]; ok {
			pv.HasActed = true
		}
		if i == r.LeaderIndex && r.Phase != PhaseLobby {
			view.LeaderID = p.DurableID
		}
		view.Players = append(view.Players, pv)
	}

	if r.Opts.RevealTeammates && viewer.Team == models.TeamSpies {
		for _, p := range r.Players {
			if p.Team == models.TeamSpies {
				view.KnownTeammates = append(view.KnownTeammates, p.DurableID)
			}
		}
	}

	hc := r.Hooks.Trigger(ctx, HookStateSync, &HookContext{
		Room:     r,
		ViewerID: viewer.DurableID,
		View:     view,
	})
	return hc.View
}
