package game

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebdunn/subterfuge/internal/models"
)

func TestBuildStateViewUnknownViewer(t *testing.T) {
	r, _ := startedRoom(t, 5)
	ghost, _ := uuid.NewRandom()
	assert.Nil(t, r.BuildStateView(context.Background(), ghost))
}

func TestBuildStateViewBasics(t *testing.T) {
	r, players := startedRoom(t, 5)
	team := selectFirstTeam(t, r, players)
	require.True(t, r.SubmitVote(players[0].ConnID, true))

	view := r.BuildStateView(context.Background(), players[0].DurableID)
	require.NotNil(t, view)
	assert.Equal(t, r.ID, view.RoomID)
	assert.Equal(t, PhaseVote, view.Phase)
	assert.Equal(t, players[0].DurableID, view.You.DurableID)
	assert.Equal(t, players[0].Team, view.You.Team)
	assert.True(t, view.You.HasVoted)
	assert.Equal(t, team, view.SelectedTeam)
	assert.Equal(t, 2, view.TeamSize)
	assert.Equal(t, r.Players[r.LeaderIndex].DurableID, view.LeaderID)
	require.Len(t, view.Players, 5)

	// Others see that player 0 voted, but never what.
	other := r.BuildStateView(context.Background(), players[1].DurableID)
	require.NotNil(t, other)
	assert.False(t, other.You.HasVoted)
	for _, pv := range other.Players {
		if pv.DurableID == players[0].DurableID {
			assert.True(t, pv.HasVoted)
		} else {
			assert.False(t, pv.HasVoted)
		}
	}
}

func TestDefaultTeammateVisibility(t *testing.T) {
	r, players := startedRoom(t, 5)

	var spy, loyal *models.Player
	for _, p := range players {
		switch p.Team {
		case models.TeamSpies:
			if spy == nil {
				spy = p
			}
		case models.TeamResistance:
			if loyal == nil {
				loyal = p
			}
		}
	}
	require.NotNil(t, spy)
	require.NotNil(t, loyal)

	spyView := r.BuildStateView(context.Background(), spy.DurableID)
	require.NotNil(t, spyView)
	assert.Len(t, spyView.KnownTeammates, SpyCount(5), "hidden-team viewer sees the hidden roster")

	loyalView := r.BuildStateView(context.Background(), loyal.DurableID)
	require.NotNil(t, loyalView)
	assert.Empty(t, loyalView.KnownTeammates)
}

func TestTeammateVisibilityConfigurable(t *testing.T) {
	opts := DefaultOptions()
	opts.RevealTeammates = false
	r := NewRoom(quietLogger(), opts)
	var players []*models.Player
	for i := 0; i < 5; i++ {
		connID, _ := uuid.NewRandom()
		p := r.AddPlayer(connID, "p", uuid.Nil)
		require.NotNil(t, p)
		players = append(players, p)
	}
	require.True(t, r.Start(context.Background()))

	for _, p := range players {
		view := r.BuildStateView(context.Background(), p.DurableID)
		require.NotNil(t, view)
		assert.Empty(t, view.KnownTeammates)
	}
}

func TestStateSyncHookRewritesView(t *testing.T) {
	r, players := startedRoom(t, 5)
	r.Hooks.Register(HookStateSync, func(ctx context.Context, hc *HookContext) (*HookContext, error) {
		hc.View.Extra["marker"] = "present"
		return hc, nil
	})

	view := r.BuildStateView(context.Background(), players[0].DurableID)
	require.NotNil(t, view)
	assert.Equal(t, "present", view.Extra["marker"], "state:sync rewrites must reach the caller")
}
