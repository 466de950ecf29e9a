package expansions

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebdunn/subterfuge/internal/game"
	"github.com/calebdunn/subterfuge/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// variantRoom builds a started room with the given variants and n players.
func variantRoom(t *testing.T, n int, variants ...string) (*game.Room, []*models.Player) {
	t.Helper()
	r := game.NewRoom(quietLogger(), game.DefaultOptions())
	for _, v := range variants {
		require.NoError(t, Install(r, v))
	}
	players := make([]*models.Player, n)
	for i := range players {
		connID, _ := uuid.NewRandom()
		p := r.AddPlayer(connID, fmt.Sprintf("player-%d", i), uuid.Nil)
		require.NotNil(t, p)
		players[i] = p
	}
	require.True(t, r.Start(context.Background()))
	return r, players
}

// playMission drives one full select/approve/resolve cycle. sabotage is the
// number of team members who play a sabotage action.
func playMission(t *testing.T, r *game.Room, players []*models.Player, sabotage int) game.MissionResult {
	t.Helper()
	size, ok := game.TeamSize(len(players), r.MissionIndex)
	require.True(t, ok)
	ids := make([]uuid.UUID, size)
	for i := 0; i < size; i++ {
		ids[i] = players[i].DurableID
	}
	require.True(t, r.SelectTeam(ids))
	for _, p := range players {
		require.True(t, r.SubmitVote(p.ConnID, true))
	}
	vres, ok := r.TallyVotes()
	require.True(t, ok)
	require.True(t, vres.Approved)
	for i := 0; i < size; i++ {
		require.True(t, r.SubmitMissionAction(players[i].ConnID, i >= sabotage))
	}
	mres, ok := r.ResolveMission(context.Background())
	require.True(t, ok)
	return mres
}

func bySpecial(players []*models.Player, s models.SpecialRole) *models.Player {
	for _, p := range players {
		if p.Special == s {
			return p
		}
	}
	return nil
}

func TestRegistryKnowsAllVariants(t *testing.T) {
	for _, id := range []string{"assassin", "blackout", "inquisitor"} {
		assert.True(t, Known(id), id)
	}
	assert.False(t, Known("nope"))
	r := game.NewRoom(quietLogger(), game.DefaultOptions())
	assert.Error(t, Install(r, "nope"))
	assert.Len(t, IDs(), 3)
}

func TestAssassinAssignsOneSpecialPerTeam(t *testing.T) {
	for trial := 0; trial < 5; trial++ {
		_, players := variantRoom(t, 7, "assassin")

		seer := bySpecial(players, models.SpecialSeer)
		eliminator := bySpecial(players, models.SpecialEliminator)
		require.NotNil(t, seer)
		require.NotNil(t, eliminator)
		assert.Equal(t, models.TeamResistance, seer.Team)
		assert.Equal(t, models.TeamSpies, eliminator.Team)

		specials := 0
		for _, p := range players {
			if p.Special != models.SpecialNone {
				specials++
			}
		}
		assert.Equal(t, 2, specials)
	}
}

func TestAssassinInjectsEliminationOnResistanceWin(t *testing.T) {
	r, players := variantRoom(t, 5, "assassin")
	for i := 0; i < 3; i++ {
		playMission(t, r, players, 0)
	}
	assert.Equal(t, PhaseElimination, r.Phase, "missions won by the resistance should open the elimination sub-phase")
	assert.Nil(t, r.Winner(), "game is not over until the elimination resolves")
}

func TestAssassinLeavesSpyWinAlone(t *testing.T) {
	r, players := variantRoom(t, 5, "assassin")
	for i := 0; i < 3; i++ {
		playMission(t, r, players, 1)
	}
	assert.Equal(t, game.PhaseGameOver, r.Phase)
	winner := r.Winner()
	require.NotNil(t, winner)
	assert.Equal(t, models.TeamSpies, *winner)
}

func TestEliminateCommand(t *testing.T) {
	t.Run("hit hands the game to the spies", func(t *testing.T) {
		r, players := variantRoom(t, 5, "assassin")
		for i := 0; i < 3; i++ {
			playMission(t, r, players, 0)
		}
		require.Equal(t, PhaseElimination, r.Phase)

		seer := bySpecial(players, models.SpecialSeer)
		eliminator := bySpecial(players, models.SpecialEliminator)

		res, err := Eliminate(r, eliminator.ConnID, seer.ConnID)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, game.PhaseGameOver, r.Phase)
		winner := r.Winner()
		require.NotNil(t, winner)
		assert.Equal(t, models.TeamSpies, *winner)
	})

	t.Run("miss lets the mission result stand", func(t *testing.T) {
		r, players := variantRoom(t, 5, "assassin")
		for i := 0; i < 3; i++ {
			playMission(t, r, players, 0)
		}
		seer := bySpecial(players, models.SpecialSeer)
		eliminator := bySpecial(players, models.SpecialEliminator)
		var decoy *models.Player
		for _, p := range players {
			if p != seer && p != eliminator {
				decoy = p
				break
			}
		}

		res, err := Eliminate(r, eliminator.ConnID, decoy.ConnID)
		require.NoError(t, err)
		assert.False(t, res.Success)
		winner := r.Winner()
		require.NotNil(t, winner)
		assert.Equal(t, models.TeamResistance, *winner)
	})

	t.Run("only the eliminator in the elimination phase", func(t *testing.T) {
		r, players := variantRoom(t, 5, "assassin")
		seer := bySpecial(players, models.SpecialSeer)
		eliminator := bySpecial(players, models.SpecialEliminator)

		_, err := Eliminate(r, eliminator.ConnID, seer.ConnID)
		assert.Error(t, err, "wrong phase")

		for i := 0; i < 3; i++ {
			playMission(t, r, players, 0)
		}
		_, err = Eliminate(r, seer.ConnID, eliminator.ConnID)
		assert.Error(t, err, "wrong caller")
	})
}

func TestAssassinSeerSight(t *testing.T) {
	r, players := variantRoom(t, 5, "assassin")
	seer := bySpecial(players, models.SpecialSeer)
	require.NotNil(t, seer)

	view := r.BuildStateView(context.Background(), seer.DurableID)
	require.NotNil(t, view)
	assert.Len(t, view.KnownTeammates, game.SpyCount(5), "seer sees the full hidden roster")
	for _, id := range view.KnownTeammates {
		p := byDurable(players, id)
		require.NotNil(t, p)
		assert.Equal(t, models.TeamSpies, p.Team)
	}
}

func TestBlackoutStripsTeammateVisibility(t *testing.T) {
	r, players := variantRoom(t, 5, "blackout")
	for _, p := range players {
		view := r.BuildStateView(context.Background(), p.DurableID)
		require.NotNil(t, view)
		assert.Empty(t, view.KnownTeammates, "blackout hides teammates from everyone without seer sight")
	}
}

func TestBlackoutSparesTheSeer(t *testing.T) {
	r, players := variantRoom(t, 5, "assassin", "blackout")
	seer := bySpecial(players, models.SpecialSeer)
	require.NotNil(t, seer)

	view := r.BuildStateView(context.Background(), seer.DurableID)
	require.NotNil(t, view)
	assert.Len(t, view.KnownTeammates, game.SpyCount(5))

	for _, p := range players {
		if p.Team == models.TeamSpies && p.Special != models.SpecialSeer {
			v := r.BuildStateView(context.Background(), p.DurableID)
			require.NotNil(t, v)
			assert.Empty(t, v.KnownTeammates)
		}
	}
}

func TestInquisitorSeedsToken(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	st := stateOf(r)
	require.NotNil(t, st)
	assert.NotNil(t, byDurable(players, st.HolderID), "token holder must be on the roster")
	assert.Empty(t, st.Audit)
}

func TestInquisitorInjectsPhaseAfterMission(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	playMission(t, r, players, 0)
	assert.Equal(t, PhaseInvestigation, r.Phase)

	require.True(t, EndInvestigation(r))
	assert.Equal(t, game.PhaseTeamSelection, r.Phase)
	assert.False(t, EndInvestigation(r), "second end is a no-op")
}

func TestInquisitorDoesNotOverrideEndings(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	for i := 0; i < 3; i++ {
		playMission(t, r, players, 1)
		if i < 2 {
			require.True(t, EndInvestigation(r))
		}
	}
	assert.Equal(t, game.PhaseGameOver, r.Phase)
}

func TestInquisitorYieldsToEliminationSubPhase(t *testing.T) {
	r, players := variantRoom(t, 5, "assassin", "inquisitor")
	for i := 0; i < 3; i++ {
		playMission(t, r, players, 0)
		if i < 2 {
			require.True(t, EndInvestigation(r))
		}
	}
	assert.Equal(t, PhaseElimination, r.Phase, "a variant-injected ending must not be rewritten into an investigation")
}

func TestInvestigateCommand(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	playMission(t, r, players, 0)
	require.Equal(t, PhaseInvestigation, r.Phase)

	st := stateOf(r)
	holder := byDurable(players, st.HolderID)
	var target, bystander *models.Player
	for _, p := range players {
		if p == holder {
			continue
		}
		if target == nil {
			target = p
		} else if bystander == nil {
			bystander = p
		}
	}

	// Only the holder may investigate.
	_, err := Investigate(r, bystander.ConnID, target.ConnID)
	assert.Error(t, err)

	// Not yourself.
	_, err = Investigate(r, holder.ConnID, holder.ConnID)
	assert.Error(t, err)

	// Not the immediately previous target.
	st.LastTargetID = target.DurableID
	_, err = Investigate(r, holder.ConnID, target.ConnID)
	assert.Error(t, err)
	st.LastTargetID = uuid.Nil

	team, err := Investigate(r, holder.ConnID, target.ConnID)
	require.NoError(t, err)
	assert.Equal(t, target.Team, team, "the holder privately learns the target's base team")

	assert.Equal(t, target.DurableID, st.HolderID, "token transfers to the target")
	assert.Equal(t, target.DurableID, st.LastTargetID)
	require.Len(t, st.Audit, 1)
	assert.Equal(t, holder.DurableID, st.Audit[0].InvestigatorID)
	assert.Equal(t, target.DurableID, st.Audit[0].TargetID)
}

func TestInvestigateOutsidePhaseFails(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	st := stateOf(r)
	holder := byDurable(players, st.HolderID)
	var target *models.Player
	for _, p := range players {
		if p != holder {
			target = p
			break
		}
	}
	_, err := Investigate(r, holder.ConnID, target.ConnID)
	assert.Error(t, err, "investigation only runs in its own sub-phase")
}

func TestInquisitorProjectsStateInConnIDForm(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	playMission(t, r, players, 0)

	st := stateOf(r)
	holder := byDurable(players, st.HolderID)
	var target *models.Player
	for _, p := range players {
		if p != holder {
			target = p
			break
		}
	}
	_, err := Investigate(r, holder.ConnID, target.ConnID)
	require.NoError(t, err)

	view := r.BuildStateView(context.Background(), players[0].DurableID)
	require.NotNil(t, view)
	inv, ok := view.Extra["investigation"].(map[string]interface{})
	require.True(t, ok, "investigation state should be projected into the view")
	assert.Equal(t, target.ConnID, inv["holderConnId"], "projection uses connection ids")
	audit, ok := inv["audit"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, audit, 1)
	assert.Equal(t, holder.ConnID, audit[0]["investigatorConnId"])
	assert.Equal(t, target.ConnID, audit[0]["targetConnId"])
}

func TestInquisitorClearsStateOnReset(t *testing.T) {
	r, players := variantRoom(t, 5, "inquisitor")
	playMission(t, r, players, 0)
	before := stateOf(r)
	require.NotNil(t, before)

	require.True(t, r.Reset(context.Background()))
	after := stateOf(r)
	require.NotNil(t, after, "reset re-seeds the token via game:start")
	assert.Empty(t, after.Audit)
}

func byDurable(players []*models.Player, id uuid.UUID) *models.Player {
	for _, p := range players {
		if p.DurableID == id {
			return p
		}
	}
	return nil
}
