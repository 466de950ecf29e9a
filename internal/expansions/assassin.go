package expansions

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/calebdunn/subterfuge/internal/game"
	"github.com/calebdunn/subterfuge/internal/models"
)

// PhaseElimination is the sub-phase the assassin variant injects when the
// resistance wins on missions: the eliminator gets one shot at the seer
// before the result stands.
const PhaseElimination game.Phase = "ELIMINATION"

// Assassin is the special-role variant: a seer on the resistance, an
// eliminator among the spies, and a last-chance elimination sub-game.
type Assassin struct {
	rng *rand.Rand
}

func NewAssassin() *Assassin {
	return &Assassin{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (a *Assassin) Name() string    { return "assassin" }
func (a *Assassin) Version() string { return "1.1.0" }

// Uninstall is documentation only; see Expansion.
func (a *Assassin) Uninstall(r *game.Room) {}

func (a *Assassin) Install(r *game.Room) {
	r.Hooks.Register(game.HookRolesAssign, a.assignSpecials)
	r.Hooks.Register(game.HookMissionResolve, a.maybeInjectElimination)
	r.Hooks.Register(game.HookStateSync, a.grantSeerSight)
}

// assignSpecials marks one random member of each base team. Runs after the
// base partition, so membership is final.
func (a *Assassin) assignSpecials(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	var resistance, spies []*models.Player
	for _, p := range hc.Room.Players {
		switch p.Team {
		case models.TeamResistance:
			resistance = append(resistance, p)
		case models.TeamSpies:
			spies = append(spies, p)
		}
	}
	if len(resistance) == 0 || len(spies) == 0 {
		return hc, errors.New("assassin variant needs at least one player on each team")
	}
	resistance[a.rng.Intn(len(resistance))].Special = models.SpecialSeer
	spies[a.rng.Intn(len(spies))].Special = models.SpecialEliminator
	return hc, nil
}

// maybeInjectElimination intercepts a game that is ending because the
// resistance won its missions and gives the spies the elimination sub-phase
// instead. Losses (mission failures or the rejection penalty) end as-is.
func (a *Assassin) maybeInjectElimination(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	r := hc.Room
	if hc.NextPhase == game.PhaseGameOver &&
		!r.PenaltyApplied &&
		r.SucceededMissions >= r.Opts.WinThreshold {
		hc.NextPhase = PhaseElimination
	}
	return hc, nil
}

// grantSeerSight attaches the full hidden roster to the seer's view, whatever
// the default visibility rule produced.
func (a *Assassin) grantSeerSight(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	viewer := playerByDurable(hc.Room, hc.ViewerID)
	if viewer == nil || viewer.Special != models.SpecialSeer {
		return hc, nil
	}
	known := known(hc.Room)
	hc.View.KnownTeammates = known
	return hc, nil
}

func known(r *game.Room) []uuid.UUID {
	var ids []uuid.UUID
	for _, p := range r.Players {
		if p.Team == models.TeamSpies {
			ids = append(ids, p.DurableID)
		}
	}
	return ids
}

func playerByDurable(r *game.Room, id uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.DurableID == id {
			return p
		}
	}
	return nil
}

func playerByConn(r *game.Room, id uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ConnID == id {
			return p
		}
	}
	return nil
}

// Eliminate is the transport-boundary command for the elimination sub-phase.
// The caller must be the eliminator and the room must be in the elimination
// phase; the target is named by its current connection id.
func Eliminate(r *game.Room, callerConnID, targetConnID uuid.UUID) (game.EliminationResult, error) {
	r.Mu.RLock()
	caller := playerByConn(r, callerConnID)
	target := playerByConn(r, targetConnID)
	phase := r.Phase
	r.Mu.RUnlock()

	if phase != PhaseElimination {
		return game.EliminationResult{}, errors.New("room is not in the elimination phase")
	}
	if caller == nil || caller.Special != models.SpecialEliminator {
		return game.EliminationResult{}, errors.New("only the eliminator may nominate a target")
	}
	if target == nil {
		return game.EliminationResult{}, errors.New("unknown target")
	}

	res, ok := r.HandleElimination(target.DurableID)
	if !ok {
		return game.EliminationResult{}, errors.New("elimination rejected by the room")
	}
	return res, nil
}
