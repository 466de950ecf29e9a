package expansions

import (
	"context"

	"github.com/calebdunn/subterfuge/internal/game"
	"github.com/calebdunn/subterfuge/internal/models"
)

// Blackout is the visibility-restriction variant: hidden-team players do not
// learn who their teammates are unless they also hold the seer role.
type Blackout struct{}

func NewBlackout() *Blackout { return &Blackout{} }

func (b *Blackout) Name() string    { return "blackout" }
func (b *Blackout) Version() string { return "1.0.0" }

// Uninstall is documentation only; see Expansion.
func (b *Blackout) Uninstall(r *game.Room) {}

func (b *Blackout) Install(r *game.Room) {
	r.Hooks.Register(game.HookStateSync, b.redactTeammates)
}

func (b *Blackout) redactTeammates(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	viewer := playerByDurable(hc.Room, hc.ViewerID)
	if viewer == nil {
		return hc, nil
	}
	if viewer.Team == models.TeamSpies && viewer.Special != models.SpecialSeer {
		hc.View.KnownTeammates = nil
	}
	return hc, nil
}
