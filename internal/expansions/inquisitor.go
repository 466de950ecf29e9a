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

// PhaseInvestigation is the sub-phase the inquisitor variant injects after
// every mission while the game is still running.
const PhaseInvestigation game.Phase = "INVESTIGATION"

// inquestStateKey is the VariantState slot this variant owns on the room.
const inquestStateKey = "inquisitor"

// InquestRecord is one entry of the investigation audit trail. All ids are
// durable; state:sync projects them to connection ids for viewers.
type InquestRecord struct {
	InvestigatorID uuid.UUID `json:"investigatorId"`
	TargetID       uuid.UUID `json:"targetId"`
	MissionIndex   int       `json:"missionIndex"`
	At             time.Time `json:"at"`
}

// InquestState is the variant's room-private state: who holds the token, who
// was investigated last, and everything that happened so far.
type InquestState struct {
	HolderID     uuid.UUID
	LastTargetID uuid.UUID
	Audit        []InquestRecord
}

// Inquisitor is the investigation-token variant: a token circulates between
// players, letting its holder privately learn one target's base team per
// round before play continues.
type Inquisitor struct {
	rng *rand.Rand
}

func NewInquisitor() *Inquisitor {
	return &Inquisitor{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (q *Inquisitor) Name() string    { return "inquisitor" }
func (q *Inquisitor) Version() string { return "1.0.2" }

// Uninstall is documentation only; see Expansion.
func (q *Inquisitor) Uninstall(r *game.Room) {}

func (q *Inquisitor) Install(r *game.Room) {
	r.Hooks.Register(game.HookGameStart, q.seedToken)
	r.Hooks.Register(game.HookMissionResolve, q.injectInvestigation)
	r.Hooks.Register(game.HookStateSync, q.projectState)
	r.Hooks.Register(game.HookGameReset, q.clearState)
}

// seedToken hands the token to a random player at game start.
func (q *Inquisitor) seedToken(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	players := hc.Room.Players
	if len(players) == 0 {
		return hc, errors.New("inquisitor variant cannot start with an empty roster")
	}
	hc.Room.VariantState[inquestStateKey] = &InquestState{
		HolderID: players[q.rng.Intn(len(players))].DurableID,
	}
	return hc, nil
}

// injectInvestigation routes every continuing round through the
// investigation sub-phase. Endings (win, loss, or a variant-injected terminal
// sub-phase) pass through untouched.
func (q *Inquisitor) injectInvestigation(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	if hc.NextPhase == game.PhaseTeamSelection {
		hc.NextPhase = PhaseInvestigation
	}
	return hc, nil
}

// projectState exposes the token state to viewers in connection-id form.
func (q *Inquisitor) projectState(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	st := stateOf(hc.Room)
	if st == nil {
		return hc, nil
	}
	audit := make([]map[string]interface{}, 0, len(st.Audit))
	for _, rec := range st.Audit {
		audit = append(audit, map[string]interface{}{
			"investigatorConnId": connIDFor(hc.Room, rec.InvestigatorID),
			"targetConnId":       connIDFor(hc.Room, rec.TargetID),
			"missionIndex":       rec.MissionIndex,
			"at":                 rec.At,
		})
	}
	hc.View.Extra["investigation"] = map[string]interface{}{
		"holderConnId": connIDFor(hc.Room, st.HolderID),
		"audit":        audit,
	}
	return hc, nil
}

func (q *Inquisitor) clearState(ctx context.Context, hc *game.HookContext) (*game.HookContext, error) {
	delete(hc.Room.VariantState, inquestStateKey)
	return hc, nil
}

func stateOf(r *game.Room) *InquestState {
	st, _ := r.VariantState[inquestStateKey].(*InquestState)
	return st
}

func connIDFor(r *game.Room, durableID uuid.UUID) uuid.UUID {
	if p := playerByDurable(r, durableID); p != nil {
		return p.ConnID
	}
	return uuid.Nil
}

// Investigate is the transport-boundary command: the token holder privately
// learns the target's base team. The target is named by its current
// connection id and validated against the variant's rules: the caller must
// hold the token, the target must exist, must not be the caller, and must not
// be the immediately previous target. On success the token transfers to the
// target and the audit trail grows.
func Investigate(r *game.Room, callerConnID, targetConnID uuid.UUID) (models.Team, error) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	st := stateOf(r)
	if st == nil {
		return "", errors.New("inquisitor variant is not active")
	}
	if r.Phase != PhaseInvestigation {
		return "", errors.New("room is not in the investigation phase")
	}
	caller := playerByConn(r, callerConnID)
	if caller == nil || caller.DurableID != st.HolderID {
		return "", errors.New("only the token holder may investigate")
	}
	target := playerByConn(r, targetConnID)
	if target == nil {
		return "", errors.New("unknown target")
	}
	if target.DurableID == caller.DurableID {
		return "", errors.New("cannot investigate yourself")
	}
	if target.DurableID == st.LastTargetID {
		return "", errors.New("cannot investigate the previous target again")
	}

	st.Audit = append(st.Audit, InquestRecord{
		InvestigatorID: caller.DurableID,
		TargetID:       target.DurableID,
		MissionIndex:   r.MissionIndex,
		At:             time.Now(),
	})
	st.HolderID = target.DurableID
	st.LastTargetID = target.DurableID
	return target.Team, nil
}

// EndInvestigation closes the investigation sub-phase and resumes team
// selection for the next mission.
func EndInvestigation(r *game.Room) bool {
	r.Mu.RLock()
	phase := r.Phase
	r.Mu.RUnlock()
	if phase != PhaseInvestigation {
		return false
	}
	return r.ResumeTeamSelection()
}
