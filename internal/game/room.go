package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/calebdunn/subterfuge/internal/models"
)

// Phase is one state of the room state machine. Variants may inject phases of
// their own (e.g. an elimination or investigation sub-phase); the room adopts
// whatever phase the mission:resolve pipeline returns.
type Phase string

const (
	PhaseLobby         Phase = "LOBBY"
	PhaseTeamSelection Phase = "TEAM_SELECTION"
	PhaseVote          Phase = "VOTE"
	PhaseMission       Phase = "MISSION"
	PhaseGameOver      Phase = "GAME_OVER"
)

// Options tune one room. Zero values are replaced by DefaultOptions.
type Options struct {
	MinPlayers    int `json:"minPlayers"`
	MaxPlayers    int `json:"maxPlayers"`
	WinThreshold  int `json:"winThreshold"`  // missions a side needs to win
	MaxRejections int `json:"maxRejections"` // rejection streak that ends the game
	// RevealTeammates controls the default visibility rule: hidden-team
	// viewers see the hidden roster. Variants may still strip or extend the
	// produced view in state:sync.
	RevealTeammates bool `json:"revealTeammates"`
}

// DefaultOptions returns the standard five-to-ten player configuration.
func DefaultOptions() Options {
	return Options{
		MinPlayers:      5,
		MaxPlayers:      10,
		WinThreshold:    3,
		MaxRejections:   5,
		RevealTeammates: true,
	}
}

// MissionOutcome is one entry of the mission history.
type MissionOutcome struct {
	Success       bool `json:"success"`
	SabotageCount int  `json:"sabotageCount"`
}

// VoteResult is returned by TallyVotes.
type VoteResult struct {
	Approved       bool `json:"approved"`
	ApproveCount   int  `json:"approveCount"`
	RejectCount    int  `json:"rejectCount"`
	PenaltyApplied bool `json:"penaltyApplied"`
}

// MissionResult is returned by ResolveMission. Actions is keyed by durable id
// so recorded actions survive disconnects between submission and resolution.
type MissionResult struct {
	Success       bool               `json:"success"`
	SabotageCount int                `json:"sabotageCount"`
	Actions       map[uuid.UUID]bool `json:"actions"`
}

// EliminationResult is returned by HandleElimination. Success means the
// nominated target held the hidden counterpart role (the seer); CounterpartID
// is the durable id of the player who actually held it.
type EliminationResult struct {
	Success       bool      `json:"success"`
	CounterpartID uuid.UUID `json:"counterpartId"`
}

// Room holds the entire state for one game session in memory. Rooms share no
// state: each owns its roster, its counters, and its own hook pipeline.
//
// Mutating operations take the write lock and are transactional per call: any
// validation failure returns before the first field is touched. Hook
// callbacks run while the lock is held, so they must use the room's fields
// directly and never call the exported locking methods.
type Room struct {
	ID       uuid.UUID
	Opts     Options
	Variants []string

	Hooks *Hooks

	// Players in join order; the order defines the leadership rotation.
	Players []*models.Player

	Phase             Phase
	LeaderIndex       int
	MissionIndex      int
	FailedMissions    int
	SucceededMissions int
	History           []MissionOutcome
	RejectionStreak   int
	PenaltyApplied    bool

	SelectedTeam   []uuid.UUID // durable ids, set by SelectTeam
	pendingVotes   map[uuid.UUID]bool
	pendingActions map[uuid.UUID]bool

	EliminationDone   bool
	EliminationHit    bool
	EliminationTarget uuid.UUID

	// VariantState holds expansion-private state keyed by variant name,
	// initialized by that variant's game:start callback.
	VariantState map[string]interface{}

	CreatedAt    time.Time
	LastActivity time.Time

	Mu sync.RWMutex

	logger *logrus.Logger
	rng    *rand.Rand
}

// NewRoom builds an empty room in the lobby phase with its own hook pipeline.
func NewRoom(logger *logrus.Logger, opts Options) *Room {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	def := DefaultOptions()
	if opts.MinPlayers <= 0 {
		opts.MinPlayers = def.MinPlayers
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = def.MaxPlayers
	}
	if opts.WinThreshold <= 0 {
		opts.WinThreshold = def.WinThreshold
	}
	if opts.MaxRejections <= 0 {
		opts.MaxRejections = def.MaxRejections
	}

	id, _ := uuid.NewRandom()
	now := time.Now()
	return &Room{
		ID:             id,
		Opts:           opts,
		Hooks:          NewHooks(logger),
		Phase:          PhaseLobby,
		pendingVotes:   make(map[uuid.UUID]bool),
		pendingActions: make(map[uuid.UUID]bool),
		VariantState:   make(map[string]interface{}),
		CreatedAt:      now,
		LastActivity:   now,
		logger:         logger,
		rng:            rand.New(rand.NewSource(now.UnixNano())),
	}
}

// touch refreshes the activity timestamp. Assumes lock is held.
func (r *Room) touch() { r.LastActivity = time.Now() }

// playerByConn resolves a transient connection id. Assumes lock is held.
func (r *Room) playerByConn(connID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

// playerByDurable resolves a durable id. Assumes lock is held.
func (r *Room) playerByDurable(durableID uuid.UUID) *models.Player {
	for _, p := range r.Players {
		if p.DurableID == durableID {
			return p
		}
	}
	return nil
}

// AddPlayer joins a new player. A nil durableID defaults to the connection id
// (first-class identity is the durable id; the connection id is a lookup
// convenience). Returns nil if the room is full, already past the lobby, or
// either id is already taken.
func (r *Room) AddPlayer(connID uuid.UUID, name string, durableID uuid.UUID) *models.Player {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseLobby || len(r.Players) >= r.Opts.MaxPlayers {
		return nil
	}
	if durableID == uuid.Nil {
		durableID = connID
	}
	if r.playerByConn(connID) != nil || r.playerByDurable(durableID) != nil {
		return nil
	}

	p := &models.Player{
		ConnID:      connID,
		DurableID:   durableID,
		DisplayName: name,
		Connected:   true,
	}
	r.Players = append(r.Players, p)
	r.touch()
	r.logger.WithFields(logrus.Fields{"room": r.ID, "player": durableID}).Info("player joined")
	return p
}

// RemovePlayer removes the player owning connID from the roster, dropping any
// pending vote or mission action they had recorded. Returns false if the
// connection id is unknown.
func (r *Room) RemovePlayer(connID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	idx := -1
	for i, p := range r.Players {
		if p.ConnID == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	removed := r.Players[idx]
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	delete(r.pendingVotes, removed.DurableID)
	delete(r.pendingActions, removed.DurableID)

	if len(r.Players) > 0 {
		if idx < r.LeaderIndex {
			r.LeaderIndex--
		}
		if r.LeaderIndex >= len(r.Players) {
			r.LeaderIndex = 0
		}
		if r.Phase != PhaseLobby {
			r.setLeader(r.LeaderIndex)
		}
	} else {
		r.LeaderIndex = 0
	}
	r.touch()
	r.logger.WithFields(logrus.Fields{"room": r.ID, "player": removed.DurableID}).Info("player removed")
	return true
}

// MarkDisconnected flags the player as offline without removing them; their
// durable-id-keyed votes and mission actions stay recorded. Returns false if
// the connection id is unknown.
func (r *Room) MarkDisconnected(connID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerByConn(connID)
	if p == nil {
		return false
	}
	p.Connected = false
	p.Conn = nil
	r.touch()
	return true
}

// Reconnect rewrites the connection id of the player identified by durableID.
// Vote and mission bookkeeping is keyed by durable id, so an in-flight round
// is untouched. Returns false if the durable id is unknown.
func (r *Room) Reconnect(durableID, newConnID uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	p := r.playerByDurable(durableID)
	if p == nil {
		return false
	}
	p.ConnID = newConnID
	p.Connected = true
	r.touch()
	r.logger.WithFields(logrus.Fields{"room": r.ID, "player": durableID}).Info("player reconnected")
	return true
}

// Start begins the game: triggers game:start (variants initialize before any
// role exists), assigns base teams, and opens team selection under a random
// leader. Returns false if the roster is below the minimum or the room is not
// in the lobby phase.
func (r *Room) Start(ctx context.Context) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseLobby || len(r.Players) < r.Opts.MinPlayers {
		return false
	}

	r.Hooks.Trigger(ctx, HookGameStart, &HookContext{Room: r})

	r.assignRoles(ctx)
	r.Phase = PhaseTeamSelection
	r.MissionIndex = 0
	r.setLeader(r.rng.Intn(len(r.Players)))
	r.touch()
	r.logger.WithFields(logrus.Fields{"room": r.ID, "players": len(r.Players)}).Info("game started")
	return true
}

// assignRoles partitions the roster into the two base teams uniformly at
// random and clears special-role markers, then triggers roles:assign so
// variants can layer special roles onto the final membership.
// Assumes lock is held.
func (r *Room) assignRoles(ctx context.Context) {
	n := len(r.Players)
	spies := SpyCount(n)

	order := r.rng.Perm(n)
	for i, idx := range order {
		p := r.Players[idx]
		p.Special = models.SpecialNone
		if i < spies {
			p.Team = models.TeamSpies
		} else {
			p.Team = models.TeamResistance
		}
	}

	r.Hooks.Trigger(ctx, HookRolesAssign, &HookContext{Room: r})
}

// setLeader marks the player at index i as leader. Assumes lock is held.
func (r *Room) setLeader(i int) {
	r.LeaderIndex = i
	for j, p := range r.Players {
		p.IsLeader = j == i
	}
}

// advanceLeadership rotates leadership to the next seat in join order.
// Assumes lock is held.
func (r *Room) advanceLeadership() {
	if len(r.Players) == 0 {
		return
	}
	r.setLeader((r.LeaderIndex + 1) % len(r.Players))
}

// SelectTeam records the proposed mission team and opens voting. The ids are
// durable ids; the call fails, leaving phase and team untouched, unless the
// size matches the configured team size for the current roster and mission
// and every id resolves to a distinct roster member.
func (r *Room) SelectTeam(ids []uuid.UUID) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseTeamSelection {
		return false
	}
	want, ok := TeamSize(len(r.Players), r.MissionIndex)
	if !ok || len(ids) != want {
		return false
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if seen[id] || r.playerByDurable(id) == nil {
			return false
		}
		seen[id] = true
	}

	r.SelectedTeam = append([]uuid.UUID(nil), ids...)
	r.pendingVotes = make(map[uuid.UUID]bool)
	r.Phase = PhaseVote
	r.touch()
	return true
}

// SubmitVote records (or overwrites) the vote of the player owning connID.
// Unknown connection ids and out-of-phase votes are silently ignored.
func (r *Room) SubmitVote(connID uuid.UUID, approve bool) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseVote {
		return false
	}
	p := r.playerByConn(connID)
	if p == nil {
		return false
	}
	r.pendingVotes[p.DurableID] = approve
	r.touch()
	return true
}

// TallyVotes counts the recorded votes. Approval requires a strict majority
// of recorded votes (ties reject). A rejection grows the rejection streak,
// which is cumulative: an intervening approval does not shrink it, only the
// terminal penalty or Reset does. Hitting MaxRejections ends the game at once
// in favor of the hidden team. Votes are cleared unconditionally.
func (r *Room) TallyVotes() (VoteResult, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseVote {
		return VoteResult{}, false
	}

	var res VoteResult
	for _, approve := range r.pendingVotes {
		if approve {
			res.ApproveCount++
		} else {
			res.RejectCount++
		}
	}
	r.pendingVotes = make(map[uuid.UUID]bool)

	if res.ApproveCount > res.RejectCount {
		res.Approved = true
		r.pendingActions = make(map[uuid.UUID]bool)
		r.Phase = PhaseMission
	} else {
		r.RejectionStreak++
		r.SelectedTeam = nil
		if r.RejectionStreak >= r.Opts.MaxRejections {
			res.PenaltyApplied = true
			r.PenaltyApplied = true
			r.Phase = PhaseGameOver
			r.logger.WithFields(logrus.Fields{"room": r.ID, "streak": r.RejectionStreak}).Info("rejection penalty: game over")
		} else {
			r.advanceLeadership()
			r.Phase = PhaseTeamSelection
		}
	}
	r.touch()
	return res, true
}

// SubmitMissionAction records the success/sabotage choice of the player
// owning connID. Fails if the player is not on the selected team or the room
// is not in the mission phase.
func (r *Room) SubmitMissionAction(connID uuid.UUID, success bool) bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseMission {
		return false
	}
	p := r.playerByConn(connID)
	if p == nil {
		return false
	}
	onTeam := false
	for _, id := range r.SelectedTeam {
		if id == p.DurableID {
			onTeam = true
			break
		}
	}
	if !onTeam {
		return false
	}
	r.pendingActions[p.DurableID] = success
	r.touch()
	return true
}

// ResolveMission settles the current mission: any sabotage fails it. The
// tentative next phase (game over on a met threshold, otherwise team
// selection with the mission index advanced) is offered to mission:resolve,
// and the room adopts whatever phase the pipeline returns. The returned
// actions are keyed by durable id and include every recorded action, whether
// or not the submitter is still connected.
func (r *Room) ResolveMission(ctx context.Context) (MissionResult, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase != PhaseMission {
		return MissionResult{}, false
	}

	res := MissionResult{Actions: make(map[uuid.UUID]bool, len(r.pendingActions))}
	for id, success := range r.pendingActions {
		res.Actions[id] = success
		if !success {
			res.SabotageCount++
		}
	}
	res.Success = res.SabotageCount == 0

	if res.Success {
		r.SucceededMissions++
	} else {
		r.FailedMissions++
	}
	r.History = append(r.History, MissionOutcome{Success: res.Success, SabotageCount: res.SabotageCount})
	r.pendingActions = make(map[uuid.UUID]bool)
	r.SelectedTeam = nil

	next := PhaseTeamSelection
	if r.SucceededMissions >= r.Opts.WinThreshold || r.FailedMissions >= r.Opts.WinThreshold {
		next = PhaseGameOver
	} else {
		r.MissionIndex++
	}

	hc := r.Hooks.Trigger(ctx, HookMissionResolve, &HookContext{
		Room:           r,
		NextPhase:      next,
		MissionSuccess: res.Success,
		SabotageCount:  res.SabotageCount,
	})
	r.Phase = hc.NextPhase
	if r.Phase == PhaseTeamSelection {
		r.advanceLeadership()
	}
	r.touch()
	r.logger.WithFields(logrus.Fields{
		"room":     r.ID,
		"mission":  len(r.History),
		"success":  res.Success,
		"sabotage": res.SabotageCount,
		"phase":    r.Phase,
	}).Info("mission resolved")
	return res, true
}

// HandleElimination resolves the final win-or-lose sub-game: the nominated
// target is compared against the hidden counterpart role (the seer). The game
// ends regardless of the outcome. Fails if the target is not on the roster or
// the game is already over.
func (r *Room) HandleElimination(targetDurableID uuid.UUID) (EliminationResult, bool) {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	if r.Phase == PhaseGameOver || r.Phase == PhaseLobby {
		return EliminationResult{}, false
	}
	target := r.playerByDurable(targetDurableID)
	if target == nil {
		return EliminationResult{}, false
	}

	var res EliminationResult
	for _, p := range r.Players {
		if p.Special == models.SpecialSeer {
			res.CounterpartID = p.DurableID
			break
		}
	}
	res.Success = target.Special == models.SpecialSeer

	r.EliminationDone = true
	r.EliminationHit = res.Success
	r.EliminationTarget = targetDurableID
	r.Phase = PhaseGameOver
	r.touch()
	r.logger.WithFields(logrus.Fields{"room": r.ID, "target": targetDurableID, "hit": res.Success}).Info("elimination resolved")
	return res, true
}

// ResumeTeamSelection returns the room to team selection after a
// variant-injected sub-phase, rotating leadership exactly as ResolveMission
// would have. Fails in the lobby, in team selection itself, or once the game
// is over.
func (r *Room) ResumeTeamSelection() bool {
	r.Mu.Lock()
	defer r.Mu.Unlock()

	switch r.Phase {
	case PhaseLobby, PhaseTeamSelection, PhaseGameOver:
		return false
	}
	r.Phase = PhaseTeamSelection
	r.advanceLeadership()
	r.touch()
	return true
}

// Winner evaluates the terminal state. The elimination sub-game, if it
// happened, takes precedence over mission counters: a hit hands the game to
// the hidden team, a miss falls back to the counters. Returns nil while the
// game is still running or when no condition is met.
func (r *Room) Winner() *models.Team {
	r.Mu.RLock()
	defer r.Mu.RUnlock()
	return r.winnerLocked()
}

// winnerLocked implements Winner. Assumes lock is held.
func (r *Room) winnerLocked() *models.Team {
	if r.Phase != PhaseGameOver {
		return nil
	}
	if r.EliminationDone && r.EliminationHit {
		return teamPtr(models.TeamSpies)
	}
	if r.PenaltyApplied {
		return teamPtr(models.TeamSpies)
	}
	if r.SucceededMissions >= r.Opts.WinThreshold {
		return teamPtr(models.TeamResistance)
	}
	if r.FailedMissions >= r.Opts.WinThreshold {
		return teamPtr(models.TeamSpies)
	}
	return nil
}

func teamPtr(t models.Team) *models.Team { return &t }

// Reset zeroes all round state, strips role assignments, gives variants a
// game:reset to clean their private state, and starts a fresh game with the
// same roster.
func (r *Room) Reset(ctx context.Context) bool {
	r.Mu.Lock()

	r.MissionIndex = 0
	r.FailedMissions = 0
	r.SucceededMissions = 0
	r.History = nil
	r.RejectionStreak = 0
	r.PenaltyApplied = false
	r.SelectedTeam = nil
	r.pendingVotes = make(map[uuid.UUID]bool)
	r.pendingActions = make(map[uuid.UUID]bool)
	r.EliminationDone = false
	r.EliminationHit = false
	r.EliminationTarget = uuid.Nil
	for _, p := range r.Players {
		p.Team = ""
		p.Special = models.SpecialNone
		p.IsLeader = false
	}
	r.Phase = PhaseLobby

	r.Hooks.Trigger(ctx, HookGameReset, &HookContext{Room: r})
	r.Mu.Unlock()

	return r.Start(ctx)
}
