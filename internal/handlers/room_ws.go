package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/calebdunn/subterfuge/internal/expansions"
	"github.com/calebdunn/subterfuge/internal/game"
	"github.com/calebdunn/subterfuge/internal/middleware"
)

// RoomMessage is one incoming client message on a room websocket.
type RoomMessage struct {
	Type         string   `json:"type"`
	TeamIDs      []string `json:"teamIds,omitempty"`      // select_team: durable ids
	Approve      *bool    `json:"approve,omitempty"`      // vote
	Success      *bool    `json:"success,omitempty"`      // mission_action
	TargetConnID string   `json:"targetConnId,omitempty"` // eliminate / investigate
}

const writeTimeout = 5 * time.Second

// RoomWSHandler upgrades the connection for one room (/room/ws/{room_id}),
// joins or reconnects the player, and runs the read loop that dispatches game
// actions. Query params: name (display name), durable (durable id for
// reconnects; omitted on first join).
func RoomWSHandler(logger *logrus.Logger, s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/room/ws/")
		roomID, err := uuid.Parse(strings.Split(idStr, "/")[0])
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		room, ok := s.Rooms.Get(roomID)
		if !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"subterfuge"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal error")
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		connID, _ := uuid.NewRandom()
		name := r.URL.Query().Get("name")
		durable := uuid.Nil
		if d := r.URL.Query().Get("durable"); d != "" {
			durable, err = uuid.Parse(d)
			if err != nil {
				c.Close(websocket.StatusPolicyViolation, "invalid durable id")
				return
			}
		}

		// Reconnect if the durable id is already seated, otherwise join.
		joined := durable != uuid.Nil && room.Reconnect(durable, connID)
		if !joined {
			p := room.AddPlayer(connID, name, durable)
			if p == nil {
				c.Close(websocket.StatusPolicyViolation, "room is full or already started")
				return
			}
			durable = p.DurableID
		}

		room.Mu.Lock()
		for _, p := range room.Players {
			if p.DurableID == durable {
				p.Conn = c
				break
			}
		}
		room.Mu.Unlock()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Everyone learns about the join/reconnect; the newcomer gets their
		// first private view as part of it.
		broadcastViews(ctx, room, logger)

		readRoomMessages(ctx, c, s, room, connID, logger)

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
		room.MarkDisconnected(connID)
		broadcastViews(context.Background(), room, logger)
	}
}

// readRoomMessages blocks reading client messages until the connection drops.
func readRoomMessages(ctx context.Context, c *websocket.Conn, s *Server, room *game.Room, connID uuid.UUID, logger *logrus.Logger) {
	for {
		var msg RoomMessage
		if err := wsjson.Read(ctx, c, &msg); err != nil {
			return
		}
		dispatchRoomMessage(ctx, c, s, room, connID, msg, logger)
	}
}

func dispatchRoomMessage(ctx context.Context, c *websocket.Conn, s *Server, room *game.Room, connID uuid.UUID, msg RoomMessage, logger *logrus.Logger) {
	switch msg.Type {
	case "start":
		if !room.Start(ctx) {
			writeError(ctx, c, "cannot start: not enough players or game already running")
			return
		}
		broadcastViews(ctx, room, logger)

	case "select_team":
		ids := make([]uuid.UUID, 0, len(msg.TeamIDs))
		for _, raw := range msg.TeamIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(ctx, c, "invalid team member id")
				return
			}
			ids = append(ids, id)
		}
		if !room.SelectTeam(ids) {
			writeError(ctx, c, "team rejected: wrong size or unknown member")
			return
		}
		broadcastViews(ctx, room, logger)

	case "vote":
		if msg.Approve == nil {
			writeError(ctx, c, "vote requires approve")
			return
		}
		if !room.SubmitVote(connID, *msg.Approve) {
			writeError(ctx, c, "vote not accepted")
			return
		}
		broadcastViews(ctx, room, logger)

	case "tally":
		res, ok := room.TallyVotes()
		if !ok {
			writeError(ctx, c, "nothing to tally")
			return
		}
		broadcastEvent(ctx, room, logger, map[string]interface{}{
			"type":           "vote_result",
			"approved":       res.Approved,
			"approveCount":   res.ApproveCount,
			"rejectCount":    res.RejectCount,
			"penaltyApplied": res.PenaltyApplied,
		})
		broadcastViews(ctx, room, logger)

	case "mission_action":
		if msg.Success == nil {
			writeError(ctx, c, "mission_action requires success")
			return
		}
		if !room.SubmitMissionAction(connID, *msg.Success) {
			writeError(ctx, c, "you are not on the selected team")
			return
		}
		broadcastViews(ctx, room, logger)

	case "resolve":
		res, ok := room.ResolveMission(ctx)
		if !ok {
			writeError(ctx, c, "no mission to resolve")
			return
		}
		actions := make(map[string]bool, len(res.Actions))
		for id, success := range res.Actions {
			actions[id.String()] = success
		}
		broadcastEvent(ctx, room, logger, map[string]interface{}{
			"type":          "mission_result",
			"success":       res.Success,
			"sabotageCount": res.SabotageCount,
			"actions":       actions,
		})
		broadcastViews(ctx, room, logger)

	case "eliminate":
		target, err := uuid.Parse(msg.TargetConnID)
		if err != nil {
			writeError(ctx, c, "invalid target id")
			return
		}
		res, err := expansions.Eliminate(room, connID, target)
		if err != nil {
			writeError(ctx, c, err.Error())
			return
		}
		broadcastEvent(ctx, room, logger, map[string]interface{}{
			"type":    "elimination_result",
			"success": res.Success,
		})
		broadcastViews(ctx, room, logger)

	case "investigate":
		target, err := uuid.Parse(msg.TargetConnID)
		if err != nil {
			writeError(ctx, c, "invalid target id")
			return
		}
		team, err := expansions.Investigate(room, connID, target)
		if err != nil {
			writeError(ctx, c, err.Error())
			return
		}
		// The revealed team goes only to the investigator.
		writeJSON(ctx, c, map[string]interface{}{
			"type":         "investigation_result",
			"targetConnId": msg.TargetConnID,
			"team":         team,
		})
		broadcastViews(ctx, room, logger)

	case "end_investigation":
		if !expansions.EndInvestigation(room) {
			writeError(ctx, c, "no investigation in progress")
			return
		}
		broadcastViews(ctx, room, logger)

	case "reset":
		if !room.Reset(ctx) {
			writeError(ctx, c, "reset failed")
			return
		}
		broadcastViews(ctx, room, logger)

	case "leave":
		room.RemovePlayer(connID)
		c.Close(websocket.StatusNormalClosure, "left room")
		broadcastViews(ctx, room, logger)

	case "state":
		sendView(ctx, room, connID, c, logger)

	default:
		writeError(ctx, c, "unknown message type")
	}
}

// sendView sends the caller their current private view.
func sendView(ctx context.Context, room *game.Room, connID uuid.UUID, c *websocket.Conn, logger *logrus.Logger) {
	room.Mu.RLock()
	var durable uuid.UUID
	for _, p := range room.Players {
		if p.ConnID == connID {
			durable = p.DurableID
			break
		}
	}
	room.Mu.RUnlock()

	view := room.BuildStateView(ctx, durable)
	if view == nil {
		writeError(ctx, c, "not seated in this room")
		return
	}
	writeJSON(ctx, c, map[string]interface{}{"type": "state", "state": view})
}

// broadcastViews sends every connected player their own projection.
func broadcastViews(ctx context.Context, room *game.Room, logger *logrus.Logger) {
	type dest struct {
		durable uuid.UUID
		conn    *websocket.Conn
	}
	room.Mu.RLock()
	dests := make([]dest, 0, len(room.Players))
	for _, p := range room.Players {
		if p.Connected && p.Conn != nil {
			dests = append(dests, dest{p.DurableID, p.Conn})
		}
	}
	room.Mu.RUnlock()

	for _, d := range dests {
		view := room.BuildStateView(ctx, d.durable)
		if view == nil {
			continue
		}
		writeJSON(ctx, d.conn, map[string]interface{}{"type": "state", "state": view})
	}
}

// broadcastEvent sends one shared event to every connected player.
func broadcastEvent(ctx context.Context, room *game.Room, logger *logrus.Logger, ev map[string]interface{}) {
	room.Mu.RLock()
	conns := make([]*websocket.Conn, 0, len(room.Players))
	for _, p := range room.Players {
		if p.Connected && p.Conn != nil {
			conns = append(conns, p.Conn)
		}
	}
	room.Mu.RUnlock()

	for _, conn := range conns {
		writeJSON(ctx, conn, ev)
	}
}

func writeJSON(ctx context.Context, c *websocket.Conn, v interface{}) {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = wsjson.Write(wctx, c, v)
}

func writeError(ctx context.Context, c *websocket.Conn, msg string) {
	writeJSON(ctx, c, map[string]interface{}{"type": "error", "message": msg})
}
