package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/calebdunn/subterfuge/internal/expansions"
	"github.com/calebdunn/subterfuge/internal/game"
)

// createRoomRequest is the POST /room/create payload. Unset numeric fields
// fall back to the engine defaults.
type createRoomRequest struct {
	MinPlayers      int      `json:"minPlayers"`
	MaxPlayers      int      `json:"maxPlayers"`
	WinThreshold    int      `json:"winThreshold"`
	MaxRejections   int      `json:"maxRejections"`
	RevealTeammates *bool    `json:"revealTeammates"`
	Variants        []string `json:"variants"`
}

type roomSummary struct {
	ID          uuid.UUID  `json:"id"`
	Phase       game.Phase `json:"phase"`
	PlayerCount int        `json:"playerCount"`
	MaxPlayers  int        `json:"maxPlayers"`
	Variants    []string   `json:"variants"`
}

// CreateRoomHandler creates a room in memory and returns its id. Unknown
// variant ids fail the whole request.
func CreateRoomHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			http.Error(w, "bad room request payload", http.StatusBadRequest)
			return
		}
		for _, v := range req.Variants {
			if !expansions.Known(v) {
				http.Error(w, fmt.Sprintf("unknown variant %q", v), http.StatusBadRequest)
				return
			}
		}

		opts := game.Options{
			MinPlayers:      req.MinPlayers,
			MaxPlayers:      req.MaxPlayers,
			WinThreshold:    req.WinThreshold,
			MaxRejections:   req.MaxRejections,
			RevealTeammates: true,
		}
		if req.RevealTeammates != nil {
			opts.RevealTeammates = *req.RevealTeammates
		}

		room, err := s.Rooms.Create(opts, req.Variants)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       room.ID,
			"variants": room.Variants,
		})
	}
}

// ListRoomsHandler returns every room still accepting players.
func ListRoomsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		open := []roomSummary{}
		for _, room := range s.Rooms.List() {
			room.Mu.RLock()
			if room.Phase == game.PhaseLobby {
				open = append(open, roomSummary{
					ID:          room.ID,
					Phase:       room.Phase,
					PlayerCount: len(room.Players),
					MaxPlayers:  room.Opts.MaxPlayers,
					Variants:    room.Variants,
				})
			}
			room.Mu.RUnlock()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(open)
	}
}

// RoomQRHandler serves a PNG QR code pointing at the room's join URL, so a
// host can put it on a shared screen.
func RoomQRHandler(s *Server, externalURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/room/qr/")
		id, err := uuid.Parse(idStr)
		if err != nil {
			http.Error(w, "invalid room id", http.StatusBadRequest)
			return
		}
		if _, ok := s.Rooms.Get(id); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		joinURL := fmt.Sprintf("%s/room/ws/%s", strings.TrimRight(externalURL, "/"), id)
		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			s.Logger.Errorf("QR encode failed for room %s: %v", id, err)
			http.Error(w, "failed to render QR code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
