package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/calebdunn/subterfuge/internal/expansions"
	"github.com/calebdunn/subterfuge/internal/game"
)

// Server bundles the room store and logger shared by all HTTP/WS handlers.
type Server struct {
	Logger *logrus.Logger
	Rooms  *game.RoomStore
}

// NewServer builds the handler state with the expansions registry wired in as
// the store's variant installer.
func NewServer(logger *logrus.Logger) *Server {
	store := game.NewRoomStore(logger)
	store.Installer = expansions.Install
	return &Server{
		Logger: logger,
		Rooms:  store,
	}
}
