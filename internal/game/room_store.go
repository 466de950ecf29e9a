package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoomStore tracks live rooms by id. Each created room gets its own hook
// pipeline; nothing is shared between sessions.
type RoomStore struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]*Room
	logger *logrus.Logger

	// Installer wires a named variant into a freshly created room. Set once at
	// startup (the expansions registry provides it); a nil installer rejects
	// every variant id.
	Installer func(r *Room, variant string) error
}

func NewRoomStore(logger *logrus.Logger) *RoomStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RoomStore{
		rooms:  make(map[uuid.UUID]*Room),
		logger: logger,
	}
}

// Create builds a room, installs the requested variants into its private
// pipeline, and registers it. An unknown variant id fails the whole create.
func (s *RoomStore) Create(opts Options, variants []string) (*Room, error) {
	r := NewRoom(s.logger, opts)
	for _, v := range variants {
		if s.Installer == nil {
			return nil, fmt.Errorf("no variant installer configured, cannot enable %q", v)
		}
		if err := s.Installer(r, v); err != nil {
			return nil, fmt.Errorf("enable variant %q: %w", v, err)
		}
		r.Variants = append(r.Variants, v)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r
	s.logger.WithFields(logrus.Fields{"room": r.ID, "variants": variants}).Info("room created")
	return r, nil
}

func (s *RoomStore) Get(id uuid.UUID) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

func (s *RoomStore) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// List returns a snapshot of all rooms, in no particular order.
func (s *RoomStore) List() []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// SweepIdle removes rooms whose last activity is older than maxIdle and
// returns how many were dropped. Meant to run on a ticker from the server.
func (s *RoomStore) SweepIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, r := range s.rooms {
		r.Mu.RLock()
		idle := r.LastActivity.Before(cutoff)
		r.Mu.RUnlock()
		if idle {
			delete(s.rooms, id)
			removed++
			s.logger.WithField("room", id).Info("idle room removed")
		}
	}
	return removed
}
