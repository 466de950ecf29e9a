package main

import (
	"log"
	"net/http"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/calebdunn/subterfuge/internal/handlers"
	"github.com/calebdunn/subterfuge/internal/middleware"
)

func main() {
	cfg := &config{}
	if err := newCmd(cfg, serve).Execute(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func serve(cfg *config) error {
	logger := logrus.New()
	if cfg.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	srv := handlers.NewServer(logger)

	// Drop rooms nobody has touched in a while.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := srv.Rooms.SweepIdle(cfg.idleTimeout); n > 0 {
				logger.Debugf("idle sweep removed %d room(s)", n)
			}
		}
	}()

	mux := http.NewServeMux()

	mux.Handle("/room/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateRoomHandler(srv),
	)))
	mux.Handle("/room/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListRoomsHandler(srv),
	)))
	mux.Handle("/room/qr/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomQRHandler(srv, cfg.externalURL),
	)))

	mux.Handle("/room/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.RoomWSHandler(logger, srv),
	)))

	logger.Infof("Running on %s", cfg.addr())
	return http.ListenAndServe(cfg.addr(), mux)
}
