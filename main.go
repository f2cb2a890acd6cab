package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/typerace/broadcast"
	"github.com/wfunc/typerace/config"
	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/models"
	"github.com/wfunc/typerace/monitor"
	"github.com/wfunc/typerace/persistence"
	"github.com/wfunc/typerace/room"
	"github.com/wfunc/typerace/rpc"
	"github.com/wfunc/typerace/server"
	"github.com/wfunc/typerace/services"
	"github.com/wfunc/typerace/session"
	"github.com/wfunc/typerace/timer"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Init("info")
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level)
	defer logger.Sync()

	// Initialize Database
	db, err := persistence.New(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to open database: %v", err)
	}
	logger.Log.Infof("Match store ready (driver %q)", cfg.Database.Driver)

	mon := monitor.NewMonitor("typerace")
	timers := timer.NewTimerManager()
	sessions := session.NewManager()
	matches := services.NewMatchService(db, mon, 128)

	rooms := room.NewRoomManager(room.Settings{
		MaxPlayers:        cfg.Game.MaxPlayers,
		TimeBetweenRounds: cfg.Game.TimeBetweenRounds,
		TransitionGrace:   cfg.Game.TransitionGrace,
		DefaultConfig:     models.NewTypeRaceConfig(cfg.Game.DefaultWords),
		Scheduler:         timers,
		Broadcaster:       broadcast.NewSessionBroadcaster(sessions, mon),
		Observer:          matches,
	})

	sampler := monitor.NewSampler(mon, rooms, sessions)
	if err := sampler.Start("@every 15s"); err != nil {
		logger.Log.Fatalf("Failed to start metrics sampler: %v", err)
	}

	var rpcServer *rpc.Server
	if cfg.Server.RPCAddress != "" {
		rpcServer, err = rpc.NewServer(cfg.Server.RPCAddress, rpc.NewRoomService(rooms, sessions, matches))
		if err != nil {
			logger.Log.Fatalf("Failed to create RPC server: %v", err)
		}
		go rpcServer.Start()
	}

	gameServer := server.NewGameServer(*cfg, rooms, sessions, mon)
	go func() {
		if err := gameServer.Start(); err != nil {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Log.Infof("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := gameServer.Shutdown(ctx); err != nil {
		logger.Log.Warnf("HTTP shutdown: %v", err)
	}
	if rpcServer != nil {
		rpcServer.Stop()
	}
	sampler.Stop()
	rooms.CloseAll()
	timers.Stop()
	matches.Stop()
	if err := db.Close(); err != nil {
		logger.Log.Warnf("Closing database: %v", err)
	}
	logger.Log.Info("Server stopped")
}
