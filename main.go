package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"pokerplan/internal/config"
	"pokerplan/internal/http/http_server"
	"pokerplan/internal/services/room"
	"pokerplan/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Room store + WebSockets hub (the per-room fan-out)
	store := room.NewStore()
	hub := ws.NewHub()
	go hub.Run(ctx)

	// 4. Room mutation engine; the hub receives every snapshot it publishes
	roomService := room.NewRoomService(store, hub)

	// 5. Initialize the WS server
	wsSrv := ws.NewWsServer(hub, roomService, cfg.WsReadLimit)

	// 6. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, roomService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
