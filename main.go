package main

import (
	"database/sql"
	"log"
	"net/http"

	_ "github.com/lib/pq"

	"github.com/cloudydaiyz/ispy-backend/config"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
	"github.com/cloudydaiyz/ispy-backend/internal/game"
	"github.com/cloudydaiyz/ispy-backend/internal/leaderboard"
	"github.com/cloudydaiyz/ispy-backend/internal/store"
	"github.com/cloudydaiyz/ispy-backend/internal/ws"
	redisPkg "github.com/cloudydaiyz/ispy-backend/pkg/redis"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

func main() {
	cfg := config.LoadConfig()

	pg, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}
	defer pg.Close()

	rdb, err := redisPkg.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal("Failed to connect Redis:", err)
	}

	// Session state lives in process memory; the leaderboard and app
	// metrics live in redis, archived games in postgres.
	memory := store.NewMemory()
	stores := game.Stores{
		Users:   memory,
		Players: memory,
		Admins:  memory,
		Stats:   memory,
		History: store.NewPostgresHistory(pg),
		Metrics: store.NewRedisMetrics(rdb),
	}

	authService := auth.NewService(cfg)
	registry := wsPkg.NewRegistry()
	gameService := game.NewService(stores, leaderboard.NewRedis(rdb), authService, registry)
	defer gameService.Close()

	gameHandler := game.NewHandler(gameService, authService)
	wsHandler := ws.NewHandler(registry, authService, gameService)

	http.HandleFunc("/", gameHandler.Ping)
	http.HandleFunc("/metrics", gameHandler.Metrics)
	http.HandleFunc("/game", gameHandler.Game)
	http.HandleFunc("/game/state", gameHandler.GetGameState)
	http.HandleFunc("/game/validate", gameHandler.ValidateGame)
	http.HandleFunc("/game/history", gameHandler.GetGameHistory)
	http.HandleFunc("/game/join-game", gameHandler.JoinGame)
	http.HandleFunc("/game/login", gameHandler.Authenticate)
	http.HandleFunc("/game/refresh", gameHandler.RefreshCredentials)
	http.HandleFunc("/game/leave-game", gameHandler.LeaveGame)
	http.HandleFunc("/game/submit-task", gameHandler.SubmitTask)
	http.HandleFunc("/game/player", gameHandler.ViewPlayerInfo)
	http.HandleFunc("/game/task", gameHandler.ViewTaskInfo)
	http.HandleFunc("/game/host", gameHandler.ViewGameHostInfo)
	http.HandleFunc("/game/host/start-game", gameHandler.StartGame)
	http.HandleFunc("/game/host/kick-player", gameHandler.KickPlayer)
	http.HandleFunc("/game/host/kick-all", gameHandler.KickAllPlayers)
	http.HandleFunc("/game/host/lock", gameHandler.LockGame)
	http.HandleFunc("/game/host/unlock", gameHandler.UnlockGame)
	http.HandleFunc("/game/host/task", gameHandler.ViewTaskHostInfo)
	http.HandleFunc("/game/host/end-game", gameHandler.EndGame)
	http.HandleFunc("/game/host/remove-admin", gameHandler.RemoveAdmin)
	http.HandleFunc("/ws", wsHandler.ServeWS)

	addr := cfg.BindAddress + ":" + cfg.Port
	log.Println("Server started at", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
