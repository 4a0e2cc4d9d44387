package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/squadhub/squadlink/internal/bot"
	"github.com/squadhub/squadlink/internal/redis"
	"github.com/squadhub/squadlink/internal/server"
	"github.com/squadhub/squadlink/internal/setup"
	"github.com/squadhub/squadlink/internal/setup/telemetry"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
)

func main() {
	ctx := context.Background()

	app, err := setup.InitializeApp(ctx, telemetry.ServiceBot, BotLogDir, "")
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	discordBot, err := bot.New(app.Config, app.DB, app.BMClient, app.Logger)
	if err != nil {
		app.Logger.Error("Failed to create bot", zap.Error(err))
		return
	}

	// The whitelist endpoint shares the bot process so the game server always
	// reads the same store the bot writes.
	cacheClient, err := app.RedisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		app.Logger.Error("Failed to create cache client", zap.Error(err))
		return
	}

	httpServer := &http.Server{
		Addr:              app.Config.Bot.Server.Addr,
		Handler:           server.NewServer(app.DB, cacheClient, &app.Config.Bot.Server, app.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		app.Logger.Info("Starting whitelist server", zap.String("addr", httpServer.Addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Whitelist server failed", zap.Error(err))
		}
	}()

	if err := discordBot.Start(ctx); err != nil {
		app.Logger.Error("Failed to start bot", zap.Error(err))
		return
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Failed to shutdown whitelist server", zap.Error(err))
	}

	discordBot.Close(shutdownCtx)
}
