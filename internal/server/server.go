// Package server exposes the HTTP surface the game server consumes: the
// rendered whitelist, a JSON variant, and the verification redemption hook.
package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/redis/rueidis"
	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/setup/config"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// NewServer creates the whitelist HTTP handler.
func NewServer(
	db database.Client, cacheClient rueidis.Client, cfg *config.Server, logger *zap.Logger,
) http.Handler {
	serverLogger := logger.Named("server")

	cache := newRenderCache(
		cacheClient, time.Duration(cfg.CacheTTLSeconds)*time.Second, serverLogger)
	handler := NewWhitelistHandler(db, cache, serverLogger)

	router := bunrouter.New()

	router.GET("/health", handler.GetHealth)
	router.GET("/whitelist", handler.GetWhitelist)
	router.GET("/whitelist.json", handler.GetWhitelistJSON)

	router.Use(tokenAuth(cfg.RedeemToken)).WithGroup("/v1", func(g *bunrouter.Group) {
		g.POST("/verify", handler.PostRedeem)
	})

	// The rendered whitelist grows linearly with the community; gzip keeps the
	// game server's polling cheap.
	return gzhttp.GzipHandler(router)
}

// tokenAuth requires the game server's shared secret on mutating routes.
func tokenAuth(token string) bunrouter.MiddlewareFunc {
	return func(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
		return func(w http.ResponseWriter, req bunrouter.Request) error {
			presented := req.Header.Get("Authorization")

			if subtle.ConstantTimeCompare([]byte(presented), []byte("Bearer "+token)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return nil
			}

			return next(w, req)
		}
	}
}
