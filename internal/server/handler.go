package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/squadhub/squadlink/internal/database"
	"github.com/squadhub/squadlink/internal/database/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

// WhitelistHandler serves the whitelist the game server polls and the
// verification redemption endpoint the game server integration posts to.
type WhitelistHandler struct {
	db     database.Client
	cache  *renderCache
	logger *zap.Logger
}

// NewWhitelistHandler creates a new whitelist handler.
func NewWhitelistHandler(db database.Client, cache *renderCache, logger *zap.Logger) *WhitelistHandler {
	return &WhitelistHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// GetWhitelist serves the active whitelist in Squad Admins.cfg format.
func (h *WhitelistHandler) GetWhitelist(w http.ResponseWriter, req bunrouter.Request) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if cached, ok := h.cache.get(req.Context()); ok {
		_, err := io.WriteString(w, cached)
		return err
	}

	entries, err := h.db.Service().Whitelist().ActiveEntries(req.Context())
	if err != nil {
		h.logger.Error("Failed to load active whitelist", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	rendered := RenderAdminsCfg(entries, time.Now())
	h.cache.set(req.Context(), rendered)

	_, err = io.WriteString(w, rendered)

	return err
}

// whitelistEntryResponse is the JSON shape of one active entry.
type whitelistEntryResponse struct {
	SteamID   string     `json:"steam_id"`
	Username  string     `json:"username,omitempty"`
	Reason    string     `json:"reason"`
	GrantedAt time.Time  `json:"granted_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // absent for permanent entries
}

// GetWhitelistJSON serves the active whitelist as JSON for tooling.
func (h *WhitelistHandler) GetWhitelistJSON(w http.ResponseWriter, req bunrouter.Request) error {
	entries, err := h.db.Service().Whitelist().ActiveEntries(req.Context())
	if err != nil {
		h.logger.Error("Failed to load active whitelist", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	response := make([]whitelistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		response = append(response, whitelistEntryResponse{
			SteamID:   entry.SteamID,
			Username:  entry.Username,
			Reason:    entry.Reason.String(),
			GrantedAt: entry.GrantedAt,
			ExpiresAt: entry.ExpiresAt(),
		})
	}

	return bunrouter.JSON(w, response)
}

// GetHealth reports liveness.
func (h *WhitelistHandler) GetHealth(w http.ResponseWriter, _ bunrouter.Request) error {
	return bunrouter.JSON(w, bunrouter.H{"status": "ok"})
}

// redeemRequest is the payload the game server integration posts when a
// player types a verification code in-game.
type redeemRequest struct {
	Code     string `json:"code"`
	SteamID  string `json:"steam_id"`
	Username string `json:"username"`
}

// PostRedeem redeems a verification code observed in-game.
func (h *WhitelistHandler) PostRedeem(w http.ResponseWriter, req bunrouter.Request) error {
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<16))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return nil
	}

	var payload redeemRequest
	if err := sonic.Unmarshal(body, &payload); err != nil {
		http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
		return nil
	}

	link, err := h.db.Service().Verification().Redeem(
		req.Context(), payload.Code, payload.SteamID, payload.Username)

	switch {
	case err == nil:
		h.cache.invalidate(req.Context())

		return bunrouter.JSON(w, bunrouter.H{
			"discord_user_id": link.DiscordUserID,
			"steam_id":        link.SteamID,
			"confidence":      link.Confidence,
		})
	case errors.Is(err, types.ErrCodeNotFoundOrExpired):
		http.Error(w, "Code not found or expired", http.StatusNotFound)
		return nil
	case errors.Is(err, types.ErrInvalidSteamID):
		http.Error(w, "Invalid Steam ID", http.StatusBadRequest)
		return nil
	default:
		h.logger.Error("Failed to redeem verification code", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}
}
