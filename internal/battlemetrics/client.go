// Package battlemetrics is a minimal client for the parts of the
// BattleMetrics API the whitelist system needs: player lookup by Steam ID,
// flag listing for migration, and flag add/remove for member tagging.
package battlemetrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrRequestFailed  = errors.New("battlemetrics request failed")
	ErrRateLimited    = errors.New("battlemetrics rate limited")
)

// Player is the subset of a BattleMetrics player record the system uses.
type Player struct {
	ID      string
	Name    string
	SteamID string
}

// Client wraps the BattleMetrics HTTP API. All requests pass through a
// jittered rate limiter, and rate-limit or server errors are retried with
// exponential backoff.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *requestRateLimiter
	logger  *zap.Logger
}

// NewClient creates a BattleMetrics client. requestInterval is the minimum
// spacing between requests; the documented quota is roughly five per second,
// so 250ms with jitter keeps a safety margin.
func NewClient(baseURL, token string, requestInterval time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: newRequestRateLimiter(requestInterval, requestInterval/4),
		logger:  logger.Named("battlemetrics"),
	}
}

// SearchPlayerBySteamID resolves a Steam ID to a BattleMetrics player.
func (c *Client) SearchPlayerBySteamID(ctx context.Context, steamID string) (*Player, error) {
	params := url.Values{}
	params.Set("filter[search]", steamID)
	params.Set("page[size]", "1")

	body, err := c.get(ctx, c.baseURL+"/players?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var response struct {
		Data []playerResource `json:"data"`
	}

	if err := sonic.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: failed to parse player search: %w", ErrRequestFailed, err)
	}

	if len(response.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, steamID)
	}

	player := response.Data[0].toPlayer()

	return &player, nil
}

// PlayersWithFlag returns every player carrying the given flag, following
// pagination links until exhausted.
func (c *Client) PlayersWithFlag(ctx context.Context, flagID string) ([]Player, error) {
	params := url.Values{}
	params.Set("filter[playerFlags]", flagID)
	params.Set("page[size]", "100")

	next := c.baseURL + "/players?" + params.Encode()

	var players []Player

	for next != "" {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}

		var response struct {
			Data  []playerResource `json:"data"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}

		if err := sonic.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("%w: failed to parse flag page: %w", ErrRequestFailed, err)
		}

		for _, resource := range response.Data {
			players = append(players, resource.toPlayer())
		}

		next = response.Links.Next
	}

	c.logger.Debug("Fetched players with flag",
		zap.String("flagID", flagID),
		zap.Int("count", len(players)))

	return players, nil
}

// AddFlag tags a player with the given flag.
func (c *Client) AddFlag(ctx context.Context, playerID, flagID string) error {
	payload := fmt.Sprintf(`{"data":[{"type":"playerFlag","id":%q}]}`, flagID)
	endpoint := fmt.Sprintf("%s/players/%s/relationships/flags", c.baseURL, playerID)

	_, err := c.do(ctx, http.MethodPost, endpoint, strings.NewReader(payload))

	return err
}

// RemoveFlag removes a flag from a player. Removing an absent flag is treated
// as success so tag reconciliation stays idempotent.
func (c *Client) RemoveFlag(ctx context.Context, playerID, flagID string) error {
	endpoint := fmt.Sprintf("%s/players/%s/relationships/flags/%s", c.baseURL, playerID, flagID)

	_, err := c.do(ctx, http.MethodDelete, endpoint, nil)
	if errors.Is(err, ErrPlayerNotFound) {
		return nil
	}

	return err
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, fullURL, nil)
}

// do performs one rate-limited request with retries on 429 and 5xx.
func (c *Client) do(ctx context.Context, method, fullURL string, payload io.Reader) ([]byte, error) {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(30*time.Second),
	), 4)

	var body []byte

	operation := func() error {
		if err := c.limiter.waitForNextSlot(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, payload)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: failed to create request: %w", ErrRequestFailed, err))
		}

		req.Header.Set("Authorization", "Bearer "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRequestFailed, err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: failed to read response body: %w", ErrRequestFailed, err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("Rate limited by BattleMetrics", zap.String("url", fullURL))
			return fmt.Errorf("%w: HTTP 429", ErrRateLimited)
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%w: HTTP 404", ErrPlayerNotFound))
		case resp.StatusCode >= http.StatusBadRequest:
			return backoff.Permanent(
				fmt.Errorf("%w: HTTP %d: %s", ErrRequestFailed, resp.StatusCode, string(body)))
		}

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	return body, nil
}

// playerResource is the JSON:API shape of one player record.
type playerResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name string `json:"name"`
	} `json:"attributes"`
	Relationships struct {
		Identifiers struct {
			Data []struct {
				Type       string `json:"type"`
				Attributes struct {
					Type       string `json:"type"`
					Identifier string `json:"identifier"`
				} `json:"attributes"`
			} `json:"data"`
		} `json:"identifiers"`
	} `json:"relationships"`
	Meta struct {
		Metadata []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"metadata"`
	} `json:"meta"`
}

func (r playerResource) toPlayer() Player {
	player := Player{ID: r.ID, Name: r.Attributes.Name}

	for _, identifier := range r.Relationships.Identifiers.Data {
		if identifier.Attributes.Type == "steamID" {
			player.SteamID = identifier.Attributes.Identifier
			break
		}
	}

	return player
}
