package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/ratelimit"

	"github.com/rs/zerolog/log"
)

// StatsMeasure selects one of the provider's team stats tables
type StatsMeasure string

const (
	MeasureBase     StatsMeasure = "Base"
	MeasureAdvanced StatsMeasure = "Advanced"
	MeasureOpponent StatsMeasure = "Opponent"
)

const maxErrorBody = 512

// Client is the stats provider API client. Each request makes a single
// attempt; retries are the caller's policy.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    ratelimit.Limiter
}

// NewClient creates a provider client. Every request waits on limiter first.
func NewClient(baseURL, apiKey string, timeout time.Duration, limiter ratelimit.Limiter) *Client {
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		limiter: limiter,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// get performs one rate-limited GET request and returns the body of a 200 response
func (c *Client) get(ctx context.Context, endpoint, path string, params map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ttfl-ingestion/1.0")

	if len(params) > 0 {
		q := req.URL.Query()
		for key, value := range params {
			q.Add(key, value)
		}
		req.URL.RawQuery = q.Encode()
	}

	log.Debug().
		Str("url", url).
		Str("endpoint", endpoint).
		Msg("Making provider request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall(endpoint, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordProviderCall(endpoint, "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	metrics.RecordProviderCall(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		// The status text is kept in the message so 408/504 classify as timeouts.
		return nil, fmt.Errorf("API returned status %d (%s): %s", resp.StatusCode, http.StatusText(resp.StatusCode), snippet)
	}

	log.Debug().
		Str("url", url).
		Int("size", len(body)).
		Msg("Provider request successful")

	return body, nil
}

func decode[T any](body []byte, what string) (T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return out, nil
}

// FetchSchedule fetches every game of a season with status and scores
func (c *Client) FetchSchedule(ctx context.Context, season models.Season) ([]models.ScheduleGameInput, error) {
	body, err := c.get(ctx, "schedule", "schedule", map[string]string{"season": season.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	return decode[[]models.ScheduleGameInput](body, "schedule")
}

// FetchBoxScore fetches the per-player lines of one game
func (c *Client) FetchBoxScore(ctx context.Context, gameID string) ([]models.BoxScoreLineInput, error) {
	body, err := c.get(ctx, "box_score", "boxscore/"+gameID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch box score for game %s: %w", gameID, err)
	}
	return decode[[]models.BoxScoreLineInput](body, "box score")
}

// FetchPlayerGameLog fetches a player's season game log, newest first.
// lastN > 0 limits it to the most recent games.
func (c *Client) FetchPlayerGameLog(ctx context.Context, playerID int, season models.Season, lastN int) ([]models.GameLogInput, error) {
	params := map[string]string{"season": season.String()}
	if lastN > 0 {
		params["last_n"] = strconv.Itoa(lastN)
	}

	body, err := c.get(ctx, "game_log", fmt.Sprintf("players/%d/gamelog", playerID), params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game log for player %d: %w", playerID, err)
	}

	logs, err := decode[[]models.GameLogInput](body, "game log")
	if err != nil {
		return nil, err
	}
	if lastN > 0 && len(logs) > lastN {
		logs = logs[:lastN]
	}
	return logs, nil
}

func (c *Client) fetchTeamStats(ctx context.Context, season models.Season, measure StatsMeasure) ([]byte, error) {
	params := map[string]string{
		"season":   season.String(),
		"measure":  string(measure),
		"per_mode": "PerGame",
	}
	body, err := c.get(ctx, "team_stats_"+strings.ToLower(string(measure)), "teams/stats", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s team stats: %w", measure, err)
	}
	return body, nil
}

// FetchTeamBaseStats fetches every team's record
func (c *Client) FetchTeamBaseStats(ctx context.Context, season models.Season) ([]models.TeamBaseStatsInput, error) {
	body, err := c.fetchTeamStats(ctx, season, MeasureBase)
	if err != nil {
		return nil, err
	}
	return decode[[]models.TeamBaseStatsInput](body, "base team stats")
}

// FetchTeamAdvancedStats fetches every team's pace and defensive rating
func (c *Client) FetchTeamAdvancedStats(ctx context.Context, season models.Season) ([]models.TeamAdvancedStatsInput, error) {
	body, err := c.fetchTeamStats(ctx, season, MeasureAdvanced)
	if err != nil {
		return nil, err
	}
	return decode[[]models.TeamAdvancedStatsInput](body, "advanced team stats")
}

// FetchTeamOpponentStats fetches what every team allows per game
func (c *Client) FetchTeamOpponentStats(ctx context.Context, season models.Season) ([]models.TeamOpponentStatsInput, error) {
	body, err := c.fetchTeamStats(ctx, season, MeasureOpponent)
	if err != nil {
		return nil, err
	}
	return decode[[]models.TeamOpponentStatsInput](body, "opponent team stats")
}

// FetchRoster fetches a team's full roster
func (c *Client) FetchRoster(ctx context.Context, teamExternalID int, season models.Season) ([]models.TeamRosterInput, error) {
	body, err := c.get(ctx, "roster", fmt.Sprintf("teams/%d/roster", teamExternalID), map[string]string{"season": season.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster for team %d: %w", teamExternalID, err)
	}
	return decode[[]models.TeamRosterInput](body, "roster")
}
