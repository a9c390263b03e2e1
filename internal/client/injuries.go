package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ttfl_tracker/ingestion/internal/metrics"
	"ttfl_tracker/ingestion/internal/models"
	"ttfl_tracker/ingestion/internal/ratelimit"

	"github.com/rs/zerolog/log"
)

// InjuryFeed reads the scraped injury report published as a flat JSON list
type InjuryFeed struct {
	url        string
	httpClient *http.Client
	limiter    ratelimit.Limiter
}

// NewInjuryFeed creates an injury feed client. Every request waits on limiter first.
func NewInjuryFeed(url string, timeout time.Duration, limiter ratelimit.Limiter) *InjuryFeed {
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	return &InjuryFeed{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// FetchInjuries returns the normalized injury list. An empty list is not an error.
func (f *InjuryFeed) FetchInjuries(ctx context.Context) ([]models.InjuryReport, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderCall("injuries", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("injury feed request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordProviderCall("injuries", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to read injury feed: %w", err)
	}
	metrics.RecordProviderCall("injuries", strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("injury feed returned status %d (%s)", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var inputs []models.InjuryReportInput
	if err := json.Unmarshal(body, &inputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal injury feed: %w", err)
	}

	reports := make([]models.InjuryReport, 0, len(inputs))
	for i := range inputs {
		r := inputs[i].ToInjuryReport()
		if r.Name == "" {
			continue
		}
		reports = append(reports, r)
	}

	log.Debug().Int("count", len(reports)).Msg("Injury feed fetched")
	return reports, nil
}
