package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"heatwise/internal/logger"
	"heatwise/internal/models"
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// TariffClient fetches a half-hourly unit-rate schedule from an
// Octopus-style REST endpoint and caches it. ActivePriceAt serves from the
// cache only; a failed refresh leaves the previous schedule in place and
// expired intervals simply stop matching, degrading the controller to its
// fail-safe UNKNOWN state rather than trusting old data forever.
type TariffClient struct {
	url      string
	apiToken string
	log      *logger.Logger

	mu       sync.RWMutex
	schedule []models.PricePoint
}

func NewTariffClient(url, apiToken string, log *logger.Logger) *TariffClient {
	return &TariffClient{url: url, apiToken: apiToken, log: log}
}

var _ TariffSource = (*TariffClient)(nil)

// unitRatesResponse mirrors the provider payload. Prices arrive in minor
// units already (pence/cents per kWh, rounded).
type unitRatesResponse struct {
	Results []struct {
		ValidFrom time.Time `json:"valid_from"`
		ValidTo   time.Time `json:"valid_to"`
		ValueInc  float64   `json:"value_inc_vat"`
	} `json:"results"`
}

// Refresh fetches the published schedule and replaces the cache.
func (c *TariffClient) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build tariff request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Add("Authorization", c.apiToken)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch tariff schedule: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch tariff schedule: status %d", resp.StatusCode)
	}

	var body unitRatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode tariff schedule: %w", err)
	}

	points := make([]models.PricePoint, 0, len(body.Results))
	for _, r := range body.Results {
		points = append(points, models.PricePoint{
			ValidFrom:      r.ValidFrom.UTC(),
			ValidTo:        r.ValidTo.UTC(),
			UnitPriceMinor: int(r.ValueInc * 100),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].ValidFrom.Before(points[j].ValidFrom) })

	c.mu.Lock()
	c.schedule = points
	c.mu.Unlock()
	return nil
}

// Run refreshes the schedule on an interval until ctx is canceled. The
// first refresh happens immediately.
func (c *TariffClient) Run(ctx context.Context, interval time.Duration) {
	if err := c.Refresh(ctx); err != nil {
		c.log.Errorw("tariff_refresh_failed", "err", err)
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Errorw("tariff_refresh_failed", "err", err)
			}
		}
	}
}

// ActivePriceAt returns the cached interval covering t, or nil.
func (c *TariffClient) ActivePriceAt(t time.Time) *models.PricePoint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.schedule {
		if c.schedule[i].Covers(t) {
			p := c.schedule[i]
			return &p
		}
	}
	return nil
}

// StaticTariff serves a fixed repeating daily schedule from configuration:
// a cheap rate inside [CheapFrom, CheapTo) hours, the standard rate
// elsewhere. Used when no tariff API is configured.
type StaticTariff struct {
	CheapFromHour int
	CheapToHour   int
	CheapMinor    int
	StandardMinor int
}

var _ TariffSource = (*StaticTariff)(nil)

// ActivePriceAt synthesizes the hour-long price point containing t.
func (s *StaticTariff) ActivePriceAt(t time.Time) *models.PricePoint {
	t = t.UTC()
	start := t.Truncate(time.Hour)
	price := s.StandardMinor
	h := t.Hour()
	if h >= s.CheapFromHour && h < s.CheapToHour {
		price = s.CheapMinor
	}
	return &models.PricePoint{
		ValidFrom:      start,
		ValidTo:        start.Add(time.Hour),
		UnitPriceMinor: price,
	}
}
