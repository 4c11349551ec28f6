package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LocationService serves region/state hints for the personal-info step
// from an external directory, cached in memory. Hints never gate a step
// update; when the upstream is down the stale cache keeps serving.
type LocationService struct {
	BaseURL string
	Client  *http.Client
	TTL     time.Duration

	mu            sync.RWMutex
	regions       []Region
	lastRefreshed time.Time
}

type Region struct {
	Name   string   `json:"name"`
	States []string `json:"states,omitempty"`
}

func NewLocationService() *LocationService {
	return &LocationService{
		BaseURL: os.Getenv("LOCATION_SERVICE_URL"),
		Client:  &http.Client{Timeout: 10 * time.Second},
		TTL:     6 * time.Hour,
	}
}

// Regions returns the cached list, refreshing when stale. A failed
// refresh falls back to whatever is cached.
func (s *LocationService) Regions(ctx context.Context) []Region {
	s.mu.RLock()
	fresh := time.Since(s.lastRefreshed) < s.TTL && len(s.regions) > 0
	cached := s.regions
	s.mu.RUnlock()
	if fresh {
		return cached
	}

	updated, err := s.fetch(ctx)
	if err != nil {
		log.Printf("⚠️  Location refresh failed, serving stale cache: %v", err)
		return cached
	}

	s.mu.Lock()
	s.regions = updated
	s.lastRefreshed = time.Now()
	s.mu.Unlock()
	return updated
}

func (s *LocationService) fetch(ctx context.Context) ([]Region, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("LOCATION_SERVICE_URL not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/regions", nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("location service returned %d: %s", resp.StatusCode, string(body))
	}

	var regions []Region
	if err := json.NewDecoder(resp.Body).Decode(&regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// RegionsHandler handles GET /locations/regions.
func (s *LocationService) RegionsHandler(c *fiber.Ctx) error {
	regions := s.Regions(c.Context())
	return c.JSON(fiber.Map{"regions": regions})
}
