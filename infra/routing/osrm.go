package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/courierops/dispatchd/core/model"
	"github.com/courierops/dispatchd/core/routing"
	"github.com/courierops/dispatchd/infra/logger"
)

// Config defines the connection parameters for the OSRM provider.
type Config struct {
	BaseURL        string `json:"base_url"`
	Profile        string `json:"profile"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Profile == "" {
		c.Profile = "driving"
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("routing base_url is required")
	}
	return nil
}

// OSRMProvider implements routing.Provider against an OSRM-compatible HTTP
// backend. Traffic awareness comes from the deployed profile; the public OSRM
// API carries no departure-time parameter, so the departure argument only
// scopes request cancellation here.
type OSRMProvider struct {
	baseURL string
	profile string
	client  *http.Client
	log     logger.Logger
}

// NewOSRMProvider creates a provider from the configuration.
func NewOSRMProvider(cfg Config) (*OSRMProvider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("routing config: %w", err)
	}
	return &OSRMProvider{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		profile: cfg.Profile,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:     logger.New("osrm"),
	}, nil
}

type tableResponse struct {
	Code      string       `json:"code"`
	Durations [][]*float64 `json:"durations"`
	Distances [][]*float64 `json:"distances"`
}

// GetTravelTimes issues one /table request covering every origin against every
// destination.
func (p *OSRMProvider) GetTravelTimes(ctx context.Context, origins, destinations []model.Point, _ time.Time) (routing.MatrixResult, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return routing.MatrixResult{}, fmt.Errorf("osrm table: origins and destinations must be non-empty")
	}

	coords := make([]model.Point, 0, len(origins)+len(destinations))
	coords = append(coords, origins...)
	coords = append(coords, destinations...)

	sources := make([]string, len(origins))
	for i := range origins {
		sources[i] = strconv.Itoa(i)
	}
	dests := make([]string, len(destinations))
	for i := range destinations {
		dests[i] = strconv.Itoa(len(origins) + i)
	}

	url := fmt.Sprintf("%s/table/v1/%s/%s?sources=%s&destinations=%s&annotations=duration,distance",
		p.baseURL, p.profile, encodeCoords(coords), strings.Join(sources, ";"), strings.Join(dests, ";"))

	var tr tableResponse
	if err := p.get(ctx, url, &tr); err != nil {
		return routing.MatrixResult{}, err
	}
	if tr.Code != "Ok" {
		return routing.MatrixResult{}, fmt.Errorf("osrm table: backend code %q", tr.Code)
	}

	res := routing.MatrixResult{
		DurationsMinutes: make([][]float64, len(origins)),
		DistancesKm:      make([][]float64, len(origins)),
	}
	for i := 0; i < len(origins); i++ {
		if i >= len(tr.Durations) || i >= len(tr.Distances) {
			return routing.MatrixResult{}, fmt.Errorf("osrm table: missing row %d", i)
		}
		res.DurationsMinutes[i] = make([]float64, len(destinations))
		res.DistancesKm[i] = make([]float64, len(destinations))
		for j := 0; j < len(destinations); j++ {
			if j >= len(tr.Durations[i]) || j >= len(tr.Distances[i]) {
				return routing.MatrixResult{}, fmt.Errorf("osrm table: row %d missing column %d", i, j)
			}
			dur, dist := tr.Durations[i][j], tr.Distances[i][j]
			if dur == nil || dist == nil {
				return routing.MatrixResult{}, fmt.Errorf("osrm table: unroutable pair %d->%d", i, j)
			}
			res.DurationsMinutes[i][j] = *dur / 60
			res.DistancesKm[i][j] = *dist / 1000
		}
	}
	return res, nil
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry string `json:"geometry"`
		Legs     []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// GetRoute issues one /route request through the waypoints in order. When
// optimize is set the /trip service is used instead, letting the backend
// re-sequence intermediate stops.
func (p *OSRMProvider) GetRoute(ctx context.Context, origin model.Point, waypoints []model.Point, _ time.Time, optimize bool) (routing.RouteResult, error) {
	if len(waypoints) == 0 {
		return routing.RouteResult{}, fmt.Errorf("osrm route: at least one waypoint is required")
	}

	coords := make([]model.Point, 0, len(waypoints)+1)
	coords = append(coords, origin)
	coords = append(coords, waypoints...)

	service := "route"
	extra := ""
	if optimize {
		service = "trip"
		extra = "&roundtrip=false&source=first&destination=last"
	}
	url := fmt.Sprintf("%s/%s/v1/%s/%s?overview=full&steps=false%s",
		p.baseURL, service, p.profile, encodeCoords(coords), extra)

	var rr routeResponse
	if err := p.get(ctx, url, &rr); err != nil {
		return routing.RouteResult{}, err
	}
	if rr.Code != "Ok" || len(rr.Routes) == 0 {
		return routing.RouteResult{}, fmt.Errorf("osrm route: backend code %q with %d routes", rr.Code, len(rr.Routes))
	}

	route := rr.Routes[0]
	if len(route.Legs) != len(waypoints) {
		return routing.RouteResult{}, fmt.Errorf("osrm route: %d legs for %d waypoints", len(route.Legs), len(waypoints))
	}

	res := routing.RouteResult{Polyline: route.Geometry}
	prev := origin
	for i, leg := range route.Legs {
		res.Legs = append(res.Legs, routing.RouteLeg{
			From:            prev,
			To:              waypoints[i],
			DistanceKm:      leg.Distance / 1000,
			DurationMinutes: leg.Duration / 60,
		})
		prev = waypoints[i]
	}
	return res, nil
}

func (p *OSRMProvider) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("osrm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("osrm request: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode osrm response: %w", err)
	}
	return nil
}

// encodeCoords renders points as OSRM's lon,lat;lon,lat path segment.
func encodeCoords(points []model.Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = strconv.FormatFloat(p.Lng, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lat, 'f', 6, 64)
	}
	return strings.Join(parts, ";")
}
