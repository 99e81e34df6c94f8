package transit

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Service handles transit-data business logic.
type Service struct {
	repo Repository
}

// NewService creates a new transit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListLines returns a route_no -> title map of matching lines.
func (s *Service) ListLines(ctx context.Context, query string) (map[string]*string, error) {
	lines, err := s.repo.ListLines(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, err
	}

	result := make(map[string]*string, len(lines))
	for _, line := range lines {
		result[line.RouteNo] = line.Title
	}
	return result, nil
}

// GetLine returns a single line.
func (s *Service) GetLine(ctx context.Context, routeNo string) (*Line, error) {
	return s.repo.GetLine(ctx, routeNo)
}

// GetLineRoute returns the ordered route of a line, optionally for one
// direction only.
func (s *Service) GetLineRoute(ctx context.Context, routeNo string, direction *int16) ([]RouteStop, error) {
	if _, err := s.repo.GetLine(ctx, routeNo); err != nil {
		return nil, err
	}
	return s.repo.GetLineRoute(ctx, routeNo, direction)
}

// CreateLineInput contains the data needed to create a line with its
// route.
type CreateLineInput struct {
	RouteNo string
	Title   string
	Inward  []RouteStopInput
	Outward []RouteStopInput
}

// Validate validates the create line input.
func (i *CreateLineInput) Validate() error {
	i.RouteNo = strings.TrimSpace(i.RouteNo)
	i.Title = strings.TrimSpace(i.Title)

	if i.RouteNo == "" {
		return errors.New("route_no is required")
	}
	if len(i.RouteNo) > 25 {
		return errors.New("route_no must be at most 25 characters")
	}
	if len(i.Inward)+len(i.Outward) == 0 {
		return errors.New("at least one route stop is required")
	}
	return nil
}

// CreateLine creates a line and its route stops.
func (s *Service) CreateLine(ctx context.Context, input CreateLineInput) (*Line, []RouteStop, error) {
	if err := input.Validate(); err != nil {
		return nil, nil, err
	}

	stops := append(append([]RouteStopInput{}, input.Inward...), input.Outward...)
	line, err := s.repo.CreateLine(ctx, input.RouteNo, input.Title, stops)
	if err != nil {
		return nil, nil, err
	}

	route, err := s.repo.GetLineRoute(ctx, line.RouteNo, nil)
	if err != nil {
		return nil, nil, err
	}
	return line, route, nil
}

// UpdateLine updates a line's title.
func (s *Service) UpdateLine(ctx context.Context, routeNo, title string) (*Line, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("title is required")
	}
	return s.repo.UpdateLineTitle(ctx, routeNo, title)
}

// ListStops returns an id -> name map of matching stops, paged by offset.
func (s *Service) ListStops(ctx context.Context, query string, offset int) (map[int]*string, error) {
	if offset < 0 {
		offset = 0
	}
	stops, err := s.repo.ListStops(ctx, strings.TrimSpace(query), offset)
	if err != nil {
		return nil, err
	}

	result := make(map[int]*string, len(stops))
	for _, stop := range stops {
		result[stop.ID] = stop.Name
	}
	return result, nil
}

// GetStop returns a single stop.
func (s *Service) GetStop(ctx context.Context, id int) (*Stop, error) {
	return s.repo.GetStop(ctx, id)
}

// StopInput contains the data needed to create or update a stop.
type StopInput struct {
	Name      string
	Latitude  float64
	Longitude float64
}

// Validate validates the stop input.
func (i *StopInput) Validate() error {
	i.Name = strings.TrimSpace(i.Name)

	if i.Name == "" {
		return errors.New("name is required")
	}
	if len(i.Name) > 100 {
		return errors.New("name must be at most 100 characters")
	}
	if i.Latitude < -90 || i.Latitude > 90 {
		return errors.New("latitude must be between -90 and 90")
	}
	if i.Longitude < -180 || i.Longitude > 180 {
		return errors.New("longitude must be between -180 and 180")
	}
	return nil
}

// CreateStop creates a new stop.
func (s *Service) CreateStop(ctx context.Context, input StopInput) (*Stop, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.repo.CreateStop(ctx, input.Name, input.Latitude, input.Longitude)
}

// UpdateStop replaces a stop's name and coordinates.
func (s *Service) UpdateStop(ctx context.Context, id int, input StopInput) (*Stop, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return s.repo.UpdateStop(ctx, id, input.Name, input.Latitude, input.Longitude)
}

// nearestStopsLimit caps how many stops a proximity lookup returns.
const nearestStopsLimit = 5

// NearestStops returns the stops closest to the given coordinates,
// nearest first.
func (s *Service) NearestStops(ctx context.Context, latitude, longitude float64) ([]Stop, error) {
	if latitude < -90 || latitude > 90 {
		return nil, errors.New("latitude must be between -90 and 90")
	}
	if longitude < -180 || longitude > 180 {
		return nil, errors.New("longitude must be between -180 and 180")
	}
	return s.repo.NearestStops(ctx, latitude, longitude, nearestStopsLimit)
}

// GetStopLogs returns a stop's sighting logs, optionally narrowed to one
// line and direction.
func (s *Service) GetStopLogs(ctx context.Context, stopID int, routeNo *string, direction *int16) ([]StopLog, error) {
	if _, err := s.repo.GetStop(ctx, stopID); err != nil {
		return nil, err
	}
	return s.repo.ListStopLogs(ctx, stopID, routeNo, direction)
}

// CreateStopLogInput contains the data for one crowd-sourced sighting.
type CreateStopLogInput struct {
	StopID    int
	RouteNo   string
	LogDate   time.Time
	Direction int16
	UserID    string
}

// CreateStopLog records a sighting of a line at a stop. The stop and the
// line must both exist.
func (s *Service) CreateStopLog(ctx context.Context, input CreateStopLogInput) (*StopLog, error) {
	if input.LogDate.IsZero() {
		return nil, errors.New("log_dt is required")
	}
	if _, err := s.repo.GetStop(ctx, input.StopID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetLine(ctx, input.RouteNo); err != nil {
		return nil, err
	}
	return s.repo.CreateStopLog(ctx, input.StopID, input.RouteNo, input.LogDate, input.Direction, input.UserID)
}

// GetStopLines returns the lines passing through a stop as a
// route_no -> title map.
func (s *Service) GetStopLines(ctx context.Context, stopID int) (map[string]*string, error) {
	if _, err := s.repo.GetStop(ctx, stopID); err != nil {
		return nil, err
	}

	lines, err := s.repo.GetStopLines(ctx, stopID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*string, len(lines))
	for _, line := range lines {
		result[line.RouteNo] = line.Title
	}
	return result, nil
}
