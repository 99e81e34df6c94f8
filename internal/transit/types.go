package transit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLineNotFound = errors.New("bus line not found")
	ErrLineExists   = errors.New("bus line already exists")
	ErrStopNotFound = errors.New("bus stop not found")
)

// Line is a bus line keyed by its route number.
type Line struct {
	RouteNo string  `json:"route_no"`
	Title   *string `json:"title"`
}

// Stop is a physical bus stop.
type Stop struct {
	ID        int      `json:"id"`
	Name      *string  `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	LogicalID *string  `json:"logical_id"`
}

// RouteStop is one stop on a line's route, in fare-stage order.
type RouteStop struct {
	FareStage          *int    `json:"fare_stage"`
	AverageJourneyTime *string `json:"average_journey_time"`
	StopID             *int    `json:"id"`
	StopLogicalID      *string `json:"logical_id"`
	Type               *string `json:"type"`
	Direction          *int16  `json:"direction"`
}

// RouteStopInput describes one stop when creating a line's route.
type RouteStopInput struct {
	StopID             int     `json:"bus_stop_id"`
	AverageJourneyTime float64 `json:"average_journey_time"`
	FareStage          int     `json:"fare_stage"`
	Direction          int16   `json:"direction"`
	Type               string  `json:"type"`
}

// StopLog is one crowd-sourced sighting of a bus at a stop. The user id
// is recorded for accountability but never exposed in responses.
type StopLog struct {
	ID        int64      `json:"id"`
	LogDate   *time.Time `json:"log_dt"`
	RouteNo   *string    `json:"route_no"`
	StopID    int        `json:"bus_stop_id"`
	Direction *int16     `json:"direction"`
	UserID    string     `json:"-"`
}

// Repository defines the interface for transit data persistence.
type Repository interface {
	ListLines(ctx context.Context, query string) ([]Line, error)
	GetLine(ctx context.Context, routeNo string) (*Line, error)
	GetLineRoute(ctx context.Context, routeNo string, direction *int16) ([]RouteStop, error)
	CreateLine(ctx context.Context, routeNo, title string, stops []RouteStopInput) (*Line, error)
	UpdateLineTitle(ctx context.Context, routeNo, title string) (*Line, error)
	ListStops(ctx context.Context, query string, offset int) ([]Stop, error)
	GetStop(ctx context.Context, id int) (*Stop, error)
	GetStopLines(ctx context.Context, stopID int) ([]Line, error)
	CreateStop(ctx context.Context, name string, latitude, longitude float64) (*Stop, error)
	UpdateStop(ctx context.Context, id int, name string, latitude, longitude float64) (*Stop, error)
	NearestStops(ctx context.Context, latitude, longitude float64, limit int) ([]Stop, error)
	ListStopLogs(ctx context.Context, stopID int, routeNo *string, direction *int16) ([]StopLog, error)
	CreateStopLog(ctx context.Context, stopID int, routeNo string, logDate time.Time, direction int16, userID string) (*StopLog, error)
}
