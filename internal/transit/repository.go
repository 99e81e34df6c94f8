package transit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new transit repository.
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListLines returns lines matching the query on route number or title.
// An empty query returns everything.
func (r *PostgresRepository) ListLines(ctx context.Context, query string) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT route_no, title
		FROM bus_lines
		WHERE $1 = '' OR route_no ILIKE '%' || $1 || '%' OR title ILIKE '%' || $1 || '%'
		ORDER BY route_no
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLines(rows)
}

// GetLine retrieves a single line by route number.
func (r *PostgresRepository) GetLine(ctx context.Context, routeNo string) (*Line, error) {
	var line Line
	err := r.pool.QueryRow(ctx, `
		SELECT route_no, title FROM bus_lines WHERE route_no = $1
	`, routeNo).Scan(&line.RouteNo, &line.Title)
	if err == pgx.ErrNoRows {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// GetLineRoute returns the line's route stops ordered by direction and
// fare stage, optionally filtered to one direction.
func (r *PostgresRepository) GetLineRoute(ctx context.Context, routeNo string, direction *int16) ([]RouteStop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT fare_stage, average_journey_times_in_minutes, bus_stop_id, bus_stop_logical_id, type, direction
		FROM bus_routes
		WHERE route_no = $1 AND ($2::smallint IS NULL OR direction = $2)
		ORDER BY direction ASC, fare_stage ASC
	`, routeNo, direction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []RouteStop
	for rows.Next() {
		var rs RouteStop
		if err := rows.Scan(&rs.FareStage, &rs.AverageJourneyTime, &rs.StopID, &rs.StopLogicalID, &rs.Type, &rs.Direction); err != nil {
			return nil, err
		}
		stops = append(stops, rs)
	}
	return stops, rows.Err()
}

// CreateLine inserts the line and its route stops in one transaction, so
// a failed route insert leaves no orphaned line behind.
func (r *PostgresRepository) CreateLine(ctx context.Context, routeNo, title string, stops []RouteStopInput) (*Line, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var titleArg *string
	if title != "" {
		titleArg = &title
	}

	var line Line
	err = tx.QueryRow(ctx, `
		INSERT INTO bus_lines (route_no, title)
		VALUES ($1, $2)
		RETURNING route_no, title
	`, routeNo, titleArg).Scan(&line.RouteNo, &line.Title)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrLineExists
		}
		return nil, err
	}

	for _, s := range stops {
		_, err := tx.Exec(ctx, `
			INSERT INTO bus_routes (route_no, bus_stop_id, average_journey_times_in_minutes, fare_stage, direction, type)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, routeNo, s.StopID, fmt.Sprintf("%g", s.AverageJourneyTime), s.FareStage, s.Direction, s.Type)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateLineTitle updates a line's title.
func (r *PostgresRepository) UpdateLineTitle(ctx context.Context, routeNo, title string) (*Line, error) {
	var line Line
	err := r.pool.QueryRow(ctx, `
		UPDATE bus_lines SET title = $1 WHERE route_no = $2
		RETURNING route_no, title
	`, title, routeNo).Scan(&line.RouteNo, &line.Title)
	if err == pgx.ErrNoRows {
		return nil, ErrLineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// ListStops returns up to 100 stops from the given offset, optionally
// filtered by name.
func (r *PostgresRepository) ListStops(ctx context.Context, query string, offset int) ([]Stop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, latitude, longitude, logical_id
		FROM bus_stops
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY id
		OFFSET $2 LIMIT 100
	`, query, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.LogicalID); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// GetStop retrieves a single stop.
func (r *PostgresRepository) GetStop(ctx context.Context, id int) (*Stop, error) {
	var s Stop
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, latitude, longitude, logical_id
		FROM bus_stops
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.LogicalID)
	if err == pgx.ErrNoRows {
		return nil, ErrStopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateStop inserts a new stop. The id is a serial, so there is no
// duplicate to guard against.
func (r *PostgresRepository) CreateStop(ctx context.Context, name string, latitude, longitude float64) (*Stop, error) {
	var s Stop
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bus_stops (name, latitude, longitude)
		VALUES ($1, $2, $3)
		RETURNING id, name, latitude, longitude, logical_id
	`, name, latitude, longitude).Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.LogicalID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateStop replaces a stop's name and coordinates.
func (r *PostgresRepository) UpdateStop(ctx context.Context, id int, name string, latitude, longitude float64) (*Stop, error) {
	var s Stop
	err := r.pool.QueryRow(ctx, `
		UPDATE bus_stops
		SET name = $1, latitude = $2, longitude = $3
		WHERE id = $4
		RETURNING id, name, latitude, longitude, logical_id
	`, name, latitude, longitude, id).Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.LogicalID)
	if err == pgx.ErrNoRows {
		return nil, ErrStopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// NearestStops returns the stops closest to the given point, nearest
// first. Squared euclidean distance on raw coordinates is good enough at
// city scale; stops without coordinates are skipped.
func (r *PostgresRepository) NearestStops(ctx context.Context, latitude, longitude float64, limit int) ([]Stop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, latitude, longitude, logical_id
		FROM bus_stops
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY (latitude - $1) * (latitude - $1) + (longitude - $2) * (longitude - $2)
		LIMIT $3
	`, latitude, longitude, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.LogicalID); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// ListStopLogs returns the stop's sighting logs ordered by direction,
// optionally narrowed to one line and direction.
func (r *PostgresRepository) ListStopLogs(ctx context.Context, stopID int, routeNo *string, direction *int16) ([]StopLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, log_dt, route_no, bus_stop_id, direction, user_id
		FROM bus_logs
		WHERE bus_stop_id = $1
			AND ($2::varchar IS NULL OR route_no = $2)
			AND ($3::smallint IS NULL OR direction = $3)
		ORDER BY direction ASC
	`, stopID, routeNo, direction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []StopLog
	for rows.Next() {
		var l StopLog
		if err := rows.Scan(&l.ID, &l.LogDate, &l.RouteNo, &l.StopID, &l.Direction, &l.UserID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// CreateStopLog records a sighting of a line at a stop.
func (r *PostgresRepository) CreateStopLog(ctx context.Context, stopID int, routeNo string, logDate time.Time, direction int16, userID string) (*StopLog, error) {
	var l StopLog
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bus_logs (bus_stop_id, route_no, log_dt, direction, user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, log_dt, route_no, bus_stop_id, direction, user_id
	`, stopID, routeNo, logDate, direction, userID).Scan(
		&l.ID, &l.LogDate, &l.RouteNo, &l.StopID, &l.Direction, &l.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetStopLines returns the distinct lines whose routes pass through the
// stop.
func (r *PostgresRepository) GetStopLines(ctx context.Context, stopID int) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (bl.route_no) bl.route_no, bl.title
		FROM bus_routes br
		INNER JOIN bus_lines bl ON br.route_no = bl.route_no
		WHERE br.bus_stop_id = $1
		ORDER BY bl.route_no
	`, stopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLines(rows)
}

func scanLines(rows pgx.Rows) ([]Line, error) {
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.RouteNo, &line.Title); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
