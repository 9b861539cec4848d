package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/unklstewy/santa-scope/pkg/route"
)

// ErrRouteNotFound is returned when no route has the requested name.
var ErrRouteNotFound = errors.New("route not found")

// RouteRepository handles database operations for routes and waypoints.
type RouteRepository struct {
	db *DB
}

// NewRouteRepository creates a new route repository.
func NewRouteRepository(db *DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// RouteSummary describes a stored route.
type RouteSummary struct {
	Name      string `json:"name"`
	Waypoints int    `json:"waypoints"`
}

// GetRoute loads the waypoints of the named route in visiting order.
func (r *RouteRepository) GetRoute(ctx context.Context, name string) (route.Route, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT w.name, w.latitude, w.longitude, w.scheduled_label
		FROM waypoints w
		JOIN routes r ON r.id = w.route_id
		WHERE r.name = $1
		ORDER BY w.sequence`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query route %s: %w", name, err)
	}
	defer rows.Close()

	var out route.Route
	for rows.Next() {
		var wp route.Waypoint
		if err := rows.Scan(&wp.Name, &wp.Lat, &wp.Lng, &wp.ScheduledLabel); err != nil {
			return nil, fmt.Errorf("failed to scan waypoint: %w", err)
		}
		out = append(out, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read route %s: %w", name, err)
	}

	if len(out) == 0 {
		var exists bool
		err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM routes WHERE name = $1)`, name).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to look up route %s: %w", name, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, name)
		}
	}
	return out, nil
}

// ReplaceRoute stores the route under name, replacing any previous
// waypoints, in a single transaction.
func (r *RouteRepository) ReplaceRoute(ctx context.Context, name string, rt route.Route) error {
	if err := rt.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var routeID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO routes (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET updated_at = NOW()
		RETURNING id`,
		name,
	).Scan(&routeID)
	if err != nil {
		return fmt.Errorf("failed to upsert route: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM waypoints WHERE route_id = $1`, routeID); err != nil {
		return fmt.Errorf("failed to clear waypoints: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO waypoints (route_id, sequence, name, latitude, longitude, scheduled_label)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, wp := range rt {
		if _, err := stmt.ExecContext(ctx, routeID, i, wp.Name, wp.Lat, wp.Lng, wp.ScheduledLabel); err != nil {
			return fmt.Errorf("failed to insert waypoint %d (%s): %w", i, wp.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit route: %w", err)
	}
	return nil
}

// ListRoutes returns every stored route with its waypoint count.
func (r *RouteRepository) ListRoutes(ctx context.Context) ([]RouteSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT r.name, COUNT(w.sequence)
		FROM routes r
		LEFT JOIN waypoints w ON w.route_id = r.id
		GROUP BY r.name
		ORDER BY r.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	var out []RouteSummary
	for rows.Next() {
		var s RouteSummary
		if err := rows.Scan(&s.Name, &s.Waypoints); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRoute removes a route and its waypoints.
func (r *RouteRepository) DeleteRoute(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM routes WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}
	return nil
}

// Source returns a route.Source reading the named route.
func (r *RouteRepository) Source(name string) route.Source {
	return routeSource{repo: r, name: name}
}

type routeSource struct {
	repo *RouteRepository
	name string
}

func (s routeSource) LoadRoute(ctx context.Context) (route.Route, error) {
	var rt route.Route
	err := WithRetry(ctx, func() error {
		var err error
		rt, err = s.repo.GetRoute(ctx, s.name)
		return err
	}, 2)
	return rt, err
}
