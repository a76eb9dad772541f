package study

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/chrissnell/thermexposure/internal/interfaces"
	"github.com/chrissnell/thermexposure/internal/types"
)

// nodalDataType marks a plot that carries one scalar per node
const nodalDataType = "NDDT"

// StoredPlot describes a user plot saved in the study
type StoredPlot struct {
	ID              int64
	Name            string
	DataType        string
	IndependentName string
	DependentName   string
	DependentUnit   string
	CreatedAt       time.Time
}

// CreatePlot stores a nodal contour plot. Nodes with a NaN or infinite value
// are left out of the plot.
func (s *Study) CreatePlot(ctx context.Context, p interfaces.Plot) error {
	indp := p.IndependentName
	if indp == "" {
		indp = "No independent available"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_plots (name, data_type, indp_name, dept_name, dept_unit, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, nodalDataType, indp, p.DependentName, p.DependentUnit, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to create plot %q: %w", p.Name, err)
	}
	plotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read plot id: %w", err)
	}

	nodes := make([]types.NodeID, 0, len(p.Values))
	for n := range p.Values {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_plot_values (plot_id, node, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare plot insert: %w", err)
	}
	defer stmt.Close()

	skipped := 0
	for _, n := range nodes {
		v := p.Values[n]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			skipped++
			continue
		}
		if _, err := stmt.ExecContext(ctx, plotID, int64(n), v); err != nil {
			return fmt.Errorf("failed to insert plot value for %v: %w", n, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plot %q: %w", p.Name, err)
	}

	s.logger.Infof("created plot %q with %d node value(s), %d skipped", p.Name, len(nodes)-skipped, skipped)
	return nil
}

// Plots lists the stored user plots, oldest first
func (s *Study) Plots(ctx context.Context) ([]StoredPlot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, data_type, indp_name, dept_name, dept_unit, created_at FROM user_plots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plots: %w", err)
	}
	defer rows.Close()

	var plots []StoredPlot
	for rows.Next() {
		var p StoredPlot
		var created string
		if err := rows.Scan(&p.ID, &p.Name, &p.DataType, &p.IndependentName, &p.DependentName, &p.DependentUnit, &created); err != nil {
			return nil, fmt.Errorf("failed to scan plot row: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		plots = append(plots, p)
	}
	return plots, rows.Err()
}

// PlotValues returns the node values of a stored plot
func (s *Study) PlotValues(ctx context.Context, plotID int64) (map[types.NodeID]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node, value FROM user_plot_values WHERE plot_id = ?`, plotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query plot values: %w", err)
	}
	defer rows.Close()

	values := make(map[types.NodeID]float64)
	for rows.Next() {
		var node int64
		var v float64
		if err := rows.Scan(&node, &v); err != nil {
			return nil, fmt.Errorf("failed to scan plot value: %w", err)
		}
		values[types.NodeID(node)] = v
	}
	return values, rows.Err()
}
