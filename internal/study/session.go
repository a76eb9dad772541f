package study

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chrissnell/thermexposure/internal/interfaces"
	"github.com/chrissnell/thermexposure/internal/types"
)

// ErrSessionClosed is returned by queries on a closed session
var ErrSessionClosed = errors.New("result session is closed")

var (
	_ interfaces.SelectionProvider = (*Study)(nil)
	_ interfaces.ResultProvider    = (*Study)(nil)
	_ interfaces.PlotSink          = (*Study)(nil)
)

// session pins one pooled connection for the duration of a result query run
type session struct {
	mu     sync.Mutex
	conn   *sql.Conn
	closed bool
}

// Open acquires a result session. The caller owns it and must Close it.
func (s *Study) Open(ctx context.Context) (interfaces.ResultSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire study connection: %w", err)
	}
	return &session{conn: conn}, nil
}

func (ss *session) active() (*sql.Conn, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil, ErrSessionClosed
	}
	return ss.conn, nil
}

// TimeSteps lists the distinct times recorded for field
func (ss *session) TimeSteps(ctx context.Context, field string) ([]float64, error) {
	conn, err := ss.active()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, `SELECT DISTINCT time FROM result_values WHERE field = ? ORDER BY time`, field)
	if err != nil {
		return nil, fmt.Errorf("failed to query time steps: %w", err)
	}
	defer rows.Close()

	var steps []float64
	for rows.Next() {
		var t float64
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan time step: %w", err)
		}
		steps = append(steps, t)
	}
	return steps, rows.Err()
}

// ScalarData returns the raw nodal values of field at time t. NULL values
// come back as NaN, which the assembler treats as unfilled.
func (ss *session) ScalarData(ctx context.Context, field string, t float64) (types.RawBatch, error) {
	conn, err := ss.active()
	if err != nil {
		return types.RawBatch{}, err
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT node, value FROM result_values WHERE field = ? AND time = ? ORDER BY rowid`, field, t)
	if err != nil {
		return types.RawBatch{}, fmt.Errorf("failed to query scalar data: %w", err)
	}
	defer rows.Close()

	b := types.RawBatch{Time: t}
	for rows.Next() {
		var node int64
		var value sql.NullFloat64
		if err := rows.Scan(&node, &value); err != nil {
			return types.RawBatch{}, fmt.Errorf("failed to scan scalar row: %w", err)
		}
		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}
		b.Nodes = append(b.Nodes, types.NodeID(node))
		b.Values = append(b.Values, v)
	}
	return b, rows.Err()
}

// Close returns the pinned connection to the pool. Closing twice is a no-op.
func (ss *session) Close() error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return nil
	}
	ss.closed = true
	return ss.conn.Close()
}
