package series

import (
	"sort"

	"github.com/chrissnell/thermexposure/internal/types"
)

// Table is the assembled node-indexed view of a result field: rows are time
// steps in strictly increasing order, columns are nodes. A Table is never
// mutated after assembly; Select and DropEmptyRows return new tables.
type Table struct {
	times   []float64
	nodes   []types.NodeID
	columns map[types.NodeID][]types.Reading
}

// Times returns the row times
func (t *Table) Times() []float64 {
	return append([]float64(nil), t.times...)
}

// Nodes returns the column ids in ascending order
func (t *Table) Nodes() []types.NodeID {
	return append([]types.NodeID(nil), t.nodes...)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.times)
}

// Has reports whether the node has a column
func (t *Table) Has(node types.NodeID) bool {
	_, ok := t.columns[node]
	return ok
}

// Series returns the column of node as a time series
func (t *Table) Series(node types.NodeID) (types.NodeTimeSeries, bool) {
	col, ok := t.columns[node]
	if !ok {
		return types.NodeTimeSeries{}, false
	}
	return types.NodeTimeSeries{
		Node:  node,
		Times: append([]float64(nil), t.times...),
		Temps: append([]types.Reading(nil), col...),
	}, true
}

// Select returns a table restricted to the requested nodes. Nodes unknown to
// the table are skipped; callers that need to know check Has first.
func (t *Table) Select(nodes []types.NodeID) *Table {
	out := &Table{
		times:   t.times,
		columns: make(map[types.NodeID][]types.Reading, len(nodes)),
	}
	for _, n := range nodes {
		col, ok := t.columns[n]
		if !ok {
			continue
		}
		if _, dup := out.columns[n]; dup {
			continue
		}
		out.columns[n] = col
		out.nodes = append(out.nodes, n)
	}
	sortNodes(out.nodes)
	return out
}

// DropEmptyRows removes the time steps at which every column is missing
func (t *Table) DropEmptyRows() *Table {
	keep := make([]int, 0, len(t.times))
	for i := range t.times {
		for _, n := range t.nodes {
			if t.columns[n][i].Valid {
				keep = append(keep, i)
				break
			}
		}
	}

	out := &Table{
		times:   make([]float64, len(keep)),
		nodes:   t.nodes,
		columns: make(map[types.NodeID][]types.Reading, len(t.nodes)),
	}
	for j, i := range keep {
		out.times[j] = t.times[i]
	}
	for _, n := range t.nodes {
		col := make([]types.Reading, len(keep))
		for j, i := range keep {
			col[j] = t.columns[n][i]
		}
		out.columns[n] = col
	}
	return out
}

func sortNodes(nodes []types.NodeID) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
}
