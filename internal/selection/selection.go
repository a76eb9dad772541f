// Package selection resolves which nodes are analysed: either the entities
// selected in the study or a list typed by the user.
package selection

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/chrissnell/thermexposure/internal/types"
)

// Strategy names how nodes are chosen
type Strategy string

const (
	// StrategyStudy takes the nodes of the study selection list
	StrategyStudy Strategy = "study"

	// StrategyManual takes a user-supplied node list
	StrategyManual Strategy = "manual"
)

// ParseStrategy validates a configured strategy name. Empty means study.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyStudy:
		return StrategyStudy, nil
	case StrategyManual:
		return StrategyManual, nil
	default:
		return "", fmt.Errorf("unknown selection strategy %q (use %q or %q)", s, StrategyStudy, StrategyManual)
	}
}

// ParseNodeList parses lists such as "N491038 N491099, 490080". The N prefix
// is optional; whitespace and commas separate entries. Duplicates are dropped
// while keeping first-seen order.
func ParseNodeList(s string) ([]types.NodeID, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	seen := make(map[types.NodeID]struct{}, len(fields))
	nodes := make([]types.NodeID, 0, len(fields))
	for _, f := range fields {
		digits := strings.TrimPrefix(strings.TrimPrefix(f, "N"), "n")
		id, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || id < 0 {
			return nil, fmt.Errorf("invalid node %q", f)
		}
		n := types.NodeID(id)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// FromEntities keeps the node entries (N<digits>) of a study selection list
// and ignores every other entity kind
func FromEntities(entities []string) []types.NodeID {
	seen := make(map[types.NodeID]struct{}, len(entities))
	var nodes []types.NodeID
	for _, e := range entities {
		e = strings.TrimSpace(e)
		if len(e) < 2 || e[0] != 'N' {
			continue
		}
		id, err := strconv.ParseInt(e[1:], 10, 64)
		if err != nil || id < 0 {
			continue
		}
		n := types.NodeID(id)
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nodes = append(nodes, n)
	}
	return nodes
}

// Manual is a SelectionProvider over a fixed node list
type Manual struct {
	nodes []types.NodeID
}

// NewManual parses list into a Manual provider
func NewManual(list string) (*Manual, error) {
	nodes, err := ParseNodeList(list)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("manual node list is empty")
	}
	return &Manual{nodes: nodes}, nil
}

// SelectedNodes returns the configured list
func (m *Manual) SelectedNodes(ctx context.Context) ([]types.NodeID, error) {
	return append([]types.NodeID(nil), m.nodes...), nil
}
