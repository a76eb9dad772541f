// Command study-simulator writes a synthetic study database: nodal
// temperature histories of a filling and cooling cycle, with the sentinel
// value in place until the melt front reaches a node.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/chrissnell/thermexposure/internal/log"
	"github.com/chrissnell/thermexposure/internal/study"
	"github.com/chrissnell/thermexposure/internal/types"
)

const sentinel = 1e31

// nodeProfile describes how one node heats up and cools down
type nodeProfile struct {
	node    types.NodeID
	arrival float64 // melt front arrival time
	melt    float64 // temperature at arrival
	ambient float64 // mold temperature the node relaxes to
	tau     float64 // cooling time constant; 0 means linear cooling
	rate    float64 // linear cooling rate
}

func (p nodeProfile) temperature(t float64) float64 {
	if t < p.arrival {
		return sentinel
	}
	dt := t - p.arrival
	if p.tau > 0 {
		return p.ambient + (p.melt-p.ambient)*math.Exp(-dt/p.tau)
	}
	return math.Max(p.ambient, p.melt-p.rate*dt)
}

func main() {
	var (
		out      = flag.String("out", "study.db", "Path of the study database to create")
		field    = flag.String("field", "Temperature", "Result field name")
		nodes    = flag.Int("nodes", 200, "Number of nodes")
		firstID  = flag.Int64("first-node", 1000, "Id of the first node")
		steps    = flag.Int("steps", 120, "Number of time steps")
		dt       = flag.Float64("dt", 0.25, "Seconds between time steps")
		selected = flag.Int("select", 20, "How many nodes to put in the study selection")
		seed     = flag.Int64("seed", 1, "Random seed")
		force    = flag.Bool("force", false, "Overwrite an existing study")
		debug    = flag.Bool("debug", false, "Turn on debugging output")
	)
	flag.Parse()

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	_, err := os.Stat(*out)
	exists := err == nil
	if exists && !*force {
		log.Errorf("%s already exists; use -force to overwrite", *out)
		os.Exit(1)
	}

	if err := run(context.Background(), *out, *field, *nodes, *firstID, *steps, *dt, *selected, *seed, exists); err != nil {
		log.Errorf("simulation failed: %v", err)
		os.Exit(1)
	}
}

// run writes a simulated study to path. With reset set, an existing study is
// emptied first.
func run(ctx context.Context, path, field string, nodeCount int, firstID int64, steps int, dt float64, selected int, seed int64, reset bool) error {
	if nodeCount <= 0 || steps <= 1 || dt <= 0 {
		return fmt.Errorf("need at least one node, two steps and a positive dt")
	}

	rng := rand.New(rand.NewSource(seed))
	fillTime := 0.2 * float64(steps-1) * dt

	profiles := make([]nodeProfile, nodeCount)
	ids := make([]types.NodeID, nodeCount)
	for i := range profiles {
		p := nodeProfile{
			node:    types.NodeID(firstID + int64(i)),
			arrival: fillTime * float64(i) / float64(nodeCount),
			melt:    230 + rng.Float64()*60,
			ambient: 40 + rng.Float64()*30,
		}
		switch i % 4 {
		case 0:
			p.rate = 4 + rng.Float64()*8
		case 3:
			// Cold corner nodes that never get above the usual thresholds
			p.melt = 120 + rng.Float64()*10
			p.tau = 3
		default:
			p.tau = 4 + rng.Float64()*10
		}
		profiles[i] = p
		ids[i] = p.node
	}

	st, err := study.OpenFile(path, log.GetSugaredLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	if reset {
		if err := st.Reset(ctx); err != nil {
			return err
		}
	}

	for s := 0; s < steps; s++ {
		t := float64(s) * dt
		b := types.RawBatch{Time: t, Nodes: ids, Values: make([]float64, nodeCount)}
		for i, p := range profiles {
			b.Values[i] = p.temperature(t)
		}
		if err := st.WriteBatch(ctx, field, b); err != nil {
			return err
		}
	}
	log.Infof("wrote %d time steps of %s for %d nodes", steps, field, nodeCount)

	if selected > nodeCount {
		selected = nodeCount
	}
	entities := make([]string, 0, selected+1)
	for _, i := range rng.Perm(nodeCount)[:selected] {
		entities = append(entities, ids[i].String())
	}
	// Non-node entities are part of real selections too
	entities = append(entities, "T1")
	if err := st.SetSelection(ctx, entities); err != nil {
		return err
	}

	if err := st.Save(ctx); err != nil {
		return err
	}
	log.Infof("study written to %s with %d selected node(s)", path, selected)
	return nil
}
