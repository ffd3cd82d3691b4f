// Package roster assigns the players of one match to the two sides.
package roster

import (
	"bytes"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/man10/strike/pkg/core"
)

// Roster keeps disjoint side memberships with a per-side capacity.
// It is owned by a single match and is not safe for concurrent use.
type Roster struct {
	maxPerSide int
	rng        *rand.Rand
	sides      [2]map[core.PlayerID]struct{}
}

// New creates an empty roster. rng breaks ties in AssignBalanced; nil uses a
// randomly seeded source.
func New(maxPerSide int, rng *rand.Rand) *Roster {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Roster{
		maxPerSide: maxPerSide,
		rng:        rng,
		sides: [2]map[core.PlayerID]struct{}{
			make(map[core.PlayerID]struct{}),
			make(map[core.PlayerID]struct{}),
		},
	}
}

// Assign places p on side, moving it off the other side if needed.
func (r *Roster) Assign(p core.PlayerID, side core.Side) error {
	if _, ok := r.sides[side][p]; ok {
		return nil
	}
	if len(r.sides[side]) >= r.maxPerSide {
		return fmt.Errorf("%w: %s", core.ErrSideFull, side)
	}
	delete(r.sides[side.Other()], p)
	r.sides[side][p] = struct{}{}
	return nil
}

// AssignBalanced places p on the smaller side, picking at random when the
// sides are equal. A player already on a side keeps it.
func (r *Roster) AssignBalanced(p core.PlayerID) (core.Side, error) {
	if s, ok := r.SideOf(p); ok {
		return s, nil
	}
	a, b := len(r.sides[core.SideA]), len(r.sides[core.SideB])

	var side core.Side
	switch {
	case a < b:
		side = core.SideA
	case b < a:
		side = core.SideB
	case r.rng.IntN(2) == 0:
		side = core.SideA
	default:
		side = core.SideB
	}

	if err := r.Assign(p, side); err != nil {
		return side, err
	}
	return side, nil
}

// SideOf returns the side of p.
func (r *Roster) SideOf(p core.PlayerID) (core.Side, bool) {
	for _, s := range core.Sides {
		if _, ok := r.sides[s][p]; ok {
			return s, true
		}
	}
	return 0, false
}

// MembersOf returns the players of a side in a stable order.
func (r *Roster) MembersOf(side core.Side) []core.PlayerID {
	out := make([]core.PlayerID, 0, len(r.sides[side]))
	for p := range r.sides[side] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// Size returns the number of players on a side.
func (r *Roster) Size(side core.Side) int {
	return len(r.sides[side])
}

// Remove takes p off whichever side it is on.
func (r *Roster) Remove(p core.PlayerID) {
	delete(r.sides[core.SideA], p)
	delete(r.sides[core.SideB], p)
}

// Clear empties both sides.
func (r *Roster) Clear() {
	for _, s := range core.Sides {
		clear(r.sides[s])
	}
}
