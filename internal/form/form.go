// Package form walks an ordered list of steps. Steps may declare a skip edge
// to a later step; Back returns to the step the flow actually came from, so a
// skipped step is where Back lands after a skip.
package form

import "fmt"

// Flow is a cursor over ordered steps. It is not safe for concurrent use.
type Flow[K comparable] struct {
	steps []K
	pos   map[K]int
	skips map[K]K
	trail []K
	cur   K
}

// New creates a flow positioned on the first step. Steps must be distinct.
func New[K comparable](steps ...K) (*Flow[K], error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("form needs at least one step")
	}
	pos := make(map[K]int, len(steps))
	for i, s := range steps {
		if _, dup := pos[s]; dup {
			return nil, fmt.Errorf("duplicate step %v", s)
		}
		pos[s] = i
	}
	return &Flow[K]{
		steps: steps,
		pos:   pos,
		skips: make(map[K]K),
		cur:   steps[0],
	}, nil
}

// SkipTo declares that skipping from moves the flow to to. to must come after from.
func (f *Flow[K]) SkipTo(from, to K) error {
	i, ok := f.pos[from]
	if !ok {
		return fmt.Errorf("unknown step %v", from)
	}
	j, ok := f.pos[to]
	if !ok {
		return fmt.Errorf("unknown step %v", to)
	}
	if j <= i {
		return fmt.Errorf("skip from %v to %v does not move forward", from, to)
	}
	f.skips[from] = to
	return nil
}

// Current returns the current step.
func (f *Flow[K]) Current() K { return f.cur }

// Index is the zero-based position of the current step.
func (f *Flow[K]) Index() int { return f.pos[f.cur] }

// Len is the number of steps.
func (f *Flow[K]) Len() int { return len(f.steps) }

// Done reports whether the flow is on its last step.
func (f *Flow[K]) Done() bool { return f.Index() == len(f.steps)-1 }

// Skippable reports whether the current step has a skip edge.
func (f *Flow[K]) Skippable() bool {
	_, ok := f.skips[f.cur]
	return ok
}

// Next advances one step. It returns false on the last step.
func (f *Flow[K]) Next() bool {
	if f.Done() {
		return false
	}
	f.move(f.steps[f.Index()+1])
	return true
}

// Skip follows the current step's skip edge. It returns false when there is none.
func (f *Flow[K]) Skip() bool {
	to, ok := f.skips[f.cur]
	if !ok {
		return false
	}
	f.move(to)
	return true
}

// Back returns to the step the flow came from. It returns false on the first step.
func (f *Flow[K]) Back() bool {
	if len(f.trail) == 0 {
		return false
	}
	f.cur = f.trail[len(f.trail)-1]
	f.trail = f.trail[:len(f.trail)-1]
	return true
}

// Visited reports whether step is on the path that led to the current step.
func (f *Flow[K]) Visited(step K) bool {
	for _, s := range f.trail {
		if s == step {
			return true
		}
	}
	return false
}

func (f *Flow[K]) move(to K) {
	f.trail = append(f.trail, f.cur)
	f.cur = to
}
