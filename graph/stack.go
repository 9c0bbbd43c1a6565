// ABOUTME: Undo/redo stack of graph snapshots with a bounded undo depth.
// ABOUTME: Checkpoints are full clones so snapshots never alias the graph being edited.
package graph

// DefaultDepth bounds the undo history unless configured otherwise.
const DefaultDepth = 50

// Stack holds the current graph and its undo and redo histories.
type Stack struct {
	current *Graph
	undo    []*Graph
	redo    []*Graph
	depth   int
}

// NewStack returns a stack over g keeping at most depth undo entries. A
// depth of zero or less keeps every entry.
func NewStack(g *Graph, depth int) *Stack {
	return &Stack{current: g, depth: depth}
}

// Current returns the graph being edited.
func (s *Stack) Current() *Graph { return s.current }

// CanUndo reports whether an undo entry exists.
func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether a redo entry exists.
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }

// UndoDepth returns the number of undo entries.
func (s *Stack) UndoDepth() int { return len(s.undo) }

// RedoDepth returns the number of redo entries.
func (s *Stack) RedoDepth() int { return len(s.redo) }

// Checkpoint records a snapshot of the current graph and clears the redo
// history. When the undo history is full the oldest entry is dropped.
func (s *Stack) Checkpoint() {
	s.pushUndo(s.current.Clone())
	clear(s.redo)
	s.redo = s.redo[:0]
}

// Undo rolls back to the most recent checkpoint. It is a no-op without one.
func (s *Stack) Undo() {
	if len(s.undo) == 0 {
		return
	}
	s.redo = append(s.redo, s.current)
	s.current = s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
}

// Redo reverts the most recent undo. It is a no-op without one.
func (s *Stack) Redo() {
	if len(s.redo) == 0 {
		return
	}
	s.pushUndo(s.current)
	s.current = s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
}

// Apply runs fn on a copy of the current graph. On success the copy becomes
// current and the previous graph is checkpointed; on error nothing changes.
func (s *Stack) Apply(fn func(*Graph) error) error {
	next := s.current.Clone()
	if err := fn(next); err != nil {
		return err
	}
	s.pushUndo(s.current)
	clear(s.redo)
	s.redo = s.redo[:0]
	s.current = next
	return nil
}

// pushUndo appends g to the undo history, dropping the oldest entries past depth.
func (s *Stack) pushUndo(g *Graph) {
	s.undo = append(s.undo, g)
	if s.depth > 0 && len(s.undo) > s.depth {
		clear(s.undo[:len(s.undo)-s.depth])
		s.undo = s.undo[len(s.undo)-s.depth:]
	}
}
