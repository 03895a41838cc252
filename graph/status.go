package graph

// Status is the lifecycle state of a graph object.
type Status int32

const (
	// StatusPending is the initial state.
	StatusPending Status = iota
	// StatusExecuting marks an object whose unit of work has started.
	StatusExecuting
	// StatusComplete marks a successful unit of work.
	StatusComplete
	// StatusRejected marks an object none of whose upstream paths was taken.
	StatusRejected
	// StatusError marks an execution fault, local or upstream.
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusExecuting:
		return "Executing"
	case StatusComplete:
		return "Complete"
	case StatusRejected:
		return "Rejected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition can happen within a run.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusRejected || s == StatusError
}

// canTransition encodes the state machine. Resets are handled separately.
func canTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusExecuting || to == StatusRejected || to == StatusError
	case StatusExecuting:
		return to == StatusComplete || to == StatusError
	default:
		return false
	}
}

// Kind tags the variant of an object.
type Kind int

const (
	KindNode Kind = iota
	KindEdge
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}
