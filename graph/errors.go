package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAlreadyStarted is returned by Start on a graph that is running or settled.
	ErrAlreadyStarted = errors.New("graph: already started")
	// ErrRunning is returned by Reset while a run is still in progress.
	ErrRunning = errors.New("graph: run in progress")
	// ErrUnknownObject is returned when an id does not resolve in the arena.
	ErrUnknownObject = errors.New("graph: unknown object")
	// ErrDuplicateID is returned by Add for an id that is already registered.
	ErrDuplicateID = errors.New("graph: duplicate object id")
	// ErrInvalidGraph wraps structural problems found during assembly.
	ErrInvalidGraph = errors.New("graph: invalid graph")
)

// DuplicateAlternativeError reports an id that appears in more than one
// dependency term of the same object, or twice within one alternative set.
type DuplicateAlternativeError struct {
	Object string
	ID     string
}

func (e *DuplicateAlternativeError) Error() string {
	return fmt.Sprintf("graph: %s already depends on %s", e.Object, e.ID)
}

// ConflictingAlternativesError reports more than one completed member of an
// alternative set. Only one branch of a choice may fire.
type ConflictingAlternativesError struct {
	Object    string
	Completed []string
}

func (e *ConflictingAlternativesError) Error() string {
	return fmt.Sprintf("graph: conflicting alternatives for %s: %s all completed",
		e.Object, strings.Join(e.Completed, ", "))
}

// OverlapError reports two groups that intersect without nesting.
type OverlapError struct {
	A, B string
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("graph: groups %s and %s overlap without nesting", e.A, e.B)
}

// CycleError reports an edge that closes a cycle outside of a loop group.
type CycleError struct {
	Edge, Source, Target string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: edge %s (%s -> %s) creates a cycle outside of a loop", e.Edge, e.Source, e.Target)
}

// UpstreamError is recorded on an object whose dependency errored.
type UpstreamError struct {
	Object   string
	Upstream string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("graph: %s: upstream %s failed: %v", e.Object, e.Upstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IterationError is recorded on a group when a member of one of its
// iterations errors.
type IterationError struct {
	Group     string
	Member    string
	Iteration int
	Err       error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("graph: group %s iteration %d: member %s failed: %v", e.Group, e.Iteration, e.Member, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }

// StalledError is the settlement error of a run whose remaining objects can
// no longer progress.
type StalledError struct {
	Pending []string
}

func (e *StalledError) Error() string {
	return fmt.Sprintf("graph: run stalled with %d pending objects: %s", len(e.Pending), strings.Join(e.Pending, ", "))
}

// PanicError wraps a panic recovered from a node's unit of work.
type PanicError struct {
	Object string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("graph: %s panicked: %v", e.Object, e.Value)
}
