package framegraph

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Use errors.Is to test for a kind; the typed errors below
// carry the details and unwrap to one of these.
var (
	// ErrCycleDetected is returned by Compile when the dependencies among
	// surviving passes form a cycle. No compiled graph is produced.
	ErrCycleDetected = errors.New("framegraph: dependency cycle")

	// ErrUnknownResource is returned when a resource id is not registered.
	ErrUnknownResource = errors.New("framegraph: unknown resource")

	// ErrIncompatibleAlias reports an aliasing invariant violation: two
	// resources with overlapping lifetimes, or incompatible descriptors,
	// were assigned to one pool slot.
	ErrIncompatibleAlias = errors.New("framegraph: incompatible alias")

	// ErrStaleGraph is returned by Execute when the compiled graph no longer
	// matches the registry. Recompile and retry.
	ErrStaleGraph = errors.New("framegraph: stale compiled graph")

	// ErrDescriptorInvalid is returned for internally inconsistent
	// descriptors on register or update.
	ErrDescriptorInvalid = errors.New("framegraph: invalid descriptor")

	// ErrMissingProducer is returned when a surviving pass reads a resource
	// that no pass writes and the caller does not provide.
	ErrMissingProducer = errors.New("framegraph: resource read but never written")

	// ErrNotCompiled is returned by Execute before the first successful compile.
	ErrNotCompiled = errors.New("framegraph: graph not compiled")

	// ErrUndeclared is returned by PassContext accessors for resources the
	// pass did not declare.
	ErrUndeclared = errors.New("framegraph: resource not declared by pass")

	// ErrUnbound is returned when an External or Imported resource has no
	// caller object bound at execute time.
	ErrUnbound = errors.New("framegraph: external resource not bound")
)

// CycleError lists the passes forming a dependency cycle, in edge order,
// with the first pass repeated at the end.
type CycleError struct {
	Passes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycleDetected, strings.Join(e.Passes, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycleDetected }

// UnknownResourceError names the pass that referenced an unregistered id.
// Pass is empty when the id came from a direct registry call.
type UnknownResourceError struct {
	Pass     string
	Resource ResourceID
}

func (e *UnknownResourceError) Error() string {
	if e.Pass == "" {
		return fmt.Sprintf("%v: %v", ErrUnknownResource, e.Resource)
	}
	return fmt.Sprintf("%v: pass %q references %v", ErrUnknownResource, e.Pass, e.Resource)
}

func (e *UnknownResourceError) Unwrap() error { return ErrUnknownResource }

// MissingProducerError names a pass reading a resource nobody writes.
type MissingProducerError struct {
	Pass     string
	Resource string
}

func (e *MissingProducerError) Error() string {
	return fmt.Sprintf("%v: pass %q reads %q", ErrMissingProducer, e.Pass, e.Resource)
}

func (e *MissingProducerError) Unwrap() error { return ErrMissingProducer }

// StaleGraphError describes the first mismatch found between a compiled
// graph and the registry.
type StaleGraphError struct {
	Resource ResourceID
	Label    string
	Compiled uint64
	Current  uint64 // zero when the resource was unregistered
	Topology bool   // pass set changed rather than a resource
}

func (e *StaleGraphError) Error() string {
	switch {
	case e.Topology:
		return fmt.Sprintf("%v: pass set changed since compile", ErrStaleGraph)
	case e.Current == 0:
		return fmt.Sprintf("%v: resource %q unregistered", ErrStaleGraph, e.Label)
	default:
		return fmt.Sprintf("%v: resource %q compiled at version %d, now %d",
			ErrStaleGraph, e.Label, e.Compiled, e.Current)
	}
}

func (e *StaleGraphError) Unwrap() error { return ErrStaleGraph }

// DescriptorError explains why a descriptor was rejected.
type DescriptorError struct {
	Label  string
	Reason string
}

func (e *DescriptorError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("%v: %s", ErrDescriptorInvalid, e.Reason)
	}
	return fmt.Sprintf("%v: %q: %s", ErrDescriptorInvalid, e.Label, e.Reason)
}

func (e *DescriptorError) Unwrap() error { return ErrDescriptorInvalid }

// PassError wraps a failure raised while preparing or encoding one pass.
// The whole frame is discarded when it is returned.
type PassError struct {
	Pass string
	Err  error
}

func (e *PassError) Error() string {
	return fmt.Sprintf("framegraph: pass %q: %v", e.Pass, e.Err)
}

func (e *PassError) Unwrap() error { return e.Err }
