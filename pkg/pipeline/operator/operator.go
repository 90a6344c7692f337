// Package operator is C6: the typed operator descriptor model shared
// by the planner (C9) and the concrete engines (C8). A Descriptor
// never holds typed data itself; it holds a closure, built by a
// generic constructor in package plan, that already knows how to cast
// its "any"-erased input back to the operator's real element type.
package operator

import (
	"context"

	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
)

// Kind enumerates the seven descriptor shapes the core model supports
// (spec §5): a dataflow graph is built from these and nothing else.
type Kind int

const (
	KindSource Kind = iota
	KindMap
	KindFilter
	KindFlatMap
	KindMapPartitions
	KindRepartitionByHash
	KindCollect
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindMap:
		return "map"
	case KindFilter:
		return "filter"
	case KindFlatMap:
		return "flatmap"
	case KindMapPartitions:
		return "map_partitions"
	case KindRepartitionByHash:
		return "repartition_by_hash"
	case KindCollect:
		return "collect"
	default:
		return "unknown"
	}
}

// ID identifies a node within a single Plan. Plans rely on the
// invariant that every node's parent ID is strictly less than the
// node's own ID (spec §6, DAG validation) -- IDs are assigned in
// construction order, so this holds by construction rather than
// needing an explicit topological sort.
type ID int

// RunFunc is a node's erased execution step: given the execution
// context and the parent's output elements, produce this node's
// output elements.
type RunFunc func(ctx context.Context, execCtx exec.Context, in []any) ([]any, error)

// Descriptor is one node of a pipeline DAG.
type Descriptor struct {
	ID        ID
	ParentID  ID // only meaningful when HasParent is true
	HasParent bool
	Kind      Kind
	Label     string
	Run       RunFunc
}
