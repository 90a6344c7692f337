// Package plan is C9: building a typed operator DAG out of the
// descriptors from package operator, validating it, and driving its
// sequential, in-ID-order execution against a chosen exec.Context.
package plan

import (
	"context"
	"fmt"

	"github.com/dftracer-utils/traceindex/pkg/common"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/engine"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/exec"
	"github.com/dftracer-utils/traceindex/pkg/pipeline/operator"
)

// Plan is a DAG of operator descriptors. Every node's ParentID is
// strictly less than its own ID by construction: Add* functions only
// ever append, and only ever reference a parent ID that was returned
// by an earlier Add* call.
type Plan struct {
	nodes []operator.Descriptor
}

// New returns an empty plan.
func New() *Plan {
	return &Plan{}
}

func (p *Plan) add(kind operator.Kind, parent operator.ID, hasParent bool, label string, run operator.RunFunc) operator.ID {
	id := operator.ID(len(p.nodes))
	p.nodes = append(p.nodes, operator.Descriptor{
		ID:        id,
		ParentID:  parent,
		HasParent: hasParent,
		Kind:      kind,
		Label:     label,
		Run:       run,
	})
	return id
}

func box[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

func unbox[T any](items []any) ([]T, error) {
	out := make([]T, len(items))
	for i, v := range items {
		t, ok := v.(T)
		if !ok {
			return nil, common.Wrap(common.CategoryTypeMismatch, fmt.Sprintf("element %d has unexpected type %T", i, v), nil)
		}
		out[i] = t
	}
	return out, nil
}

// AddSource registers a node with no parent whose output is data.
func AddSource[T any](p *Plan, data []T) operator.ID {
	return p.add(operator.KindSource, 0, false, "source", func(ctx context.Context, ec exec.Context, _ []any) ([]any, error) {
		return box(data), nil
	})
}

// AddMap registers a 1:1, order-preserving transform over parent's
// output.
func AddMap[T, U any](p *Plan, parent operator.ID, fn func(T) U) operator.ID {
	return p.add(operator.KindMap, parent, true, "map", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		typedIn, err := unbox[T](in)
		if err != nil {
			return nil, err
		}
		out, err := engine.Map(ctx, ec, typedIn, fn)
		if err != nil {
			return nil, common.Wrap(common.CategoryExecution, "map", err)
		}
		if len(out) != len(typedIn) {
			return nil, common.Wrap(common.CategoryExecution, "map produced mismatched element count", nil)
		}
		return box(out), nil
	})
}

// AddFilter registers a stable filter over parent's output.
func AddFilter[T any](p *Plan, parent operator.ID, pred func(T) bool) operator.ID {
	return p.add(operator.KindFilter, parent, true, "filter", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		typedIn, err := unbox[T](in)
		if err != nil {
			return nil, err
		}
		out, err := engine.Filter(ctx, ec, typedIn, pred)
		if err != nil {
			return nil, common.Wrap(common.CategoryExecution, "filter", err)
		}
		return box(out), nil
	})
}

// AddFlatMap registers an order-preserving 1:N transform.
func AddFlatMap[T, U any](p *Plan, parent operator.ID, fn func(T) []U) operator.ID {
	return p.add(operator.KindFlatMap, parent, true, "flatmap", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		typedIn, err := unbox[T](in)
		if err != nil {
			return nil, err
		}
		out, err := engine.FlatMap(ctx, ec, typedIn, fn)
		if err != nil {
			return nil, common.Wrap(common.CategoryExecution, "flatmap", err)
		}
		return box(out), nil
	})
}

// AddMapPartitions registers a partition-wise transform; partitions
// are concatenated back together in partition order.
func AddMapPartitions[T, U any](p *Plan, parent operator.ID, numPartitions int, fn func([]T) []U) operator.ID {
	return p.add(operator.KindMapPartitions, parent, true, "map_partitions", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		typedIn, err := unbox[T](in)
		if err != nil {
			return nil, err
		}
		out, err := engine.MapPartitions(ctx, ec, typedIn, numPartitions, fn)
		if err != nil {
			return nil, common.Wrap(common.CategoryExecution, "map_partitions", err)
		}
		return box(out), nil
	})
}

// AddRepartitionByHash registers a hash-based repartition. Its output
// is numPartitions elements, each one a boxed []T partition; use
// GetPartitions to retrieve them after Run. stable=false is rejected
// immediately, at plan-construction time, matching the Open Question
// decision that the core model offers no unordered repartition mode.
func AddRepartitionByHash[T any](p *Plan, parent operator.ID, numPartitions int, seed uint64, keyFn func(T) []byte, stable bool) (operator.ID, error) {
	if !stable {
		return 0, common.Wrap(common.CategoryInvalidArgument, "repartition_by_hash requires stable=true", nil)
	}
	id := p.add(operator.KindRepartitionByHash, parent, true, "repartition_by_hash", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		typedIn, err := unbox[T](in)
		if err != nil {
			return nil, err
		}
		partitions, err := engine.RepartitionByHash(ctx, ec, typedIn, numPartitions, seed, keyFn, stable, nil)
		if err != nil {
			return nil, common.Wrap(common.CategoryExecution, "repartition_by_hash", err)
		}
		out := make([]any, len(partitions))
		for i, part := range partitions {
			out[i] = part
		}
		return out, nil
	})
	return id, nil
}

// AddCollect registers a terminal passthrough node, documenting which
// node's output is the pipeline's result.
func AddCollect(p *Plan, parent operator.ID) operator.ID {
	return p.add(operator.KindCollect, parent, true, "collect", func(ctx context.Context, ec exec.Context, in []any) ([]any, error) {
		return in, nil
	})
}

// Validate checks the DAG invariants spec §6 requires: every node
// with a parent references a strictly earlier node, and IDs are
// contiguous from construction (always true for a Plan built solely
// through Add* calls, but checked explicitly so a hand-assembled or
// deserialized Plan is caught too).
func (p *Plan) Validate() error {
	for i, n := range p.nodes {
		if int(n.ID) != i {
			return common.Wrap(common.CategoryValidation, fmt.Sprintf("node %d has inconsistent id %d", i, n.ID), nil)
		}
		if n.HasParent && n.ParentID >= n.ID {
			return common.Wrap(common.CategoryValidation, fmt.Sprintf("node %d parent %d is not strictly earlier", n.ID, n.ParentID), nil)
		}
		if n.HasParent && int(n.ParentID) >= len(p.nodes) {
			return common.Wrap(common.CategoryValidation, fmt.Sprintf("node %d references unknown parent %d", n.ID, n.ParentID), nil)
		}
	}
	return nil
}

// Results is the boxed output of every node in a completed Run, keyed
// by node ID.
type Results map[operator.ID][]any

// Run validates the plan and executes every node in ID order -- which
// is already a valid topological order given the parent < id
// invariant -- against ec, failing on the first node that errors.
func (p *Plan) Run(ctx context.Context, ec exec.Context) (Results, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	results := make(Results, len(p.nodes))
	for _, n := range p.nodes {
		var in []any
		if n.HasParent {
			in = results[n.ParentID]
		}

		out, err := n.Run(ctx, ec, in)
		if err != nil {
			return nil, fmt.Errorf("node %d (%s): %w", n.ID, n.Kind, err)
		}
		results[n.ID] = out
	}
	return results, nil
}

// Get retrieves a node's output, type-asserting every element back to
// T.
func Get[T any](results Results, id operator.ID) ([]T, error) {
	out, ok := results[id]
	if !ok {
		return nil, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("no result for node %d", id), nil)
	}
	return unbox[T](out)
}

// GetPartitions retrieves a repartition_by_hash node's output as its
// original [][]T shape.
func GetPartitions[T any](results Results, id operator.ID) ([][]T, error) {
	out, ok := results[id]
	if !ok {
		return nil, common.Wrap(common.CategoryInvalidArgument, fmt.Sprintf("no result for node %d", id), nil)
	}
	partitions := make([][]T, len(out))
	for i, v := range out {
		t, ok := v.([]T)
		if !ok {
			return nil, common.Wrap(common.CategoryTypeMismatch, fmt.Sprintf("partition %d has unexpected type %T", i, v), nil)
		}
		partitions[i] = t
	}
	return partitions, nil
}
