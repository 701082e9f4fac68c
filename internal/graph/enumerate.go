package graph

import (
	"context"
	"fmt"
)

// ctxCheckInterval is how many nodes are visited between context checks.
const ctxCheckInterval = 4096

// Enumerate returns every node reachable from root, root included, in
// depth-first pre-order with children visited in ListChildren order.
// The walk uses an explicit stack so tree depth is bounded only by memory.
func Enumerate(ctx context.Context, g Graph, root NodeID) ([]NodeID, error) {
	var ids []NodeID
	stack := []NodeID{root}
	for len(stack) > 0 {
		if len(ids)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ids = append(ids, id)

		children, err := g.ListChildren(id)
		if err != nil {
			return nil, fmt.Errorf("enumerate: %w", err)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return ids, nil
}

// EnumerateFromRoot resolves g's root and enumerates from it.
func EnumerateFromRoot(ctx context.Context, g Graph) ([]NodeID, error) {
	root, err := g.Root()
	if err != nil {
		return nil, fmt.Errorf("enumerate: %w", err)
	}
	return Enumerate(ctx, g, root)
}
