package shared

import "context"

type branchContextKey struct{}

type actorContextKey struct{}

// ContextWithBranch stores the active branch id in context.
func ContextWithBranch(ctx context.Context, branchID int64) context.Context {
	return context.WithValue(ctx, branchContextKey{}, branchID)
}

// BranchFromContext extracts the active branch id, zero when absent.
func BranchFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(branchContextKey{}).(int64)
	return id
}

// ContextWithActor stores the acting staff id in context.
func ContextWithActor(ctx context.Context, staffID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, staffID)
}

// ActorFromContext extracts the acting staff id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
