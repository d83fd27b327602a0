package actor

import (
	"context"
	"sync/atomic"

	"github.com/xiaonanln/gwactor/engine/idgen"
)

var lastChainID int64

// NewChainID mints a chain id for a new external call
func NewChainID() int64 {
	return atomic.AddInt64(&lastChainID, 1)
}

type execContextKey struct{}

// execContext is carried by the context of every work item: which actor runs it, and on which chain
type execContext struct {
	actorID idgen.ActorID
	chainID int64
}

func withExec(ctx context.Context, actorID idgen.ActorID, chainID int64) context.Context {
	return context.WithValue(ctx, execContextKey{}, execContext{actorID, chainID})
}

func execOf(ctx context.Context) (execContext, bool) {
	ec, ok := ctx.Value(execContextKey{}).(execContext)
	return ec, ok
}

// ChainID returns the chain id carried by ctx, or 0 if ctx is not inside any actor
func ChainID(ctx context.Context) int64 {
	ec, _ := execOf(ctx)
	return ec.chainID
}

// CurrentActorID returns the id of the actor executing ctx, or 0 if ctx is not inside any actor
func CurrentActorID(ctx context.Context) idgen.ActorID {
	ec, _ := execOf(ctx)
	return ec.actorID
}
