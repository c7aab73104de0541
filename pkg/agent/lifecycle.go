package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/forgemesh/nodeagent/pkg/types"
)

// lifecycleGroup coordinates the heartbeat loop goroutine so Start/Stop
// can wait for it to actually exit instead of firing-and-forgetting it,
// the same errgroup-based shutdown coordination pattern used wherever
// this codebase runs more than one long-lived goroutine per component.
type lifecycleGroup struct {
	group  *errgroup.Group
	cancel context.CancelFunc
	action *types.NodeAction
}

// startLoop runs loop.Run under an errgroup derived from parent and
// returns a handle whose wait blocks until it exits.
func startLoop(parent context.Context, loop *Loop) *lifecycleGroup {
	ctx, cancel := context.WithCancel(parent)
	group, ctx := errgroup.WithContext(ctx)
	lg := &lifecycleGroup{group: group, cancel: cancel}
	group.Go(func() error {
		lg.action = loop.Run(ctx)
		return nil
	})
	return lg
}

// wait blocks until the heartbeat loop goroutine has returned and reports
// the directive it ended on, or nil if Stop ended it.
func (g *lifecycleGroup) wait() *types.NodeAction {
	_ = g.group.Wait()
	return g.action
}

// stop cancels the derived context and waits for the loop goroutine to
// exit. Loop.Stop (called separately, before stop) is what actually makes
// Run return; this only reclaims the goroutine and its context.
func (g *lifecycleGroup) stop() {
	g.cancel()
	g.wait()
}
