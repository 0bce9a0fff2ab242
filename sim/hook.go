package sim

import "github.com/sirupsen/logrus"

// HookPos defines the enum of possible hooking positions
type HookPos struct {
	Name string
}

// HookPosBeforeEvent is a hook position that triggers before dispatching an event
var HookPosBeforeEvent = &HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after the resumed process
// has yielded control back to the engine
var HookPosAfterEvent = &HookPos{Name: "AfterEvent"}

// HookCtx holds the information about the site where a hook is triggered.
type HookCtx struct {
	Engine *Engine
	Pos    *HookPos
	Item   *PendingEvent
}

// Hook is a short piece of program invoked by the engine around each dispatch.
// Hooks run on the engine's turn, so they may read pool and clock state freely
// but must not schedule events or spawn processes.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) { f(ctx) }

// LogHook traces every dispatch at debug level.
type LogHook struct{}

// Func implements Hook.
func (LogHook) Func(ctx HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}
	logrus.Debugf("[t=%12.4f] resume %s (seq %d)", ctx.Item.Time, ctx.Item.Process, ctx.Item.Seq)
}
