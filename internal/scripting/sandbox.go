// Package scripting provides the sandboxed GopherLua environment used to
// evaluate special-room trigger scripts. It has no dependency on game domain
// packages; callers pass values in as Lua globals.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// evaluation when no override is configured.
const DefaultInstructionLimit = 10_000

// countingContext is a context.Context that cancels itself after Done() has
// been called limit times. GopherLua's mainLoopWithContext calls Done() once
// per opcode, making this an exact instruction-count limit.
type countingContext struct {
	context.Context
	cancel    context.CancelFunc
	remaining *atomic.Int64
}

// Done decrements the remaining budget and fires cancel when it is exhausted.
func (c *countingContext) Done() <-chan struct{} {
	if c.remaining.Add(-1) <= 0 {
		c.cancel()
	}
	return c.Context.Done()
}

// newCountingContext returns a context that cancels after limit calls to Done().
// Precondition: limit > 0.
func newCountingContext(limit int) (context.Context, context.CancelFunc) {
	base, cancel := context.WithCancel(context.Background())
	rem := &atomic.Int64{}
	rem.Store(int64(limit))
	return &countingContext{
		Context:   base,
		cancel:    cancel,
		remaining: rem,
	}, cancel
}

// NewSandboxedState creates a GopherLua LState with:
//   - Only base, table, string and math loaded
//   - dofile, loadfile, load, collectgarbage and require removed
//   - math.random and math.randomseed removed, so scripts stay deterministic
//   - print removed; tostring and string.format accept only nil, boolean,
//     number and string values, since tables and functions format as heap addresses
//   - Execution limited to at most instLimit opcodes
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The caller owns the LState and must call cancel and L.Close() when done.
func NewSandboxedState(instLimit int) (*lua.LState, context.CancelFunc) {
	limit := instLimit
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "collectgarbage", "require", "print"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetGlobal("tostring", L.NewFunction(safeToString))
	if strTbl, ok := L.GetGlobal("string").(*lua.LTable); ok {
		if format, ok := strTbl.RawGetString("format").(*lua.LFunction); ok {
			strTbl.RawSetString("format", L.NewFunction(safeFormat(format)))
		}
	}
	if mathTbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		mathTbl.RawSetString("random", lua.LNil)
		mathTbl.RawSetString("randomseed", lua.LNil)
	}

	ctx, cancel := newCountingContext(limit)
	L.SetContext(ctx)

	return L, cancel
}

// checkPrimitive raises a Lua error unless v formats the same in every process.
func checkPrimitive(L *lua.LState, fn string, pos int, v lua.LValue) {
	switch v.Type() {
	case lua.LTNil, lua.LTBool, lua.LTNumber, lua.LTString:
	default:
		L.RaiseError("%s: argument #%d: cannot format a %s", fn, pos, v.Type().String())
	}
}

func safeToString(L *lua.LState) int {
	v := L.CheckAny(1)
	checkPrimitive(L, "tostring", 1, v)
	L.Push(lua.LString(v.String()))
	return 1
}

func safeFormat(format *lua.LFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		top := L.GetTop()
		for i := 2; i <= top; i++ {
			checkPrimitive(L, "string.format", i, L.Get(i))
		}
		return format.GFunction(L)
	}
}
