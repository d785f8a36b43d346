package scripting

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Script is a compiled trigger chunk. The chunk must return a value; its Lua
// truthiness decides whether the trigger fires.
//
// A Script is immutable and safe for concurrent Eval calls; each call runs in
// its own sandboxed state.
type Script struct {
	name  string
	proto *lua.FunctionProto
}

// Env holds the globals visible to a trigger script.
type Env struct {
	Visit  uint64
	Zone   string
	Player string
}

// Compile parses and compiles src once.
//
// Postcondition: Returns a Script or an error describing the syntax problem.
func Compile(name, src string) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("scripting: parsing %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("scripting: compiling %s: %w", name, err)
	}
	return &Script{name: name, proto: proto}, nil
}

// Name returns the name the script was compiled under.
func (s *Script) Name() string {
	return s.name
}

// Eval runs the script against env in a fresh sandbox.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns the truthiness of the script's first return value, or
// an error if the script raised or exceeded its instruction budget.
func (s *Script) Eval(env Env, instLimit int) (bool, error) {
	L, cancel := NewSandboxedState(instLimit)
	defer cancel()
	defer L.Close()

	L.SetGlobal("visit", lua.LNumber(env.Visit))
	L.SetGlobal("zone", lua.LString(env.Zone))
	L.SetGlobal("player", lua.LString(env.Player))

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return false, fmt.Errorf("scripting: evaluating %s: %w", s.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}
