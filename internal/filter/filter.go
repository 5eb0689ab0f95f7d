// Package filter evaluates user-supplied Lua predicates against timeline
// entries, so an operator can narrow a long transcript to the turns they
// care about ("entry.role == 'tool' and entry.tool == 'run_command'").
// Scripts run in a sandboxed Lua state with no file, process, or network
// access.
package filter

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/runwatch/runwatch/internal/models"
)

// Filter is a compiled entry predicate. Not safe for concurrent use; each
// consumer compiles its own.
type Filter struct {
	state *lua.LState
}

// New compiles a Lua expression over an `entry` table with fields role,
// content, tool, tool_call_id, and has_tool_calls.
func New(expr string) (*Filter, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	openSafeLibs(L)

	script := fmt.Sprintf("function __match(entry)\n  return %s\nend", expr)
	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}
	if L.GetGlobal("__match") == lua.LNil {
		L.Close()
		return nil, fmt.Errorf("invalid filter expression %q", expr)
	}

	return &Filter{state: L}, nil
}

func (f *Filter) Close() {
	f.state.Close()
}

// Match evaluates the predicate for one entry. tool is the resolved function
// name for tool-result entries, empty otherwise. Any Lua truthy value
// matches.
func (f *Filter) Match(e models.TimelineEntry, tool string) (bool, error) {
	L := f.state

	tbl := L.NewTable()
	L.SetField(tbl, "role", lua.LString(string(e.Role)))
	L.SetField(tbl, "content", lua.LString(e.Content))
	L.SetField(tbl, "tool", lua.LString(tool))
	L.SetField(tbl, "tool_call_id", lua.LString(e.ToolCallID))
	L.SetField(tbl, "has_tool_calls", lua.LBool(len(e.ToolCalls) > 0))

	L.Push(L.GetGlobal("__match"))
	L.Push(tbl)
	if err := L.PCall(1, 1, nil); err != nil {
		return false, fmt.Errorf("filter failed: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

// openSafeLibs loads only side-effect-free standard libraries: no io, no os,
// no load.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}
