package moderation

import (
	"errors"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// RejectedError carries the reason a scripted rule gave for refusing a
// message.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "message rejected: " + e.Reason
}

// Rule wraps a Lua moderation script. The script either returns a table with
// a check function or defines a global named "moderation" holding one:
//
//	return {
//	  check = function(name, message)
//	    if #message > 0 and message == string.upper(message) then
//	      return "no shouting"
//	    end
//	  end
//	}
//
// check returns nil or false to accept, and a string reason to reject.
type Rule struct {
	mu sync.Mutex
	L  *lua.LState
	fn *lua.LFunction
}

// LoadRule loads and executes the script at path.
func LoadRule(path string) (*Rule, error) {
	L := newState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("load script %s: %w", path, err)
	}
	return newRule(L)
}

// ParseRule compiles a rule from source.
func ParseRule(src string) (*Rule, error) {
	L := newState()
	if err := L.DoString(src); err != nil {
		L.Close()
		return nil, fmt.Errorf("parse rule: %w", err)
	}
	return newRule(L)
}

func newState() *lua.LState {
	return lua.NewState(lua.Options{
		CallStackSize: 120,
		RegistrySize:  120 * 20,
	})
}

func newRule(L *lua.LState) (*Rule, error) {
	tbl := ruleTable(L)
	if tbl == nil {
		L.Close()
		return nil, errors.New("no moderation table found")
	}
	fn, ok := tbl.RawGetString("check").(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, errors.New("moderation.check is not a function")
	}
	return &Rule{L: L, fn: fn}, nil
}

// ruleTable finds the rule table, either as the return value of the script
// or as a global named "moderation".
func ruleTable(L *lua.LState) *lua.LTable {
	if tbl, ok := L.Get(-1).(*lua.LTable); ok {
		return tbl
	}
	if tbl, ok := L.GetGlobal("moderation").(*lua.LTable); ok {
		return tbl
	}
	return nil
}

// Check runs the script against a name and message.
func (r *Rule) Check(name, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.L.CallByParam(lua.P{
		Fn:      r.fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(name), lua.LString(message)); err != nil {
		return fmt.Errorf("call moderation.check: %w", err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	switch v := ret.(type) {
	case lua.LString:
		return &RejectedError{Reason: string(v)}
	case lua.LBool:
		if bool(v) {
			return &RejectedError{Reason: "rejected by rule"}
		}
	}
	return nil
}

// Close shuts down the Lua state.
func (r *Rule) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.L.Close()
}
