package luamod

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/envname"
)

// sandboxLuaVM configures a Lua VM to run in a restricted sandbox.
// This disables functions that could:
// - Execute system commands (os.execute, os.exit)
// - Access the filesystem (io.open, io.popen)
// - Load external code (require, dofile, loadfile)
//
// string, table and math are kept. Generated modules only need them and
// os.getenv, which injectEnv provides.
func sandboxLuaVM(L *lua.LState) {
	L.SetGlobal("os", lua.LNil)
	L.SetGlobal("io", lua.LNil)

	L.SetGlobal("require", lua.LNil)
	L.SetGlobal("module", lua.LNil)
	L.SetGlobal("package", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)

	L.SetGlobal("debug", lua.LNil)
	L.SetGlobal("channel", lua.LNil)
	L.SetGlobal("coroutine", lua.LNil)
}

// injectEnv installs a read-only os table whose only member is getenv,
// backed by lookup.
func injectEnv(L *lua.LState, lookup envname.LookupFunc) {
	osTable := L.NewTable()
	L.SetField(osTable, "getenv", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		if value, ok := lookup(name); ok {
			L.Push(lua.LString(value))
		} else {
			L.Push(lua.LNil)
		}
		return 1
	}))
	L.SetGlobal("os", makeReadOnly(L, osTable, "os"))
}

// makeReadOnly makes a Lua table read-only by creating a proxy table with a metatable.
// The proxy redirects reads to the original table but prevents all writes.
func makeReadOnly(L *lua.LState, table *lua.LTable, name string) *lua.LTable {
	mt := L.NewTable()

	L.SetField(mt, "__index", table)

	// Prevent all writes (both new and existing keys)
	L.SetField(mt, "__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s table is read-only and cannot be modified", name)
		return 0
	}))

	// Prevent changing the metatable itself
	L.SetField(mt, "__metatable", lua.LString("protected"))

	proxy := L.NewTable()
	L.SetMetatable(proxy, mt)

	return proxy
}

// newSandboxedVM creates a new Lua VM with sandboxing applied and the
// environment reader installed.
func newSandboxedVM(lookup envname.LookupFunc) *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	injectEnv(L, lookup)
	return L
}
