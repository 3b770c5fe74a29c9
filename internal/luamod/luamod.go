// Package luamod loads generated configuration modules into a sandboxed Lua
// VM and calls their getOptions entry point.
package luamod

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/rcchain/internal/envname"
)

// EntryPoint is the function every generated module exports.
const EntryPoint = "getOptions"

// Generated modules mark values plain Lua tables cannot express by setting
// MarkerField in the value's metatable.
const (
	MarkerField = "__rcchain"
	// MarkerNull marks the sentinel standing in for null.
	MarkerNull = "null"
	// MarkerArray marks a table that is a list even when empty.
	MarkerArray = "array"
)

// LoadError represents a module load or call failure with a friendly message.
type LoadError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// FormatError formats a LoadError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	loadErr, ok := err.(*LoadError)
	if !ok {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", loadErr.Message, loadErr.Detail)
	}
	detail := loadErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", loadErr.Message, detail)
}

type options struct {
	lookup envname.LookupFunc
}

// Option configures Load.
type Option func(*options)

// WithLookup sets the function behind os.getenv inside the module. The
// default is os.LookupEnv.
func WithLookup(lookup envname.LookupFunc) Option {
	return func(o *options) { o.lookup = lookup }
}

// Module is a loaded generated module. It is safe for concurrent use.
type Module struct {
	mu    sync.Mutex
	state *lua.LState
	entry lua.LValue
}

// Load runs code in a fresh sandboxed VM and returns the module it yields.
func Load(code string, opts ...Option) (*Module, error) {
	o := options{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	L := newSandboxedVM(o.lookup)

	fn, err := L.LoadString(code)
	if err != nil {
		L.Close()
		return nil, &LoadError{Message: "Lua syntax error", Detail: err.Error()}
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		L.Close()
		return nil, &LoadError{Message: "module failed to run", Detail: err.Error()}
	}
	ret := L.Get(-1)
	L.Pop(1)

	mod, ok := ret.(*lua.LTable)
	if !ok {
		L.Close()
		return nil, &LoadError{
			Message: "module did not return a table",
			Detail:  fmt.Sprintf("expected table, got %s", ret.Type()),
		}
	}
	entry := mod.RawGetString(EntryPoint)
	if entry.Type() != lua.LTFunction {
		L.Close()
		return nil, &LoadError{
			Message: "missing or invalid '" + EntryPoint + "' function",
			Detail:  fmt.Sprintf("expected function, got %s", entry.Type()),
		}
	}

	return &Module{state: L, entry: entry}, nil
}

// GetOptions calls the module's entry point and converts the result.
func (m *Module) GetOptions() (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == nil {
		return nil, &LoadError{Message: "module is closed", Detail: EntryPoint + " called after Close"}
	}

	L := m.state
	if err := L.CallByParam(lua.P{Fn: m.entry, NRet: 1, Protect: true}); err != nil {
		return nil, &LoadError{Message: EntryPoint + " failed", Detail: err.Error()}
	}
	ret := L.Get(-1)
	L.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil, &LoadError{
			Message: EntryPoint + " did not return a table",
			Detail:  fmt.Sprintf("expected table, got %s", ret.Type()),
		}
	}
	v, err := toGo(tbl)
	if err != nil {
		return nil, &LoadError{Message: "unsupported value in options", Detail: err.Error()}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &LoadError{Message: EntryPoint + " returned a list", Detail: "expected an options object"}
	}
	return obj, nil
}

// Close releases the VM. GetOptions fails afterwards.
func (m *Module) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != nil {
		m.state.Close()
		m.state = nil
	}
}

// Evaluate loads code, calls its entry point once and closes it.
func Evaluate(code string, opts ...Option) (map[string]any, error) {
	m, err := Load(code, opts...)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.GetOptions()
}

// toGo converts a Lua value. The null sentinel becomes nil. Tables marked
// as arrays and tables whose keys are exactly 1..n become []any; every other
// table, including an unmarked empty one, becomes map[string]any.
func toGo(v lua.LValue) (any, error) {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(val), nil
	case lua.LNumber:
		return float64(val), nil
	case lua.LString:
		return string(val), nil
	case *lua.LTable:
		return tableToGo(val)
	default:
		return nil, fmt.Errorf("cannot convert Lua %s", v.Type())
	}
}

func marker(t *lua.LTable) string {
	mt, ok := t.Metatable.(*lua.LTable)
	if !ok {
		return ""
	}
	if s, ok := mt.RawGetString(MarkerField).(lua.LString); ok {
		return string(s)
	}
	return ""
}

func tableToGo(t *lua.LTable) (any, error) {
	kind := marker(t)
	if kind == MarkerNull {
		return nil, nil
	}

	n := t.Len()
	count := 0
	t.ForEach(func(lua.LValue, lua.LValue) { count++ })

	if kind == MarkerArray || (n > 0 && count == n) {
		list := make([]any, n)
		for i := 1; i <= n; i++ {
			item, err := toGo(t.RawGetInt(i))
			if err != nil {
				return nil, err
			}
			list[i-1] = item
		}
		return list, nil
	}

	type kv struct {
		key   string
		value lua.LValue
	}
	var entries []kv
	var keyErr error
	t.ForEach(func(k, v lua.LValue) {
		switch key := k.(type) {
		case lua.LString:
			entries = append(entries, kv{string(key), v})
		case lua.LNumber:
			entries = append(entries, kv{strconv.FormatFloat(float64(key), 'g', -1, 64), v})
		default:
			if keyErr == nil {
				keyErr = fmt.Errorf("unsupported table key of type %s", k.Type())
			}
		}
	})
	if keyErr != nil {
		return nil, keyErr
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })

	obj := make(map[string]any, len(entries))
	for _, e := range entries {
		item, err := toGo(e.value)
		if err != nil {
			return nil, err
		}
		obj[e.key] = item
	}
	return obj, nil
}
