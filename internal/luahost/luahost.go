package luahost

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/loftpm/loft/internal/manifest"
	"github.com/loftpm/loft/internal/store"
)

// EntryFile is the script an extension ships to receive its setup call.
const EntryFile = "init.lua"

// Runner executes extension init scripts. Each setup call runs in a fresh
// Lua state, so one extension cannot poison another's globals.
type Runner struct {
	store *store.Store
}

// New creates a Runner over the store holding installed extensions.
func New(st *store.Store) *Runner {
	return &Runner{store: st}
}

// Setup runs the extension's init.lua and calls its setup(config)
// function with the spec's config payload. Extensions without an entry
// script are config-only and succeed as a no-op. The function signature
// matches activator.SetupFunc.
func (r *Runner) Setup(spec *manifest.ExtensionSpec) error {
	dir, err := r.store.Path(spec.Name)
	if err != nil {
		return err
	}

	entry := filepath.Join(dir, EntryFile)
	if _, err := os.Stat(entry); err != nil {
		return nil
	}

	L := lua.NewState()
	defer L.Close()

	if err := L.DoFile(entry); err != nil {
		return fmt.Errorf("loading %s: %w", entry, err)
	}

	setup := L.GetGlobal("setup")
	if setup.Type() != lua.LTFunction {
		// setup is optional; loading the script was the whole job.
		return nil
	}

	cfg := toLua(L, spec.Config)
	if err := L.CallByParam(lua.P{Fn: setup, NRet: 1, Protect: true}, cfg); err != nil {
		return fmt.Errorf("setup(): %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	switch v := ret.(type) {
	case lua.LBool:
		if v == lua.LFalse {
			return fmt.Errorf("setup() returned false")
		}
	case lua.LString:
		return fmt.Errorf("setup(): %s", string(v))
	}
	return nil
}

// toLua converts a config payload into a Lua value. Maps become tables,
// slices become array-style tables, scalars map to their Lua equivalents.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range val {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}
