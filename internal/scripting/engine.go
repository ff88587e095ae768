package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for the admin script console.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	// captured print output of the script being evaluated
	out strings.Builder
}

// WorldView is the read-only slice of game state exposed to scripts.
type WorldView interface {
	Tick() int
	Date() int64
}

// NewEngine creates a Lua engine and loads every .lua file in scriptsDir.
// A missing directory is not an error.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("print", vm.NewFunction(e.luaPrint))

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load scripts: %w", err)
	}
	return e, nil
}

// BindWorld exposes game state query functions to scripts.
func (e *Engine) BindWorld(w WorldView, playerCount func() int) {
	e.vm.SetGlobal("tick", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(w.Tick()))
		return 1
	}))
	e.vm.SetGlobal("date", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(w.Date()))
		return 1
	}))
	e.vm.SetGlobal("players", e.vm.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(playerCount()))
		return 1
	}))
}

// Eval runs a script chunk and returns everything it printed. The error
// covers both compile and runtime failures.
func (e *Engine) Eval(src string) (string, error) {
	e.out.Reset()
	err := e.vm.DoString(src)
	return e.out.String(), err
}

func (e *Engine) Close() {
	e.vm.Close()
}

func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaPrint replaces the stock print so console output reaches the client
// instead of the server's stdout.
func (e *Engine) luaPrint(L *lua.LState) int {
	top := L.GetTop()
	for i := 1; i <= top; i++ {
		if i > 1 {
			e.out.WriteByte('\t')
		}
		e.out.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	e.out.WriteByte('\n')
	return 0
}
