package scripting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type fakeWorld struct {
	tick int
	date int64
}

func (w *fakeWorld) Tick() int   { return w.tick }
func (w *fakeWorld) Date() int64 { return w.date }

func newTestEngine(t *testing.T, scriptsDir string) *Engine {
	t.Helper()
	e, err := NewEngine(scriptsDir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestEvalCapturesPrint(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	out, err := e.Eval(`print("hello", 42)`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello\t42\n" {
		t.Fatalf("out = %q", out)
	}

	// output does not accumulate across evals
	out, err = e.Eval(`print("next")`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "next\n" {
		t.Fatalf("out = %q", out)
	}
}

func TestEvalReportsErrors(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	if _, err := e.Eval(`this is not lua`); err == nil {
		t.Fatal("syntax error not reported")
	}
	if _, err := e.Eval(`error("boom")`); err == nil {
		t.Fatal("runtime error not reported")
	}
}

func TestBindWorldExposesGameState(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	w := &fakeWorld{tick: 7, date: 1234}
	e.BindWorld(w, func() int { return 3 })

	out, err := e.Eval(`print(tick(), date(), players())`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "7\t1234\t3\n" {
		t.Fatalf("out = %q", out)
	}

	w.tick = 8
	out, _ = e.Eval(`print(tick())`)
	if out != "8\n" {
		t.Fatalf("out = %q, want live tick", out)
	}
}

func TestStartupScriptsAreLoaded(t *testing.T) {
	dir := t.TempDir()
	script := "function greet()\n  print(\"hi from file\")\nend\n"
	if err := os.WriteFile(filepath.Join(dir, "greet.lua"), []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestEngine(t, dir)
	out, err := e.Eval(`greet()`)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hi from file\n" {
		t.Fatalf("out = %q", out)
	}
}

func TestMissingScriptsDirIsNotAnError(t *testing.T) {
	e := newTestEngine(t, filepath.Join(t.TempDir(), "nope"))
	if _, err := e.Eval(`print("ok")`); err != nil {
		t.Fatal(err)
	}
}

func TestBrokenStartupScriptFailsEngineCreation(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("this is not lua"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine(dir, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "bad.lua") {
		t.Fatalf("err = %v, want load failure naming the file", err)
	}
}
