package persona

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-pirate.yaml", "name: pirate\nprompt: Talk like a pirate.\n")
	writeFile(t, dir, "a-formal.yml", "name: formal\nprompt: Be formal.\n")
	writeFile(t, dir, "ignored.txt", "not yaml")

	personas, err := LoadFromDirectory(dir, testLogger())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(personas) != 2 {
		t.Fatalf("expected 2 personas, got %d", len(personas))
	}
	// Sorted by file name: a-formal before b-pirate.
	if personas[0].Name != "formal" || personas[1].Name != "pirate" {
		t.Fatalf("order wrong: %+v", personas)
	}
}

func TestLoadFromDirectory_NameDefaultsToFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "helper.yaml", "prompt: Be helpful.\n")

	personas, err := LoadFromDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(personas) != 1 || personas[0].Name != "helper" {
		t.Fatalf("got %+v", personas)
	}
}

func TestLoadFromDirectory_SkipsBroken(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.yaml", "{{{not yaml")
	writeFile(t, dir, "empty.yaml", "name: empty\n")
	writeFile(t, dir, "good.yaml", "name: good\nprompt: ok\n")

	personas, err := LoadFromDirectory(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(personas) != 1 || personas[0].Name != "good" {
		t.Fatalf("expected only the valid persona, got %+v", personas)
	}
}

func TestLoadFromDirectory_MissingDir(t *testing.T) {
	personas, err := LoadFromDirectory(filepath.Join(t.TempDir(), "nope"), testLogger())
	if err != nil || personas != nil {
		t.Fatalf("missing dir should be empty result, got %v %v", personas, err)
	}
}

func TestPrompts(t *testing.T) {
	got := Prompts([]Persona{{Name: "a", Prompt: "one"}, {Name: "b", Prompt: "two"}})
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("got %v", got)
	}
}
