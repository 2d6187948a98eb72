package sessions

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"+79990002.session", "+79990001.session", "notes.txt", "acc.session-journal"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "old.session"), 0o700); err != nil {
		t.Fatal(err)
	}

	got, err := Discover(Config{Dir: dir, IDs: []string{"manual", "+79990002"}})
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []string{"manual", "+79990002", "+79990001"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Discover() = %v, want %v", got, want)
	}
}

func TestDiscover_Empty(t *testing.T) {
	_, err := Discover(Config{Dir: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrNoSessions) {
		t.Errorf("expected ErrNoSessions, got %v", err)
	}
}
