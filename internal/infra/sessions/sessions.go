// Package sessions discovers the actor identities available to a run.
package sessions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoSessions is returned when neither the config nor the directory names an actor.
var ErrNoSessions = errors.New("no sessions found")

// SessionExt is the file extension of a stored session.
const SessionExt = ".session"

// Config lists actors explicitly and/or a directory of session files.
type Config struct {
	Dir string   `yaml:"dir"`
	IDs []string `yaml:"ids"`
}

// Discover returns the configured ids followed by the base names of
// *.session files in Dir, deduplicated. A missing Dir is not an error.
func Discover(cfg Config) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range cfg.IDs {
		add(id)
	}

	if cfg.Dir != "" {
		entries, err := os.ReadDir(cfg.Dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read sessions dir: %w", err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != SessionExt {
				continue
			}
			found = append(found, strings.TrimSuffix(e.Name(), SessionExt))
		}
		sort.Strings(found)
		for _, id := range found {
			add(id)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoSessions
	}
	return out, nil
}
