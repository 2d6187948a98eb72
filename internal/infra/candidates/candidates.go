// Package candidates reads invitee lists from line-oriented files and prunes
// entries that no longer need processing.
package candidates

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vietddude/inviter/internal/core/domain"
)

// Config names the candidate files. Either may be missing.
type Config struct {
	IDsFile       string `yaml:"ids_file"`
	UsernamesFile string `yaml:"usernames_file"`
}

// Load returns the candidates of the id file followed by the username file,
// deduplicated by candidate key in input order. Blank lines and lines
// starting with '#' are ignored; unparsable lines are logged and skipped.
func Load(cfg Config, log *slog.Logger) ([]domain.Candidate, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "candidates")

	seen := make(map[string]struct{})
	var out []domain.Candidate

	for _, path := range cfg.paths() {
		lines, err := readLines(path)
		if err != nil {
			return nil, err
		}
		for i, line := range lines {
			if skipLine(line) {
				continue
			}
			c, err := domain.ParseCandidate(line)
			if err != nil {
				log.Warn("Skipping candidate line", "file", path, "line", i+1, "error", err)
				continue
			}
			key := c.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
	}
	return out, nil
}

// Processed reports whether a candidate can be dropped from the files.
type Processed func(ctx context.Context, c domain.Candidate) (bool, error)

// PruneReport counts what Prune did per file.
type PruneReport struct {
	Removed int
	Kept    int
	Backups []string
}

// Prune rewrites each candidate file without the entries done reports as
// processed. A timestamped .bak copy is written before a file is replaced;
// files with nothing to remove are left untouched.
func Prune(ctx context.Context, cfg Config, done Processed, now time.Time) (*PruneReport, error) {
	report := &PruneReport{}

	for _, path := range cfg.paths() {
		lines, err := readLines(path)
		if err != nil {
			return nil, err
		}

		kept := make([]string, 0, len(lines))
		removed := 0
		for _, line := range lines {
			if skipLine(line) {
				kept = append(kept, line)
				continue
			}
			c, err := domain.ParseCandidate(line)
			if err != nil {
				kept = append(kept, line)
				continue
			}
			drop, err := done(ctx, c)
			if err != nil {
				return nil, fmt.Errorf("check candidate %s: %w", c.Key(), err)
			}
			if drop {
				removed++
				continue
			}
			kept = append(kept, line)
			report.Kept++
		}

		if removed == 0 {
			continue
		}

		backup := fmt.Sprintf("%s.bak-%s", path, now.Format("20060102-150405"))
		if err := copyFile(path, backup); err != nil {
			return nil, err
		}
		if err := writeLines(path, kept); err != nil {
			return nil, err
		}
		report.Removed += removed
		report.Backups = append(report.Backups, backup)
	}
	return report, nil
}

func (cfg Config) paths() []string {
	var out []string
	for _, p := range []string{cfg.IDsFile, cfg.UsernamesFile} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func skipLine(line string) bool {
	s := strings.TrimSpace(line)
	return s == "" || strings.HasPrefix(s, "#")
}

// readLines returns the file's lines, or nil when the file does not exist.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open candidate file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read candidate file %s: %w", path, err)
	}
	return lines, nil
}

// writeLines replaces path through a temp file in the same directory.
func writeLines(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy backup %s: %w", dst, err)
	}
	return out.Close()
}
