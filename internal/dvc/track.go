package dvc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bitfield/script"

	"github.com/mentorchita/ecommerce-start/internal/shell"
)

// DefaultTrackThreshold is the size above which files are handed to dvc.
const DefaultTrackThreshold = 1 << 20

// FileError records a file dvc could not track.
type FileError struct {
	Path string `json:"path"`
	Err  string `json:"error"`
}

// TrackResult lists what Track did with every file it saw.
type TrackResult struct {
	Added          []string    `json:"added"`
	SkippedTracked []string    `json:"skippedTracked"`
	SkippedSmall   []string    `json:"skippedSmall"`
	Failed         []FileError `json:"failed,omitempty"`
	Committed      bool        `json:"committed"`
}

// Tracker registers large untracked files with dvc.
type Tracker struct {
	root      string
	threshold int64
	runner    shell.Runner
}

// NewTracker returns a Tracker; threshold <= 0 selects DefaultTrackThreshold.
func NewTracker(root string, threshold int64, runner shell.Runner) *Tracker {
	if threshold <= 0 {
		threshold = DefaultTrackThreshold
	}
	return &Tracker{root: root, threshold: threshold, runner: runner}
}

// Track adds every candidate under dirs, one file at a time. A failing file is
// recorded and the remaining files are still tracked.
func (t *Tracker) Track(ctx context.Context, dirs []string) (*TrackResult, error) {
	res := &TrackResult{}

	for _, dir := range dirs {
		if err := t.scan(dir, res); err != nil {
			return res, err
		}
	}

	var added []string
	for _, rel := range res.Added {
		if err := ctx.Err(); err != nil {
			res.Added = added
			return res, err
		}
		if _, err := t.runner.Output(ctx, t.root, "dvc", "add", rel); err != nil {
			slog.WarnContext(ctx, "dvc add failed", "file", rel, "err", err)
			res.Failed = append(res.Failed, FileError{Path: rel, Err: err.Error()})
			continue
		}
		added = append(added, rel)
	}
	res.Added = added

	if len(added) == 0 {
		return res, nil
	}

	paths := make([]string, 0, len(added)+1)
	for _, rel := range added {
		paths = append(paths, rel+".dvc")
		gitignore := filepath.Join(filepath.Dir(rel), ".gitignore")
		if !slices.Contains(paths, gitignore) {
			paths = append(paths, gitignore)
		}
	}
	if _, err := t.runner.Output(ctx, t.root, "git", append([]string{"add"}, paths...)...); err != nil {
		slog.InfoContext(ctx, "staging dvc files failed", "err", err)
		return res, nil
	}
	msg := fmt.Sprintf("Track %d data file(s) with DVC", len(added))
	if _, err := t.runner.Output(ctx, t.root, "git", "commit", "-m", msg); err != nil {
		slog.InfoContext(ctx, "committing dvc files failed", "err", err)
		return res, nil
	}
	res.Committed = true
	return res, nil
}

// scan classifies the files under dir into res. Missing directories are
// ignored.
func (t *Tracker) scan(dir string, res *TrackResult) error {
	abs := filepath.Join(t.root, dir)
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil
	}

	files, err := script.FindFiles(abs).Slice()
	if err != nil {
		return fmt.Errorf("listing %s: %w", dir, err)
	}
	slices.Sort(files)

	for _, path := range files {
		rel, err := filepath.Rel(t.root, path)
		if err != nil {
			continue
		}
		if skipPath(rel) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if _, err := os.Stat(path + ".dvc"); err == nil {
			res.SkippedTracked = append(res.SkippedTracked, rel)
			continue
		}
		if info.Size() <= t.threshold {
			res.SkippedSmall = append(res.SkippedSmall, rel)
			continue
		}
		res.Added = append(res.Added, rel)
	}
	return nil
}

func skipPath(rel string) bool {
	base := filepath.Base(rel)
	if strings.HasSuffix(base, ".dvc") || base == ".gitignore" {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".git" || part == ".dvc" {
			return true
		}
	}
	return false
}
