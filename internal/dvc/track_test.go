package dvc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mentorchita/ecommerce-start/internal/shell"
	"github.com/mentorchita/ecommerce-start/internal/shell/shelltest"
)

// cancelAfter cancels the run once n commands have completed.
type cancelAfter struct {
	shell.Runner
	n      int
	cancel context.CancelFunc
}

func (c *cancelAfter) Output(ctx context.Context, dir, name string, args ...string) (string, error) {
	out, err := c.Runner.Output(ctx, dir, name, args...)
	if c.n--; c.n == 0 {
		c.cancel()
	}
	return out, err
}

func writeSized(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestTrack_OnlyLargeUntrackedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSized(t, root, "data/raw/small.csv", 500*1024)
	writeSized(t, root, "data/raw/large.csv", 2*1024*1024)
	writeSized(t, root, "data/raw/tracked.parquet", 3*1024*1024)
	writeSized(t, root, "data/raw/tracked.parquet.dvc", 100)

	runner := shelltest.New()
	res, err := NewTracker(root, DefaultTrackThreshold, runner).Track(context.Background(), []string{"data", "models"})
	require.NoError(t, err)

	assert.Equal(t, []string{"data/raw/large.csv"}, res.Added)
	assert.Equal(t, []string{"data/raw/small.csv"}, res.SkippedSmall)
	assert.Equal(t, []string{"data/raw/tracked.parquet"}, res.SkippedTracked)
	assert.Empty(t, res.Failed)
	assert.True(t, res.Committed)

	assert.Equal(t, 1, runner.Count("dvc add"))
	assert.Equal(t, 1, runner.Count("dvc add data/raw/large.csv"))
	assert.Equal(t, 1, runner.Count("git add data/raw/large.csv.dvc data/raw/.gitignore"))
	assert.Equal(t, 1, runner.Count("git commit"))
}

func TestTrack_FailureContinuesWithRemainingFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSized(t, root, "data/a.bin", 2<<20)
	writeSized(t, root, "data/b.bin", 2<<20)
	writeSized(t, root, "models/c.bin", 2<<20)

	runner := shelltest.New().
		On("dvc add data/b.bin", shelltest.Response{Err: errors.New("permission denied")})

	res, err := NewTracker(root, 0, runner).Track(context.Background(), []string{"data", "models"})
	require.NoError(t, err)

	assert.Equal(t, []string{"data/a.bin", "models/c.bin"}, res.Added)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "data/b.bin", res.Failed[0].Path)
	assert.Equal(t, 3, runner.Count("dvc add"))
	assert.True(t, res.Committed)
}

func TestTrack_NothingToTrackMakesNoCommit(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSized(t, root, "data/tiny.csv", 10)

	runner := shelltest.New()
	res, err := NewTracker(root, 0, runner).Track(context.Background(), []string{"data", "missing"})
	require.NoError(t, err)

	assert.Empty(t, res.Added)
	assert.False(t, res.Committed)
	assert.Empty(t, runner.Calls())
}

func TestSkipPath(t *testing.T) {
	t.Parallel()

	assert.True(t, skipPath("data/x.csv.dvc"))
	assert.True(t, skipPath("data/.gitignore"))
	assert.True(t, skipPath("data/.dvc/cache/ab"))
	assert.True(t, skipPath(".git/objects/x"))
	assert.False(t, skipPath("data/raw/orders.csv"))
}

func TestTrack_CancelReportsOnlyAddedFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeSized(t, root, "data/a.bin", 2<<20)
	writeSized(t, root, "data/b.bin", 2<<20)
	writeSized(t, root, "data/c.bin", 2<<20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := shelltest.New()
	runner := &cancelAfter{Runner: fake, n: 1, cancel: cancel}

	res, err := NewTracker(root, 0, runner).Track(ctx, []string{"data"})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"data/a.bin"}, res.Added)
	assert.False(t, res.Committed)
	assert.Equal(t, 1, fake.Count("dvc add"))
	assert.Zero(t, fake.Count("git commit"))
}
