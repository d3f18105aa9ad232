package trajectory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mescourrou/simba/internal/geo"
	"github.com/stretchr/testify/require"
)

func writeTraj(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traj.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesPointsAndDoLoop(t *testing.T) {
	path := writeTraj(t, "do_loop: true\npoints:\n  - x: 0\n    y: 0\n  - x: 1\n    y: 1\n")
	tr, err := Load(path)
	require.NoError(t, err)
	require.True(t, tr.DoLoop)
	require.Equal(t, 2, tr.Len())
}

func TestLoadRejectsEmptyPoints(t *testing.T) {
	path := writeTraj(t, "do_loop: false\npoints: []\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestAtWrapsWhenLooping(t *testing.T) {
	tr := &Trajectory{DoLoop: true, Points: []geo.Point2D{{X: 0, Y: 0}, {X: 1, Y: 1}}}
	p, ok := tr.At(2)
	require.True(t, ok)
	require.Equal(t, 0.0, p.X)
}

func TestAtStopsWhenNotLooping(t *testing.T) {
	tr := &Trajectory{DoLoop: false, Points: []geo.Point2D{{X: 0, Y: 0}}}
	_, ok := tr.At(1)
	require.False(t, ok)
}
