package envmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mescourrou/simba/internal/kinematics"
	"github.com/stretchr/testify/require"
)

func writeMap(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleMap = `
- id: pole
  x: 5
  y: 0
  width: 1
  height: 2
- id: dot
  x: 10
  y: 0
  width: 0
  height: 0
`

func TestLoadParsesLandmarks(t *testing.T) {
	m, err := Load(writeMap(t, sampleMap))
	require.NoError(t, err)
	require.Len(t, m.Landmarks(), 2)

	lm, ok := m.Landmark("pole")
	require.True(t, ok)
	require.Equal(t, 5.0, lm.Pose.X)
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	_, err := Load(writeMap(t, sampleMap+"\n- id: pole\n  x: 1\n  y: 1\n"))
	require.Error(t, err)
}

func TestVisibleIsTrueWhenNoObstacleOnSightline(t *testing.T) {
	m, err := Load(writeMap(t, sampleMap))
	require.NoError(t, err)

	observer := kinematics.Pose{X: 0, Y: 5}
	require.True(t, m.Visible(observer, "dot"))
}

func TestVisibleIsFalseWhenTallerPlanarLandmarkBlocksSightline(t *testing.T) {
	m, err := Load(writeMap(t, sampleMap))
	require.NoError(t, err)

	observer := kinematics.Pose{X: 0, Y: 0}
	require.False(t, m.Visible(observer, "dot"))
}

func TestVisibleIgnoresXRayBlockers(t *testing.T) {
	m, err := Load(writeMap(t, `
- id: pole
  x: 5
  y: 0
  width: 1
  height: 2
  xray: true
- id: dot
  x: 10
  y: 0
`))
	require.NoError(t, err)
	observer := kinematics.Pose{X: 0, Y: 0}
	require.True(t, m.Visible(observer, "dot"))
}

func TestVisiblePointLandmarksNeverOcclude(t *testing.T) {
	m, err := Load(writeMap(t, `
- id: a
  x: 5
  y: 0
- id: b
  x: 10
  y: 0
`))
	require.NoError(t, err)
	observer := kinematics.Pose{X: 0, Y: 0}
	require.True(t, m.Visible(observer, "b"))
}
