package resultsio

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/record"
	"github.com/stretchr/testify/require"
)

func TestWriteProducesRecordsAndConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	cfg := &config.Config{MaxTime: 10}
	records := []record.Record{{Node: "r1", Time: 1.0, Stage: record.StagePhysics, Payload: "x"}}

	require.NoError(t, Write(path, records, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Records, 1)
	require.Equal(t, 10.0, doc.Config.MaxTime)
}

func TestReadRoundTripsWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	cfg := &config.Config{MaxTime: 5}
	records := []record.Record{{Node: "r1", Time: 2.0, Stage: record.StageScenario, Payload: "y"}}
	require.NoError(t, Write(path, records, cfg))

	doc, err := Read(path)
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)
	require.Equal(t, 5.0, doc.Config.MaxTime)
}

func TestRunPostScriptNoopWhenEmpty(t *testing.T) {
	require.NoError(t, RunPostScript("", "/tmp/results.json"))
}

func TestGenerateSchemaReflectsStructFields(t *testing.T) {
	type inner struct {
		Name string `yaml:"name"`
	}
	type outer struct {
		MaxTime float64 `yaml:"max_time"`
		Robots  []inner `yaml:"robots"`
	}

	s := GenerateSchema(&outer{})
	require.Equal(t, "object", s.Type)
	require.Contains(t, s.Properties, "max_time")
	require.Equal(t, "number", s.Properties["max_time"].Type)
	require.Contains(t, s.Properties, "robots")
	require.Equal(t, "array", s.Properties["robots"].Type)
	require.Equal(t, "object", s.Properties["robots"].Items.Type)
}
