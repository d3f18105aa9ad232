// Package resultsio serializes a finished run's record store and
// resolved configuration to a results file (spec.md §6 "Results file
// (records array + config)"), the minimal boundary-only implementation
// spec.md §1 allows for result serialization.
package resultsio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/record"
)

// Document is the on-disk shape of a results file.
type Document struct {
	Config  *config.Config  `json:"config"`
	Records []record.Record `json:"records"`
}

// Write serializes records and cfg to path as JSON, following the
// os.Create + json.NewEncoder file-writer pattern used throughout
// SiMBA's telemetry exporters.
func Write(path string, records []record.Record, cfg *config.Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("resultsio: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Document{Config: cfg, Records: records}); err != nil {
		return fmt.Errorf("resultsio: encoding %s: %w", path, err)
	}
	return nil
}

// Read loads a results file previously produced by Write, for the CLI's
// results-only replay mode (spec.md §150).
func Read(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resultsio: reading %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("resultsio: decoding %s: %w", path, err)
	}
	return &doc, nil
}

// RunPostScript runs the configured post_run_script, if any, passing the
// results file path as its sole argument (spec.md §6 "optional post-run
// script"). A non-empty script failing to run is reported but never
// aborts the caller's own exit path.
func RunPostScript(script, resultsPath string) error {
	if script == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, script, resultsPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("resultsio: post_run_script %q: %w", script, err)
	}
	return nil
}
