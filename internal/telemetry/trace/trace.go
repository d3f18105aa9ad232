// Package trace implements SiMBA's time_analysis export (SPEC_FULL.md
// §8 "Time-performance trace export"): Chrome-trace-format JSON spans
// plus a CSV summary, written once at run end.
package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mescourrou/simba/internal/config"
	"github.com/mescourrou/simba/internal/record"
)

// event is one Chrome Trace Event Format entry (the "ph":"X"
// complete-event shape), the format read by chrome://tracing and
// speedscope. SiMBA has no third-party tracer in its stack, so this
// struct and its json.NewEncoder writer follow the file-writer pattern
// of ariadne's output/markdown.Compiler and stdout.Sink rather than a
// hand-rolled format.
type event struct {
	Name string  `json:"name"`
	Cat  string  `json:"cat"`
	Ph   string  `json:"ph"`
	Ts   float64 `json:"ts"`
	Dur  float64 `json:"dur"`
	Pid  int     `json:"pid"`
	Tid  int     `json:"tid"`
}

// Span is the payload carried by a record.StageTiming record: one
// pipeline stage, for one node (or "kernel" for a whole barrier), at one
// instant.
type Span struct {
	Node    string
	Stage   string
	Seconds float64
}

// Exporter renders the run's StageTiming records into a trace file and
// CSV summary once the run ends. It is not a record.Sink: timing export
// is a whole-run post-processing step, the way the teacher's
// results.post_run_script only ever runs after a finished collection
// cycle.
type Exporter struct {
	cfg config.TimeAnalysisConfig
}

// NewExporter returns an exporter configured by cfg. If cfg.Enabled is
// false, Export is a no-op.
func NewExporter(cfg config.TimeAnalysisConfig) *Exporter {
	return &Exporter{cfg: cfg}
}

type timedSpan struct {
	t float64
	Span
}

// Export writes the configured trace and/or CSV files from the final
// record set returned by record.Store.Finalize.
func (e *Exporter) Export(records []record.Record) error {
	if !e.cfg.Enabled {
		return nil
	}
	unit := e.cfg.Unit
	if unit == "" {
		unit = "ms"
	}
	scale := timeScale(unit)

	spans := make([]timedSpan, 0, len(records))
	for _, r := range records {
		if r.Stage != record.StageTiming {
			continue
		}
		sp, ok := r.Payload.(Span)
		if !ok {
			continue
		}
		spans = append(spans, timedSpan{t: r.Time, Span: sp})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].t < spans[j].t })

	if e.cfg.TracePath != "" {
		if err := writeTraceFile(e.cfg.TracePath, spans, scale); err != nil {
			return err
		}
	}
	if e.cfg.CSVPath != "" {
		if err := writeCSVFile(e.cfg.CSVPath, spans, scale); err != nil {
			return err
		}
	}
	return nil
}

func writeTraceFile(path string, spans []timedSpan, scale float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: creating trace file %s: %w", path, err)
	}
	defer f.Close()

	events := make([]event, 0, len(spans))
	for i, sp := range spans {
		events = append(events, event{
			Name: sp.Stage,
			Cat:  "node",
			Ph:   "X",
			Ts:   sp.t * scale,
			Dur:  sp.Seconds * scale,
			Pid:  1,
			Tid:  nodeThread(sp.Node, i),
		})
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// nodeThread assigns a stable-ish thread id per node name so spans for
// the same node line up on one Chrome-trace track; index is only a
// fallback for the empty-name case.
func nodeThread(node string, index int) int {
	if node == "" {
		return index
	}
	h := 0
	for _, r := range node {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h % 1024
}

func writeCSVFile(path string, spans []timedSpan, scale float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("trace: creating csv file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"time", "node", "stage", "duration"}); err != nil {
		return err
	}
	for _, sp := range spans {
		row := []string{
			fmt.Sprintf("%.9f", sp.t),
			sp.Node,
			sp.Stage,
			fmt.Sprintf("%.9f", sp.Seconds*scale),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func timeScale(unit string) float64 {
	switch unit {
	case "s":
		return 1
	case "us":
		return 1e6
	default: // "ms"
		return 1e3
	}
}
