package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
)

func testResult() *sim.Result {
	return &sim.Result{
		Name:   "test",
		Config: config.DefaultConfig(),
		Records: []sim.Record{
			{Tick: 0, Time: 0, Phase: walking.Walking, DCM: r2.Vec{X: 0.01}},
			{Tick: 1, Time: 0.01, Phase: walking.Walking, DCM: r2.Vec{X: 0.02}, Adapting: true},
		},
		Stats:   walking.Stats{Merges: 1},
		Metrics: map[string]float64{"dcm_rms": 0.5},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runID, err := st.Save(testResult())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, "test_") {
		t.Errorf("unexpected run id %q", runID)
	}

	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Scenario != "test" {
		t.Errorf("expected scenario 'test', got '%s'", meta.Scenario)
	}
	if meta.Ticks != 2 || meta.Stats.Merges != 1 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.Metrics["dcm_rms"] != 0.5 {
		t.Errorf("expected dcm_rms 0.5, got %f", meta.Metrics["dcm_rms"])
	}
	if meta.Config == nil || meta.Config.Period != 0.01 {
		t.Errorf("config not stored: %+v", meta.Config)
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		t.Fatalf("load series failed: %v", err)
	}
	if len(series.Times) != 2 {
		t.Errorf("expected 2 times, got %d", len(series.Times))
	}
	if got := series.Values["dcm_x"]; len(got) != 2 || got[1] != 0.02 {
		t.Errorf("unexpected dcm_x %v", got)
	}
	if got := series.Values["adapting"]; got[0] != 0 || got[1] != 1 {
		t.Errorf("unexpected adapting %v", got)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(filepath.Join(tmpDir, "runs"))

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := st.Save(testResult()); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID == runs[1].ID {
		t.Error("expected distinct run ids")
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	res := testResult()
	res.Err = errors.New("feedback lost")
	runID, err := st.Save(res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	runDir := filepath.Join(tmpDir, runID)
	for _, name := range []string{"metadata.json", "ticks.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
	meta, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if meta.Error != "feedback lost" {
		t.Errorf("expected error to be kept, got %q", meta.Error)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportJSON(&buf, testResult()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var data ExportData
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if data.Steps != 2 || data.Dt != 0.01 {
		t.Errorf("unexpected export %+v", data)
	}
	if data.DCM[1][0] != 0.02 || !data.Adapting[1] {
		t.Errorf("unexpected series %v %v", data.DCM, data.Adapting)
	}
}

func TestWriteCSVHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testResult().Records); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != strings.Join(Columns, ",") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if n := len(strings.Split(lines[1], ",")); n != len(Columns) {
		t.Errorf("expected %d fields, got %d", len(Columns), n)
	}
}

func TestSeriesRecords(t *testing.T) {
	st := New(t.TempDir())
	res := testResult()
	res.Records[1].LeftContact = true
	res.Records[1].LeftFoot.Position.Y = 0.08
	runID, err := st.Save(res)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	series, err := st.LoadSeries(runID)
	if err != nil {
		t.Fatalf("load series failed: %v", err)
	}

	recs := series.Records()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	r := recs[1]
	if r.Tick != 1 || r.Phase != walking.Walking || r.DCM.X != 0.02 {
		t.Errorf("unexpected record %+v", r)
	}
	if !r.Adapting || !r.LeftContact || r.RightContact {
		t.Errorf("flags not restored: %+v", r)
	}
	if r.LeftFoot.Position.Y != 0.08 {
		t.Errorf("expected left foot y 0.08, got %f", r.LeftFoot.Position.Y)
	}
}
