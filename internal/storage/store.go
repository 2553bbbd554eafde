// Package storage keeps simulation runs on disk: metadata.json with the
// configuration and metrics, ticks.csv with one row per control cycle.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/dcmwalk/internal/config"
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	metadataFile = "metadata.json"
	ticksFile    = "ticks.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Scenario  string             `json:"scenario"`
	Timestamp time.Time          `json:"timestamp"`
	Ticks     int                `json:"ticks"`
	Error     string             `json:"error,omitempty"`
	Stats     walking.Stats      `json:"stats"`
	Metrics   map[string]float64 `json:"metrics"`
	Config    *config.Config     `json:"config"`
}

// Columns of ticks.csv, in order.
var Columns = []string{
	"tick", "time", "phase",
	"com_x", "com_y", "com_ref_x", "com_ref_y",
	"dcm_x", "dcm_y", "dcm_ref_x", "dcm_ref_y", "dcm_est_x", "dcm_est_y",
	"zmp_x", "zmp_y", "zmp_ref_x", "zmp_ref_y",
	"force_x", "force_y", "speed",
	"left_x", "left_y", "left_z", "right_x", "right_y", "right_z",
	"left_contact", "right_contact",
	"push", "adapting", "qp_failed", "merged", "sigma",
}

func (s *Store) Save(res *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%s", res.Name, uuid.NewString()[:8])
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Scenario:  res.Name,
		Timestamp: time.Now(),
		Ticks:     len(res.Records),
		Stats:     res.Stats,
		Metrics:   res.Metrics,
		Config:    res.Config,
	}
	if res.Err != nil {
		meta.Error = res.Err.Error()
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, ticksFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, res.Records); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Series is ticks.csv read back by column.
type Series struct {
	Times  []float64
	Values map[string][]float64
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, ticksFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{Values: make(map[string][]float64)}
	if len(records) < 2 {
		return series, nil
	}
	header := records[0]

	for _, record := range records[1:] {
		for j, name := range header {
			if j >= len(record) {
				break
			}
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				continue
			}
			if name == "time" {
				series.Times = append(series.Times, val)
			}
			series.Values[name] = append(series.Values[name], val)
		}
	}
	return series, nil
}

// Records rebuilds the tick records from the stored columns. Foot
// orientation is not stored and comes back as zero.
func (s *Series) Records() []sim.Record {
	n := len(s.Times)
	col := func(name string, i int) float64 {
		v := s.Values[name]
		if i < len(v) {
			return v[i]
		}
		return 0
	}
	vec := func(prefix string, i int) r2.Vec {
		return r2.Vec{X: col(prefix+"_x", i), Y: col(prefix+"_y", i)}
	}
	foot := func(prefix string, i int) trajectory.Pose {
		return trajectory.Pose{Position: r3.Vec{X: col(prefix+"_x", i), Y: col(prefix+"_y", i), Z: col(prefix+"_z", i)}}
	}

	recs := make([]sim.Record, n)
	for i := range recs {
		recs[i] = sim.Record{
			Tick:          int(col("tick", i)),
			Time:          s.Times[i],
			Phase:         walking.Phase(col("phase", i)),
			CoM:           vec("com", i),
			CoMRef:        vec("com_ref", i),
			DCM:           vec("dcm", i),
			DCMRef:        vec("dcm_ref", i),
			EstDCM:        vec("dcm_est", i),
			ZMP:           vec("zmp", i),
			ZMPRef:        vec("zmp_ref", i),
			Force:         vec("force", i),
			Speed:         col("speed", i),
			LeftFoot:      foot("left", i),
			RightFoot:     foot("right", i),
			LeftContact:   col("left_contact", i) != 0,
			RightContact:  col("right_contact", i) != 0,
			PushTriggered: col("push", i) != 0,
			Adapting:      col("adapting", i) != 0,
			QPFailed:      col("qp_failed", i) != 0,
			Merged:        col("merged", i) != 0,
			Sigma:         col("sigma", i),
		}
	}
	return recs
}
