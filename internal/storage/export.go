package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/walking"
)

type ExportData struct {
	Scenario string             `json:"scenario"`
	Dt       float64            `json:"dt"`
	Duration float64            `json:"duration"`
	Steps    int                `json:"steps"`
	Stats    walking.Stats      `json:"stats"`
	Metrics  map[string]float64 `json:"metrics"`
	Error    string             `json:"error,omitempty"`
	Times    []float64          `json:"times"`
	CoM      [][2]float64       `json:"com"`
	DCM      [][2]float64       `json:"dcm"`
	DCMRef   [][2]float64       `json:"dcm_ref"`
	ZMP      [][2]float64       `json:"zmp"`
	Adapting []bool             `json:"adapting"`
}

func ExportJSON(w io.Writer, res *sim.Result) error {
	n := len(res.Records)
	data := ExportData{
		Scenario: res.Name,
		Steps:    n,
		Stats:    res.Stats,
		Metrics:  res.Metrics,
		Times:    make([]float64, n),
		CoM:      make([][2]float64, n),
		DCM:      make([][2]float64, n),
		DCMRef:   make([][2]float64, n),
		ZMP:      make([][2]float64, n),
		Adapting: make([]bool, n),
	}
	if res.Config != nil {
		data.Dt = res.Config.Period
		data.Duration = res.Config.Sim.Duration
	}
	if res.Err != nil {
		data.Error = res.Err.Error()
	}
	for i, r := range res.Records {
		data.Times[i] = r.Time
		data.CoM[i] = [2]float64{r.CoM.X, r.CoM.Y}
		data.DCM[i] = [2]float64{r.DCM.X, r.DCM.Y}
		data.DCMRef[i] = [2]float64{r.DCMRef.X, r.DCMRef.Y}
		data.ZMP[i] = [2]float64{r.ZMP.X, r.ZMP.Y}
		data.Adapting[i] = r.Adapting
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// WriteCSV writes records with the Columns header.
func WriteCSV(out io.Writer, records []sim.Record) error {
	w := csv.NewWriter(out)
	if err := w.Write(Columns); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	b := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.Tick), f(r.Time), strconv.Itoa(int(r.Phase)),
			f(r.CoM.X), f(r.CoM.Y), f(r.CoMRef.X), f(r.CoMRef.Y),
			f(r.DCM.X), f(r.DCM.Y), f(r.DCMRef.X), f(r.DCMRef.Y), f(r.EstDCM.X), f(r.EstDCM.Y),
			f(r.ZMP.X), f(r.ZMP.Y), f(r.ZMPRef.X), f(r.ZMPRef.Y),
			f(r.Force.X), f(r.Force.Y), f(r.Speed),
			f(r.LeftFoot.Position.X), f(r.LeftFoot.Position.Y), f(r.LeftFoot.Position.Z),
			f(r.RightFoot.Position.X), f(r.RightFoot.Position.Y), f(r.RightFoot.Position.Z),
			b(r.LeftContact), b(r.RightContact),
			b(r.PushTriggered), b(r.Adapting), b(r.QPFailed), b(r.Merged), f(r.Sigma),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
