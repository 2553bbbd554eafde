package viz

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/dcmwalk/internal/sim"
	"github.com/san-kum/dcmwalk/internal/stepadapt"
	"github.com/san-kum/dcmwalk/internal/trajectory"
	"github.com/san-kum/dcmwalk/internal/walking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var testFeet = Feet{
	Left:  stepadapt.Rectangle{Front: 0.12, Back: 0.06, Left: 0.08, Right: 0.03},
	Right: stepadapt.Rectangle{Front: 0.12, Back: 0.06, Left: 0.03, Right: 0.08},
}

// walk builds a record stream that moves forward at 0.1 m/s and swaps the
// swing foot every half second.
func walk(n int) []sim.Record {
	recs := make([]sim.Record, n)
	for i := range recs {
		t := float64(i) * 0.01
		x := 0.1 * t
		phase := int(t / 0.5)
		recs[i] = sim.Record{
			Tick:         i,
			Time:         t,
			Phase:        walking.Walking,
			CoM:          r2.Vec{X: x},
			DCM:          r2.Vec{X: x + 0.01 + 0.002*float64(i%7)},
			DCMRef:       r2.Vec{X: x + 0.01},
			ZMP:          r2.Vec{X: x},
			LeftFoot:     trajectory.Pose{Position: r3.Vec{X: float64(phase) * 0.05, Y: 0.08}},
			RightFoot:    trajectory.Pose{Position: r3.Vec{X: float64(phase) * 0.05, Y: -0.08}},
			LeftContact:  phase%2 == 0,
			RightContact: true,
		}
	}
	return recs
}

func TestCanvasSetAndClear(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	assert.Equal(t, rune(0x2801), c.Grid[0][0])
	assert.Equal(t, rune(0x2880), c.Grid[0][1])

	c.Clear()
	assert.Equal(t, "⠀⠀\n", c.String())
}

func TestViewportCentersOnTarget(t *testing.T) {
	c := NewCanvas(10, 5)
	v := c.Viewport(r2.Vec{X: 1, Y: 2}, 10)
	x, y := v.dot(r2.Vec{X: 1, Y: 2})
	assert.Equal(t, 10, x)
	assert.Equal(t, 10, y)

	// y grows upward in the world and downward on the canvas
	_, up := v.dot(r2.Vec{X: 1, Y: 2.5})
	assert.Equal(t, 5, up)
}

func TestOutline(t *testing.T) {
	pose := trajectory.Pose{Position: r3.Vec{X: 1}}
	pts := Outline(pose, testFeet.Left)
	require.Len(t, pts, 4)
	assert.InDelta(t, 1.12, pts[0].X, 1e-12)
	assert.InDelta(t, 0.08, pts[0].Y, 1e-12)
	assert.InDelta(t, 0.94, pts[2].X, 1e-12)
	assert.InDelta(t, -0.03, pts[2].Y, 1e-12)
}

func TestFootprintsOncePerPlacement(t *testing.T) {
	recs := walk(200)
	// right foot never lifts, left lands at 0 and again at 1.0s
	assert.Len(t, Footprints(recs, testFeet), 3)
}

func TestTopDownDrawsSomething(t *testing.T) {
	c := NewCanvas(40, 12)
	TopDown(c, walk(100), testFeet, 80, 50)
	assert.NotEqual(t, NewCanvas(40, 12).String(), c.String())

	TopDown(c, nil, testFeet, 80, 50)
	assert.Equal(t, NewCanvas(40, 12).String(), c.String())
}

func TestPlotsRenderPNG(t *testing.T) {
	recs := walk(150)
	recs[60].PushTriggered = true

	p, err := PathPlot("path", recs, testFeet)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, 4, 3))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	p, err = TrackingPlot("x", recs, "x")
	require.NoError(t, err)
	buf.Reset()
	require.NoError(t, WritePNG(&buf, p, 4, 3))
	assert.NotZero(t, buf.Len())

	_, err = TrackingPlot("z", recs, "z")
	assert.Error(t, err)
	_, err = PathPlot("empty", nil, testFeet)
	assert.Error(t, err)
}

func TestWriteSVG(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(1, 2)
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, c, 4))
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "<circle"))
	assert.Contains(t, out, `cx="6.0" cy="10.0"`)
	assert.Error(t, WriteSVG(&buf, nil, 1))
}

func TestSparkline(t *testing.T) {
	assert.Equal(t, "▁▅█", Sparkline([]float64{0, 0.6, 1}, 3))
	assert.Equal(t, "───", Sparkline(nil, 3))
}

func TestLivePullsRecords(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeeder(ctx)

	go func() {
		for _, rec := range walk(10) {
			feed.OnTick(rec)
		}
		feed.Close()
	}()

	m := NewLive("test", feed.Records(), cancel, testFeet)
	deadline := time.Now().Add(2 * time.Second)
	for !m.done && time.Now().Before(deadline) {
		m.Update(frameMsg(time.Now()))
		time.Sleep(time.Millisecond)
	}
	require.True(t, m.done)
	require.Len(t, m.history, 10)
	assert.Contains(t, m.View(), "WALKING")
	assert.Contains(t, m.View(), "finished")

	m.Update(keyMsg(" "))
	assert.True(t, m.paused)
	m.Update(keyMsg("+"))
	assert.Equal(t, 8, m.speed)

	_, cmd := m.Update(keyMsg("q"))
	assert.NotNil(t, cmd)
	assert.Error(t, ctx.Err())
}

func TestFeedStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewFeeder(ctx)
	cancel()
	done := make(chan struct{})
	go func() {
		feed.OnTick(sim.Record{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer blocked after cancel")
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
