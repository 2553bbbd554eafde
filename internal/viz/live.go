package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/dcmwalk/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	liveWidth       = 60
	liveHeight      = 22
	historyCapacity = 600
	frameRate       = time.Second / 30
)

type frameMsg time.Time

// Feeder connects a simulator to a live view. OnTick blocks the simulator
// until the view takes the record, so the view sets the pace. Records stop
// flowing once ctx is done.
type Feeder struct {
	ctx context.Context
	ch  chan sim.Record
}

func NewFeeder(ctx context.Context) *Feeder {
	return &Feeder{ctx: ctx, ch: make(chan sim.Record)}
}

func (f *Feeder) OnTick(rec sim.Record) {
	select {
	case f.ch <- rec:
	case <-f.ctx.Done():
	}
}

func (f *Feeder) Records() <-chan sim.Record { return f.ch }

// Close ends the stream. Call it once the simulator has returned.
func (f *Feeder) Close() { close(f.ch) }

// Live is a bubbletea model that replays records as they arrive.
type Live struct {
	name    string
	records <-chan sim.Record
	cancel  context.CancelFunc
	feet    Feet
	scale   float64

	canvas  *Canvas
	history []sim.Record
	errs    []float64
	speed   int
	paused  bool
	done    bool

	pushes, merges int
}

// NewLive reads from records until it is closed. cancel is called when the
// user quits so the producer can stop.
func NewLive(name string, records <-chan sim.Record, cancel context.CancelFunc, feet Feet) *Live {
	return &Live{
		name:    name,
		records: records,
		cancel:  cancel,
		feet:    feet,
		scale:   80,
		canvas:  NewCanvas(liveWidth, liveHeight),
		history: make([]sim.Record, 0, historyCapacity),
		errs:    make([]float64, 0, historyCapacity),
		speed:   4,
	}
}

func nextFrame() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m *Live) Init() tea.Cmd {
	return nextFrame()
}

func (m *Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "+", "=":
			m.speed = min(m.speed*2, 64)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "[":
			m.scale = max(m.scale/1.25, 10)
		case "]":
			m.scale = min(m.scale*1.25, 400)
		}
	case frameMsg:
		if !m.paused && !m.done {
			m.pull()
		}
		return m, nextFrame()
	}
	return m, nil
}

// pull takes up to speed records without blocking the UI.
func (m *Live) pull() {
	for i := 0; i < m.speed; i++ {
		select {
		case rec, ok := <-m.records:
			if !ok {
				m.done = true
				return
			}
			m.push(rec)
		default:
			return
		}
	}
}

func (m *Live) push(rec sim.Record) {
	if rec.PushTriggered {
		m.pushes++
	}
	if rec.Merged {
		m.merges++
	}
	m.history = append(m.history, rec)
	m.errs = append(m.errs, r2.Norm(r2.Sub(rec.DCM, rec.DCMRef)))
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
		m.errs = m.errs[1:]
	}
}

func (m *Live) View() string {
	TopDown(m.canvas, m.history, m.feet, m.scale, historyCapacity)
	left := Panel.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.name)) + "\n\n")
	if len(m.history) == 0 {
		s.WriteString(Subtle.Render("waiting for the robot...") + "\n")
	} else {
		rec := m.history[len(m.history)-1]
		state := PhaseBadge(rec.Phase.String())
		if m.paused {
			state += " " + Warn.Render("(view paused)")
		}
		if m.done {
			state += " " + Subtle.Render("(finished)")
		}
		s.WriteString(state + "\n\n")
		s.WriteString(Labeled("time", fmt.Sprintf("%.2fs", rec.Time)) + "\n")
		s.WriteString(Labeled("com", fmt.Sprintf("(%.3f, %.3f)", rec.CoM.X, rec.CoM.Y)) + "\n")
		s.WriteString(Labeled("speed", fmt.Sprintf("%.3f m/s", rec.Speed)) + "\n")
		s.WriteString(Labeled("dcm err", fmt.Sprintf("%.4f m", m.errs[len(m.errs)-1])) + "\n")
		s.WriteString(Labeled("pushes", fmt.Sprint(m.pushes)) + "  " + Labeled("merges", fmt.Sprint(m.merges)) + "\n")
		if rec.Adapting {
			s.WriteString(Alert.Render(fmt.Sprintf("ADAPTING  sigma %.3f", rec.Sigma)) + "\n")
		}
		if rec.QPFailed {
			s.WriteString(Warn.Render("step adaptation failed") + "\n")
		}
		if len(m.errs) > 1 {
			chart := asciigraph.Plot(m.errs, asciigraph.Height(6), asciigraph.Width(36), asciigraph.Caption("DCM error [m]"))
			s.WriteString("\n" + chart + "\n")
		}
	}
	s.WriteString("\n" + KeyHint.Render(fmt.Sprintf("space pause  +/- speed (%dx)  [/] zoom  q quit", m.speed)))

	return lipgloss.JoinHorizontal(lipgloss.Top, left, Panel.Render(s.String()))
}
