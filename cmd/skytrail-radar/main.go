// skytrail-radar shows the animated aircraft picture on a terminal radar
// scope centred on the configured region.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/skytrail/internal/animation"
	"github.com/unklstewy/skytrail/internal/logging"
	"github.com/unklstewy/skytrail/internal/pipeline"
	"github.com/unklstewy/skytrail/internal/refresh"
	"github.com/unklstewy/skytrail/pkg/config"
	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// screenRate is how often the terminal is redrawn. The driver keeps
// interpolating at its own frame rate; the screen samples the latest frame.
const screenRate = 15

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/screenRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// latestFrame is an animation.Sink that keeps only the newest frame.
type latestFrame struct {
	p atomic.Pointer[animation.Frame]
}

func (l *latestFrame) Render(f animation.Frame) { l.p.Store(&f) }

func (l *latestFrame) Load() (animation.Frame, bool) {
	f := l.p.Load()
	if f == nil {
		return animation.Frame{}, false
	}
	return *f, true
}

type model struct {
	latest   *latestFrame
	stats    func() refresh.Stats
	source   string
	center   coordinates.Geographic
	radiusNM float64

	frame    animation.Frame
	hasFrame bool
	selected int
	width    int
	height   int
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "+", "=":
			m.radiusNM = max(5, m.radiusNM/1.5)
		case "-", "_":
			m.radiusNM = min(2000, m.radiusNM*1.5)
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.frame.Entities)-1 {
				m.selected++
			}
		}

	case tickMsg:
		if f, ok := m.latest.Load(); ok {
			m.frame, m.hasFrame = f, true
			if m.selected >= len(f.Entities) {
				m.selected = len(f.Entities) - 1
			}
			if m.selected < 0 {
				m.selected = 0
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m model) scope() scope {
	w, h := m.width-4, m.height-6
	if w < 40 {
		w = 40
	}
	if h < 16 {
		h = 16
	}
	return scope{center: m.center, radiusNM: m.radiusNM, width: w, height: h}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("SKYTRAIL RADAR"))
	b.WriteString(fmt.Sprintf("  %s  %.0f NM  %d aircraft", m.source, m.radiusNM, len(m.frame.Entities)))
	if m.hasFrame {
		b.WriteString(fmt.Sprintf("  gen %d  t=%.2f", m.frame.Generation, m.frame.T))
	} else {
		b.WriteString("  waiting for first refresh...")
	}
	b.WriteString("\n")

	b.WriteString(m.scope().render(m.frame, m.selected))
	b.WriteString("\n")

	if m.hasFrame && m.selected < len(m.frame.Entities) {
		e := m.frame.Entities[m.selected]
		b.WriteString(fmt.Sprintf("%-8s %-8s %8.4f° %9.4f°  hdg %3.0f°  alt %5.0f m  %s\n",
			e.ID, e.Metadata.Callsign, e.Latitude, e.Longitude,
			e.HeadingDegrees, e.Metadata.AltitudeMeters, e.Metadata.OriginCountry))
	} else {
		b.WriteString("\n")
	}

	if m.stats != nil {
		st := m.stats()
		status := fmt.Sprintf("refresh %d ok / %d failed", st.Cycles-st.Failures, st.Failures)
		if st.LastError != "" {
			status += "  last error: " + st.LastError
		}
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Render(status))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("+/-: Range  ↑/↓: Select  Q: Quit"))
	return b.String()
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file (.json or .yaml)")
	radius := flag.Float64("radius", 0, "Initial radar range in NM (default: source region radius)")
	flag.Parse()

	if err := run(*configPath, *radius); err != nil {
		fmt.Fprintf(os.Stderr, "skytrail-radar: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, radius float64) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The terminal belongs to the radar; logs go to the file only
	logger, closer, err := logging.New(cfg.Logging, io.Discard)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := pipeline.NewSource(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create data source: %w", err)
	}
	p, err := pipeline.New(cfg, source, logger)
	if err != nil {
		source.Close()
		return err
	}

	latest := &latestFrame{}
	p.Driver.AddSink(latest)

	if radius <= 0 {
		radius = cfg.Source.Region.RadiusNM
	}
	m := model{
		latest:   latest,
		stats:    p.Coordinator.Stats,
		source:   cfg.Source.Type,
		center:   coordinates.Geographic{Latitude: cfg.Source.Region.Latitude, Longitude: cfg.Source.Region.Longitude},
		radiusNM: radius,
	}
	if !cfg.Source.BoundingBox.IsZero() {
		box := cfg.Source.BoundingBox
		m.center = coordinates.Geographic{
			Latitude:  (box.MinLatitude + box.MaxLatitude) / 2,
			Longitude: (box.MinLongitude + box.MaxLongitude) / 2,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	return g.Wait()
}
