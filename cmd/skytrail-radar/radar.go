package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/skytrail/internal/animation"
	"github.com/unklstewy/skytrail/pkg/coordinates"
)

// Character aspect ratio correction: terminal characters are ~2:1
// (height:width), so X distances are stretched by 1/aspectRatio.
const aspectRatio = 0.5

var (
	borderStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	centerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	aircraftStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	cardinalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Bold(true)
	ringStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	vectorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// scope describes the radar viewport: a center point, a range and a grid.
type scope struct {
	center   coordinates.Geographic
	radiusNM float64
	width    int // grid columns, excluding the border
	height   int // grid rows
}

// maxScreenRadius is the ring radius, in rows, that corresponds to radiusNM.
func (s scope) maxScreenRadius() float64 {
	maxY := float64(s.height/2 - 1)
	maxX := float64(s.width/2-2) * aspectRatio
	if maxX < maxY {
		return maxX
	}
	return maxY
}

// project converts a geographic position to grid X/Y relative to the top
// left. ok is false for positions outside the range or the grid.
func (s scope) project(pos coordinates.Geographic) (x, y int, ok bool) {
	distanceNM := coordinates.DistanceNauticalMiles(s.center, pos)
	if distanceNM > s.radiusNM {
		return 0, 0, false
	}

	// Bearing 0° = North = up = negative Y
	// Bearing 90° = East = right = positive X
	bearingRad := coordinates.Bearing(s.center, pos) * coordinates.DegreesToRadians
	screenDist := distanceNM * s.maxScreenRadius() / s.radiusNM

	x = s.width/2 + int(math.Round(screenDist*math.Sin(bearingRad)/aspectRatio))
	y = s.height/2 - int(math.Round(screenDist*math.Cos(bearingRad)))

	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return 0, 0, false
	}
	return x, y, true
}

// render draws range rings, cardinal points and every entity of frame.
// The entity at index selected is highlighted and labelled.
func (s scope) render(frame animation.Frame, selected int) string {
	grid := make([][]rune, s.height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", s.width))
	}

	cx, cy := s.width/2, s.height/2
	maxR := s.maxScreenRadius()

	// Rings at quarter ranges
	for i := 1; i <= 4; i++ {
		r := int(maxR * float64(i) / 4)
		drawCircle(grid, cx, cy, r, '·')
		label := formatRange(s.radiusNM * float64(i) / 4)
		putLabel(grid, cx+1, cy-r, label)
	}

	for _, c := range []struct {
		x, y int
		r    rune
	}{
		{cx, cy - int(maxR), 'N'},
		{cx + int(maxR/aspectRatio), cy, 'E'},
		{cx, cy + int(maxR), 'S'},
		{cx - int(maxR/aspectRatio), cy, 'W'},
	} {
		setPixel(grid, c.x, c.y, c.r)
	}
	grid[cy][cx] = '+'

	type label struct {
		x, y int
		text string
	}
	var labels []label

	for i, e := range frame.Entities {
		x, y, ok := s.project(coordinates.Geographic{Longitude: e.Longitude, Latitude: e.Latitude})
		if !ok {
			continue
		}
		symbol := '○'
		if i == selected {
			symbol = '●'
			text := e.Metadata.Callsign
			if text == "" {
				text = e.ID
			}
			labels = append(labels, label{x + 2, y, text})
		}
		drawVelocityVector(grid, x, y, e.HeadingDegrees)
		grid[y][x] = symbol
	}

	// Labels go on top of vectors and rings
	for _, l := range labels {
		for i, ch := range l.text {
			if x := l.x + i; x < s.width {
				grid[l.y][x] = ch
			}
		}
	}

	var b strings.Builder
	b.WriteString(borderStyle.Render("┌" + strings.Repeat("─", s.width) + "┐"))
	b.WriteString("\n")
	for y := range grid {
		b.WriteString(borderStyle.Render("│"))
		for _, ch := range grid[y] {
			b.WriteString(styleRune(ch))
		}
		b.WriteString(borderStyle.Render("│"))
		b.WriteString("\n")
	}
	b.WriteString(borderStyle.Render("└" + strings.Repeat("─", s.width) + "┘"))
	return b.String()
}

func styleRune(ch rune) string {
	s := string(ch)
	switch {
	case ch == ' ':
		return s
	case ch == '+':
		return centerStyle.Render(s)
	case ch == '●':
		return selectedStyle.Render(s)
	case ch == '○':
		return aircraftStyle.Render(s)
	case ch == '·':
		return ringStyle.Render(s)
	case ch == '-' || ch == '→':
		return vectorStyle.Render(s)
	case ch == 'N' || ch == 'E' || ch == 'S' || ch == 'W':
		return cardinalStyle.Render(s)
	}
	return labelStyle.Render(s)
}

func formatRange(nm float64) string {
	if nm >= 1000 {
		return fmt.Sprintf("%.0fk", nm/1000)
	}
	return fmt.Sprintf("%.0f", nm)
}

// drawCircle draws a circle on the grid using Bresenham's circle algorithm,
// stretching X by the aspect ratio.
func drawCircle(grid [][]rune, cx, cy, radius int, char rune) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		xScaled := int(float64(x) / aspectRatio)
		yScaled := int(float64(y) / aspectRatio)

		setPixel(grid, cx+xScaled, cy+y, char)
		setPixel(grid, cx+yScaled, cy+x, char)
		setPixel(grid, cx-yScaled, cy+x, char)
		setPixel(grid, cx-xScaled, cy+y, char)
		setPixel(grid, cx-xScaled, cy-y, char)
		setPixel(grid, cx-yScaled, cy-x, char)
		setPixel(grid, cx+yScaled, cy-x, char)
		setPixel(grid, cx+xScaled, cy-y, char)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// setPixel sets a cell if it is within bounds and holds nothing but a ring.
func setPixel(grid [][]rune, x, y int, char rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[y]) {
		if grid[y][x] == ' ' || grid[y][x] == '·' {
			grid[y][x] = char
		}
	}
}

func putLabel(grid [][]rune, x, y int, text string) {
	for i, ch := range text {
		setPixel(grid, x+i, y, ch)
	}
}

// drawVelocityVector draws a short heading tick ahead of the aircraft.
func drawVelocityVector(grid [][]rune, x, y int, headingDeg float64) {
	const length = 2
	rad := headingDeg * coordinates.DegreesToRadians

	for i := 1; i <= length; i++ {
		dx := int(math.Round(float64(i) * math.Sin(rad) / aspectRatio))
		dy := -int(math.Round(float64(i) * math.Cos(rad)))
		ch := '-'
		if i == length {
			ch = '→'
		}
		setPixel(grid, x+dx, y+dy, ch)
	}
}
