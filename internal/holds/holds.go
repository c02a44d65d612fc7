// Package holds generates, imports and exports hold layouts in relative
// wall coordinates.
package holds

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"

	"boulder-catalog/internal/domain"
)

var ErrInvalidHoldFile = errors.New("invalid hold file")

type GridOptions struct {
	Rows              int
	Cols              int
	MarginPercent     float64
	RandomnessPercent float64
}

func DefaultGridOptions() GridOptions {
	return GridOptions{
		Rows:              10,
		Cols:              15,
		MarginPercent:     10,
		RandomnessPercent: 30,
	}
}

func (o GridOptions) validate() error {
	if o.Rows < 1 || o.Cols < 1 {
		return fmt.Errorf("rows and cols must be positive, got %dx%d", o.Rows, o.Cols)
	}
	if o.MarginPercent < 0 || o.MarginPercent >= 50 {
		return fmt.Errorf("margin must be in [0, 50), got %v", o.MarginPercent)
	}
	if o.RandomnessPercent < 0 {
		return fmt.Errorf("randomness must not be negative, got %v", o.RandomnessPercent)
	}
	return nil
}

// Generate lays out a rows x cols grid inside the margin and jitters each
// hold by up to half of randomness% of a grid step.
func Generate(opts GridOptions, rng *rand.Rand) ([]domain.Hold, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	margin := opts.MarginPercent / 100
	jitter := opts.RandomnessPercent / 100
	stepX := step(margin, opts.Cols)
	stepY := step(margin, opts.Rows)

	holds := make([]domain.Hold, 0, opts.Rows*opts.Cols)
	for row := 0; row < opts.Rows; row++ {
		for col := 0; col < opts.Cols; col++ {
			offsetX := (rng.Float64() - 0.5) * stepX * jitter
			offsetY := (rng.Float64() - 0.5) * stepY * jitter

			holds = append(holds, domain.Hold{
				X: clamp(position(margin, stepX, col, opts.Cols) + offsetX),
				Y: clamp(position(margin, stepY, row, opts.Rows) + offsetY),
			})
		}
	}

	return holds, nil
}

// Import reads a JSON array of holds. Files written in pixel coordinates
// are scaled down by their largest x and y.
func Import(r io.Reader) ([]domain.Hold, error) {
	var raw []domain.Hold
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHoldFile, err)
	}
	if raw == nil {
		raw = []domain.Hold{}
	}

	allInBounds := true
	maxX, maxY := 0.0, 0.0
	for _, h := range raw {
		if !h.InBounds() {
			allInBounds = false
		}
		maxX = math.Max(maxX, h.X)
		maxY = math.Max(maxY, h.Y)
	}

	holds := make([]domain.Hold, len(raw))
	copy(holds, raw)

	if !allInBounds && (maxX > 1 || maxY > 1) {
		log.Printf("Converting %d holds from absolute to relative coordinates", len(holds))
		for i := range holds {
			if maxX > 0 {
				holds[i].X /= maxX
			}
			if maxY > 0 {
				holds[i].Y /= maxY
			}
		}
	}

	for i := range holds {
		holds[i].X = clamp(holds[i].X)
		holds[i].Y = clamp(holds[i].Y)
	}

	return holds, nil
}

func Export(w io.Writer, holds []domain.Hold) error {
	if holds == nil {
		holds = []domain.Hold{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(holds); err != nil {
		return fmt.Errorf("failed to write holds: %w", err)
	}
	return nil
}

func step(margin float64, n int) float64 {
	if n < 2 {
		return 0
	}
	return (1 - 2*margin) / float64(n-1)
}

func position(margin, step float64, i, n int) float64 {
	if n < 2 {
		return 0.5
	}
	return margin + float64(i)*step
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
