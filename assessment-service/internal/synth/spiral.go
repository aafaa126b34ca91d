// Package synth draws synthetic spiral tests for demos and smoke tests.
package synth

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrInvalidConfig возвращается для спирали с неверными параметрами
var ErrInvalidConfig = errors.New("invalid spiral configuration")

// SpiralConfig описывает спираль Архимеда r = Spacing * theta
type SpiralConfig struct {
	Size    int     // canvas side in pixels
	Turns   float64 // full revolutions
	Stroke  int     // pen width in pixels
	Tremor  float64 // radial jitter amplitude in pixels; 0 draws a clean spiral
	Wobble  float64 // tremor oscillations per revolution
	Samples int     // points along the curve
}

// Healthy и Tremor - две заготовки, которые пишет assessctl sample
var (
	Healthy = SpiralConfig{Size: 256, Turns: 4, Stroke: 2, Tremor: 0, Wobble: 0, Samples: 4000}
	Tremor  = SpiralConfig{Size: 256, Turns: 4, Stroke: 2, Tremor: 4, Wobble: 24, Samples: 4000}
)

// Validate проверяет параметры спирали
func (c SpiralConfig) Validate() error {
	if c.Size < 16 || c.Turns <= 0 || c.Stroke <= 0 || c.Samples < 2 || c.Tremor < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// GeneratorStats - счетчики нарисованного SpiralGenerator
type GeneratorStats struct {
	Drawn      int
	MaxJitter  float64
	LastTremor float64
}

// SpiralGenerator рисует спирали с детерминированным дрожанием
type SpiralGenerator struct {
	mu    sync.Mutex
	rand  *rand.Rand
	stats GeneratorStats
}

// NewSpiralGenerator берет seed от времени при seed == 0
func NewSpiralGenerator(seed int64) *SpiralGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SpiralGenerator{rand: rand.New(rand.NewSource(seed))}
}

// Draw рисует cfg черным по белому
func (g *SpiralGenerator) Draw(cfg SpiralConfig) (*image.Gray, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	img := image.NewGray(image.Rect(0, 0, cfg.Size, cfg.Size))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}

	center := float64(cfg.Size) / 2
	maxTheta := cfg.Turns * 2 * math.Pi
	// Leave a margin of two strokes plus the jitter
	spacing := (center - float64(2*cfg.Stroke) - cfg.Tremor) / maxTheta
	if spacing <= 0 {
		return nil, ErrInvalidConfig
	}

	phase := g.rand.Float64() * 2 * math.Pi
	for i := 0; i < cfg.Samples; i++ {
		theta := maxTheta * float64(i) / float64(cfg.Samples-1)
		r := spacing * theta

		if cfg.Tremor > 0 {
			jitter := cfg.Tremor * (0.7*math.Sin(cfg.Wobble*theta+phase) + 0.3*(g.rand.Float64()*2-1))
			r += jitter
			if math.Abs(jitter) > g.stats.MaxJitter {
				g.stats.MaxJitter = math.Abs(jitter)
			}
		}

		x := center + r*math.Cos(theta)
		y := center + r*math.Sin(theta)
		dot(img, int(math.Round(x)), int(math.Round(y)), cfg.Stroke)
	}

	g.stats.Drawn++
	g.stats.LastTremor = cfg.Tremor
	return img, nil
}

// DrawPNG - результат Draw в формате PNG
func (g *SpiralGenerator) DrawPNG(cfg SpiralConfig) ([]byte, error) {
	img, err := g.Draw(cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetStats возвращает счетчики генератора
func (g *SpiralGenerator) GetStats() GeneratorStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

func dot(img *image.Gray, cx, cy, radius int) {
	b := img.Bounds()
	for y := cy - radius; y <= cy+radius; y++ {
		for x := cx - radius; x <= cx+radius; x++ {
			if (x-cx)*(x-cx)+(y-cy)*(y-cy) > radius*radius {
				continue
			}
			if image.Pt(x, y).In(b) {
				img.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
}
