package imaging

import (
	"fmt"
	"math"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// HOGConfig описывает дескриптор гистограмм направленных градиентов
type HOGConfig struct {
	Orientations  int
	PixelsPerCell int
	CellsPerBlock int
}

// DefaultHOG совпадает с дескриптором обучения классификатора спиралей:
// 9 беззнаковых корзин, ячейки 8x8, блоки 2x2, нормализация L2-Hys
var DefaultHOG = HOGConfig{
	Orientations:  9,
	PixelsPerCell: 8,
	CellsPerBlock: 2,
}

const (
	hogEps  = 1e-5
	hogClip = 0.2
)

// Length возвращает длину дескриптора для плоскости width x height
func (c HOGConfig) Length(width, height int) int {
	bx, by := c.blocks(width, height)
	if bx <= 0 || by <= 0 {
		return 0
	}
	return bx * by * c.CellsPerBlock * c.CellsPerBlock * c.Orientations
}

func (c HOGConfig) blocks(width, height int) (int, int) {
	cellsX := width / c.PixelsPerCell
	cellsY := height / c.PixelsPerCell
	return cellsX - c.CellsPerBlock + 1, cellsY - c.CellsPerBlock + 1
}

func (c HOGConfig) validate() error {
	if c.Orientations <= 0 || c.PixelsPerCell <= 0 || c.CellsPerBlock <= 0 {
		return fmt.Errorf("%w: invalid HOG config %+v", models.ErrExtraction, c)
	}
	return nil
}

// HOG вычисляет дескриптор p. Порядок вывода по блокам: для каждого блока
// его ячейки построчно, для каждой ячейки ее корзины направлений
func HOG(p *Plane, cfg HOGConfig) ([]float64, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	w, h := p.Width, p.Height
	cellsX := w / cfg.PixelsPerCell
	cellsY := h / cfg.PixelsPerCell
	blocksX, blocksY := cfg.blocks(w, h)
	if blocksX <= 0 || blocksY <= 0 {
		return nil, fmt.Errorf("%w: image %dx%d too small for HOG blocks", models.ErrExtraction, w, h)
	}

	magnitude, orientation := gradients(p)

	// Cell histograms, averaged over the cell area
	bins := cfg.Orientations
	binWidth := 180.0 / float64(bins)
	area := float64(cfg.PixelsPerCell * cfg.PixelsPerCell)
	hist := make([]float64, cellsY*cellsX*bins)

	for cy := 0; cy < cellsY; cy++ {
		for cx := 0; cx < cellsX; cx++ {
			cell := hist[(cy*cellsX+cx)*bins : (cy*cellsX+cx+1)*bins]
			for y := cy * cfg.PixelsPerCell; y < (cy+1)*cfg.PixelsPerCell; y++ {
				for x := cx * cfg.PixelsPerCell; x < (cx+1)*cfg.PixelsPerCell; x++ {
					i := y*w + x
					bin := int(orientation[i] / binWidth)
					if bin >= bins {
						bin = bins - 1
					}
					cell[bin] += magnitude[i]
				}
			}
			for b := range cell {
				cell[b] /= area
			}
		}
	}

	blockLen := cfg.CellsPerBlock * cfg.CellsPerBlock * bins
	out := make([]float64, 0, blocksX*blocksY*blockLen)
	block := make([]float64, blockLen)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			n := 0
			for cy := by; cy < by+cfg.CellsPerBlock; cy++ {
				for cx := bx; cx < bx+cfg.CellsPerBlock; cx++ {
					n += copy(block[n:], hist[(cy*cellsX+cx)*bins:(cy*cellsX+cx+1)*bins])
				}
			}
			out = append(out, l2Hys(block)...)
		}
	}

	return out, nil
}

// gradients возвращает модуль и беззнаковое направление градиента в градусах
// [0, 180). Внутри центральные разности, на границах ноль
func gradients(p *Plane) ([]float64, []float64) {
	w, h := p.Width, p.Height
	magnitude := make([]float64, w*h)
	orientation := make([]float64, w*h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var gRow, gCol float64
			if y > 0 && y < h-1 {
				gRow = p.At(x, y+1) - p.At(x, y-1)
			}
			if x > 0 && x < w-1 {
				gCol = p.At(x+1, y) - p.At(x-1, y)
			}

			i := y*w + x
			magnitude[i] = math.Hypot(gRow, gCol)

			deg := math.Atan2(gRow, gCol) * 180 / math.Pi
			deg = math.Mod(deg, 180)
			if deg < 0 {
				deg += 180
			}
			orientation[i] = deg
		}
	}

	return magnitude, orientation
}

func l2Hys(block []float64) []float64 {
	out := make([]float64, len(block))

	norm := 0.0
	for _, v := range block {
		norm += v * v
	}
	norm = math.Sqrt(norm + hogEps*hogEps)
	for i, v := range block {
		out[i] = math.Min(v/norm, hogClip)
	}

	norm = 0
	for _, v := range out {
		norm += v * v
	}
	norm = math.Sqrt(norm + hogEps*hogEps)
	for i := range out {
		out[i] /= norm
	}

	return out
}
