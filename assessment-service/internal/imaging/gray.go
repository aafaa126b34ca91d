package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/Krimson/neuro-risk/assessment-service/pkg/models"
)

// Веса яркости ITU-R BT.709, как в rgb2gray из scikit-image
const (
	lumaR = 0.2125
	lumaG = 0.7154
	lumaB = 0.0721
)

// Plane - одноканальное изображение с яркостью в [0, 1], построчно
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// At возвращает яркость пикселя (x, y)
func (p *Plane) At(x, y int) float64 {
	return p.Pix[y*p.Width+x]
}

// Grayscale переводит img в 16-битную яркость. Прозрачные пиксели
// накладываются на белый, чтобы рисунок на прозрачном холсте сохранял линии
func Grayscale(img image.Image) *image.Gray16 {
	b := img.Bounds()
	gray := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			// RGBA() is alpha-premultiplied: add the uncovered white
			bg := 0xffff - a
			lum := lumaR*float64(r+bg) + lumaG*float64(g+bg) + lumaB*float64(bl+bg)
			gray.SetGray16(x-b.Min.X, y-b.Min.Y, color.Gray16{Y: uint16(math.Min(math.Round(lum), 0xffff))})
		}
	}

	return gray
}

// Normalize переводит img в оттенки серого и масштабирует до size x size
// без сохранения пропорций
func Normalize(img image.Image, size int) (*Plane, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: invalid target size %d", models.ErrExtraction, size)
	}

	gray := Grayscale(img)

	dst := image.NewGray16(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	plane := &Plane{
		Width:  size,
		Height: size,
		Pix:    make([]float64, size*size),
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			plane.Pix[y*size+x] = float64(dst.Gray16At(x, y).Y) / 0xffff
		}
	}

	return plane, nil
}

// Flatten возвращает яркости плоскости одним вектором построчно
func Flatten(p *Plane) []float64 {
	out := make([]float64, len(p.Pix))
	copy(out, p.Pix)
	return out
}
