package telemetry

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const gridColumns = 8

// Grid renders up to max rows of a [N, side*side] feature tensor as a
// grayscale montage, eight tiles per row. Feature values are clamped to
// [0, 1]; adversarial tiles can exceed the range after perturbation.
func Grid(batch *tensor.Dense, start, max int) (image.Image, error) {
	shape := batch.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a rank-2 batch, got shape %v", shape)
	}
	n, d := shape[0], shape[1]
	side := int(math.Sqrt(float64(d)))
	if side*side != d {
		return nil, errors.Errorf("feature size %d is not a square image", d)
	}
	if start < 0 || start >= n {
		return nil, errors.Errorf("start row %d out of range for %d rows", start, n)
	}
	count := n - start
	if max > 0 && count > max {
		count = max
	}

	cols := gridColumns
	if count < cols {
		cols = count
	}
	rows := (count + cols - 1) / cols
	img := image.NewGray(image.Rect(0, 0, cols*side, rows*side))
	data := batch.Data().([]float64)

	for i := 0; i < count; i++ {
		tile := data[(start+i)*d : (start+i+1)*d]
		ox := (i % cols) * side
		oy := (i / cols) * side
		for y := 0; y < side; y++ {
			for x := 0; x < side; x++ {
				v := tile[y*side+x]
				if v < 0 {
					v = 0
				}
				if v > 1 {
					v = 1
				}
				img.SetGray(ox+x, oy+y, color.Gray{Y: uint8(v * 255)})
			}
		}
	}
	return img, nil
}
