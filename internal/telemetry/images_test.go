package telemetry

import (
	"image/color"
	"testing"

	"gorgonia.org/tensor"
)

func batchOf(n, d int, fill float64) *tensor.Dense {
	data := make([]float64, n*d)
	for i := range data {
		data[i] = fill
	}
	return tensor.New(tensor.WithShape(n, d), tensor.WithBacking(data))
}

func TestGridDimensions(t *testing.T) {
	// 12 4x4 tiles wrap onto two rows of eight columns.
	img, err := Grid(batchOf(12, 16, 0.5), 0, 0)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 32 || b.Dy() != 8 {
		t.Fatalf("bounds %dx%d, want 32x8", b.Dx(), b.Dy())
	}
}

func TestGridStartAndMax(t *testing.T) {
	img, err := Grid(batchOf(10, 16, 0.5), 6, 8)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 16 || b.Dy() != 4 {
		t.Fatalf("bounds %dx%d, want 16x4", b.Dx(), b.Dy())
	}
}

func TestGridClampsValues(t *testing.T) {
	img, err := Grid(batchOf(1, 16, 1.5), 0, 0)
	if err != nil {
		t.Fatalf("Grid: %v", err)
	}
	if got := img.At(0, 0); got != (color.Gray{Y: 255}) {
		t.Fatalf("pixel %v, want full white", got)
	}
}

func TestGridRejectsNonSquareFeatures(t *testing.T) {
	if _, err := Grid(batchOf(2, 15, 0), 0, 0); err == nil {
		t.Fatal("expected error for non-square feature size")
	}
}

func TestGridRejectsOutOfRangeStart(t *testing.T) {
	if _, err := Grid(batchOf(2, 16, 0), 2, 0); err == nil {
		t.Fatal("expected error for start past the last row")
	}
}
