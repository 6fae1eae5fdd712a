package model

import (
	"reflect"
	"testing"

	"gorgonia.org/tensor"
)

func TestSplitConcatRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	in := tensor.New(tensor.WithShape(4, 2), tensor.WithBacking(append([]float64(nil), data...)))

	head, tail, err := SplitRows(in, 3)
	if err != nil {
		t.Fatalf("SplitRows: %v", err)
	}
	if got := head.Shape(); got[0] != 3 || got[1] != 2 {
		t.Fatalf("head shape %v", got)
	}
	if got := tail.Shape(); got[0] != 1 || got[1] != 2 {
		t.Fatalf("tail shape %v", got)
	}

	back, err := ConcatRows(head, tail)
	if err != nil {
		t.Fatalf("ConcatRows: %v", err)
	}
	if got := back.Shape(); got[0] != 4 {
		t.Fatalf("recombined rows %d, want 4", got[0])
	}
	if !reflect.DeepEqual(back.Data().([]float64), data) {
		t.Fatalf("recombined data %v, want %v", back.Data(), data)
	}
}

func TestSplitRowsRejectsEmptyPartitions(t *testing.T) {
	in := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(make([]float64, 4)))
	for _, split := range []int{0, 2, -1, 3} {
		if _, _, err := SplitRows(in, split); err == nil {
			t.Fatalf("expected error for split %d", split)
		}
	}
}

func TestParseDevice(t *testing.T) {
	if d, err := ParseDevice("cpu"); err != nil || d != CPU {
		t.Fatalf("cpu: device %q err %v", d, err)
	}
	if d, err := ParseDevice(""); err != nil || d != CPU {
		t.Fatalf("empty: device %q err %v", d, err)
	}
	if _, err := ParseDevice("cuda"); err == nil {
		t.Fatal("expected error for unsupported device")
	}
}
