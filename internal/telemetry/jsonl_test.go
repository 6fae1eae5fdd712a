package telemetry

import (
	"bufio"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
)

func TestJSONLWritesEvents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONL(dir)
	if err != nil {
		t.Fatalf("NewJSONL: %v", err)
	}
	if err := w.AddText("config/attack", "fgsm"); err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if err := w.AddScalar("train/loss", 3, 0.25); err != nil {
		t.Fatalf("AddScalar: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "run-"+w.RunID()+".jsonl"))
	if err != nil {
		t.Fatalf("opening run log: %v", err)
	}
	defer f.Close()

	var events []event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decoding line: %v", err)
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Kind != "text" || events[0].Tag != "config/attack" || events[0].Text != "fgsm" {
		t.Fatalf("unexpected text event %+v", events[0])
	}
	if events[1].Kind != "scalar" || events[1].Step != 3 || events[1].Value != 0.25 {
		t.Fatalf("unexpected scalar event %+v", events[1])
	}
}

func TestJSONLSavesImages(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONL(dir)
	if err != nil {
		t.Fatalf("NewJSONL: %v", err)
	}
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	if err := w.AddImages("train/images", 1, img); err != nil {
		t.Fatalf("AddImages: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := filepath.Join(dir, "train_images-"+w.RunID()[:8]+"-1.png")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected image file %s: %v", want, err)
	}
}
