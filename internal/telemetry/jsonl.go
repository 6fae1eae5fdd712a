package telemetry

import (
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// JSONL appends telemetry events to a run log file, one JSON object per line.
// Image records are written as PNG files next to the log and referenced by
// path.
type JSONL struct {
	dir   string
	runID string
	f     *os.File
	enc   *json.Encoder
}

type event struct {
	Time  time.Time `json:"time"`
	Kind  string    `json:"kind"`
	Tag   string    `json:"tag"`
	Step  int       `json:"step,omitempty"`
	Value float64   `json:"value,omitempty"`
	Text  string    `json:"text,omitempty"`
	Path  string    `json:"path,omitempty"`
}

// NewJSONL creates dir if needed and opens a fresh run log inside it.
func NewJSONL(dir string) (*JSONL, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating run directory")
	}
	runID := uuid.NewString()
	f, err := os.Create(filepath.Join(dir, "run-"+runID+".jsonl"))
	if err != nil {
		return nil, errors.Wrap(err, "creating run log")
	}
	return &JSONL{dir: dir, runID: runID, f: f, enc: json.NewEncoder(f)}, nil
}

// RunID returns the identifier baked into this run's file names.
func (w *JSONL) RunID() string { return w.runID }

// AddScalar appends a scalar event.
func (w *JSONL) AddScalar(tag string, step int, value float64) error {
	return w.write(event{Time: time.Now(), Kind: "scalar", Tag: tag, Step: step, Value: value})
}

// AddText appends a text event.
func (w *JSONL) AddText(tag, text string) error {
	return w.write(event{Time: time.Now(), Kind: "text", Tag: tag, Text: text})
}

// AddImages saves the grid as a PNG and appends an event referencing it.
func (w *JSONL) AddImages(tag string, step int, img image.Image) error {
	name := sanitizeTag(tag) + "-" + w.runID[:8] + "-" + strconv.Itoa(step) + ".png"
	path := filepath.Join(w.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating image %s", name)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encoding image %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing image %s", name)
	}
	return w.write(event{Time: time.Now(), Kind: "images", Tag: tag, Step: step, Path: path})
}

// Close flushes and closes the run log.
func (w *JSONL) Close() error {
	return w.f.Close()
}

func (w *JSONL) write(e event) error {
	if err := w.enc.Encode(e); err != nil {
		return errors.Wrap(err, "appending run log event")
	}
	return nil
}

func sanitizeTag(tag string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(tag)
}
