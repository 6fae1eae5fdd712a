package telemetry

import "image"

// Memory records telemetry in memory. It backs tests and dry runs.
type Memory struct {
	Scalars []ScalarRecord
	Texts   []TextRecord
	Images  []ImageRecord
}

// ScalarRecord is one captured scalar write.
type ScalarRecord struct {
	Tag   string
	Step  int
	Value float64
}

// TextRecord is one captured text write.
type TextRecord struct {
	Tag  string
	Text string
}

// ImageRecord is one captured image write.
type ImageRecord struct {
	Tag  string
	Step int
	Img  image.Image
}

// NewMemory returns an empty in-memory writer.
func NewMemory() *Memory {
	return &Memory{}
}

// AddScalar captures a scalar write.
func (m *Memory) AddScalar(tag string, step int, value float64) error {
	m.Scalars = append(m.Scalars, ScalarRecord{Tag: tag, Step: step, Value: value})
	return nil
}

// AddText captures a text write.
func (m *Memory) AddText(tag, text string) error {
	m.Texts = append(m.Texts, TextRecord{Tag: tag, Text: text})
	return nil
}

// AddImages captures an image write.
func (m *Memory) AddImages(tag string, step int, img image.Image) error {
	m.Images = append(m.Images, ImageRecord{Tag: tag, Step: step, Img: img})
	return nil
}

// ScalarSeries returns all captured values for tag in write order.
func (m *Memory) ScalarSeries(tag string) []float64 {
	var out []float64
	for _, r := range m.Scalars {
		if r.Tag == tag {
			out = append(out, r.Value)
		}
	}
	return out
}
