package telemetry

import "image"

// Writer receives training telemetry. Within an epoch the trainer writes
// configuration text first (once, at construction), then scalars, then image
// samples.
type Writer interface {
	AddScalar(tag string, step int, value float64) error
	AddText(tag, text string) error
	AddImages(tag string, step int, img image.Image) error
}

// Multi fans every record out to all writers, stopping at the first error.
type Multi []Writer

// NewMulti combines writers into one.
func NewMulti(writers ...Writer) Multi {
	return Multi(writers)
}

// AddScalar writes a scalar to every writer.
func (m Multi) AddScalar(tag string, step int, value float64) error {
	for _, w := range m {
		if err := w.AddScalar(tag, step, value); err != nil {
			return err
		}
	}
	return nil
}

// AddText writes a text record to every writer.
func (m Multi) AddText(tag, text string) error {
	for _, w := range m {
		if err := w.AddText(tag, text); err != nil {
			return err
		}
	}
	return nil
}

// AddImages writes an image record to every writer.
func (m Multi) AddImages(tag string, step int, img image.Image) error {
	for _, w := range m {
		if err := w.AddImages(tag, step, img); err != nil {
			return err
		}
	}
	return nil
}
