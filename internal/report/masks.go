package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/haskel/segtrain/internal/training"
)

// MaskWriter stores the foreground plane of predictions and ground truth as
// grayscale PNGs, pred_000.png next to truth_000.png.
type MaskWriter struct{}

func NewMaskWriter() *MaskWriter {
	return &MaskWriter{}
}

// Write unpacks every sample of every batch tensor and writes up to limit
// pairs. A limit of zero or less writes all of them.
func (w *MaskWriter) Write(dir string, predicted, truth []training.Tensor, limit int) error {
	if len(predicted) != len(truth) {
		return fmt.Errorf("got %d predictions for %d truths", len(predicted), len(truth))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create mask directory: %w", err)
	}

	written := 0
	for i := range predicted {
		if !predicted[i].SameShape(truth[i]) || len(predicted[i].Shape) != 4 {
			return fmt.Errorf("batch %d: prediction %v and truth %v are not matching [N, K, H, W]",
				i, predicted[i].Shape, truth[i].Shape)
		}
		for s := 0; s < predicted[i].Dim(0); s++ {
			if limit > 0 && written >= limit {
				return nil
			}
			if err := errors.Join(
				writePlane(filepath.Join(dir, fmt.Sprintf("pred_%03d.png", written)), predicted[i], s),
				writePlane(filepath.Join(dir, fmt.Sprintf("truth_%03d.png", written)), truth[i], s),
			); err != nil {
				return err
			}
			written++
		}
	}
	return nil
}

// foreground returns the last-class plane of sample s as an 8-bit image.
func foreground(t training.Tensor, s int) *image.Gray {
	k, h, w := t.Shape[1], t.Shape[2], t.Shape[3]
	off := (s*k + k - 1) * h * w

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := t.Data[off+y*w+x]
			v = min(max(v, 0), 1)
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
	return img
}

func writePlane(path string, t training.Tensor, s int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, foreground(t, s)); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
