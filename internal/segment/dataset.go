package segment

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/haskel/segtrain/internal/training"
)

// DatasetConfig describes the synthetic image set.
type DatasetConfig struct {
	Height   int
	Width    int
	Channels int
	// Seed fixes the base images. Augmentation draws use the injected rng.
	Seed uint64
	// Noise is the standard deviation of the per-pixel Gaussian noise.
	Noise float64
}

// sample is one image before augmentation. Channels are stored planar.
type sample struct {
	pixels [][]float64 // [C][H*W]
	mask   []float64   // [H*W], 1 for foreground
}

// SyntheticDataset renders images of a few bright disks on a noisy
// background. The foreground class is the union of the disks. Channel 0
// carries the strongest signal; the others mix signal and noise with a
// per-image gain.
type SyntheticDataset struct {
	cfg DatasetConfig

	mu    sync.Mutex
	rng   *rand.Rand
	cache map[int]*sample
}

func NewSyntheticDataset(cfg DatasetConfig, rng *rand.Rand) (*SyntheticDataset, error) {
	if cfg.Height < 1 || cfg.Width < 1 || cfg.Channels < 1 {
		return nil, fmt.Errorf("invalid image geometry %dx%dx%d", cfg.Channels, cfg.Height, cfg.Width)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	if cfg.Noise == 0 {
		cfg.Noise = 0.3
	}
	return &SyntheticDataset{
		cfg:   cfg,
		rng:   rng,
		cache: make(map[int]*sample),
	}, nil
}

// Load renders the given ids into batches of at most batchSize samples.
// Each call draws a fresh augmentation for every image.
func (d *SyntheticDataset) Load(ctx context.Context, ids []int, mode training.Augmentation, batchSize int) ([]training.Batch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", batchSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var batches []training.Batch
	for start := 0; start < len(ids); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(ids))
		batches = append(batches, d.batch(ids[start:end], mode))
	}
	return batches, nil
}

func (d *SyntheticDataset) batch(ids []int, mode training.Augmentation) training.Batch {
	h, w, c := d.cfg.Height, d.cfg.Width, d.cfg.Channels
	hw := h * w
	images := training.NewTensor(len(ids), c, h, w)
	truth := training.NewTensor(len(ids), 2, h, w)

	for i, id := range ids {
		s := d.augment(d.base(id), mode)
		for ch := 0; ch < c; ch++ {
			copy(images.Data[(i*c+ch)*hw:], s.pixels[ch])
		}
		bg := truth.Data[i*2*hw : i*2*hw+hw]
		fg := truth.Data[i*2*hw+hw : (i+1)*2*hw]
		for p, m := range s.mask {
			fg[p] = m
			bg[p] = 1 - m
		}
	}
	return training.Batch{Images: images, Truth: truth}
}

// base renders image id deterministically from the dataset seed.
func (d *SyntheticDataset) base(id int) *sample {
	if s, ok := d.cache[id]; ok {
		return s
	}

	h, w, c := d.cfg.Height, d.cfg.Width, d.cfg.Channels
	r := rand.New(rand.NewPCG(d.cfg.Seed, uint64(id)))

	mask := make([]float64, h*w)
	disks := 1 + r.IntN(3)
	minDim := float64(min(h, w))
	for range disks {
		cx := r.Float64() * float64(w)
		cy := r.Float64() * float64(h)
		radius := minDim/10 + r.Float64()*minDim/10
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if math.Hypot(float64(x)-cx, float64(y)-cy) <= radius {
					mask[y*w+x] = 1
				}
			}
		}
	}

	pixels := make([][]float64, c)
	for ch := range pixels {
		gain := 1.5
		if ch > 0 {
			gain = r.Float64()*2 - 1
		}
		plane := make([]float64, h*w)
		for p := range plane {
			plane[p] = gain*mask[p] + d.cfg.Noise*r.NormFloat64()
		}
		pixels[ch] = plane
	}

	s := &sample{pixels: pixels, mask: mask}
	d.cache[id] = s
	return s
}

func (d *SyntheticDataset) augment(src *sample, mode training.Augmentation) *sample {
	out := &sample{
		pixels: make([][]float64, len(src.pixels)),
		mask:   append([]float64(nil), src.mask...),
	}
	for ch := range src.pixels {
		out.pixels[ch] = append([]float64(nil), src.pixels[ch]...)
	}
	if mode == training.AugmentNone {
		return out
	}

	h, w := d.cfg.Height, d.cfg.Width
	planes := append(out.pixels, out.mask)

	if d.rng.IntN(2) == 1 {
		for _, pl := range planes {
			flipHorizontal(pl, h, w)
		}
	}
	if d.rng.IntN(2) == 1 {
		for _, pl := range planes {
			flipVertical(pl, h, w)
		}
	}
	if mode < training.AugmentFull {
		return out
	}

	if h == w && d.rng.IntN(2) == 1 {
		for _, pl := range planes {
			transpose(pl, h)
		}
	}
	scale := 0.9 + 0.2*d.rng.Float64()
	shift := 0.2*d.rng.Float64() - 0.1
	for _, pl := range out.pixels {
		for p := range pl {
			pl[p] = pl[p]*scale + shift
		}
	}
	return out
}

func flipHorizontal(pl []float64, h, w int) {
	for y := 0; y < h; y++ {
		row := pl[y*w : (y+1)*w]
		for i, j := 0, w-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

func flipVertical(pl []float64, h, w int) {
	for i, j := 0, h-1; i < j; i, j = i+1, j-1 {
		for x := 0; x < w; x++ {
			pl[i*w+x], pl[j*w+x] = pl[j*w+x], pl[i*w+x]
		}
	}
}

func transpose(pl []float64, n int) {
	for y := 0; y < n; y++ {
		for x := y + 1; x < n; x++ {
			pl[y*n+x], pl[x*n+y] = pl[x*n+y], pl[y*n+x]
		}
	}
}
