package segment

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/training"
)

var (
	errEvalBackward = errors.New("backward called in eval mode")
	errNoForward    = errors.New("backward called without a preceding forward pass")
)

// PixelModel maps the C input channels of every pixel to K class
// probabilities through a shared linear layer and a softmax.
type PixelModel struct {
	channels int
	classes  int

	weight *training.Parameter // [K*C], row k holds class k
	bias   *training.Parameter // [K]

	training bool
	input    training.Tensor
	output   training.Tensor
	cached   bool
}

// NewPixelModel initialises weights uniformly in +-1/sqrt(C) from rng.
func NewPixelModel(channels, classes int, rng *rand.Rand) *PixelModel {
	m := &PixelModel{
		channels: channels,
		classes:  classes,
		weight: &training.Parameter{
			Name: "weight",
			Data: make([]float64, classes*channels),
			Grad: make([]float64, classes*channels),
		},
		bias: &training.Parameter{
			Name: "bias",
			Data: make([]float64, classes),
			Grad: make([]float64, classes),
		},
		training: true,
	}

	bound := 1 / math.Sqrt(float64(channels))
	for i := range m.weight.Data {
		m.weight.Data[i] = (rng.Float64()*2 - 1) * bound
	}
	return m
}

func (m *PixelModel) Name() string {
	return fmt.Sprintf("pixel-softmax(c=%d,k=%d)", m.channels, m.classes)
}

func (m *PixelModel) Train() {
	m.training = true
}

// Eval switches to inference. Forward passes no longer keep activations.
func (m *PixelModel) Eval() {
	m.training = false
	m.cached = false
	m.input, m.output = training.Tensor{}, training.Tensor{}
}

func (m *PixelModel) Training() bool {
	return m.training
}

func (m *PixelModel) Parameters() []*training.Parameter {
	return []*training.Parameter{m.weight, m.bias}
}

func (m *PixelModel) Forward(images training.Tensor) (training.Tensor, error) {
	if len(images.Shape) != 4 {
		return training.Tensor{}, fmt.Errorf("expected [N, C, H, W] input, got %v", images.Shape)
	}
	n, c, h, w := images.Shape[0], images.Shape[1], images.Shape[2], images.Shape[3]
	if c != m.channels {
		return training.Tensor{}, fmt.Errorf("expected %d channels, got %d", m.channels, c)
	}

	hw := h * w
	k := m.classes
	out := training.NewTensor(n, k, h, w)
	logits := make([]float64, k)

	for s := 0; s < n; s++ {
		in := images.Data[s*c*hw : (s+1)*c*hw]
		dst := out.Data[s*k*hw : (s+1)*k*hw]
		for p := 0; p < hw; p++ {
			maxLogit := math.Inf(-1)
			for j := 0; j < k; j++ {
				z := m.bias.Data[j]
				row := m.weight.Data[j*c : (j+1)*c]
				for ch := 0; ch < c; ch++ {
					z += row[ch] * in[ch*hw+p]
				}
				logits[j] = z
				if z > maxLogit {
					maxLogit = z
				}
			}
			var sum float64
			for j := 0; j < k; j++ {
				logits[j] = math.Exp(logits[j] - maxLogit)
				sum += logits[j]
			}
			for j := 0; j < k; j++ {
				dst[j*hw+p] = logits[j] / sum
			}
		}
	}

	if m.training {
		m.input, m.output, m.cached = images, out, true
	}
	return out, nil
}

// Backward accumulates into the parameter gradients and drops the cached
// activations of the matching Forward.
func (m *PixelModel) Backward(gradOut training.Tensor) error {
	if !m.training {
		return errEvalBackward
	}
	if !m.cached {
		return errNoForward
	}
	if !gradOut.SameShape(m.output) {
		return fmt.Errorf("gradient shape %v does not match output %v", gradOut.Shape, m.output.Shape)
	}

	n, c, h, w := m.input.Shape[0], m.input.Shape[1], m.input.Shape[2], m.input.Shape[3]
	hw := h * w
	k := m.classes
	dz := make([]float64, k)

	for s := 0; s < n; s++ {
		in := m.input.Data[s*c*hw : (s+1)*c*hw]
		prob := m.output.Data[s*k*hw : (s+1)*k*hw]
		g := gradOut.Data[s*k*hw : (s+1)*k*hw]
		for p := 0; p < hw; p++ {
			// Softmax Jacobian: dz_j = p_j * (g_j - sum_i g_i p_i).
			var dot float64
			for j := 0; j < k; j++ {
				dot += g[j*hw+p] * prob[j*hw+p]
			}
			for j := 0; j < k; j++ {
				dz[j] = prob[j*hw+p] * (g[j*hw+p] - dot)
				m.bias.Grad[j] += dz[j]
				row := m.weight.Grad[j*c : (j+1)*c]
				for ch := 0; ch < c; ch++ {
					row[ch] += dz[j] * in[ch*hw+p]
				}
			}
		}
	}

	m.cached = false
	m.input, m.output = training.Tensor{}, training.Tensor{}
	return nil
}

func (m *PixelModel) StateDict() checkpoint.State {
	return checkpoint.State{
		m.weight.Name: append([]float64(nil), m.weight.Data...),
		m.bias.Name:   append([]float64(nil), m.bias.Data...),
	}
}

// LoadStateDict copies a saved state in. Missing or mis-sized parameters
// leave the model untouched.
func (m *PixelModel) LoadStateDict(state checkpoint.State) error {
	for _, p := range m.Parameters() {
		v, ok := state[p.Name]
		if !ok {
			return fmt.Errorf("checkpoint has no parameter %q", p.Name)
		}
		if len(v) != len(p.Data) {
			return fmt.Errorf("parameter %q has %d values, model expects %d", p.Name, len(v), len(p.Data))
		}
	}
	for _, p := range m.Parameters() {
		copy(p.Data, state[p.Name])
	}
	return nil
}
