package training

import (
	"context"
	"fmt"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/metrics"
	"github.com/haskel/segtrain/internal/monitor"
)

// Tensor is a dense row-major array.
type Tensor struct {
	Shape []int
	Data  []float64
}

// NewTensor allocates a zeroed tensor of the given shape.
func NewTensor(shape ...int) Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, n),
	}
}

// Len returns the number of elements.
func (t Tensor) Len() int {
	return len(t.Data)
}

// Dim returns the size of dimension i, or 0 when out of range.
func (t Tensor) Dim(i int) int {
	if i < 0 || i >= len(t.Shape) {
		return 0
	}
	return t.Shape[i]
}

// Clone returns a deep copy.
func (t Tensor) Clone() Tensor {
	return Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float64(nil), t.Data...),
	}
}

// SameShape reports whether t and o have identical shapes.
func (t Tensor) SameShape(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

func (t Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.Shape)
}

// Batch is one step of input. Images is [N, C, H, W]; Truth is a one-hot
// mask [N, K, H, W].
type Batch struct {
	Images Tensor
	Truth  Tensor
}

// Samples returns the batch size N.
func (b Batch) Samples() int {
	return b.Images.Dim(0)
}

// Parameter is a trainable array and its accumulated gradient.
type Parameter struct {
	Name string
	Data []float64
	Grad []float64
}

// ClassWeights holds one cross-entropy weight per class.
type ClassWeights []float64

// Device names the execution backend.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// Augmentation selects how much random augmentation a dataset draw applies.
type Augmentation int

const (
	AugmentNone Augmentation = iota
	// AugmentFlip applies random horizontal and vertical flips.
	AugmentFlip
	// AugmentFull adds transposition and intensity jitter to the flips.
	AugmentFull
)

func (a Augmentation) String() string {
	switch a {
	case AugmentNone:
		return "none"
	case AugmentFlip:
		return "flip"
	case AugmentFull:
		return "full"
	default:
		return fmt.Sprintf("augmentation(%d)", int(a))
	}
}

// DatasetProvider yields batches for a split. Every call draws augmentation
// afresh.
type DatasetProvider interface {
	Load(ctx context.Context, ids []int, mode Augmentation, batchSize int) ([]Batch, error)
}

// Model is the segmentation network.
type Model interface {
	Name() string
	// Forward returns the predicted class probabilities [N, K, H, W].
	Forward(images Tensor) (Tensor, error)
	// Backward accumulates parameter gradients given the loss gradient with
	// respect to the last Forward output. Only valid in training mode.
	Backward(gradOut Tensor) error
	Train()
	Eval()
	Parameters() []*Parameter
	StateDict() checkpoint.State
	LoadStateDict(state checkpoint.State) error
}

// Optimizer updates the parameters it was bound to.
type Optimizer interface {
	ZeroGrad()
	Step() error
	SetLearningRate(lr float64)
}

// Loss is a scalar loss and its gradient with respect to the prediction.
type Loss struct {
	Value float64
	Grad  Tensor
}

// LossEvaluator computes the composite loss and records its components.
type LossEvaluator interface {
	Compute(predicted, truth Tensor, weights ClassWeights, agg *metrics.Aggregator) (Loss, error)
}

// EvaluationReporter recomputes held-out metrics into agg.
type EvaluationReporter interface {
	Evaluate(ctx context.Context, model Model, data []Batch, device Device, agg *metrics.Aggregator) error
}

// CheckpointStore persists weights and loss tables.
type CheckpointStore interface {
	Save(state checkpoint.State, path string) error
	Load(path string) (checkpoint.State, error)
	SaveHistory(h checkpoint.History, path string) error
	LoadHistory(path string) (checkpoint.History, error)
}

// ChartRenderer draws the loss curves.
type ChartRenderer interface {
	Render(h checkpoint.History, path string) error
}

// MaskWriter stores predicted and ground-truth masks for inspection.
type MaskWriter interface {
	Write(dir string, predicted, truth []Tensor, max int) error
}

// ResourceSampler reports host resource usage.
type ResourceSampler interface {
	Sample() *monitor.SystemState
}
