package training

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/logger"
	"github.com/haskel/segtrain/internal/metrics"
	"github.com/haskel/segtrain/internal/schedule"
)

type fakeData struct {
	batches    int
	trainLoads int
	testLoads  int
	err        error
}

func (d *fakeData) Load(ctx context.Context, ids []int, mode Augmentation, batchSize int) ([]Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.err != nil {
		return nil, d.err
	}
	if mode == AugmentNone {
		d.testLoads++
	} else {
		d.trainLoads++
	}

	out := make([]Batch, d.batches)
	for i := range out {
		out[i] = Batch{
			Images: NewTensor(1, 1, 2, 2),
			Truth:  NewTensor(1, 2, 2, 2),
		}
	}
	return out, nil
}

type fakeModel struct {
	param    *Parameter
	training bool
	loaded   checkpoint.State
}

func newFakeModel() *fakeModel {
	return &fakeModel{param: &Parameter{Name: "w", Data: []float64{1}, Grad: []float64{0}}}
}

func (m *fakeModel) Name() string { return "fake" }
func (m *fakeModel) Train()       { m.training = true }
func (m *fakeModel) Eval()        { m.training = false }

func (m *fakeModel) Forward(images Tensor) (Tensor, error) {
	out := NewTensor(images.Dim(0), 2, images.Dim(2), images.Dim(3))
	for i := range out.Data {
		out.Data[i] = 0.5
	}
	return out, nil
}

func (m *fakeModel) Backward(Tensor) error {
	if !m.training {
		return errors.New("backward in eval mode")
	}
	m.param.Grad[0] += 1
	return nil
}

func (m *fakeModel) Parameters() []*Parameter { return []*Parameter{m.param} }

func (m *fakeModel) StateDict() checkpoint.State {
	return checkpoint.State{"w": append([]float64(nil), m.param.Data...)}
}

func (m *fakeModel) LoadStateDict(s checkpoint.State) error {
	m.loaded = s.Clone()
	copy(m.param.Data, s["w"])
	return nil
}

type fakeOptimizer struct {
	model *fakeModel
	lr    float64
	rates []float64
	steps int
}

func (o *fakeOptimizer) ZeroGrad() { o.model.param.Grad[0] = 0 }

func (o *fakeOptimizer) Step() error {
	o.model.param.Data[0] -= o.lr * o.model.param.Grad[0]
	o.steps++
	return nil
}

func (o *fakeOptimizer) SetLearningRate(lr float64) {
	o.lr = lr
	o.rates = append(o.rates, lr)
}

// fakeLoss returns a constant loss. onCall runs after every train-phase
// computation with the running call count.
type fakeLoss struct {
	value  float64
	calls  int
	err    error
	onCall func(n int)
}

func (l *fakeLoss) Compute(pred, truth Tensor, weights ClassWeights, agg *metrics.Aggregator) (Loss, error) {
	if l.err != nil {
		return Loss{}, l.err
	}
	l.calls++
	agg.Accumulate(metrics.Loss, l.value*float64(pred.Dim(0)))
	if l.onCall != nil {
		l.onCall(l.calls)
	}
	return Loss{Value: l.value, Grad: NewTensor(pred.Shape...)}, nil
}

type fakeChart struct{ rendered int }

func (c *fakeChart) Render(checkpoint.History, string) error {
	c.rendered++
	return nil
}

type fakeMasks struct{ written int }

func (m *fakeMasks) Write(_ string, preds, _ []Tensor, _ int) error {
	m.written = len(preds)
	return nil
}

type harness struct {
	cfg   Config
	data  *fakeData
	model *fakeModel
	opt   *fakeOptimizer
	loss  *fakeLoss
	store *checkpoint.Store
	logs  *bytes.Buffer
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	model := newFakeModel()
	return &harness{
		cfg: Config{
			Epochs:       1,
			BatchSize:    1,
			LearningRate: 0.1,
			Device:       DeviceCPU,
			Save:         true,
			TrainIDs:     []int{0},
			TestIDs:      []int{1},
			Augmentation: AugmentFull,
			TrainWeights: ClassWeights{0.1, 0.9},
			TestWeights:  ClassWeights{0.9, 0.1},
			Schedule:     schedule.DefaultConfig(),
			WeightsDir:   filepath.Join(dir, "Weights"),
			LossDir:      filepath.Join(dir, "Loss"),
			ChartPath:    filepath.Join(dir, "Loss.png"),
			MasksDir:     filepath.Join(dir, "Masks"),
			MaxMasks:     50,
		},
		data:  &fakeData{batches: 1},
		model: model,
		opt:   &fakeOptimizer{model: model, lr: 0.1},
		loss:  &fakeLoss{value: 0.5},
		store: checkpoint.NewStore(logger.Discard()),
		logs:  &bytes.Buffer{},
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Data:      h.data,
		Model:     h.model,
		Optimizer: h.opt,
		Loss:      h.loss,
		Store:     h.store,
		Clock: func() time.Time {
			h.clock = h.clock.Add(time.Second)
			return h.clock
		},
	}
}

func (h *harness) run(t *testing.T, ctx context.Context, deps Deps) (*Orchestrator, error) {
	t.Helper()
	o, err := New(h.cfg, deps, logger.NewWithWriter(h.logs, "debug", "text"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o, o.Run(ctx)
}

func (h *harness) lastWeights() string {
	return checkpoint.LastPath(h.cfg.WeightsDir, checkpoint.WeightsExt)
}

func (h *harness) lastHistory() string {
	return checkpoint.LastPath(h.cfg.LossDir, checkpoint.HistoryExt)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{BatchSize: 1}, Deps{}, logger.Discard())
	if err == nil {
		t.Fatal("expected error for missing collaborators")
	}
	for _, want := range []string{"dataset", "model", "optimizer", "loss", "checkpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestRun_SingleEpoch(t *testing.T) {
	h := newHarness(t)

	o, err := h.run(t, t.Context(), h.deps())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	state := o.State()
	if state.History.Len() != 1 {
		t.Fatalf("expected 1 history entry, got %d", state.History.Len())
	}
	if state.History[0].Train != 0.5 || state.History[0].Test != 0.5 {
		t.Errorf("unexpected losses %+v", state.History[0])
	}
	if state.Interrupted {
		t.Error("run should not be marked interrupted")
	}
	if !checkpoint.Exists(h.lastWeights()) {
		t.Error("expected last weights to be saved")
	}

	snapshots, _ := filepath.Glob(filepath.Join(h.cfg.WeightsDir, "2026-*"+checkpoint.WeightsExt))
	if len(snapshots) != 1 {
		t.Errorf("expected 1 timestamped snapshot, got %v", snapshots)
	}

	archives, _ := filepath.Glob(filepath.Join(h.cfg.LossDir, "learning_*"+checkpoint.HistoryExt))
	if len(archives) != 1 {
		t.Errorf("expected 1 archived history, got %v", archives)
	}

	history, err := h.store.LoadHistory(h.lastHistory())
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if history.Len() != 1 {
		t.Errorf("expected 1 persisted entry, got %d", history.Len())
	}
	if h.opt.steps != 1 {
		t.Errorf("expected 1 optimizer step, got %d", h.opt.steps)
	}
}

func TestRun_LoadsTestSplitOnce(t *testing.T) {
	h := newHarness(t)
	h.cfg.Epochs = 3

	if _, err := h.run(t, t.Context(), h.deps()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if h.data.testLoads != 1 {
		t.Errorf("expected 1 test split load, got %d", h.data.testLoads)
	}
	if h.data.trainLoads != 3 {
		t.Errorf("expected a fresh train draw per epoch, got %d", h.data.trainLoads)
	}
}

func TestRun_ReloadWithoutCheckpoint(t *testing.T) {
	h := newHarness(t)
	h.cfg.Reload = true

	_, err := h.run(t, t.Context(), h.deps())
	if !errors.Is(err, ErrCheckpointNotFound) {
		t.Fatalf("expected ErrCheckpointNotFound, got %v", err)
	}
	if h.data.trainLoads != 0 || h.data.testLoads != 0 {
		t.Error("no data should be loaded when the checkpoint is missing")
	}
	if !strings.Contains(h.logs.String(), "msg=done") {
		t.Error("expected the done line on the error path")
	}
}

func TestRun_InterruptSavesWeights(t *testing.T) {
	h := newHarness(t)
	h.cfg.Save = false
	h.cfg.Epochs = 5
	h.data.batches = 4

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	// Epoch 0 computes 4 train and 4 test batches. Cancel during the second
	// train batch of epoch 1.
	h.loss.onCall = func(n int) {
		if n == 4+4+2 {
			cancel()
		}
	}

	o, err := h.run(t, ctx, h.deps())
	if err != nil {
		t.Fatalf("interrupted run should finalize cleanly, got %v", err)
	}

	state := o.State()
	if !state.Interrupted {
		t.Error("expected run to be marked interrupted")
	}
	if state.History.Len() != 1 {
		t.Errorf("expected only the completed epoch in history, got %d", state.History.Len())
	}

	saved, err := h.store.Load(h.lastWeights())
	if err != nil {
		t.Fatalf("expected weights saved on interrupt: %v", err)
	}
	if !saved.Equal(h.model.StateDict()) {
		t.Errorf("saved %v, model holds %v", saved, h.model.StateDict())
	}

	snapshots, _ := filepath.Glob(filepath.Join(h.cfg.WeightsDir, "2026-*"))
	if len(snapshots) != 0 {
		t.Errorf("no timestamped snapshot expected on interrupt, got %v", snapshots)
	}
	if !checkpoint.Exists(h.lastHistory()) {
		t.Error("expected history to be written on interrupt")
	}

	logs := h.logs.String()
	for _, want := range []string{"msg=interrupted", "msg=done"} {
		if !strings.Contains(logs, want) {
			t.Errorf("expected %q in logs", want)
		}
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := h.run(t, ctx, h.deps())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled from the test split load, got %v", err)
	}
}

func TestRun_CollaboratorErrorDoesNotSave(t *testing.T) {
	h := newHarness(t)
	h.loss.err = errors.New("boom")

	_, err := h.run(t, t.Context(), h.deps())
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected loss error, got %v", err)
	}
	if checkpoint.Exists(h.lastWeights()) {
		t.Error("weights must not be saved after a collaborator failure")
	}
	if !strings.Contains(h.logs.String(), "msg=done") {
		t.Error("expected the done line on the error path")
	}
}

func TestRun_LearningRateNeverIncreases(t *testing.T) {
	h := newHarness(t)
	h.cfg.Epochs = 40

	o, err := h.run(t, t.Context(), h.deps())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(h.opt.rates) == 0 {
		t.Fatal("a flat loss should trigger at least one decay")
	}
	prev := h.cfg.LearningRate
	for _, lr := range h.opt.rates {
		if lr >= prev {
			t.Errorf("rate went from %v to %v", prev, lr)
		}
		prev = lr
	}
	if got := o.State().LearningRate; got != prev {
		t.Errorf("state rate %v differs from last applied %v", got, prev)
	}
}

func TestRun_ResumeExtendsHistory(t *testing.T) {
	h := newHarness(t)
	h.cfg.Epochs = 3
	if _, err := h.run(t, t.Context(), h.deps()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	trained := h.model.StateDict()

	h.model = newFakeModel()
	h.opt.model = h.model
	h.cfg.Reload = true
	h.cfg.Epochs = 2

	o, err := h.run(t, t.Context(), h.deps())
	if err != nil {
		t.Fatalf("resumed run failed: %v", err)
	}
	if !h.model.loaded.Equal(trained) {
		t.Errorf("expected %v restored, got %v", trained, h.model.loaded)
	}
	if got := o.State().History.Len(); got != 5 {
		t.Errorf("expected 5 history entries, got %d", got)
	}
	if got := o.State().EpochsRun; got != 2 {
		t.Errorf("expected 2 epochs run, got %d", got)
	}
}

func TestRun_MalformedHistoryStartsEmpty(t *testing.T) {
	h := newHarness(t)
	if err := h.store.Save(h.model.StateDict(), h.lastWeights()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := os.MkdirAll(h.cfg.LossDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.lastHistory(), []byte("not a number\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h.cfg.Reload = true

	o, err := h.run(t, t.Context(), h.deps())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := o.State().History.Len(); got != 1 {
		t.Errorf("expected history to restart, got %d entries", got)
	}
	if !strings.Contains(h.logs.String(), "failed to load previous loss values") {
		t.Error("expected a warning about the unreadable history")
	}
}

func TestRun_FinalizeArtifacts(t *testing.T) {
	h := newHarness(t)
	h.data.batches = 3
	chart := &fakeChart{}
	masks := &fakeMasks{}

	deps := h.deps()
	deps.Chart = chart
	deps.Masks = masks

	if _, err := h.run(t, t.Context(), deps); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if chart.rendered != 1 {
		t.Errorf("expected chart rendered once, got %d", chart.rendered)
	}
	if masks.written != 3 {
		t.Errorf("expected 3 mask batches, got %d", masks.written)
	}
	if !strings.Contains(h.logs.String(), "model saved") {
		t.Error("expected save confirmation in logs")
	}
}

func TestRun_EpochStartLogsDecayedRate(t *testing.T) {
	h := newHarness(t)
	h.cfg.Epochs = 17

	if _, err := h.run(t, t.Context(), h.deps()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(h.opt.rates) != 1 || h.opt.rates[0] != 0.05 {
		t.Fatalf("expected one decay to 0.05 at epoch 16, got %v", h.opt.rates)
	}

	var started string
	for _, line := range strings.Split(h.logs.String(), "\n") {
		if strings.Contains(line, `msg="epoch started" epoch=16 `) {
			started = line
		}
	}
	if !strings.Contains(started, "learning_rate=0.05") {
		t.Errorf("epoch 16 should start with the decayed rate, got %q", started)
	}
}

func TestRun_InterruptSavesNonFiniteWeights(t *testing.T) {
	h := newHarness(t)
	h.cfg.Save = false
	h.cfg.Epochs = 3
	h.model.param.Data[0] = math.NaN()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	h.loss.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	if _, err := h.run(t, ctx, h.deps()); err != nil {
		t.Fatalf("interrupted run should finalize cleanly, got %v", err)
	}

	saved, err := h.store.Load(h.lastWeights())
	if err != nil {
		t.Fatalf("expected diverged weights saved on interrupt: %v", err)
	}
	if !math.IsNaN(saved["w"][0]) {
		t.Errorf("expected NaN weight, got %v", saved["w"])
	}
}
