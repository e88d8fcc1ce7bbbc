package ml

import (
	"fmt"
	"log"

	torch "github.com/wangkuiyi/gotorch"
	F "github.com/wangkuiyi/gotorch/nn/functional"
	"github.com/wangkuiyi/gotorch/nn/initializer"
	"github.com/wangkuiyi/gotorch/vision/models"

	"fashionnet/data"
)

// FashionMLP is the 784-512-512-10 classifier. The wrapped net's Forward
// flattens the batch and ends in log-softmax, so NllLoss below realizes
// categorical cross-entropy and argmax over the output matches argmax over
// raw logits.
type FashionMLP struct {
	cfg    Config
	net    *models.MLPModule
	opt    torch.Optimizer
	device torch.Device

	// group is non-nil when more than one device id is configured.
	group *replicaGroup
}

// NewFashionMLP builds the model on the configured device(s). Parameter
// initialization is seeded, so a fixed seed reproduces the same weights.
func NewFashionMLP(cfg Config) *FashionMLP {
	initializer.ManualSeed(cfg.Seed)

	m := &FashionMLP{cfg: cfg}
	if len(cfg.Devices) > 1 && torch.IsCUDAAvailable() {
		m.group = newReplicaGroup(cfg)
		m.net = m.group.primary()
		m.device = m.group.devices[0]
		return m
	}
	m.device = pickDevice(cfg.Devices)
	m.net = models.MLP()
	m.net.To(m.device)
	return m
}

func pickDevice(ids []int) torch.Device {
	if torch.IsCUDAAvailable() {
		log.Println("CUDA is available; training on GPU")
		if len(ids) > 0 {
			return torch.NewDevice(fmt.Sprintf("cuda:%d", ids[0]))
		}
		return torch.NewDevice("cuda")
	}
	log.Println("No CUDA found; CPU only")
	return torch.NewDevice("cpu")
}

// ConfigureOptimizers prepares plain SGD over the net's parameters. The
// data-parallel path applies its own updates and needs no torch optimizer.
func (m *FashionMLP) ConfigureOptimizers() error {
	if m.group != nil {
		return nil
	}
	m.opt = torch.SGD(m.cfg.LearningRate, 0, 0, 0, false)
	m.opt.AddParameters(m.net.Parameters())
	return nil
}

// Close releases the optimizer. Call after training finishes.
func (m *FashionMLP) Close() {
	if m.opt != nil {
		m.opt.Close()
		m.opt = nil
	}
}

// SetMode switches between training and evaluation mode.
func (m *FashionMLP) SetMode(train bool) {
	m.net.Train(train)
}

// Forward maps a batch of inputs to per-class scores.
func (m *FashionMLP) Forward(x torch.Tensor) torch.Tensor {
	return m.net.Forward(x)
}

// TrainingStep runs forward, cross-entropy loss, backward and exactly one
// optimizer update, returning the batch loss.
func (m *FashionMLP) TrainingStep(b data.Batch) (float64, error) {
	if err := validateBatch(b); err != nil {
		return 0, err
	}
	if b.Size() == 0 {
		return 0, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}
	if m.group != nil {
		return m.group.step(b)
	}
	if m.opt == nil {
		return 0, fmt.Errorf("optimizer not configured; call ConfigureOptimizers first")
	}

	x, y := m.tensors(b)
	m.opt.ZeroGrad()
	pred := m.net.Forward(x)
	loss := F.NllLoss(pred, y, torch.Tensor{}, -100, "mean")
	value := float64(loss.Item().(float32))
	loss.Backward()
	m.opt.Step()
	return value, nil
}

// EvalStep runs forward and loss without an optimizer update and counts
// correct predictions for the batch.
func (m *FashionMLP) EvalStep(b data.Batch) (EvalResult, error) {
	if err := validateBatch(b); err != nil {
		return EvalResult{}, err
	}
	if b.Size() == 0 {
		return EvalResult{}, fmt.Errorf("%w: empty batch", ErrShapeMismatch)
	}

	x, y := m.tensors(b)
	output := m.net.Forward(x)
	loss := F.NllLoss(output, y, torch.Tensor{}, -100, "mean")
	pred := output.Argmax(1)
	correct := pred.Eq(y.View(pred.Shape()...)).
		Sum(map[string]interface{}{"dim": 0, "keepDim": false}).Item().(int64)
	return EvalResult{
		Loss:    float64(loss.Item().(float32)),
		Correct: correct,
		Total:   int64(b.Size()),
	}, nil
}

func (m *FashionMLP) tensors(b data.Batch) (torch.Tensor, torch.Tensor) {
	x := torch.NewTensor(b.Inputs)
	y := torch.NewTensor(b.Labels)
	return x.To(m.device, x.Dtype()), y.To(m.device, y.Dtype())
}
