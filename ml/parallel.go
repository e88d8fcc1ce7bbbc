package ml

import (
	"fmt"

	torch "github.com/wangkuiyi/gotorch"
	F "github.com/wangkuiyi/gotorch/nn/functional"
	"github.com/wangkuiyi/gotorch/nn/initializer"
	"github.com/wangkuiyi/gotorch/vision/models"

	"fashionnet/data"
)

// replicaGrads holds one replica's gradients, one tensor per layer parameter.
type replicaGrads struct {
	W1, W2, W3 torch.Tensor
	B1, B2, B3 torch.Tensor
}

// replicaGroup runs data-parallel training over uniform devices: each batch
// is sharded evenly, every replica does one backward pass on its shard, and
// the gradients are aggregated as a mean by applying them to the primary
// replica sequentially in fixed replica order with lr/n scaling. Fixed order
// keeps the aggregation deterministic; the primary's parameters are then
// re-broadcast, so all replicas stay identical between steps.
type replicaGroup struct {
	lr      float64
	nets    []*models.MLPModule
	devices []torch.Device
}

func newReplicaGroup(cfg Config) *replicaGroup {
	g := &replicaGroup{lr: cfg.LearningRate}
	for _, id := range cfg.Devices {
		// Re-seeding per replica makes every net start from identical
		// weights without a broadcast.
		initializer.ManualSeed(cfg.Seed)
		dev := torch.NewDevice(fmt.Sprintf("cuda:%d", id))
		net := models.MLP()
		net.To(dev)
		g.nets = append(g.nets, net)
		g.devices = append(g.devices, dev)
	}
	return g
}

func (g *replicaGroup) primary() *models.MLPModule { return g.nets[0] }

// step runs one data-parallel training step and returns the batch loss as a
// shard-size-weighted mean.
func (g *replicaGroup) step(b data.Batch) (float64, error) {
	shards := shardBatch(b, len(g.nets))

	var lossSum float64
	grads := make([]replicaGrads, 0, len(shards))
	for r, shard := range shards {
		x := torch.NewTensor(shard.Inputs)
		y := torch.NewTensor(shard.Labels)
		x = x.To(g.devices[r], x.Dtype())
		y = y.To(g.devices[r], y.Dtype())

		pred := g.nets[r].Forward(x)
		loss := F.NllLoss(pred, y, torch.Tensor{}, -100, "mean")
		lossSum += float64(loss.Item().(float32)) * float64(shard.Size())
		loss.Backward()
		grads = append(grads, g.collect(g.nets[r]))
	}

	g.apply(grads)
	for r := range shards {
		g.zeroGrad(g.nets[r])
	}
	g.broadcast()
	return lossSum / float64(b.Size()), nil
}

func (g *replicaGroup) collect(net *models.MLPModule) replicaGrads {
	return replicaGrads{
		W1: net.FC1.Weight.Grad(),
		W2: net.FC2.Weight.Grad(),
		W3: net.FC3.Weight.Grad(),
		B1: net.FC1.Bias.Grad(),
		B2: net.FC2.Bias.Grad(),
		B3: net.FC3.Bias.Grad(),
	}
}

// apply folds every replica's gradients into the primary's parameters. The
// lr/n scale makes the sequential application equivalent to one SGD step on
// the mean gradient.
func (g *replicaGroup) apply(grads []replicaGrads) {
	net := g.primary()
	scale := float32(g.lr / float64(len(grads)))
	for _, gr := range grads {
		dev := g.devices[0]
		w1 := gr.W1.To(dev, gr.W1.Dtype())
		w2 := gr.W2.To(dev, gr.W2.Dtype())
		w3 := gr.W3.To(dev, gr.W3.Dtype())
		b1 := gr.B1.To(dev, gr.B1.Dtype())
		b2 := gr.B2.To(dev, gr.B2.Dtype())
		b3 := gr.B3.To(dev, gr.B3.Dtype())

		net.FC1.Weight.SetData(torch.Sub(net.FC1.Weight, w1, scale))
		net.FC2.Weight.SetData(torch.Sub(net.FC2.Weight, w2, scale))
		net.FC3.Weight.SetData(torch.Sub(net.FC3.Weight, w3, scale))
		net.FC1.Bias.SetData(torch.Sub(net.FC1.Bias, b1, scale))
		net.FC2.Bias.SetData(torch.Sub(net.FC2.Bias, b2, scale))
		net.FC3.Bias.SetData(torch.Sub(net.FC3.Bias, b3, scale))
	}
}

func (g *replicaGroup) zeroGrad(net *models.MLPModule) {
	for _, p := range []torch.Tensor{
		net.FC1.Weight, net.FC2.Weight, net.FC3.Weight,
		net.FC1.Bias, net.FC2.Bias, net.FC3.Bias,
	} {
		grad := p.Grad()
		grad.SetData(torch.Full(grad.Shape(), 0, true))
	}
}

// broadcast copies the primary's parameters onto every other replica.
func (g *replicaGroup) broadcast() {
	src := g.primary()
	for r := 1; r < len(g.nets); r++ {
		dst, dev := g.nets[r], g.devices[r]
		dst.FC1.Weight.SetData(src.FC1.Weight.To(dev, src.FC1.Weight.Dtype()))
		dst.FC2.Weight.SetData(src.FC2.Weight.To(dev, src.FC2.Weight.Dtype()))
		dst.FC3.Weight.SetData(src.FC3.Weight.To(dev, src.FC3.Weight.Dtype()))
		dst.FC1.Bias.SetData(src.FC1.Bias.To(dev, src.FC1.Bias.Dtype()))
		dst.FC2.Bias.SetData(src.FC2.Bias.To(dev, src.FC2.Bias.Dtype()))
		dst.FC3.Bias.SetData(src.FC3.Bias.To(dev, src.FC3.Bias.Dtype()))
	}
}

// shardBatch slices b into at most n contiguous, near-even shards. Every
// sample lands in exactly one shard; shards are never empty.
func shardBatch(b data.Batch, n int) []data.Batch {
	if n > b.Size() {
		n = b.Size()
	}
	shards := make([]data.Batch, 0, n)
	per := b.Size() / n
	rem := b.Size() % n
	start := 0
	for r := 0; r < n; r++ {
		size := per
		if r < rem {
			size++
		}
		shards = append(shards, data.Batch{
			Inputs: b.Inputs[start : start+size],
			Labels: b.Labels[start : start+size],
		})
		start += size
	}
	return shards
}
