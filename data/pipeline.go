package data

import "fmt"

// PipelineOptions fixes how the three phase loaders are built.
type PipelineOptions struct {
	BatchSize  int
	NumWorkers int
	Seed       int64
	// TrainSize/ValSize partition the training split. They must sum to the
	// training dataset length (50000/10000 for Fashion-MNIST).
	TrainSize int
	ValSize   int
}

// Pipeline owns dataset acquisition and the train/validate/test dispatch.
// Setup must be called once before the phase accessors.
type Pipeline struct {
	source *Source
	opts   PipelineOptions

	train *Loader
	val   *Loader
	test  *Loader
}

// NewPipeline builds a pipeline over the given source.
func NewPipeline(source *Source, opts PipelineOptions) *Pipeline {
	return &Pipeline{source: source, opts: opts}
}

// Setup downloads both splits, partitions the training set, and builds the
// three loaders. Only the training loader shuffles.
func (p *Pipeline) Setup() error {
	trainDS, err := p.source.Load("train")
	if err != nil {
		return err
	}
	testDS, err := p.source.Load("test")
	if err != nil {
		return err
	}

	trainSub, valSub, err := Split(trainDS, p.opts.TrainSize, p.opts.ValSize, p.opts.Seed)
	if err != nil {
		return err
	}

	if p.train, err = NewLoader(trainSub, p.opts.BatchSize, true, p.opts.NumWorkers, p.opts.Seed); err != nil {
		return fmt.Errorf("train loader: %w", err)
	}
	if p.val, err = NewLoader(valSub, p.opts.BatchSize, false, p.opts.NumWorkers, p.opts.Seed); err != nil {
		return fmt.Errorf("validation loader: %w", err)
	}
	if p.test, err = NewLoader(Whole(testDS), p.opts.BatchSize, false, p.opts.NumWorkers, p.opts.Seed); err != nil {
		return fmt.Errorf("test loader: %w", err)
	}
	return nil
}

// Train returns the shuffled training loader.
func (p *Pipeline) Train() *Loader { return p.train }

// Val returns the validation loader.
func (p *Pipeline) Val() *Loader { return p.val }

// Test returns the held-out test loader.
func (p *Pipeline) Test() *Loader { return p.test }
