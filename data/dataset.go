package data

import (
	"fmt"
	"math/rand"
)

// ImageSize is the flattened pixel count of one Fashion-MNIST image.
const ImageSize = 28 * 28

// Sample is one labeled example. Image holds 784 pixels scaled to [0,1].
// Samples are never mutated after the dataset is built.
type Sample struct {
	Image []float32
	Label int64
}

// Dataset is an ordered, read-only sequence of samples for one split
// ("train" or "test").
type Dataset struct {
	name    string
	samples []Sample
}

// NewDataset wraps samples into a read-only dataset.
func NewDataset(name string, samples []Sample) *Dataset {
	return &Dataset{name: name, samples: samples}
}

func (d *Dataset) Name() string { return d.name }

func (d *Dataset) Len() int { return len(d.samples) }

func (d *Dataset) Sample(i int) Sample { return d.samples[i] }

// Subset is an index view over a dataset. Subsets produced by Split share the
// underlying samples and never copy pixel data.
type Subset struct {
	ds      *Dataset
	indices []int
}

// NewSubset builds a subset over the given dataset indices.
func NewSubset(ds *Dataset, indices []int) *Subset {
	return &Subset{ds: ds, indices: indices}
}

// Whole returns a subset covering the full dataset in order.
func Whole(ds *Dataset) *Subset {
	idx := make([]int, ds.Len())
	for i := range idx {
		idx[i] = i
	}
	return &Subset{ds: ds, indices: idx}
}

func (s *Subset) Len() int { return len(s.indices) }

func (s *Subset) Sample(i int) Sample { return s.ds.samples[s.indices[i]] }

// Indices returns a copy of the subset's dataset indices.
func (s *Subset) Indices() []int {
	return append([]int(nil), s.indices...)
}

// Split partitions ds into two disjoint subsets of exactly trainN and valN
// samples. Assignment is a seeded permutation, so a fixed seed reproduces the
// same partition. trainN+valN must equal ds.Len().
func Split(ds *Dataset, trainN, valN int, seed int64) (*Subset, *Subset, error) {
	if trainN < 0 || valN < 0 || trainN+valN != ds.Len() {
		return nil, nil, fmt.Errorf("%w: %d+%d != dataset length %d",
			ErrInvalidSplit, trainN, valN, ds.Len())
	}
	perm := rand.New(rand.NewSource(seed)).Perm(ds.Len())
	return &Subset{ds: ds, indices: perm[:trainN]},
		&Subset{ds: ds, indices: perm[trainN:]}, nil
}
