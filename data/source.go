package data

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/petar/GoMNIST"
)

// DefaultBaseURL is the Zalando research mirror serving the four
// Fashion-MNIST idx archives.
const DefaultBaseURL = "http://fashion-mnist.s3-website.eu-central-1.amazonaws.com/"

// archiveFiles are the gzipped idx files GoMNIST expects to find on disk.
var archiveFiles = []string{
	"train-images-idx3-ubyte.gz",
	"train-labels-idx1-ubyte.gz",
	"t10k-images-idx3-ubyte.gz",
	"t10k-labels-idx1-ubyte.gz",
}

// Source acquires the Fashion-MNIST splits: it downloads missing archives
// into Dir, decodes them, and caches the decoded datasets so repeated Load
// calls are free. Everything that can go wrong wraps ErrAcquisition.
type Source struct {
	Dir     string
	BaseURL string
	Client  *http.Client

	// Expected record counts; a decoded split of any other size is treated
	// as corrupt.
	TrainCount int
	TestCount  int

	mu    sync.Mutex
	cache map[string]*Dataset
}

// NewSource returns a source rooted at dir with the canonical mirror and
// record counts.
func NewSource(dir string) *Source {
	return &Source{
		Dir:        dir,
		BaseURL:    DefaultBaseURL,
		Client:     http.DefaultClient,
		TrainCount: 60000,
		TestCount:  10000,
	}
}

// Load returns the dataset for split "train" or "test". The first call
// materializes the local archives and decodes both splits; later calls hit
// the cache.
func (s *Source) Load(split string) (*Dataset, error) {
	if split != "train" && split != "test" {
		return nil, fmt.Errorf("%w: unknown split %q", ErrAcquisition, split)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ds, ok := s.cache[split]; ok {
		return ds, nil
	}

	if err := s.fetchArchives(); err != nil {
		return nil, err
	}

	train, test, err := GoMNIST.Load(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrAcquisition, s.Dir, err)
	}
	if len(train.Images) != len(train.Labels) || len(test.Images) != len(test.Labels) {
		return nil, fmt.Errorf("%w: image/label count mismatch", ErrAcquisition)
	}
	if s.TrainCount > 0 && len(train.Images) != s.TrainCount {
		return nil, fmt.Errorf("%w: train split has %d records, want %d",
			ErrAcquisition, len(train.Images), s.TrainCount)
	}
	if s.TestCount > 0 && len(test.Images) != s.TestCount {
		return nil, fmt.Errorf("%w: test split has %d records, want %d",
			ErrAcquisition, len(test.Images), s.TestCount)
	}

	if s.cache == nil {
		s.cache = make(map[string]*Dataset, 2)
	}
	s.cache["train"] = fromSet("train", train)
	s.cache["test"] = fromSet("test", test)
	return s.cache[split], nil
}

// fetchArchives downloads any archive not already on disk. Files are written
// to a temp name and renamed so a failed download never leaves a partial
// archive behind.
func (s *Source) fetchArchives() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrAcquisition, err)
	}
	for _, name := range archiveFiles {
		local := filepath.Join(s.Dir, name)
		if _, err := os.Stat(local); err == nil {
			continue
		}
		if err := s.download(s.BaseURL+name, local); err != nil {
			return fmt.Errorf("%w: fetch %s: %v", ErrAcquisition, name, err)
		}
	}
	return nil
}

func (s *Source) download(url, local string) error {
	resp, err := s.Client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(local), filepath.Base(local)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), local)
}

// fromSet converts a decoded GoMNIST set into a Dataset, scaling pixels
// to [0,1].
func fromSet(name string, set *GoMNIST.Set) *Dataset {
	samples := make([]Sample, len(set.Images))
	for i, img := range set.Images {
		px := make([]float32, len(img))
		for j, b := range img {
			px[j] = float32(b) / 255.0
		}
		samples[i] = Sample{Image: px, Label: int64(set.Labels[i])}
	}
	return NewDataset(name, samples)
}
