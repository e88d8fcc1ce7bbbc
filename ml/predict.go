package ml

import (
	"fmt"
	"log"
	"path/filepath"

	torch "github.com/wangkuiyi/gotorch"
	"github.com/wangkuiyi/gotorch/vision/transforms"
	"gocv.io/x/gocv"

	"fashionnet/data"
)

// NumClasses is the width of the classifier output.
const NumClasses = 10

// Classes maps a class index to its Fashion-MNIST name. The order is fixed;
// index 9 is "Ankle boot".
var Classes = []string{
	"T-shirt/top",
	"Trouser",
	"Pullover",
	"Dress",
	"Coat",
	"Sandal",
	"Shirt",
	"Sneaker",
	"Bag",
	"Ankle boot",
}

// ClassName maps a predicted index to its name.
func ClassName(idx int) (string, error) {
	if idx < 0 || idx >= len(Classes) {
		return "", fmt.Errorf("%w: index %d with %d class names",
			ErrIndexOutOfRange, idx, len(Classes))
	}
	return Classes[idx], nil
}

// PredictIndex classifies one image (784 pixels in [0,1]) and returns the
// winning class index. Ties resolve to the lowest index.
func (m *FashionMLP) PredictIndex(image []float32) (int, error) {
	if len(image) != data.ImageSize {
		return 0, fmt.Errorf("%w: input has %d values, want %d",
			ErrShapeMismatch, len(image), data.ImageSize)
	}
	m.SetMode(false)
	x := torch.NewTensor([][]float32{image})
	x = x.To(m.device, x.Dtype())
	idx, ok := m.net.Forward(x).Argmax().Item().(int64)
	if !ok {
		return 0, fmt.Errorf("argmax returned no index")
	}
	return int(idx), nil
}

// Predict classifies one image and returns the class name.
func Predict(m *FashionMLP, image []float32) (string, error) {
	idx, err := m.PredictIndex(image)
	if err != nil {
		return "", err
	}
	return ClassName(idx)
}

// PredictFiles classifies every 28x28 grayscale image matched by the glob
// patterns, logging one line per file.
func PredictFiles(m *FashionMLP, patterns []string) error {
	for _, pattern := range patterns {
		fns, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		if len(fns) == 0 {
			return fmt.Errorf("no files match %q", pattern)
		}
		for _, fn := range fns {
			name, err := predictFile(m, fn)
			if err != nil {
				return err
			}
			log.Printf("%s: %s", fn, name)
		}
	}
	return nil
}

func predictFile(m *FashionMLP, fn string) (string, error) {
	img := gocv.IMRead(fn, gocv.IMReadGrayScale)
	if img.Empty() {
		return "", fmt.Errorf("cannot read image %s", fn)
	}
	defer img.Close()

	// ToTensor scales to [0,1], matching the training pipeline.
	t := transforms.ToTensor().Run(img)
	t = t.To(m.device, t.Dtype())
	m.SetMode(false)
	idx, ok := m.net.Forward(t).Argmax().Item().(int64)
	if !ok {
		return "", fmt.Errorf("argmax returned no index for %s", fn)
	}
	return ClassName(int(idx))
}
