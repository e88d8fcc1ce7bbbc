package ml

import (
	"encoding/gob"
	"fmt"
	"os"

	torch "github.com/wangkuiyi/gotorch"
)

// SaveCheckpoint writes the model's state dict to path with gob. Parameters
// are staged through the CPU so a checkpoint written on GPU loads anywhere.
func SaveCheckpoint(m *FashionMLP, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer f.Close()

	cpu := torch.NewDevice("cpu")
	m.net.To(cpu)
	if err := gob.NewEncoder(f).Encode(m.net.StateDict()); err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	m.net.To(m.device)
	return nil
}

// LoadCheckpoint restores a state dict written by SaveCheckpoint into m.
func LoadCheckpoint(m *FashionMLP, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	states := make(map[string]torch.Tensor)
	if err := gob.NewDecoder(f).Decode(&states); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}
	m.net.SetStateDict(states)
	m.net.To(m.device)
	return nil
}
