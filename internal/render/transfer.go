package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crimson-sun/tracecast/internal/model"
)

// WriteTransfer serializes the cycle into the renderer's input format at
// path, creating parent directories as needed.
func WriteTransfer(path string, c model.Cycle, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("render: create transfer dir: %w", err)
	}
	data, err := json.Marshal(model.NewTransfer(c, now))
	if err != nil {
		return fmt.Errorf("render: marshal transfer: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("render: write transfer %s: %w", path, err)
	}
	return nil
}

// ReadTransfer parses a transfer file back into its document form, used by
// the one-shot render command.
func ReadTransfer(path string) (model.Transfer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Transfer{}, fmt.Errorf("render: read transfer %s: %w", path, err)
	}
	var t model.Transfer
	if err := json.Unmarshal(data, &t); err != nil {
		return model.Transfer{}, fmt.Errorf("render: parse transfer %s: %w", path, err)
	}
	return t, nil
}
