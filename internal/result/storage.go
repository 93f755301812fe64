package result

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	ResultsFile  = "results.json"
	ProofLogFile = "tool-use-proof.log"
)

// CreateBatchDir creates <root>/<batchID> and points <root>/latest at it.
func CreateBatchDir(root, batchID string) (string, error) {
	batchDir, err := filepath.Abs(filepath.Join(root, batchID))
	if err != nil {
		return "", fmt.Errorf("resolving batch dir: %w", err)
	}
	if err := os.MkdirAll(batchDir, 0o755); err != nil {
		return "", fmt.Errorf("creating batch dir: %w", err)
	}
	latest := filepath.Join(root, "latest")
	os.Remove(latest)
	if err := os.Symlink(batchDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return batchDir, nil
}

func MarshalEnvelope(env *Envelope) ([]byte, error) {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling results: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteEnvelope writes env as indented JSON to path, creating parent
// directories.
func WriteEnvelope(path string, env *Envelope) error {
	data, err := MarshalEnvelope(env)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating results dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadEnvelope loads a results.json file, or the one inside a batch
// directory.
func ReadEnvelope(path string) (*Envelope, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ResultsFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing results: %w", err)
	}
	return &env, nil
}

// SamePath reports whether two paths resolve to the same absolute path.
func SamePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return filepath.Clean(absA) == filepath.Clean(absB)
}
