// Package checkpoint manages checkpoint files in a training directory:
// numbered saves during training, pruning of stale files, and locating
// the latest state to resume from.
package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/serialization"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

const fileExtension = ".sqck"

// Manager writes and prunes checkpoints under one directory. Files are
// named <prefix>-<globalStep>.sqck so the step is recoverable from the
// name alone.
type Manager struct {
	dir    string
	prefix string
	keep   int
	logger *logrus.Logger
}

// NewManager creates a manager for dir, creating the directory if
// needed. keep limits how many checkpoints survive pruning; keep <= 0
// keeps everything.
func NewManager(dir, prefix string, keep int, logger *logrus.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Manager{dir: dir, prefix: prefix, keep: keep, logger: logger}, nil
}

// OpenManager opens an existing checkpoint directory without creating
// it. The evaluation modes use this so a mistyped directory fails
// instead of leaving an empty one behind.
func OpenManager(dir, prefix string, logger *logrus.Logger) (*Manager, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("checkpoint directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("checkpoint path %s is not a directory", dir)
	}
	return &Manager{dir: dir, prefix: prefix, logger: logger}, nil
}

// Dir returns the managed directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the file path a given global step saves to.
func (m *Manager) Path(globalStep int) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s-%d%s", m.prefix, globalStep, fileExtension))
}

// Save writes a checkpoint for the given step and prunes older files
// beyond the keep limit. Returns the path written.
func (m *Manager) Save(state map[string]*tensor.RawTensor, meta *serialization.CheckpointMeta) (string, error) {
	if meta == nil {
		return "", fmt.Errorf("checkpoint meta is required")
	}
	path := m.Path(meta.GlobalStep)
	if err := serialization.Save(path, state, meta, nil); err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	m.logger.Infof("Saved checkpoint to %s", path)

	if err := m.prune(); err != nil {
		m.logger.Warnf("Pruning old checkpoints failed: %v", err)
	}
	return path, nil
}

// Latest returns the path and step of the newest checkpoint, or ok=false
// when the directory holds none.
func (m *Manager) Latest() (path string, globalStep int, ok bool, err error) {
	steps, err := m.list()
	if err != nil {
		return "", 0, false, err
	}
	if len(steps) == 0 {
		return "", 0, false, nil
	}
	last := steps[len(steps)-1]
	return m.Path(last), last, true, nil
}

// list returns the global steps present in the directory, ascending.
func (m *Manager) list() ([]int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint dir: %w", err)
	}

	var steps []int
	wantPrefix := m.prefix + "-"
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, wantPrefix) || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		stepStr := strings.TrimSuffix(strings.TrimPrefix(name, wantPrefix), fileExtension)
		step, err := strconv.Atoi(stepStr)
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}
	steps, err := m.list()
	if err != nil {
		return err
	}
	for len(steps) > m.keep {
		victim := steps[0]
		steps = steps[1:]
		if err := os.Remove(m.Path(victim)); err != nil {
			return fmt.Errorf("remove stale checkpoint: %w", err)
		}
		m.logger.Debugf("Pruned checkpoint for step %d", victim)
	}
	return nil
}
