// Package cas implements the build info store that remembers what kiln produced.
package cas

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BuildInfoStore = (*Store)(nil)

// ledger is the on-disk shape of .kiln/state.json.
type ledger struct {
	Outputs map[string]domain.BuildInfo   `json:"outputs,omitempty"`
	Probes  map[string]domain.ProbeRecord `json:"probes,omitempty"`
}

func newLedger() *ledger {
	return &ledger{
		Outputs: make(map[string]domain.BuildInfo),
		Probes:  make(map[string]domain.ProbeRecord),
	}
}

// Store implements ports.BuildInfoStore using one flat JSON file per project root.
// Ledgers are loaded lazily and kept in memory for the life of the process.
type Store struct {
	mu      sync.Mutex
	ledgers map[string]*ledger
}

// NewStore creates a new BuildInfoStore.
func NewStore() *Store {
	return &Store{ledgers: make(map[string]*ledger)}
}

// Get retrieves the build info for an output path.
func (s *Store) Get(root, output string) (*domain.BuildInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerLocked(root)
	if err != nil {
		return nil, err
	}

	info, ok := l.Outputs[output]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Put stores the build info and persists the ledger.
func (s *Store) Put(root string, info domain.BuildInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerLocked(root)
	if err != nil {
		return err
	}
	l.Outputs[info.Output] = info
	return s.saveLocked(root, l)
}

// List returns every output record sorted by path.
func (s *Store) List(root string) ([]domain.BuildInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerLocked(root)
	if err != nil {
		return nil, err
	}

	out := make([]domain.BuildInfo, 0, len(l.Outputs))
	for _, info := range l.Outputs {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b domain.BuildInfo) int {
		return strings.Compare(a.Output, b.Output)
	})
	return out, nil
}

// GetProbe returns the persisted outcome of a feature probe.
func (s *Store) GetProbe(root, feature string) (*domain.ProbeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerLocked(root)
	if err != nil {
		return nil, err
	}

	rec, ok := l.Probes[feature]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// PutProbe persists the outcome of a feature probe.
func (s *Store) PutProbe(root string, record domain.ProbeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.ledgerLocked(root)
	if err != nil {
		return err
	}
	l.Probes[record.Feature] = record
	return s.saveLocked(root, l)
}

// Clear forgets every record and deletes the state file.
func (s *Store) Clear(root string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[root] = newLedger()

	path := statePath(root)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreRemoveFailed.Error()), "path", path)
	}
	// The .kiln directory only holds state; drop it when nothing else lives there.
	_ = os.Remove(filepath.Dir(path))
	return nil
}

func (s *Store) ledgerLocked(root string) (*ledger, error) {
	if l, ok := s.ledgers[root]; ok {
		return l, nil
	}

	l, err := load(statePath(root))
	if err != nil {
		return nil, err
	}
	s.ledgers[root] = l
	return l, nil
}

func load(path string) (*ledger, error) {
	l := newLedger()

	//nolint:gosec // Path is derived from the project root
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreReadFailed.Error()), "path", path)
	}

	if len(data) == 0 {
		return l, nil
	}

	if err := json.Unmarshal(data, l); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrStoreUnmarshalFailed.Error()), "path", path)
	}
	if l.Outputs == nil {
		l.Outputs = make(map[string]domain.BuildInfo)
	}
	if l.Probes == nil {
		l.Probes = make(map[string]domain.ProbeRecord)
	}
	return l, nil
}

func (s *Store) saveLocked(root string, l *ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return zerr.Wrap(err, domain.ErrStoreMarshalFailed.Error())
	}

	path := statePath(root)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreCreateFailed.Error()), "path", path)
	}

	// The ledger is replaced atomically via a sibling temp file.
	tmp := path + ".tmp"
	//nolint:gosec // Path is derived from the project root
	if err := os.WriteFile(tmp, data, domain.FilePerm); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrStoreWriteFailed.Error()), "path", path)
	}
	return nil
}

func statePath(root string) string {
	return filepath.Join(root, domain.DefaultStatePath())
}
