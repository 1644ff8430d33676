package classifier

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const snapshotVersion = 1

// Store persists the serialized classifier. Load returns
// domain.ErrModelNotFound when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

type snapshot struct {
	Version int
	Params  Params
	Vectors [][]float32
	Labels  []domain.Label
}

// Marshal serializes the model so another process can rebuild it.
func (m *KNN) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(snapshot{
		Version: snapshotVersion,
		Params:  m.params,
		Vectors: m.vectors,
		Labels:  m.labels,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return buf.Bytes(), nil
}

func Unmarshal(blob []byte) (*KNN, error) {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported model version %d", snap.Version)
	}
	if len(snap.Vectors) == 0 || len(snap.Vectors) != len(snap.Labels) {
		return nil, fmt.Errorf("corrupt model: %d vectors, %d labels", len(snap.Vectors), len(snap.Labels))
	}
	for i, v := range snap.Vectors {
		if len(v) == 0 || len(v) != len(snap.Vectors[0]) {
			return nil, fmt.Errorf("corrupt model: %w at row %d", ErrMixedDimensions, i)
		}
	}
	return newKNNFromVectors(snap.Params, snap.Vectors, snap.Labels), nil
}

// FileStore keeps the model in a single file. Writes go to a temp file in
// the same directory and are renamed into place. The mutex only serializes
// writers inside this process.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return data, nil
}

func (s *FileStore) Save(_ context.Context, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp model: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace model: %w", err)
	}
	return nil
}
