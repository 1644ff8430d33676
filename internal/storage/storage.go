// Package storage lays captured face crops out on disk: temporary capture
// folders per session, one permanent folder per registered person, and a
// discard folder for captures nobody claimed.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

const captureExt = ".jpeg"

// TrainingImage is one file under the training root. The folder name is the label.
type TrainingImage struct {
	Label domain.Label
	Path  string
}

type FaceStore struct {
	trainingDir string
	captureDir  string
	discardDir  string

	// serializes moves into shared folders
	mu sync.Mutex
}

func NewFaceStore(trainingDir, captureDir, discardDir string) *FaceStore {
	return &FaceStore{
		trainingDir: trainingDir,
		captureDir:  captureDir,
		discardDir:  discardDir,
	}
}

// CaptureDir is the temporary folder for a session's unlabelled captures.
func (s *FaceStore) CaptureDir(sessionID string) string {
	return filepath.Join(s.captureDir, sessionID)
}

// PersonDir is the permanent folder for a label.
func (s *FaceStore) PersonDir(id domain.Label) string {
	return filepath.Join(s.trainingDir, string(id))
}

// SaveCapture writes an aligned crop. Unknown ids go to the session's
// temporary folder as <frame>.jpeg; numeric ids go straight to the person's
// folder as <id><frame>.jpeg. Any other id is rejected.
func (s *FaceStore) SaveCapture(sessionID string, id domain.Label, frame int64, jpeg []byte) (string, error) {
	var path string
	switch {
	case id == "" || id == "0" || id.IsUnknown():
		path = filepath.Join(s.CaptureDir(sessionID), strconv.FormatInt(frame, 10)+captureExt)
	case id.IsNumeric():
		path = filepath.Join(s.PersonDir(id), string(id)+strconv.FormatInt(frame, 10)+captureExt)
	default:
		return "", domain.ErrInvalidIdentity.WithError(fmt.Errorf("id %q", id))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return "", fmt.Errorf("write capture: %w", err)
	}
	return path, nil
}

// Promote moves every file in the session's temporary folder into the
// person's folder and removes the temporary folder. A missing temporary
// folder is not an error.
func (s *FaceStore) Promote(sessionID string, id domain.Label) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.CaptureDir(sessionID)
	entries, err := os.ReadDir(src)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read capture dir: %w", err)
	}

	dst := s.PersonDir(id)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("create person dir: %w", err)
	}

	moved := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, string(id)) {
			name = string(id) + name
		}
		if err := moveFile(filepath.Join(src, e.Name()), filepath.Join(dst, name)); err != nil {
			return moved, fmt.Errorf("promote %s: %w", e.Name(), err)
		}
		moved++
	}

	if err := os.RemoveAll(src); err != nil {
		return moved, fmt.Errorf("remove capture dir: %w", err)
	}
	return moved, nil
}

// Discard moves the session's temporary folder under the discard root.
// It reports false when there was nothing to move.
func (s *FaceStore) Discard(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src := s.CaptureDir(sessionID)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat capture dir: %w", err)
	}

	if err := os.MkdirAll(s.discardDir, 0o755); err != nil {
		return false, fmt.Errorf("create discard dir: %w", err)
	}

	dst := filepath.Join(s.discardDir, sessionID)
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
			break
		}
		dst = filepath.Join(s.discardDir, sessionID+"-"+strconv.Itoa(i))
	}

	if err := os.Rename(src, dst); err != nil {
		return false, fmt.Errorf("discard captures: %w", err)
	}
	return true, nil
}

// ScanTraining lists images under the training root, sorted by label then
// path. Files directly under the root have no label and are skipped.
func (s *FaceStore) ScanTraining() ([]TrainingImage, error) {
	people, err := os.ReadDir(s.trainingDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read training dir: %w", err)
	}

	var images []TrainingImage
	for _, person := range people {
		if !person.IsDir() {
			continue
		}
		label := domain.Label(person.Name())
		err := filepath.WalkDir(filepath.Join(s.trainingDir, person.Name()), func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !isImage(path) {
				return nil
			}
			images = append(images, TrainingImage{Label: label, Path: path})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", person.Name(), err)
		}
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].Label != images[j].Label {
			return images[i].Label < images[j].Label
		}
		return images[i].Path < images[j].Path
	})
	return images, nil
}

func isImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// moveFile renames, falling back to copy and delete across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
