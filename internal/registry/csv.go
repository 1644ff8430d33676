package registry

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/saturnino-fabrica-de-software/facestream/internal/domain"
)

// CSVRegistry appends rows to two CSV files and keeps an in-memory index of
// registrations for lookups. One writer at a time per process.
type CSVRegistry struct {
	userPath     string
	feedbackPath string

	mu    sync.RWMutex
	index map[domain.Label]domain.RegistrationRecord
}

// NewCSV creates both files with their headers when missing and indexes the
// registrations already on disk. Later rows win for repeated ids.
func NewCSV(userPath, feedbackPath string) (*CSVRegistry, error) {
	r := &CSVRegistry{
		userPath:     userPath,
		feedbackPath: feedbackPath,
		index:        make(map[domain.Label]domain.RegistrationRecord),
	}

	for path, header := range map[string][]string{userPath: UserHeader, feedbackPath: FeedbackHeader} {
		if err := ensureFile(path, header); err != nil {
			return nil, err
		}
	}

	if err := r.loadIndex(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *CSVRegistry) Append(_ context.Context, rec domain.RegistrationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{string(rec.ID), rec.Name, rec.Contact, rec.Phone, rec.Organization}
	if err := appendRow(r.userPath, row); err != nil {
		return fmt.Errorf("append registration: %w", err)
	}
	r.index[rec.ID] = rec
	return nil
}

func (r *CSVRegistry) Lookup(_ context.Context, id domain.Label) (*domain.RegistrationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.index[id]
	if !ok {
		return nil, domain.ErrRegistrationNotFound
	}
	return &rec, nil
}

func (r *CSVRegistry) AppendFeedback(_ context.Context, rec domain.FeedbackRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := []string{strconv.FormatBool(rec.WasCorrect), rec.ActualContact, rec.PredictedContact}
	if err := appendRow(r.feedbackPath, row); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	return nil
}

// Len reports the number of distinct registrations.
func (r *CSVRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

func (r *CSVRegistry) loadIndex() error {
	f, err := os.Open(r.userPath)
	if err != nil {
		return fmt.Errorf("open user table: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read user table header: %w", err)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read user table: %w", err)
		}
		if len(row) < len(UserHeader) {
			continue
		}
		id := domain.Label(row[0])
		r.index[id] = domain.RegistrationRecord{
			ID:           id,
			Name:         row[1],
			Contact:      row[2],
			Phone:        row[3],
			Organization: row[4],
			CreatedAt:    createdAt(id),
		}
	}
}

// createdAt recovers the timestamp encoded in a registration id.
func createdAt(id domain.Label) time.Time {
	t, err := time.ParseInLocation(domain.RegistrationIDLayout, string(id), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func ensureFile(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return appendRow(path, header)
}

func appendRow(path string, row []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
