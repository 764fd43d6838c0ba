package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"barcopy/internal/model"
	"barcopy/internal/saver"
)

// FileStore keeps one file per series: {dir}/{provider}/{INSTRUMENT}/{instrument}_{resolution}.{ext}.
// Files are rewritten whole on every change, so all access goes through one mutex.
type FileStore struct {
	dir   string
	codec saver.Codec
	mu    sync.Mutex
}

// NewFileStore creates a store rooted at dir using codec for every file.
func NewFileStore(dir string, codec saver.Codec) (*FileStore, error) {
	if codec == nil {
		return nil, errors.New("file store: nil codec")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("file store: create %s: %w", dir, err)
	}
	return &FileStore{dir: dir, codec: codec}, nil
}

// Path returns the file backing a series.
func (s *FileStore) Path(provider, instrument string, res model.Resolution) string {
	inst := sanitize(instrument)
	name := fmt.Sprintf("%s_%s.%s", strings.ToLower(inst), res, s.codec.Extension())
	return filepath.Join(s.dir, sanitize(provider), inst, name)
}

func (s *FileStore) load(provider, instrument string, res model.Resolution) ([]model.Bar, error) {
	path := s.Path(provider, instrument, res)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	bars, err := s.codec.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return bars, nil
}

func (s *FileStore) save(provider, instrument string, res model.Resolution, bars []model.Bar) error {
	path := s.Path(provider, instrument, res)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create folder for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := s.codec.Save(bars, tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) GetBarCount(ctx context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	bars, err := s.GetBars(ctx, provider, instrument, res, from, to)
	return len(bars), err
}

func (s *FileStore) GetBars(_ context.Context, provider, instrument string, res model.Resolution, from, to time.Time) ([]model.Bar, error) {
	s.mu.Lock()
	all, err := s.load(provider, instrument, res)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []model.Bar
	for _, b := range all {
		if inRange(b.Timestamp, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *FileStore) DeleteBars(_ context.Context, provider, instrument string, res model.Resolution, from, to time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load(provider, instrument, res)
	if err != nil || len(all) == 0 {
		return 0, err
	}
	kept, removed := removeRange(all, from, to)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(provider, instrument, res, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *FileStore) WriteBars(_ context.Context, provider, instrument string, res model.Resolution, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.load(provider, instrument, res)
	if err != nil {
		return err
	}
	return s.save(provider, instrument, res, merge(all, bars, res))
}

func sanitize(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(s)
}
