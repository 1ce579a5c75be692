// Package backup dumps the database as a single JSON bundle and ships it to
// object storage.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paradash/api/internal/store"
)

const (
	bundleVersion = 1
	keyPrefix     = "backups/"
	contentType   = "application/json"
	stampLayout   = "20060102T150405Z"
)

var ErrEmptySnapshot = errors.New("backup snapshot unavailable")

// Source produces a consistent view of every table.
type Source interface {
	Snapshot(ctx context.Context) (store.Snapshot, error)
}

// Uploader writes an object under key.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Bundle is the document written to object storage.
type Bundle struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	store.Snapshot
}

// Result describes an uploaded bundle.
type Result struct {
	Key       string
	Size      int
	Areas     int
	Projects  int
	Tasks     int
	Resources int
	Archives  int
	Favorites int
}

type Service struct {
	source   Source
	uploader Uploader
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(source Source, uploader Uploader, opts ...Option) *Service {
	s := &Service{
		source:   source,
		uploader: uploader,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key names the object for a bundle taken at the given time.
func Key(at time.Time) string {
	return keyPrefix + "paradash-" + at.UTC().Format(stampLayout) + ".json"
}

// Run snapshots the database and uploads the bundle.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	snapshot, err := s.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmptySnapshot, err)
	}

	takenAt := s.now().UTC()
	data, err := json.Marshal(Bundle{Version: bundleVersion, CreatedAt: takenAt, Snapshot: snapshot})
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}

	key := Key(takenAt)
	if err := s.uploader.Upload(ctx, key, data, contentType); err != nil {
		return nil, fmt.Errorf("upload %s: %w", key, err)
	}

	result := &Result{
		Key:       key,
		Size:      len(data),
		Areas:     len(snapshot.Areas),
		Projects:  len(snapshot.Projects),
		Tasks:     len(snapshot.Tasks),
		Resources: len(snapshot.Resources),
		Archives:  len(snapshot.Archives),
		Favorites: len(snapshot.Favorites),
	}
	s.logger.Info("backup uploaded",
		zap.String("key", key),
		zap.Int("bytes", result.Size),
		zap.Int("tasks", result.Tasks),
		zap.Int("archives", result.Archives),
	)
	return result, nil
}
