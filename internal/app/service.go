package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"paradash/api/internal/config"
	"paradash/api/internal/store"
)

const defaultFavoritesConcurrency = 8

type dataStore interface {
	Ping(context.Context) error
	InTx(context.Context, func(store.Tx) error) error

	ListAreas(context.Context) ([]store.Area, error)
	GetArea(context.Context, int64) (store.Area, error)
	InsertArea(context.Context, store.Area) (store.Area, error)
	UpdateArea(context.Context, int64, store.AreaPatch) (store.Area, error)

	ListProjects(context.Context, store.ProjectFilter) ([]store.Project, error)
	GetProject(context.Context, int64) (store.Project, error)
	InsertProject(context.Context, store.Project) (store.Project, error)
	UpdateProject(context.Context, int64, store.ProjectPatch) (store.Project, error)

	ListTasks(context.Context, store.TaskFilter) ([]store.Task, error)
	GetTask(context.Context, int64) (store.Task, error)
	InsertTask(context.Context, store.Task) (store.Task, error)
	UpdateTask(context.Context, int64, store.TaskPatch) (store.Task, error)

	ListResources(context.Context, store.ResourceFilter) ([]store.Resource, error)
	GetResource(context.Context, int64) (store.Resource, error)
	InsertResource(context.Context, store.Resource) (store.Resource, error)
	UpdateResource(context.Context, int64, store.ResourcePatch) (store.Resource, error)

	ListArchives(context.Context, *store.ArchiveType) ([]store.Archive, error)
	DeleteArchives(context.Context, []int64) (int64, error)

	ListFavorites(context.Context, string) ([]store.Favorite, error)
	GetFavorite(context.Context, string, int64, store.FavoriteType) (store.Favorite, error)
	InsertFavorite(context.Context, store.Favorite) (store.Favorite, error)
	DeleteFavorite(context.Context, string, int64, store.FavoriteType) (int64, error)
}

// FavoritesCache holds rendered favorites listings per user.
type FavoritesCache interface {
	GetFavorites(ctx context.Context, userID string) ([]byte, bool, error)
	SetFavorites(ctx context.Context, userID string, payload []byte) error
	InvalidateUser(ctx context.Context, userID string) error
	InvalidateAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

type Service struct {
	store       dataStore
	cache       FavoritesCache
	logger      *zap.Logger
	defaultUser string
	concurrency int
	now         func() time.Time
}

type Option func(*Service)

// WithCache enables the favorites listing cache.
func WithCache(cache FavoritesCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithClock overrides the clock used for due-date badges.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(cfg config.Config, dataStore *store.PostgresStore, logger *zap.Logger, opts ...Option) *Service {
	return newService(cfg, dataStore, logger, opts...)
}

func newService(cfg config.Config, dataStore dataStore, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       dataStore,
		logger:      logger,
		defaultUser: strings.TrimSpace(cfg.DefaultUserID),
		concurrency: cfg.FavoritesConcurrency,
		now:         time.Now,
	}
	if s.defaultUser == "" {
		s.defaultUser = "default-user"
	}
	if s.concurrency <= 0 {
		s.concurrency = defaultFavoritesConcurrency
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PingCache reports the cache health. ok is false when no cache is configured.
func (s *Service) PingCache(ctx context.Context) (ok bool, err error) {
	if s.cache == nil {
		return false, nil
	}
	return true, s.cache.Ping(ctx)
}

func (s *Service) userID(raw string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return s.defaultUser
}

// entitiesChanged drops every cached favorites listing, since any of them may
// embed the entity that just changed.
func (s *Service) entitiesChanged(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("invalidate favorites cache", zap.Error(err))
	}
}

func (s *Service) favoritesChanged(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn("invalidate favorites cache", zap.String("user_id", userID), zap.Error(err))
	}
}
