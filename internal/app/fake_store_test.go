package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"paradash/api/internal/config"
	"paradash/api/internal/store"
)

// fakeStore satisfies both dataStore and store.Tx. Unset hooks fall back to
// "not found" for lookups and empty results for lists.
type fakeStore struct {
	pingFn  func(context.Context) error
	inTxFn  func(context.Context, func(store.Tx) error) error
	txCalls int

	listAreasFn  func(context.Context) ([]store.Area, error)
	getAreaFn    func(context.Context, int64) (store.Area, error)
	insertAreaFn func(context.Context, store.Area) (store.Area, error)
	updateAreaFn func(context.Context, int64, store.AreaPatch) (store.Area, error)
	deleteAreaFn func(context.Context, int64) error
	areaExistsFn func(context.Context, int64) (bool, error)
	reattachFn   func(context.Context, int64, []int64, []int64, []int64) error

	listProjectsFn  func(context.Context, store.ProjectFilter) ([]store.Project, error)
	getProjectFn    func(context.Context, int64) (store.Project, error)
	insertProjectFn func(context.Context, store.Project) (store.Project, error)
	updateProjectFn func(context.Context, int64, store.ProjectPatch) (store.Project, error)
	deleteProjectFn func(context.Context, int64) error
	projectExistsFn func(context.Context, int64) (bool, error)

	listTasksFn  func(context.Context, store.TaskFilter) ([]store.Task, error)
	getTaskFn    func(context.Context, int64) (store.Task, error)
	insertTaskFn func(context.Context, store.Task) (store.Task, error)
	updateTaskFn func(context.Context, int64, store.TaskPatch) (store.Task, error)
	deleteTaskFn func(context.Context, int64) error

	listResourcesFn  func(context.Context, store.ResourceFilter) ([]store.Resource, error)
	getResourceFn    func(context.Context, int64) (store.Resource, error)
	insertResourceFn func(context.Context, store.Resource) (store.Resource, error)
	updateResourceFn func(context.Context, int64, store.ResourcePatch) (store.Resource, error)
	deleteResourceFn func(context.Context, int64) error

	listArchivesFn   func(context.Context, *store.ArchiveType) ([]store.Archive, error)
	getArchiveFn     func(context.Context, int64) (store.Archive, error)
	insertArchiveFn  func(context.Context, store.Archive) (store.Archive, error)
	deleteArchiveFn  func(context.Context, int64) error
	deleteArchivesFn func(context.Context, []int64) (int64, error)

	listFavoritesFn          func(context.Context, string) ([]store.Favorite, error)
	getFavoriteFn            func(context.Context, string, int64, store.FavoriteType) (store.Favorite, error)
	insertFavoriteFn         func(context.Context, store.Favorite) (store.Favorite, error)
	deleteFavoriteFn         func(context.Context, string, int64, store.FavoriteType) (int64, error)
	deleteFavoritesForItemFn func(context.Context, store.FavoriteType, ...int64) (int64, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	f.txCalls++
	if f.inTxFn != nil {
		return f.inTxFn(ctx, fn)
	}
	return fn(f)
}

func (f *fakeStore) ListAreas(ctx context.Context) ([]store.Area, error) {
	if f.listAreasFn != nil {
		return f.listAreasFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetArea(ctx context.Context, id int64) (store.Area, error) {
	if f.getAreaFn != nil {
		return f.getAreaFn(ctx, id)
	}
	return store.Area{}, sql.ErrNoRows
}
func (f *fakeStore) InsertArea(ctx context.Context, item store.Area) (store.Area, error) {
	if f.insertAreaFn != nil {
		return f.insertAreaFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) UpdateArea(ctx context.Context, id int64, patch store.AreaPatch) (store.Area, error) {
	if f.updateAreaFn != nil {
		return f.updateAreaFn(ctx, id, patch)
	}
	return store.Area{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteArea(ctx context.Context, id int64) error {
	if f.deleteAreaFn != nil {
		return f.deleteAreaFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) AreaExists(ctx context.Context, id int64) (bool, error) {
	if f.areaExistsFn != nil {
		return f.areaExistsFn(ctx, id)
	}
	return false, nil
}
func (f *fakeStore) ReattachArea(ctx context.Context, areaID int64, projectIDs, taskIDs, resourceIDs []int64) error {
	if f.reattachFn != nil {
		return f.reattachFn(ctx, areaID, projectIDs, taskIDs, resourceIDs)
	}
	return nil
}

func (f *fakeStore) ListProjects(ctx context.Context, filter store.ProjectFilter) ([]store.Project, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) GetProject(ctx context.Context, id int64) (store.Project, error) {
	if f.getProjectFn != nil {
		return f.getProjectFn(ctx, id)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) InsertProject(ctx context.Context, item store.Project) (store.Project, error) {
	if f.insertProjectFn != nil {
		return f.insertProjectFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) UpdateProject(ctx context.Context, id int64, patch store.ProjectPatch) (store.Project, error) {
	if f.updateProjectFn != nil {
		return f.updateProjectFn(ctx, id, patch)
	}
	return store.Project{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteProject(ctx context.Context, id int64) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) ProjectExists(ctx context.Context, id int64) (bool, error) {
	if f.projectExistsFn != nil {
		return f.projectExistsFn(ctx, id)
	}
	return false, nil
}

func (f *fakeStore) ListTasks(ctx context.Context, filter store.TaskFilter) ([]store.Task, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) GetTask(ctx context.Context, id int64) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, id)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) InsertTask(ctx context.Context, item store.Task) (store.Task, error) {
	if f.insertTaskFn != nil {
		return f.insertTaskFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) UpdateTask(ctx context.Context, id int64, patch store.TaskPatch) (store.Task, error) {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, id, patch)
	}
	return store.Task{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteTask(ctx context.Context, id int64) error {
	if f.deleteTaskFn != nil {
		return f.deleteTaskFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListResources(ctx context.Context, filter store.ResourceFilter) ([]store.Resource, error) {
	if f.listResourcesFn != nil {
		return f.listResourcesFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) GetResource(ctx context.Context, id int64) (store.Resource, error) {
	if f.getResourceFn != nil {
		return f.getResourceFn(ctx, id)
	}
	return store.Resource{}, sql.ErrNoRows
}
func (f *fakeStore) InsertResource(ctx context.Context, item store.Resource) (store.Resource, error) {
	if f.insertResourceFn != nil {
		return f.insertResourceFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) UpdateResource(ctx context.Context, id int64, patch store.ResourcePatch) (store.Resource, error) {
	if f.updateResourceFn != nil {
		return f.updateResourceFn(ctx, id, patch)
	}
	return store.Resource{}, sql.ErrNoRows
}
func (f *fakeStore) DeleteResource(ctx context.Context, id int64) error {
	if f.deleteResourceFn != nil {
		return f.deleteResourceFn(ctx, id)
	}
	return nil
}

func (f *fakeStore) ListArchives(ctx context.Context, archiveType *store.ArchiveType) ([]store.Archive, error) {
	if f.listArchivesFn != nil {
		return f.listArchivesFn(ctx, archiveType)
	}
	return nil, nil
}
func (f *fakeStore) GetArchive(ctx context.Context, id int64) (store.Archive, error) {
	if f.getArchiveFn != nil {
		return f.getArchiveFn(ctx, id)
	}
	return store.Archive{}, sql.ErrNoRows
}
func (f *fakeStore) InsertArchive(ctx context.Context, item store.Archive) (store.Archive, error) {
	if f.insertArchiveFn != nil {
		return f.insertArchiveFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) DeleteArchive(ctx context.Context, id int64) error {
	if f.deleteArchiveFn != nil {
		return f.deleteArchiveFn(ctx, id)
	}
	return nil
}
func (f *fakeStore) DeleteArchives(ctx context.Context, ids []int64) (int64, error) {
	if f.deleteArchivesFn != nil {
		return f.deleteArchivesFn(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (f *fakeStore) ListFavorites(ctx context.Context, userID string) ([]store.Favorite, error) {
	if f.listFavoritesFn != nil {
		return f.listFavoritesFn(ctx, userID)
	}
	return nil, nil
}
func (f *fakeStore) GetFavorite(ctx context.Context, userID string, itemID int64, itemType store.FavoriteType) (store.Favorite, error) {
	if f.getFavoriteFn != nil {
		return f.getFavoriteFn(ctx, userID, itemID, itemType)
	}
	return store.Favorite{}, sql.ErrNoRows
}
func (f *fakeStore) InsertFavorite(ctx context.Context, item store.Favorite) (store.Favorite, error) {
	if f.insertFavoriteFn != nil {
		return f.insertFavoriteFn(ctx, item)
	}
	item.ID = 1
	return item, nil
}
func (f *fakeStore) DeleteFavorite(ctx context.Context, userID string, itemID int64, itemType store.FavoriteType) (int64, error) {
	if f.deleteFavoriteFn != nil {
		return f.deleteFavoriteFn(ctx, userID, itemID, itemType)
	}
	return 0, nil
}
func (f *fakeStore) DeleteFavoritesForItem(ctx context.Context, itemType store.FavoriteType, itemIDs ...int64) (int64, error) {
	if f.deleteFavoritesForItemFn != nil {
		return f.deleteFavoritesForItemFn(ctx, itemType, itemIDs...)
	}
	return 0, nil
}

func (f *fakeStore) ResetAll(context.Context) error {
	return nil
}

// fakeCache is an in-memory FavoritesCache that records invalidations.
type fakeCache struct {
	mu             sync.Mutex
	entries        map[string][]byte
	invalidated    []string
	invalidateAlls int
	pingErr        error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) GetFavorites(_ context.Context, userID string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[userID]
	return raw, ok, nil
}

func (c *fakeCache) SetFavorites(_ context.Context, userID string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = payload
	return nil
}

func (c *fakeCache) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

func (c *fakeCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.invalidateAlls++
	return nil
}

func (c *fakeCache) Ping(context.Context) error {
	return c.pingErr
}

var testNow = time.Date(2025, 9, 8, 15, 0, 0, 0, time.UTC)

func newTestService(fs *fakeStore, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return newService(config.Config{DefaultUserID: "default-user", FavoritesConcurrency: 4}, fs, nil, opts...)
}

func date(value string) *time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return &parsed
}

func ptr[T any](value T) *T {
	return &value
}

var _ store.Tx = (*fakeStore)(nil)
var _ dataStore = (*fakeStore)(nil)
