package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicate is returned when an insert hits a unique constraint.
	ErrDuplicate = errors.New("duplicate row")
	// ErrMissingReference is returned when a write points at a parent row
	// that does not exist.
	ErrMissingReference = errors.New("referenced row does not exist")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// Tx is the subset of store operations available inside InTx.
type Tx interface {
	GetArea(context.Context, int64) (Area, error)
	GetProject(context.Context, int64) (Project, error)
	GetTask(context.Context, int64) (Task, error)
	GetResource(context.Context, int64) (Resource, error)
	ListProjects(context.Context, ProjectFilter) ([]Project, error)
	ListTasks(context.Context, TaskFilter) ([]Task, error)
	ListResources(context.Context, ResourceFilter) ([]Resource, error)
	InsertArea(context.Context, Area) (Area, error)
	InsertProject(context.Context, Project) (Project, error)
	InsertTask(context.Context, Task) (Task, error)
	InsertResource(context.Context, Resource) (Resource, error)
	DeleteArea(context.Context, int64) error
	DeleteProject(context.Context, int64) error
	DeleteTask(context.Context, int64) error
	DeleteResource(context.Context, int64) error
	AreaExists(context.Context, int64) (bool, error)
	ProjectExists(context.Context, int64) (bool, error)
	ReattachArea(context.Context, int64, []int64, []int64, []int64) error
	GetArchive(context.Context, int64) (Archive, error)
	InsertArchive(context.Context, Archive) (Archive, error)
	DeleteArchive(context.Context, int64) error
	DeleteFavoritesForItem(context.Context, FavoriteType, ...int64) (int64, error)
	ResetAll(context.Context) error
}

type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Areas

const selectArea = `
	SELECT a.id, a.name, a.description, a.priority, a.created_at, a.updated_at,
		(SELECT COUNT(*) FROM tasks t WHERE t.area_id = a.id AND NOT t.completed),
		(SELECT COUNT(*) FROM projects p WHERE p.area_id = a.id)
	FROM areas a
`

func scanArea(row scanner) (Area, error) {
	var (
		item        Area
		description sql.NullString
		priority    string
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&priority,
		&item.CreatedAt,
		&item.UpdatedAt,
		&item.OpenTaskCount,
		&item.ProjectCount,
	); err != nil {
		return Area{}, err
	}
	item.Description = stringPtr(description)
	item.Priority = Priority(priority)
	return item, nil
}

func (s *PostgresStore) ListAreas(ctx context.Context) ([]Area, error) {
	rows, err := s.q.QueryContext(ctx, selectArea+` ORDER BY a.priority ASC, a.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list areas: %w", err)
	}
	defer rows.Close()

	items := make([]Area, 0)
	for rows.Next() {
		item, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scan area: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate areas: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArea(ctx context.Context, areaID int64) (Area, error) {
	item, err := scanArea(s.q.QueryRowContext(ctx, selectArea+` WHERE a.id = $1`, areaID))
	if err != nil {
		return Area{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertArea(ctx context.Context, item Area) (Area, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO areas (name, description, priority)
		VALUES ($1, $2, $3)
		RETURNING id
	`, item.Name, nullableText(item.Description), string(item.Priority)).Scan(&id)
	if err != nil {
		return Area{}, fmt.Errorf("insert area: %w", err)
	}
	return s.GetArea(ctx, id)
}

func (s *PostgresStore) UpdateArea(ctx context.Context, areaID int64, patch AreaPatch) (Area, error) {
	var u update
	if patch.Name != nil {
		u.set("name", *patch.Name)
	}
	if patch.Description != nil {
		u.set("description", nullableText(*patch.Description))
	}
	if patch.Priority != nil {
		u.set("priority", string(*patch.Priority))
	}
	if err := s.applyUpdate(ctx, "areas", areaID, u); err != nil {
		return Area{}, fmt.Errorf("update area: %w", err)
	}
	return s.GetArea(ctx, areaID)
}

func (s *PostgresStore) DeleteArea(ctx context.Context, areaID int64) error {
	return s.deleteByID(ctx, "areas", areaID)
}

func (s *PostgresStore) AreaExists(ctx context.Context, areaID int64) (bool, error) {
	return s.exists(ctx, "areas", areaID)
}

// ReattachArea points orphaned children back at a restored area. Rows that
// were deleted or moved to another area in the meantime are left alone.
func (s *PostgresStore) ReattachArea(ctx context.Context, areaID int64, projectIDs, taskIDs, resourceIDs []int64) error {
	targets := []struct {
		table string
		ids   []int64
	}{
		{"projects", projectIDs},
		{"tasks", taskIDs},
		{"resources", resourceIDs},
	}
	for _, target := range targets {
		if len(target.ids) == 0 {
			continue
		}
		query := fmt.Sprintf(`UPDATE %s SET area_id=$1 WHERE id = ANY($2) AND area_id IS NULL`, target.table)
		if _, err := s.q.ExecContext(ctx, query, areaID, target.ids); err != nil {
			return fmt.Errorf("reattach %s: %w", target.table, err)
		}
	}
	return nil
}

// Projects

const selectProject = `
	SELECT p.id, p.name, p.description, p.status, p.priority, p.due_date, p.area_id,
		p.created_at, p.updated_at, a.name,
		(SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id AND NOT t.completed)
	FROM projects p
	LEFT JOIN areas a ON a.id = p.area_id
`

func scanProject(row scanner) (Project, error) {
	var (
		item        Project
		description sql.NullString
		status      string
		priority    sql.NullString
		dueDate     sql.NullTime
		areaID      sql.NullInt64
		areaName    sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&status,
		&priority,
		&dueDate,
		&areaID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&areaName,
		&item.OpenTaskCount,
	); err != nil {
		return Project{}, err
	}
	item.Description = stringPtr(description)
	item.Status = ProjectStatus(status)
	item.Priority = enumPtr[Priority](priority)
	item.DueDate = timePtr(dueDate)
	item.AreaID = int64Ptr(areaID)
	item.Area = refFrom(areaID, areaName)
	return item, nil
}

func (s *PostgresStore) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	var w where
	if filter.AreaID != nil {
		w.add("p.area_id", *filter.AreaID)
	}
	rows, err := s.q.QueryContext(ctx, selectProject+w.String()+` ORDER BY p.updated_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]Project, 0)
	for rows.Next() {
		item, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID int64) (Project, error) {
	return scanProject(s.q.QueryRowContext(ctx, selectProject+` WHERE p.id = $1`, projectID))
}

func (s *PostgresStore) InsertProject(ctx context.Context, item Project) (Project, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, status, priority, due_date, area_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		item.Name,
		nullableText(item.Description),
		string(item.Status),
		nullableText(item.Priority),
		nullableTime(item.DueDate),
		nullableInt(item.AreaID),
	).Scan(&id)
	if err != nil {
		return Project{}, fmt.Errorf("insert project: %w", classify(err))
	}
	return s.GetProject(ctx, id)
}

func (s *PostgresStore) UpdateProject(ctx context.Context, projectID int64, patch ProjectPatch) (Project, error) {
	var u update
	if patch.Name != nil {
		u.set("name", *patch.Name)
	}
	if patch.Description != nil {
		u.set("description", nullableText(*patch.Description))
	}
	if patch.Status != nil {
		u.set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		u.set("priority", nullableText(*patch.Priority))
	}
	if patch.DueDate != nil {
		u.set("due_date", nullableTime(*patch.DueDate))
	}
	if patch.AreaID != nil {
		u.set("area_id", nullableInt(*patch.AreaID))
	}
	if err := s.applyUpdate(ctx, "projects", projectID, u); err != nil {
		return Project{}, fmt.Errorf("update project: %w", err)
	}
	return s.GetProject(ctx, projectID)
}

func (s *PostgresStore) DeleteProject(ctx context.Context, projectID int64) error {
	return s.deleteByID(ctx, "projects", projectID)
}

func (s *PostgresStore) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	return s.exists(ctx, "projects", projectID)
}

// Tasks

const selectTask = `
	SELECT t.id, t.name, t.description, t.status, t.priority, t.energy, t.context, t.notes,
		t.due_date, t.completed, t.project_id, t.area_id, t.created_at, t.updated_at,
		p.name, a.name
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id
	LEFT JOIN areas a ON a.id = t.area_id
`

func scanTask(row scanner) (Task, error) {
	var (
		item        Task
		description sql.NullString
		status      string
		priority    sql.NullString
		energy      sql.NullString
		taskContext sql.NullString
		notes       sql.NullString
		dueDate     sql.NullTime
		projectID   sql.NullInt64
		areaID      sql.NullInt64
		projectName sql.NullString
		areaName    sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&status,
		&priority,
		&energy,
		&taskContext,
		&notes,
		&dueDate,
		&item.Completed,
		&projectID,
		&areaID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&projectName,
		&areaName,
	); err != nil {
		return Task{}, err
	}
	item.Description = stringPtr(description)
	item.Status = TaskStatus(status)
	item.Priority = enumPtr[Priority](priority)
	item.Energy = enumPtr[Energy](energy)
	item.Context = enumPtr[TaskContext](taskContext)
	item.Notes = stringPtr(notes)
	item.DueDate = timePtr(dueDate)
	item.ProjectID = int64Ptr(projectID)
	item.AreaID = int64Ptr(areaID)
	item.Project = refFrom(projectID, projectName)
	item.Area = refFrom(areaID, areaName)
	return item, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	var w where
	if filter.ProjectID != nil {
		w.add("t.project_id", *filter.ProjectID)
	}
	if filter.AreaID != nil {
		w.add("t.area_id", *filter.AreaID)
	}
	query := selectTask + w.String() + ` ORDER BY t.priority ASC NULLS LAST, t.due_date ASC NULLS LAST, t.created_at DESC`
	rows, err := s.q.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID int64) (Task, error) {
	return scanTask(s.q.QueryRowContext(ctx, selectTask+` WHERE t.id = $1`, taskID))
}

func (s *PostgresStore) InsertTask(ctx context.Context, item Task) (Task, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO tasks (name, description, status, priority, energy, context, notes, due_date, completed, project_id, area_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`,
		item.Name,
		nullableText(item.Description),
		string(item.Status),
		nullableText(item.Priority),
		nullableText(item.Energy),
		nullableText(item.Context),
		nullableText(item.Notes),
		nullableTime(item.DueDate),
		item.Completed,
		nullableInt(item.ProjectID),
		nullableInt(item.AreaID),
	).Scan(&id)
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", classify(err))
	}
	return s.GetTask(ctx, id)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, taskID int64, patch TaskPatch) (Task, error) {
	var u update
	if patch.Name != nil {
		u.set("name", *patch.Name)
	}
	if patch.Description != nil {
		u.set("description", nullableText(*patch.Description))
	}
	if patch.Status != nil {
		u.set("status", string(*patch.Status))
	}
	if patch.Priority != nil {
		u.set("priority", nullableText(*patch.Priority))
	}
	if patch.Energy != nil {
		u.set("energy", nullableText(*patch.Energy))
	}
	if patch.Context != nil {
		u.set("context", nullableText(*patch.Context))
	}
	if patch.Notes != nil {
		u.set("notes", nullableText(*patch.Notes))
	}
	if patch.DueDate != nil {
		u.set("due_date", nullableTime(*patch.DueDate))
	}
	if patch.Completed != nil {
		u.set("completed", *patch.Completed)
	}
	if patch.ProjectID != nil {
		u.set("project_id", nullableInt(*patch.ProjectID))
	}
	if patch.AreaID != nil {
		u.set("area_id", nullableInt(*patch.AreaID))
	}
	if err := s.applyUpdate(ctx, "tasks", taskID, u); err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return s.GetTask(ctx, taskID)
}

func (s *PostgresStore) DeleteTask(ctx context.Context, taskID int64) error {
	return s.deleteByID(ctx, "tasks", taskID)
}

// Resources

const selectResource = `
	SELECT r.id, r.name, r.description, r.type, r.url, r.project_id, r.area_id,
		r.created_at, r.updated_at, p.name, a.name
	FROM resources r
	LEFT JOIN projects p ON p.id = r.project_id
	LEFT JOIN areas a ON a.id = r.area_id
`

func scanResource(row scanner) (Resource, error) {
	var (
		item         Resource
		description  sql.NullString
		resourceType sql.NullString
		url          sql.NullString
		projectID    sql.NullInt64
		areaID       sql.NullInt64
		projectName  sql.NullString
		areaName     sql.NullString
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&resourceType,
		&url,
		&projectID,
		&areaID,
		&item.CreatedAt,
		&item.UpdatedAt,
		&projectName,
		&areaName,
	); err != nil {
		return Resource{}, err
	}
	item.Description = stringPtr(description)
	item.Type = stringPtr(resourceType)
	item.URL = stringPtr(url)
	item.ProjectID = int64Ptr(projectID)
	item.AreaID = int64Ptr(areaID)
	item.Project = refFrom(projectID, projectName)
	item.Area = refFrom(areaID, areaName)
	return item, nil
}

func (s *PostgresStore) ListResources(ctx context.Context, filter ResourceFilter) ([]Resource, error) {
	var w where
	if filter.ProjectID != nil {
		w.add("r.project_id", *filter.ProjectID)
	}
	if filter.AreaID != nil {
		w.add("r.area_id", *filter.AreaID)
	}
	rows, err := s.q.QueryContext(ctx, selectResource+w.String()+` ORDER BY r.created_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	items := make([]Resource, 0)
	for rows.Next() {
		item, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetResource(ctx context.Context, resourceID int64) (Resource, error) {
	return scanResource(s.q.QueryRowContext(ctx, selectResource+` WHERE r.id = $1`, resourceID))
}

func (s *PostgresStore) InsertResource(ctx context.Context, item Resource) (Resource, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO resources (name, description, type, url, project_id, area_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		item.Name,
		nullableText(item.Description),
		nullableText(item.Type),
		nullableText(item.URL),
		nullableInt(item.ProjectID),
		nullableInt(item.AreaID),
	).Scan(&id)
	if err != nil {
		return Resource{}, fmt.Errorf("insert resource: %w", classify(err))
	}
	return s.GetResource(ctx, id)
}

func (s *PostgresStore) UpdateResource(ctx context.Context, resourceID int64, patch ResourcePatch) (Resource, error) {
	var u update
	if patch.Name != nil {
		u.set("name", *patch.Name)
	}
	if patch.Description != nil {
		u.set("description", nullableText(*patch.Description))
	}
	if patch.Type != nil {
		u.set("type", nullableText(*patch.Type))
	}
	if patch.URL != nil {
		u.set("url", nullableText(*patch.URL))
	}
	if patch.ProjectID != nil {
		u.set("project_id", nullableInt(*patch.ProjectID))
	}
	if patch.AreaID != nil {
		u.set("area_id", nullableInt(*patch.AreaID))
	}
	if err := s.applyUpdate(ctx, "resources", resourceID, u); err != nil {
		return Resource{}, fmt.Errorf("update resource: %w", err)
	}
	return s.GetResource(ctx, resourceID)
}

func (s *PostgresStore) DeleteResource(ctx context.Context, resourceID int64) error {
	return s.deleteByID(ctx, "resources", resourceID)
}

// Archives

const selectArchive = `
	SELECT id, name, description, type, original_id, archived_data, archived_at
	FROM archives
`

func scanArchive(row scanner) (Archive, error) {
	var (
		item        Archive
		description sql.NullString
		archiveType string
		data        []byte
	)
	if err := row.Scan(
		&item.ID,
		&item.Name,
		&description,
		&archiveType,
		&item.OriginalID,
		&data,
		&item.ArchivedAt,
	); err != nil {
		return Archive{}, err
	}
	item.Description = stringPtr(description)
	item.Type = ArchiveType(archiveType)
	item.ArchivedData = append([]byte(nil), data...)
	return item, nil
}

func (s *PostgresStore) ListArchives(ctx context.Context, archiveType *ArchiveType) ([]Archive, error) {
	var w where
	if archiveType != nil {
		w.add("type", string(*archiveType))
	}
	rows, err := s.q.QueryContext(ctx, selectArchive+w.String()+` ORDER BY archived_at DESC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	defer rows.Close()

	items := make([]Archive, 0)
	for rows.Next() {
		item, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archives: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArchive(ctx context.Context, archiveID int64) (Archive, error) {
	return scanArchive(s.q.QueryRowContext(ctx, selectArchive+` WHERE id = $1`, archiveID))
}

func (s *PostgresStore) InsertArchive(ctx context.Context, item Archive) (Archive, error) {
	data := string(item.ArchivedData)
	if data == "" {
		data = "{}"
	}
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO archives (name, description, type, original_id, archived_data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING id, archived_at
	`, item.Name, nullableText(item.Description), string(item.Type), item.OriginalID, data).Scan(&item.ID, &item.ArchivedAt)
	if err != nil {
		return Archive{}, fmt.Errorf("insert archive: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteArchive(ctx context.Context, archiveID int64) error {
	return s.deleteByID(ctx, "archives", archiveID)
}

func (s *PostgresStore) DeleteArchives(ctx context.Context, archiveIDs []int64) (int64, error) {
	result, err := s.q.ExecContext(ctx, `DELETE FROM archives WHERE id = ANY($1)`, archiveIDs)
	if err != nil {
		return 0, fmt.Errorf("delete archives: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete archives: %w", err)
	}
	return count, nil
}

// Favorites

const selectFavorite = `SELECT id, user_id, item_id, item_type, created_at FROM favorites`

func scanFavorite(row scanner) (Favorite, error) {
	var (
		item     Favorite
		itemType string
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.ItemID, &itemType, &item.CreatedAt); err != nil {
		return Favorite{}, err
	}
	item.ItemType = FavoriteType(itemType)
	return item, nil
}

func (s *PostgresStore) ListFavorites(ctx context.Context, userID string) ([]Favorite, error) {
	rows, err := s.q.QueryContext(ctx, selectFavorite+` WHERE user_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	items := make([]Favorite, 0)
	for rows.Next() {
		item, err := scanFavorite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetFavorite(ctx context.Context, userID string, itemID int64, itemType FavoriteType) (Favorite, error) {
	return scanFavorite(s.q.QueryRowContext(ctx,
		selectFavorite+` WHERE user_id = $1 AND item_id = $2 AND item_type = $3`,
		userID, itemID, string(itemType),
	))
}

func (s *PostgresStore) InsertFavorite(ctx context.Context, item Favorite) (Favorite, error) {
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO favorites (user_id, item_id, item_type)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, item.UserID, item.ItemID, string(item.ItemType)).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		if err := classify(err); errors.Is(err, ErrDuplicate) {
			return Favorite{}, err
		}
		return Favorite{}, fmt.Errorf("insert favorite: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) DeleteFavorite(ctx context.Context, userID string, itemID int64, itemType FavoriteType) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND item_id = $2 AND item_type = $3
	`, userID, itemID, string(itemType))
	if err != nil {
		return 0, fmt.Errorf("delete favorite: %w", err)
	}
	return result.RowsAffected()
}

// DeleteFavoritesForItem removes every user's pin on the given items.
func (s *PostgresStore) DeleteFavoritesForItem(ctx context.Context, itemType FavoriteType, itemIDs ...int64) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM favorites WHERE item_type = $1 AND item_id = ANY($2)
	`, string(itemType), itemIDs)
	if err != nil {
		return 0, fmt.Errorf("delete favorites for %s: %w", strings.ToLower(string(itemType)), err)
	}
	return result.RowsAffected()
}

// Maintenance

// ResetAll empties every PARA table and restarts identities.
func (s *PostgresStore) ResetAll(ctx context.Context) error {
	_, err := s.q.ExecContext(ctx, `
		TRUNCATE favorites, tasks, resources, projects, areas, archives RESTART IDENTITY CASCADE
	`)
	if err != nil {
		return fmt.Errorf("reset tables: %w", err)
	}
	return nil
}

// Snapshot reads every table inside one repeatable-read, read-only
// transaction so the tables agree with each other.
func (s *PostgresStore) Snapshot(ctx context.Context) (Snapshot, error) {
	if _, nested := s.q.(*sql.Tx); nested {
		return s.snapshot(ctx)
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return Snapshot{}, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return (&PostgresStore{db: s.db, q: tx}).snapshot(ctx)
}

func (s *PostgresStore) snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Areas, err = s.ListAreas(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Projects, err = s.ListProjects(ctx, ProjectFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Tasks, err = s.ListTasks(ctx, TaskFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Resources, err = s.ListResources(ctx, ResourceFilter{}); err != nil {
		return Snapshot{}, err
	}
	if snap.Archives, err = s.ListArchives(ctx, nil); err != nil {
		return Snapshot{}, err
	}
	rows, err := s.q.QueryContext(ctx, selectFavorite+` ORDER BY id`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list all favorites: %w", err)
	}
	defer rows.Close()
	snap.Favorites = make([]Favorite, 0)
	for rows.Next() {
		item, err := scanFavorite(rows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("scan favorite: %w", err)
		}
		snap.Favorites = append(snap.Favorites, item)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate favorites: %w", err)
	}
	return snap, nil
}

// helpers

func (s *PostgresStore) deleteByID(ctx context.Context, table string, id int64) error {
	result, err := s.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) exists(ctx context.Context, table string, id int64) (bool, error) {
	var found bool
	err := s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id=$1)`, table), id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return found, nil
}

// applyUpdate runs the accumulated SET list against one row. An empty patch
// still bumps updated_at so callers can treat it as a touch.
func (s *PostgresStore) applyUpdate(ctx context.Context, table string, id int64, u update) error {
	sets := append(u.sets, "updated_at=NOW()")
	args := append(u.args, id)
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id=$%d`, table, strings.Join(sets, ", "), len(args))
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// classify maps constraint violations onto the package's sentinel errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case uniqueViolation:
		return ErrDuplicate
	case foreignKeyViolation:
		return ErrMissingReference
	}
	return err
}

type update struct {
	sets []string
	args []any
}

func (u *update) set(column string, value any) {
	u.args = append(u.args, value)
	u.sets = append(u.sets, fmt.Sprintf("%s=$%d", column, len(u.args)))
}

type where struct {
	conds []string
	args  []any
}

func (w *where) add(column string, value any) {
	w.args = append(w.args, value)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", column, len(w.args)))
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func stringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func enumPtr[T ~string](value sql.NullString) *T {
	if !value.Valid {
		return nil
	}
	v := T(value.String)
	return &v
}

func timePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	v := value.Time
	return &v
}

func int64Ptr(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func refFrom(id sql.NullInt64, name sql.NullString) *Ref {
	if !id.Valid {
		return nil
	}
	return &Ref{ID: id.Int64, Name: name.String}
}

func nullableText[T ~string](value *T) any {
	if value == nil {
		return nil
	}
	return string(*value)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}
