package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"paradash/api/internal/store"
)

// Snapshot shapes stored in archives.archived_data.

type taskSnapshot struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	Status      store.TaskStatus   `json:"status"`
	Priority    *store.Priority    `json:"priority"`
	Energy      *store.Energy      `json:"energy"`
	Context     *store.TaskContext `json:"context"`
	Notes       *string            `json:"notes"`
	DueDate     *time.Time         `json:"dueDate"`
	Completed   bool               `json:"completed"`
	ProjectID   *int64             `json:"projectId"`
	AreaID      *int64             `json:"areaId"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

type resourceSnapshot struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Type        *string   `json:"type"`
	URL         *string   `json:"url"`
	ProjectID   *int64    `json:"projectId"`
	AreaID      *int64    `json:"areaId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type projectSnapshot struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description *string             `json:"description"`
	Status      store.ProjectStatus `json:"status"`
	Priority    *store.Priority     `json:"priority"`
	DueDate     *time.Time          `json:"dueDate"`
	AreaID      *int64              `json:"areaId"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Tasks       []taskSnapshot      `json:"tasks,omitempty"`
	Resources   []resourceSnapshot  `json:"resources,omitempty"`
}

type areaSnapshot struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description *string            `json:"description"`
	Priority    store.Priority     `json:"priority"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	Tasks       []taskSnapshot     `json:"tasks"`
	Resources   []resourceSnapshot `json:"resources"`
	Projects    []projectSnapshot  `json:"projects"`
}

func snapshotTask(task store.Task) taskSnapshot {
	return taskSnapshot{
		ID:          task.ID,
		Name:        task.Name,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		Energy:      task.Energy,
		Context:     task.Context,
		Notes:       task.Notes,
		DueDate:     task.DueDate,
		Completed:   task.Completed,
		ProjectID:   task.ProjectID,
		AreaID:      task.AreaID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func snapshotResource(resource store.Resource) resourceSnapshot {
	return resourceSnapshot{
		ID:          resource.ID,
		Name:        resource.Name,
		Description: resource.Description,
		Type:        resource.Type,
		URL:         resource.URL,
		ProjectID:   resource.ProjectID,
		AreaID:      resource.AreaID,
		CreatedAt:   resource.CreatedAt,
		UpdatedAt:   resource.UpdatedAt,
	}
}

func snapshotProject(project store.Project) projectSnapshot {
	return projectSnapshot{
		ID:          project.ID,
		Name:        project.Name,
		Description: project.Description,
		Status:      project.Status,
		Priority:    project.Priority,
		DueDate:     project.DueDate,
		AreaID:      project.AreaID,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
	}
}

func writeArchive(ctx context.Context, tx store.Tx, archiveType store.ArchiveType, originalID int64, name string, description *string, snapshot any) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", strings.ToLower(string(archiveType)), err)
	}
	_, err = tx.InsertArchive(ctx, store.Archive{
		Name:         name,
		Description:  description,
		Type:         archiveType,
		OriginalID:   originalID,
		ArchivedData: data,
	})
	return err
}

func archiveArea(ctx context.Context, tx store.Tx, area store.Area) error {
	tasks, err := tx.ListTasks(ctx, store.TaskFilter{AreaID: &area.ID})
	if err != nil {
		return err
	}
	resources, err := tx.ListResources(ctx, store.ResourceFilter{AreaID: &area.ID})
	if err != nil {
		return err
	}
	projects, err := tx.ListProjects(ctx, store.ProjectFilter{AreaID: &area.ID})
	if err != nil {
		return err
	}

	snapshot := areaSnapshot{
		ID:          area.ID,
		Name:        area.Name,
		Description: area.Description,
		Priority:    area.Priority,
		CreatedAt:   area.CreatedAt,
		UpdatedAt:   area.UpdatedAt,
		Tasks:       make([]taskSnapshot, 0, len(tasks)),
		Resources:   make([]resourceSnapshot, 0, len(resources)),
		Projects:    make([]projectSnapshot, 0, len(projects)),
	}
	for _, task := range tasks {
		snapshot.Tasks = append(snapshot.Tasks, snapshotTask(task))
	}
	for _, resource := range resources {
		snapshot.Resources = append(snapshot.Resources, snapshotResource(resource))
	}
	for _, project := range projects {
		snapshot.Projects = append(snapshot.Projects, snapshotProject(project))
	}
	return writeArchive(ctx, tx, store.ArchiveArea, area.ID, area.Name, area.Description, snapshot)
}

func archiveProject(ctx context.Context, tx store.Tx, project store.Project, tasks []store.Task, resources []store.Resource) error {
	snapshot := snapshotProject(project)
	snapshot.Tasks = make([]taskSnapshot, 0, len(tasks))
	for _, task := range tasks {
		snapshot.Tasks = append(snapshot.Tasks, snapshotTask(task))
	}
	snapshot.Resources = make([]resourceSnapshot, 0, len(resources))
	for _, resource := range resources {
		snapshot.Resources = append(snapshot.Resources, snapshotResource(resource))
	}
	return writeArchive(ctx, tx, store.ArchiveProject, project.ID, project.Name, project.Description, snapshot)
}

func archiveTask(ctx context.Context, tx store.Tx, task store.Task) error {
	return writeArchive(ctx, tx, store.ArchiveTask, task.ID, task.Name, task.Description, snapshotTask(task))
}

func archiveResource(ctx context.Context, tx store.Tx, resource store.Resource) error {
	return writeArchive(ctx, tx, store.ArchiveResource, resource.ID, resource.Name, resource.Description, snapshotResource(resource))
}

func (s *Service) ListArchives(ctx context.Context, rawType string) ([]map[string]any, error) {
	var filter *store.ArchiveType
	if strings.TrimSpace(rawType) != "" {
		normalized, err := normalizeVocab("type", rawType, allowedArchiveTypes)
		if err != nil {
			return nil, err
		}
		archiveType := store.ArchiveType(normalized)
		filter = &archiveType
	}
	archives, err := s.store.ListArchives(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(archives))
	for _, archive := range archives {
		items = append(items, archivePayload(archive))
	}
	return items, nil
}

func invalidArchiveIDs() *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_IDS", "Invalid or empty ids array", nil)
}

// DeleteArchives permanently removes archive rows. Unknown ids are ignored;
// the message reports how many rows were actually deleted.
func (s *Service) DeleteArchives(ctx context.Context, ids []flexID) (map[string]any, error) {
	if len(ids) == 0 {
		return nil, invalidArchiveIDs()
	}
	archiveIDs := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, invalidArchiveIDs()
		}
		archiveIDs = append(archiveIDs, int64(id))
	}
	count, err := s.store.DeleteArchives(ctx, archiveIDs)
	if err != nil {
		return nil, err
	}
	return map[string]any{"message": fmt.Sprintf("%d archive(s) permanently deleted", count)}, nil
}

// RestoreArchive recreates the archived entity under a new id and removes
// the archive row. Both happen in one transaction.
func (s *Service) RestoreArchive(ctx context.Context, archiveID int64) (map[string]any, error) {
	var (
		archiveType store.ArchiveType
		restored    map[string]any
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		archive, err := tx.GetArchive(ctx, archiveID)
		if err != nil {
			return notFound(err, "Archive not found")
		}
		archiveType = archive.Type

		switch archive.Type {
		case store.ArchiveProject:
			project, err := restoreProject(ctx, tx, archive)
			if err != nil {
				return err
			}
			restored = projectPayload(project)
		case store.ArchiveArea:
			area, err := restoreArea(ctx, tx, archive)
			if err != nil {
				return err
			}
			restored = areaPayload(area)
		case store.ArchiveTask:
			task, err := restoreTask(ctx, tx, archive)
			if err != nil {
				return err
			}
			restored = taskPayload(task, s.now())
		case store.ArchiveResource:
			resource, err := restoreResource(ctx, tx, archive)
			if err != nil {
				return err
			}
			restored = resourcePayload(resource)
		default:
			return domainError(http.StatusBadRequest, "UNKNOWN_ARCHIVE_TYPE", "Unknown archive type", nil)
		}
		return tx.DeleteArchive(ctx, archive.ID)
	})
	if err != nil {
		return nil, err
	}
	s.entitiesChanged(ctx)

	return map[string]any{
		"message":  fmt.Sprintf("%s restored successfully", strings.ToLower(string(archiveType))),
		"restored": restored,
	}, nil
}

func decodeSnapshot(archive store.Archive, target any) error {
	if len(archive.ArchivedData) == 0 {
		return nil
	}
	if err := json.Unmarshal(archive.ArchivedData, target); err != nil {
		return fmt.Errorf("decode %s archive %d: %w", strings.ToLower(string(archive.Type)), archive.ID, err)
	}
	return nil
}

// existingRef keeps a parent id only when the parent row still exists.
func existingRef(ctx context.Context, id *int64, exists func(context.Context, int64) (bool, error)) (*int64, error) {
	if id == nil {
		return nil, nil
	}
	found, err := exists(ctx, *id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return id, nil
}

// validOrNil drops vocabulary values the current schema would reject.
func validOrNil[T ~string](value *T, allowed map[string]struct{}) *T {
	if value == nil {
		return nil
	}
	if _, ok := allowed[string(*value)]; !ok {
		return nil
	}
	return value
}

func validOr[T ~string](value T, allowed map[string]struct{}, fallback T) T {
	if _, ok := allowed[string(value)]; !ok {
		return fallback
	}
	return value
}

func restoreProject(ctx context.Context, tx store.Tx, archive store.Archive) (store.Project, error) {
	var snapshot projectSnapshot
	if err := decodeSnapshot(archive, &snapshot); err != nil {
		return store.Project{}, err
	}
	areaID, err := existingRef(ctx, snapshot.AreaID, tx.AreaExists)
	if err != nil {
		return store.Project{}, err
	}
	project, err := tx.InsertProject(ctx, store.Project{
		Name:        archive.Name,
		Description: archive.Description,
		Status:      validOr(snapshot.Status, allowedProjectStatus, store.ProjectInProgress),
		Priority:    validOrNil(snapshot.Priority, allowedPriorities),
		DueDate:     snapshot.DueDate,
		AreaID:      areaID,
	})
	if err != nil {
		return store.Project{}, err
	}

	for _, item := range snapshot.Tasks {
		task := taskFromSnapshot(item)
		task.ProjectID = &project.ID
		if task.AreaID, err = existingRef(ctx, item.AreaID, tx.AreaExists); err != nil {
			return store.Project{}, err
		}
		if _, err := tx.InsertTask(ctx, task); err != nil {
			return store.Project{}, err
		}
	}
	for _, item := range snapshot.Resources {
		resource := resourceFromSnapshot(item)
		resource.ProjectID = &project.ID
		if resource.AreaID, err = existingRef(ctx, item.AreaID, tx.AreaExists); err != nil {
			return store.Project{}, err
		}
		if _, err := tx.InsertResource(ctx, resource); err != nil {
			return store.Project{}, err
		}
	}
	// Reload so the open task count reflects the recreated tasks.
	return tx.GetProject(ctx, project.ID)
}

func restoreArea(ctx context.Context, tx store.Tx, archive store.Archive) (store.Area, error) {
	var snapshot areaSnapshot
	if err := decodeSnapshot(archive, &snapshot); err != nil {
		return store.Area{}, err
	}
	area, err := tx.InsertArea(ctx, store.Area{
		Name:        archive.Name,
		Description: archive.Description,
		Priority:    validOr(snapshot.Priority, allowedPriorities, store.PriorityP2),
	})
	if err != nil {
		return store.Area{}, err
	}

	projectIDs := make([]int64, 0, len(snapshot.Projects))
	for _, project := range snapshot.Projects {
		projectIDs = append(projectIDs, project.ID)
	}
	taskIDs := make([]int64, 0, len(snapshot.Tasks))
	for _, task := range snapshot.Tasks {
		taskIDs = append(taskIDs, task.ID)
	}
	resourceIDs := make([]int64, 0, len(snapshot.Resources))
	for _, resource := range snapshot.Resources {
		resourceIDs = append(resourceIDs, resource.ID)
	}
	if err := tx.ReattachArea(ctx, area.ID, projectIDs, taskIDs, resourceIDs); err != nil {
		return store.Area{}, err
	}
	return tx.GetArea(ctx, area.ID)
}

func restoreTask(ctx context.Context, tx store.Tx, archive store.Archive) (store.Task, error) {
	var snapshot taskSnapshot
	if err := decodeSnapshot(archive, &snapshot); err != nil {
		return store.Task{}, err
	}
	task := taskFromSnapshot(snapshot)
	task.Name = archive.Name
	task.Description = archive.Description

	var err error
	if task.ProjectID, err = existingRef(ctx, snapshot.ProjectID, tx.ProjectExists); err != nil {
		return store.Task{}, err
	}
	if task.AreaID, err = existingRef(ctx, snapshot.AreaID, tx.AreaExists); err != nil {
		return store.Task{}, err
	}
	return tx.InsertTask(ctx, task)
}

func restoreResource(ctx context.Context, tx store.Tx, archive store.Archive) (store.Resource, error) {
	var snapshot resourceSnapshot
	if err := decodeSnapshot(archive, &snapshot); err != nil {
		return store.Resource{}, err
	}
	resource := resourceFromSnapshot(snapshot)
	resource.Name = archive.Name
	resource.Description = archive.Description

	var err error
	if resource.ProjectID, err = existingRef(ctx, snapshot.ProjectID, tx.ProjectExists); err != nil {
		return store.Resource{}, err
	}
	if resource.AreaID, err = existingRef(ctx, snapshot.AreaID, tx.AreaExists); err != nil {
		return store.Resource{}, err
	}
	return tx.InsertResource(ctx, resource)
}

func taskFromSnapshot(snapshot taskSnapshot) store.Task {
	return store.Task{
		Name:        snapshot.Name,
		Description: snapshot.Description,
		Status:      validOr(snapshot.Status, allowedTaskStatus, store.TaskTodo),
		Priority:    validOrNil(snapshot.Priority, allowedPriorities),
		Energy:      validOrNil(snapshot.Energy, allowedEnergy),
		Context:     validOrNil(snapshot.Context, allowedContexts),
		Notes:       snapshot.Notes,
		DueDate:     snapshot.DueDate,
		Completed:   snapshot.Completed,
	}
}

func resourceFromSnapshot(snapshot resourceSnapshot) store.Resource {
	return store.Resource{
		Name:        snapshot.Name,
		Description: snapshot.Description,
		Type:        snapshot.Type,
		URL:         snapshot.URL,
	}
}
