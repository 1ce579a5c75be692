package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"paradash/api/internal/store"
)

func (s *Service) ListProjects(ctx context.Context, areaID *int64) ([]map[string]any, error) {
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{AreaID: areaID})
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]map[string]any, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, project := range projects {
		g.Go(func() error {
			tasks, err := s.store.ListTasks(gctx, store.TaskFilter{ProjectID: &project.ID})
			if err != nil {
				return err
			}
			item := projectPayload(project)
			item["tasks"] = tasksPayload(tasks, now)
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) GetProject(ctx context.Context, projectID int64) (map[string]any, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, notFound(err, "Project not found")
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{ProjectID: &projectID})
	if err != nil {
		return nil, err
	}
	resources, err := s.store.ListResources(ctx, store.ResourceFilter{ProjectID: &projectID})
	if err != nil {
		return nil, err
	}

	item, err := s.projectWithArea(ctx, project)
	if err != nil {
		return nil, err
	}
	item["tasks"] = tasksPayload(tasks, s.now())
	item["resources"] = resourcesPayload(resources)
	return item, nil
}

// projectWithArea renders a project with its full area row in place of the
// short reference.
func (s *Service) projectWithArea(ctx context.Context, project store.Project) (map[string]any, error) {
	item := projectPayload(project)
	if project.AreaID == nil {
		return item, nil
	}
	area, err := s.store.GetArea(ctx, *project.AreaID)
	if err == nil {
		item["area"] = areaPayload(area)
	} else if !isNoRows(err) {
		return nil, err
	}
	return item, nil
}

func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (map[string]any, error) {
	patch, err := projectPatch(input, true)
	if err != nil {
		return nil, err
	}
	project := store.Project{
		Name:        *patch.Name,
		Description: deref(patch.Description),
		Status:      store.ProjectActive,
		Priority:    deref(patch.Priority),
		DueDate:     deref(patch.DueDate),
		AreaID:      deref(patch.AreaID),
	}
	if patch.Status != nil {
		project.Status = *patch.Status
	}

	created, err := s.store.InsertProject(ctx, project)
	if err != nil {
		return nil, err
	}
	s.entitiesChanged(ctx)

	item := projectPayload(created)
	item["tasks"] = []map[string]any{}
	return item, nil
}

func (s *Service) UpdateProject(ctx context.Context, projectID int64, input ProjectInput) (map[string]any, error) {
	patch, err := projectPatch(input, false)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.UpdateProject(ctx, projectID, patch); err != nil {
		return nil, notFound(err, "Project not found")
	}
	s.entitiesChanged(ctx)
	return s.GetProject(ctx, projectID)
}

// DeleteProject archives the project with its tasks and resources, then
// deletes it. Tasks and resources go with it.
func (s *Service) DeleteProject(ctx context.Context, projectID int64, force bool) (map[string]any, error) {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		project, err := tx.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		tasks, err := tx.ListTasks(ctx, store.TaskFilter{ProjectID: &projectID})
		if err != nil {
			return err
		}
		if !force {
			resources, err := tx.ListResources(ctx, store.ResourceFilter{ProjectID: &projectID})
			if err != nil {
				return err
			}
			if err := archiveProject(ctx, tx, project, tasks, resources); err != nil {
				return err
			}
		}
		if err := tx.DeleteProject(ctx, projectID); err != nil {
			return err
		}
		if _, err := tx.DeleteFavoritesForItem(ctx, store.FavoriteProject, projectID); err != nil {
			return err
		}
		taskIDs := make([]int64, 0, len(tasks))
		for _, task := range tasks {
			taskIDs = append(taskIDs, task.ID)
		}
		_, err = tx.DeleteFavoritesForItem(ctx, store.FavoriteTask, taskIDs...)
		return err
	})
	if err != nil {
		return nil, notFound(err, "Project not found")
	}
	s.entitiesChanged(ctx)

	if force {
		return map[string]any{"message": "Project deleted permanently"}, nil
	}
	return map[string]any{"message": "Project archived successfully"}, nil
}

func projectPatch(input ProjectInput, create bool) (store.ProjectPatch, error) {
	var (
		patch store.ProjectPatch
		err   error
	)
	if patch.Name, err = nameField(input.Name, create); err != nil {
		return store.ProjectPatch{}, err
	}
	patch.Description = textField(input.Description)
	if patch.Status, err = requiredEnum[store.ProjectStatus](input.Status, "status", allowedProjectStatus); err != nil {
		return store.ProjectPatch{}, err
	}
	if patch.Priority, err = nullableEnum[store.Priority](input.Priority, "priority", allowedPriorities); err != nil {
		return store.ProjectPatch{}, err
	}
	if patch.DueDate, err = dateField(input.DueDate, "dueDate"); err != nil {
		return store.ProjectPatch{}, err
	}
	patch.AreaID = idField(input.AreaID)
	return patch, nil
}
