package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"paradash/api/internal/store"
)

func (s *Service) ListAreas(ctx context.Context) ([]map[string]any, error) {
	areas, err := s.store.ListAreas(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]map[string]any, len(areas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, area := range areas {
		g.Go(func() error {
			tasks, err := s.store.ListTasks(gctx, store.TaskFilter{AreaID: &area.ID})
			if err != nil {
				return err
			}
			resources, err := s.store.ListResources(gctx, store.ResourceFilter{AreaID: &area.ID})
			if err != nil {
				return err
			}
			item := areaPayload(area)
			item["tasks"] = tasksPayload(tasks, now)
			item["resources"] = resourcesPayload(resources)
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) GetArea(ctx context.Context, areaID int64) (map[string]any, error) {
	area, err := s.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, notFound(err, "Area not found")
	}
	tasks, err := s.store.ListTasks(ctx, store.TaskFilter{AreaID: &areaID})
	if err != nil {
		return nil, err
	}
	projects, err := s.store.ListProjects(ctx, store.ProjectFilter{AreaID: &areaID})
	if err != nil {
		return nil, err
	}
	resources, err := s.store.ListResources(ctx, store.ResourceFilter{AreaID: &areaID})
	if err != nil {
		return nil, err
	}

	projectItems := make([]map[string]any, 0, len(projects))
	for _, project := range projects {
		projectItems = append(projectItems, projectPayload(project))
	}

	item := areaPayload(area)
	item["tasks"] = tasksPayload(tasks, s.now())
	item["projects"] = projectItems
	item["resources"] = resourcesPayload(resources)
	item["_count"] = map[string]any{"tasks": area.OpenTaskCount, "projects": area.ProjectCount}
	return item, nil
}

func (s *Service) CreateArea(ctx context.Context, input AreaInput) (map[string]any, error) {
	name, err := nameField(input.Name, true)
	if err != nil {
		return nil, err
	}
	priority, err := requiredEnum[store.Priority](input.Priority, "priority", allowedPriorities)
	if err != nil {
		return nil, err
	}
	area := store.Area{
		Name:        *name,
		Description: deref(textField(input.Description)),
		Priority:    store.PriorityP2,
	}
	if priority != nil {
		area.Priority = *priority
	}

	created, err := s.store.InsertArea(ctx, area)
	if err != nil {
		return nil, err
	}
	s.entitiesChanged(ctx)

	item := areaPayload(created)
	item["tasks"] = []map[string]any{}
	item["resources"] = []map[string]any{}
	return item, nil
}

func (s *Service) UpdateArea(ctx context.Context, areaID int64, input AreaInput) (map[string]any, error) {
	name, err := nameField(input.Name, false)
	if err != nil {
		return nil, err
	}
	priority, err := requiredEnum[store.Priority](input.Priority, "priority", allowedPriorities)
	if err != nil {
		return nil, err
	}
	patch := store.AreaPatch{
		Name:        name,
		Description: textField(input.Description),
		Priority:    priority,
	}
	if _, err := s.store.UpdateArea(ctx, areaID, patch); err != nil {
		return nil, notFound(err, "Area not found")
	}
	s.entitiesChanged(ctx)
	return s.GetArea(ctx, areaID)
}

// DeleteArea archives the area and its current contents, then deletes it.
// Children survive with their area cleared. force skips the archive.
func (s *Service) DeleteArea(ctx context.Context, areaID int64, force bool) (map[string]any, error) {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		area, err := tx.GetArea(ctx, areaID)
		if err != nil {
			return err
		}
		if !force {
			if err := archiveArea(ctx, tx, area); err != nil {
				return err
			}
		}
		if err := tx.DeleteArea(ctx, areaID); err != nil {
			return err
		}
		_, err = tx.DeleteFavoritesForItem(ctx, store.FavoriteArea, areaID)
		return err
	})
	if err != nil {
		return nil, notFound(err, "Area not found")
	}
	s.entitiesChanged(ctx)

	if force {
		return map[string]any{"message": "Area deleted permanently"}, nil
	}
	return map[string]any{"message": "Area archived successfully"}, nil
}
