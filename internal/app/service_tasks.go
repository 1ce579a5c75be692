package app

import (
	"context"

	"paradash/api/internal/store"
)

func (s *Service) ListTasks(ctx context.Context, filter store.TaskFilter) ([]map[string]any, error) {
	tasks, err := s.store.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return tasksPayload(tasks, s.now()), nil
}

func (s *Service) GetTask(ctx context.Context, taskID int64) (map[string]any, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	return taskPayload(task, s.now()), nil
}

func (s *Service) CreateTask(ctx context.Context, input TaskInput) (map[string]any, error) {
	patch, err := taskPatch(input, true)
	if err != nil {
		return nil, err
	}
	task := store.Task{
		Name:        *patch.Name,
		Description: deref(patch.Description),
		Status:      store.TaskTodo,
		Priority:    deref(patch.Priority),
		Energy:      deref(patch.Energy),
		Context:     deref(patch.Context),
		Notes:       deref(patch.Notes),
		DueDate:     deref(patch.DueDate),
		ProjectID:   deref(patch.ProjectID),
		AreaID:      deref(patch.AreaID),
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}

	created, err := s.store.InsertTask(ctx, task)
	if err != nil {
		return nil, err
	}
	s.entitiesChanged(ctx)
	return taskPayload(created, s.now()), nil
}

// UpdateTask applies a partial edit. The returned row is authoritative; the
// client reconciles its optimistic copy against it.
func (s *Service) UpdateTask(ctx context.Context, taskID int64, input TaskInput) (map[string]any, error) {
	patch, err := taskPatch(input, false)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateTask(ctx, taskID, patch)
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	s.entitiesChanged(ctx)
	return taskPayload(updated, s.now()), nil
}

func (s *Service) CompleteTask(ctx context.Context, taskID int64, completed bool) (map[string]any, error) {
	status := statusForCompletion(completed)
	updated, err := s.store.UpdateTask(ctx, taskID, store.TaskPatch{
		Completed: &completed,
		Status:    &status,
	})
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	s.entitiesChanged(ctx)
	return taskPayload(updated, s.now()), nil
}

// DuplicateTask copies a task under the name "<name> (Copy)". The copy
// starts open regardless of the source's completion.
func (s *Service) DuplicateTask(ctx context.Context, taskID int64) (map[string]any, error) {
	source, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	source.Name += " (Copy)"
	source.Completed = false
	if source.Status == store.TaskCompleted {
		source.Status = store.TaskTodo
	}

	created, err := s.store.InsertTask(ctx, source)
	if err != nil {
		return nil, err
	}
	s.entitiesChanged(ctx)
	return taskPayload(created, s.now()), nil
}

func (s *Service) DeleteTask(ctx context.Context, taskID int64) (map[string]any, error) {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return err
		}
		if err := archiveTask(ctx, tx, task); err != nil {
			return err
		}
		if err := tx.DeleteTask(ctx, taskID); err != nil {
			return err
		}
		_, err = tx.DeleteFavoritesForItem(ctx, store.FavoriteTask, taskID)
		return err
	})
	if err != nil {
		return nil, notFound(err, "Task not found")
	}
	s.entitiesChanged(ctx)
	return map[string]any{"message": "Task archived successfully"}, nil
}

func statusForCompletion(completed bool) store.TaskStatus {
	if completed {
		return store.TaskCompleted
	}
	return store.TaskTodo
}

func taskPatch(input TaskInput, create bool) (store.TaskPatch, error) {
	var (
		patch store.TaskPatch
		err   error
	)
	if patch.Name, err = nameField(input.Name, create); err != nil {
		return store.TaskPatch{}, err
	}
	patch.Description = textField(input.Description)
	patch.Notes = noteField(input.Notes)
	if patch.Status, err = requiredEnum[store.TaskStatus](input.Status, "status", allowedTaskStatus); err != nil {
		return store.TaskPatch{}, err
	}
	if patch.Priority, err = nullableEnum[store.Priority](input.Priority, "priority", allowedPriorities); err != nil {
		return store.TaskPatch{}, err
	}
	if patch.Energy, err = nullableEnum[store.Energy](input.Energy, "energy", allowedEnergy); err != nil {
		return store.TaskPatch{}, err
	}
	if patch.Context, err = nullableEnum[store.TaskContext](input.Context, "context", allowedContexts); err != nil {
		return store.TaskPatch{}, err
	}
	if patch.DueDate, err = dateField(input.DueDate, "dueDate"); err != nil {
		return store.TaskPatch{}, err
	}
	if input.Completed.Set && !input.Completed.Null {
		completed := input.Completed.Value
		patch.Completed = &completed
		if patch.Status == nil {
			status := statusForCompletion(completed)
			patch.Status = &status
		}
	}
	patch.ProjectID = idField(input.ProjectID)
	patch.AreaID = idField(input.AreaID)
	return patch, nil
}
