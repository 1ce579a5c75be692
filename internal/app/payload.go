package app

import (
	"math"
	"time"

	"paradash/api/internal/store"
)

const (
	dueOverdue  = "overdue"
	dueToday    = "today"
	dueSoon     = "soon"
	dueUpcoming = "upcoming"

	soonWindowDays = 3
)

func refPayload(ref *store.Ref) any {
	if ref == nil {
		return nil
	}
	return map[string]any{"id": ref.ID, "name": ref.Name}
}

func areaPayload(area store.Area) map[string]any {
	return map[string]any{
		"id":          area.ID,
		"name":        area.Name,
		"description": area.Description,
		"priority":    area.Priority,
		"createdAt":   area.CreatedAt,
		"updatedAt":   area.UpdatedAt,
		"_count":      map[string]any{"tasks": area.OpenTaskCount},
	}
}

func projectPayload(project store.Project) map[string]any {
	return map[string]any{
		"id":          project.ID,
		"name":        project.Name,
		"description": project.Description,
		"status":      project.Status,
		"priority":    project.Priority,
		"dueDate":     project.DueDate,
		"areaId":      project.AreaID,
		"area":        refPayload(project.Area),
		"createdAt":   project.CreatedAt,
		"updatedAt":   project.UpdatedAt,
		"_count":      map[string]any{"tasks": project.OpenTaskCount},
	}
}

func taskPayload(task store.Task, now time.Time) map[string]any {
	daysLeft, dueState := dueInfo(task.DueDate, now)
	return map[string]any{
		"id":          task.ID,
		"name":        task.Name,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"energy":      task.Energy,
		"context":     task.Context,
		"notes":       task.Notes,
		"dueDate":     task.DueDate,
		"completed":   task.Completed,
		"projectId":   task.ProjectID,
		"areaId":      task.AreaID,
		"project":     refPayload(task.Project),
		"area":        refPayload(task.Area),
		"createdAt":   task.CreatedAt,
		"updatedAt":   task.UpdatedAt,
		"daysLeft":    daysLeft,
		"dueState":    dueState,
	}
}

func tasksPayload(tasks []store.Task, now time.Time) []map[string]any {
	items := make([]map[string]any, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, taskPayload(task, now))
	}
	return items
}

func resourcePayload(resource store.Resource) map[string]any {
	return map[string]any{
		"id":          resource.ID,
		"name":        resource.Name,
		"description": resource.Description,
		"type":        resource.Type,
		"url":         resource.URL,
		"projectId":   resource.ProjectID,
		"areaId":      resource.AreaID,
		"project":     refPayload(resource.Project),
		"area":        refPayload(resource.Area),
		"createdAt":   resource.CreatedAt,
		"updatedAt":   resource.UpdatedAt,
	}
}

func resourcesPayload(resources []store.Resource) []map[string]any {
	items := make([]map[string]any, 0, len(resources))
	for _, resource := range resources {
		items = append(items, resourcePayload(resource))
	}
	return items
}

func archivePayload(archive store.Archive) map[string]any {
	return map[string]any{
		"id":           archive.ID,
		"name":         archive.Name,
		"description":  archive.Description,
		"type":         archive.Type,
		"originalId":   archive.OriginalID,
		"archivedData": archive.ArchivedData,
		"archivedAt":   archive.ArchivedAt,
	}
}

// dueInfo returns the whole days left until due (rounded up) and a coarse
// state for badges. A task without a due date has neither.
func dueInfo(due *time.Time, now time.Time) (any, string) {
	if due == nil {
		return nil, ""
	}
	days := int(math.Ceil(due.Sub(now).Hours() / 24))
	switch {
	case days < 0:
		return days, dueOverdue
	case days == 0:
		return days, dueToday
	case days <= soonWindowDays:
		return days, dueSoon
	default:
		return days, dueUpcoming
	}
}
