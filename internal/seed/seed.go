// Package seed loads the sample PARA data set used for demos and local
// development.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paradash/api/internal/store"
)

// Store is the slice of the data store the seeder needs.
type Store interface {
	InTx(ctx context.Context, fn func(store.Tx) error) error
}

// Writer inserts rows. store.Tx satisfies it.
type Writer interface {
	InsertArea(context.Context, store.Area) (store.Area, error)
	InsertProject(context.Context, store.Project) (store.Project, error)
	InsertTask(context.Context, store.Task) (store.Task, error)
	InsertResource(context.Context, store.Resource) (store.Resource, error)
}

// Summary counts the rows a seed run created.
type Summary struct {
	Areas     int
	Projects  int
	Tasks     int
	Resources int
}

type sampleTask struct {
	name      string
	due       string
	priority  store.Priority
	energy    store.Energy
	context   store.TaskContext
	notes     string
	completed bool
}

var sampleAreas = []store.Area{
	{Name: "Health & Fitness", Description: text("Personal health and fitness goals"), Priority: store.PriorityP1},
	{Name: "Career Development", Description: text("Professional growth and skill development"), Priority: store.PriorityP2},
	{Name: "Home & Family", Description: text("Home maintenance and family responsibilities"), Priority: store.PriorityP2},
}

var sampleTasks = []sampleTask{
	{name: "Overdue Task", due: "2025-09-05", priority: store.PriorityP2, energy: store.EnergyHigh, context: store.ContextComputer,
		notes: "This task is overdue and needs immediate attention. The client has been asking for updates."},
	{name: "Due Today", due: "2025-09-08", priority: store.PriorityP1, energy: store.EnergyMedium, context: store.ContextCalls},
	{name: "No Due Date", energy: store.EnergyLow, context: store.ContextHome,
		notes: "Research task for future planning. No urgency but good to explore when time allows."},
	{name: "Due Tomorrow", due: "2025-09-09", priority: store.PriorityP1, energy: store.EnergyHigh, context: store.ContextErrands},
	{name: "Due Soon", due: "2025-09-11", priority: store.PriorityP2, energy: store.EnergyMedium, context: store.ContextComputer},
	{name: "Future Task", due: "2025-09-20", priority: store.PriorityP3, energy: store.EnergyLow, context: store.ContextHome},
	{name: "Very Overdue", due: "2025-08-25", priority: store.PriorityP1, energy: store.EnergyHigh, context: store.ContextCalls,
		notes: "Completed successfully despite the delays. Lessons learned for future similar tasks.", completed: true},
}

// Run clears every table and loads the sample data set in one transaction.
// A failed load leaves the previous data in place.
func Run(ctx context.Context, dataStore Store, logger *zap.Logger) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var summary Summary
	err := dataStore.InTx(ctx, func(tx store.Tx) error {
		if err := tx.ResetAll(ctx); err != nil {
			return err
		}
		var err error
		summary, err = Load(ctx, tx)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	logger.Info("database seeded",
		zap.Int("areas", summary.Areas),
		zap.Int("projects", summary.Projects),
		zap.Int("tasks", summary.Tasks),
		zap.Int("resources", summary.Resources),
	)
	return summary, nil
}

// Load inserts the sample rows without clearing anything first.
func Load(ctx context.Context, w Writer) (Summary, error) {
	var summary Summary

	project, err := w.InsertProject(ctx, store.Project{
		Name:        "Project 1",
		Description: text("This is a detailed description of the project. It includes the project goals, scope, and other relevant information."),
		Status:      store.ProjectInProgress,
		Priority:    ptr(store.PriorityP1),
		DueDate:     day("2025-09-15"),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("seed project: %w", err)
	}
	summary.Projects++

	for _, area := range sampleAreas {
		if _, err := w.InsertArea(ctx, area); err != nil {
			return Summary{}, fmt.Errorf("seed area %q: %w", area.Name, err)
		}
		summary.Areas++
	}

	for _, sample := range sampleTasks {
		task := store.Task{
			Name:      sample.name,
			Status:    store.TaskTodo,
			Energy:    ptr(sample.energy),
			Context:   ptr(sample.context),
			Notes:     text(sample.notes),
			DueDate:   day(sample.due),
			Completed: sample.completed,
			ProjectID: &project.ID,
		}
		if sample.priority != "" {
			task.Priority = ptr(sample.priority)
		}
		if sample.completed {
			task.Status = store.TaskCompleted
		}
		if _, err := w.InsertTask(ctx, task); err != nil {
			return Summary{}, fmt.Errorf("seed task %q: %w", sample.name, err)
		}
		summary.Tasks++
	}

	resources := []store.Resource{
		{Name: "Project Documentation", Description: text("Main project documentation and specs"), Type: text("Document"),
			URL: text("https://docs.example.com/project-1"), ProjectID: &project.ID},
		{Name: "Design Guidelines", Description: text("UI/UX design guidelines and assets"), Type: text("Design"),
			URL: text("https://figma.com/project-design"), ProjectID: &project.ID},
		{Name: "Getting Things Done Book", Description: text("David Allen's productivity methodology"), Type: text("Book"),
			URL: text("https://gettingthingsdone.com")},
	}
	for _, resource := range resources {
		if _, err := w.InsertResource(ctx, resource); err != nil {
			return Summary{}, fmt.Errorf("seed resource %q: %w", resource.Name, err)
		}
		summary.Resources++
	}
	return summary, nil
}

func text(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func day(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(fmt.Sprintf("seed date %q: %v", value, err))
	}
	return &parsed
}

func ptr[T any](value T) *T {
	return &value
}
