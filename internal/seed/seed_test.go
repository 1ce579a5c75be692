package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paradash/api/internal/store"
)

// recorder captures inserted rows. The embedded store.Tx is nil; only the
// insert and reset methods are exercised.
type recorder struct {
	store.Tx

	areas     []store.Area
	projects  []store.Project
	tasks     []store.Task
	resources []store.Resource
	failTask  string
	resetErr  error
	events    *[]string
}

func (r *recorder) ResetAll(context.Context) error {
	if r.events != nil {
		*r.events = append(*r.events, "reset")
	}
	return r.resetErr
}

func (r *recorder) InsertArea(_ context.Context, item store.Area) (store.Area, error) {
	item.ID = int64(len(r.areas) + 1)
	r.areas = append(r.areas, item)
	return item, nil
}

func (r *recorder) InsertProject(_ context.Context, item store.Project) (store.Project, error) {
	item.ID = int64(len(r.projects) + 40)
	r.projects = append(r.projects, item)
	return item, nil
}

func (r *recorder) InsertTask(_ context.Context, item store.Task) (store.Task, error) {
	if item.Name == r.failTask {
		return store.Task{}, errors.New("insert failed")
	}
	r.tasks = append(r.tasks, item)
	return item, nil
}

func (r *recorder) InsertResource(_ context.Context, item store.Resource) (store.Resource, error) {
	r.resources = append(r.resources, item)
	return item, nil
}

type fakeStore struct {
	tx     *recorder
	events []string
}

func newFakeStore(tx *recorder) *fakeStore {
	fs := &fakeStore{tx: tx}
	tx.events = &fs.events
	return fs
}

func (f *fakeStore) InTx(_ context.Context, fn func(store.Tx) error) error {
	f.events = append(f.events, "begin")
	if err := fn(f.tx); err != nil {
		f.events = append(f.events, "rollback")
		return err
	}
	f.events = append(f.events, "commit")
	return nil
}

func TestRunLoadsSampleData(t *testing.T) {
	fs := newFakeStore(&recorder{})

	summary, err := Run(context.Background(), fs, nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Areas: 3, Projects: 1, Tasks: 7, Resources: 3}, summary)
	assert.Equal(t, []string{"begin", "reset", "commit"}, fs.events)

	rec := fs.tx
	require.Len(t, rec.projects, 1)
	assert.Equal(t, store.ProjectInProgress, rec.projects[0].Status)
	assert.Equal(t, "2025-09-15", rec.projects[0].DueDate.Format("2006-01-02"))

	for _, task := range rec.tasks {
		assert.Equal(t, int64(40), *task.ProjectID, task.Name)
	}
	noDue := rec.tasks[2]
	assert.Equal(t, "No Due Date", noDue.Name)
	assert.Nil(t, noDue.DueDate)
	assert.Nil(t, noDue.Priority)

	dueToday := rec.tasks[1]
	assert.Nil(t, dueToday.Notes)

	veryOverdue := rec.tasks[6]
	assert.True(t, veryOverdue.Completed)
	assert.Equal(t, store.TaskCompleted, veryOverdue.Status)

	require.Len(t, rec.resources, 3)
	assert.Nil(t, rec.resources[2].ProjectID)
	assert.Equal(t, int64(40), *rec.resources[0].ProjectID)
}

func TestRunStopsWhenResetFails(t *testing.T) {
	boom := errors.New("truncate denied")
	fs := newFakeStore(&recorder{resetErr: boom})

	_, err := Run(context.Background(), fs, nil)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"begin", "reset", "rollback"}, fs.events)
	assert.Empty(t, fs.tx.areas)
}

func TestRunRollsBackResetWhenLoadFails(t *testing.T) {
	fs := newFakeStore(&recorder{failTask: "Future Task"})

	_, err := Run(context.Background(), fs, nil)
	require.Error(t, err)
	assert.Equal(t, []string{"begin", "reset", "rollback"}, fs.events)
}

func TestLoadReportsFailingRow(t *testing.T) {
	rec := &recorder{failTask: "Due Soon"}
	_, err := Load(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `seed task "Due Soon"`)
	assert.Len(t, rec.tasks, 4)
	assert.Empty(t, rec.resources)
}
