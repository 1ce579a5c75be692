package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paradash/api/internal/store"
)

func TestListFavoritesGroupsAndSkipsMissing(t *testing.T) {
	var userSeen string
	fs := &fakeStore{
		listFavoritesFn: func(_ context.Context, userID string) ([]store.Favorite, error) {
			userSeen = userID
			return []store.Favorite{
				{ID: 1, UserID: userID, ItemID: 10, ItemType: store.FavoriteTask},
				{ID: 2, UserID: userID, ItemID: 20, ItemType: store.FavoriteProject},
				{ID: 3, UserID: userID, ItemID: 99, ItemType: store.FavoriteTask},
				{ID: 4, UserID: userID, ItemID: 11, ItemType: store.FavoriteTask},
			}, nil
		},
		getTaskFn: func(_ context.Context, id int64) (store.Task, error) {
			if id == 99 {
				return store.Task{}, fmt.Errorf("get task: %w", sql.ErrNoRows)
			}
			return store.Task{ID: id, Name: fmt.Sprintf("task %d", id), Status: store.TaskTodo}, nil
		},
		getProjectFn: func(_ context.Context, id int64) (store.Project, error) {
			return store.Project{ID: id, Name: "Launch"}, nil
		},
	}

	result, err := newTestService(fs).ListFavorites(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, "default-user", userSeen)

	grouped, ok := result.(map[string][]map[string]any)
	require.True(t, ok)
	assert.Empty(t, grouped["AREA"])
	assert.NotNil(t, grouped["AREA"])
	require.Len(t, grouped["PROJECT"], 1)
	require.Len(t, grouped["TASK"], 2)
	assert.Equal(t, int64(1), grouped["TASK"][0]["favoriteId"])
	assert.Equal(t, int64(4), grouped["TASK"][1]["favoriteId"])
	item := grouped["TASK"][1]["item"].(map[string]any)
	assert.Equal(t, "task 11", item["name"])
}

func TestListFavoritesUsesCache(t *testing.T) {
	var loads atomic.Int32
	fs := &fakeStore{
		listFavoritesFn: func(_ context.Context, userID string) ([]store.Favorite, error) {
			loads.Add(1)
			return []store.Favorite{{ID: 1, UserID: userID, ItemID: 5, ItemType: store.FavoriteArea}}, nil
		},
		getAreaFn: func(_ context.Context, id int64) (store.Area, error) {
			return store.Area{ID: id, Name: "Health", Priority: store.PriorityP1}, nil
		},
	}
	cache := newFakeCache()
	svc := newTestService(fs, WithCache(cache))

	first, err := svc.ListFavorites(context.Background(), "alice")
	require.NoError(t, err)
	second, err := svc.ListFavorites(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())

	want, err := json.Marshal(first)
	require.NoError(t, err)
	got, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	_, err = svc.AddFavorite(context.Background(), FavoriteInput{ItemID: 5, ItemType: "area", UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, cache.invalidated)

	_, err = svc.ListFavorites(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestListFavoritesRefreshesCachedDueInfo(t *testing.T) {
	var loads atomic.Int32
	fs := &fakeStore{
		listFavoritesFn: func(_ context.Context, userID string) ([]store.Favorite, error) {
			loads.Add(1)
			return []store.Favorite{{ID: 1, UserID: userID, ItemID: 10, ItemType: store.FavoriteTask}}, nil
		},
		getTaskFn: func(_ context.Context, id int64) (store.Task, error) {
			return store.Task{ID: id, Name: "Renew passport", Status: store.TaskTodo, DueDate: date("2025-09-09")}, nil
		},
	}
	now := time.Date(2025, 9, 8, 23, 59, 50, 0, time.UTC)
	svc := newTestService(fs, WithCache(newFakeCache()), WithClock(func() time.Time { return now }))

	taskItem := func(result any) map[string]any {
		t.Helper()
		raw, err := json.Marshal(result)
		require.NoError(t, err)
		var grouped map[string][]map[string]any
		require.NoError(t, json.Unmarshal(raw, &grouped))
		require.Len(t, grouped["TASK"], 1)
		return grouped["TASK"][0]["item"].(map[string]any)
	}

	first, err := svc.ListFavorites(context.Background(), "alice")
	require.NoError(t, err)
	item := taskItem(first)
	assert.Equal(t, float64(1), item["daysLeft"])
	assert.Equal(t, dueSoon, item["dueState"])

	now = now.Add(20 * time.Second)
	second, err := svc.ListFavorites(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())
	item = taskItem(second)
	assert.Equal(t, float64(0), item["daysLeft"])
	assert.Equal(t, dueToday, item["dueState"])
	assert.Equal(t, "Renew passport", item["name"])
}

func TestListFavoritesEmbedsProjectArea(t *testing.T) {
	fs := &fakeStore{
		listFavoritesFn: func(_ context.Context, userID string) ([]store.Favorite, error) {
			return []store.Favorite{{ID: 1, UserID: userID, ItemID: 20, ItemType: store.FavoriteProject}}, nil
		},
		getProjectFn: func(_ context.Context, id int64) (store.Project, error) {
			return store.Project{ID: id, Name: "Launch", AreaID: ptr(int64(2)), Area: &store.Ref{ID: 2, Name: "Career"}}, nil
		},
		getAreaFn: func(_ context.Context, id int64) (store.Area, error) {
			return store.Area{ID: id, Name: "Career", Description: ptr("work"), Priority: store.PriorityP1}, nil
		},
	}

	result, err := newTestService(fs).ListFavorites(context.Background(), "")
	require.NoError(t, err)
	grouped := result.(map[string][]map[string]any)
	require.Len(t, grouped["PROJECT"], 1)
	item := grouped["PROJECT"][0]["item"].(map[string]any)
	area := item["area"].(map[string]any)
	assert.Equal(t, "Career", area["name"])
	assert.Equal(t, ptr("work"), area["description"])
	assert.Equal(t, store.PriorityP1, area["priority"])
}

func TestAddFavorite(t *testing.T) {
	var inserted store.Favorite
	fs := &fakeStore{
		getProjectFn: func(_ context.Context, id int64) (store.Project, error) {
			if id == 404 {
				return store.Project{}, sql.ErrNoRows
			}
			return store.Project{ID: id}, nil
		},
		insertFavoriteFn: func(_ context.Context, item store.Favorite) (store.Favorite, error) {
			if item.ItemID == 2 {
				return store.Favorite{}, fmt.Errorf("insert favorite: %w", store.ErrDuplicate)
			}
			inserted = item
			item.ID = 77
			return item, nil
		},
	}
	svc := newTestService(fs)

	payload, err := svc.AddFavorite(context.Background(), FavoriteInput{ItemID: 1, ItemType: " project "})
	require.NoError(t, err)
	assert.Equal(t, int64(77), payload["id"])
	assert.Equal(t, "default-user", inserted.UserID)
	assert.Equal(t, store.FavoriteProject, inserted.ItemType)

	cases := []struct {
		name    string
		input   FavoriteInput
		status  int
		message string
	}{
		{"missing id", FavoriteInput{ItemType: "PROJECT"}, http.StatusBadRequest, "itemId and itemType are required"},
		{"missing type", FavoriteInput{ItemID: 1}, http.StatusBadRequest, "itemId and itemType are required"},
		{"resource type", FavoriteInput{ItemID: 1, ItemType: "RESOURCE"}, http.StatusBadRequest, "Invalid item type or item not found"},
		{"missing item", FavoriteInput{ItemID: 404, ItemType: "PROJECT"}, http.StatusNotFound, "Item not found"},
		{"duplicate", FavoriteInput{ItemID: 2, ItemType: "PROJECT"}, http.StatusConflict, "Item already favorited"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddFavorite(context.Background(), tc.input)
			requireDomainError(t, err, tc.status, tc.message)
		})
	}
}

func TestRemoveFavorite(t *testing.T) {
	cache := newFakeCache()
	fs := &fakeStore{
		deleteFavoriteFn: func(_ context.Context, userID string, itemID int64, itemType store.FavoriteType) (int64, error) {
			if userID == "bob" && itemID == 3 && itemType == store.FavoriteTask {
				return 1, nil
			}
			return 0, nil
		},
	}
	svc := newTestService(fs, WithCache(cache))

	payload, err := svc.RemoveFavorite(context.Background(), "bob", "3", "task")
	require.NoError(t, err)
	assert.Equal(t, "Favorite removed successfully", payload["message"])
	assert.Equal(t, []string{"bob"}, cache.invalidated)

	_, err = svc.RemoveFavorite(context.Background(), "bob", "4", "TASK")
	requireDomainError(t, err, http.StatusNotFound, "Favorite not found")

	_, err = svc.RemoveFavorite(context.Background(), "bob", "", "TASK")
	requireDomainError(t, err, http.StatusBadRequest, "itemId and itemType are required")

	_, err = svc.RemoveFavorite(context.Background(), "bob", "abc", "TASK")
	requireDomainError(t, err, http.StatusBadRequest, "Invalid itemId")

	_, err = svc.RemoveFavorite(context.Background(), "bob", "3", "NOTE")
	requireDomainError(t, err, http.StatusBadRequest, "Invalid item type")
}

func TestCheckFavorite(t *testing.T) {
	fs := &fakeStore{
		getFavoriteFn: func(_ context.Context, userID string, itemID int64, itemType store.FavoriteType) (store.Favorite, error) {
			if itemID == 8 {
				return store.Favorite{ID: 31, UserID: userID, ItemID: itemID, ItemType: itemType}, nil
			}
			return store.Favorite{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	payload, err := svc.CheckFavorite(context.Background(), "", "8", "AREA")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isFavorited": true, "favoriteId": int64(31)}, payload)

	payload, err = svc.CheckFavorite(context.Background(), "", "9", "AREA")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"isFavorited": false, "favoriteId": nil}, payload)
}
