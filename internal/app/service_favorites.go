package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"paradash/api/internal/store"
)

var favoriteGroups = []store.FavoriteType{store.FavoriteArea, store.FavoriteProject, store.FavoriteTask}

func favoritePayload(favorite store.Favorite) map[string]any {
	return map[string]any{
		"id":        favorite.ID,
		"userId":    favorite.UserID,
		"itemId":    favorite.ItemID,
		"itemType":  favorite.ItemType,
		"createdAt": favorite.CreatedAt,
	}
}

func missingFavoriteFields() *DomainError {
	return domainError(http.StatusBadRequest, "MISSING_FIELDS", "itemId and itemType are required", nil)
}

func favoriteType(raw string) (store.FavoriteType, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if _, ok := allowedFavoriteTypes[value]; !ok {
		return "", false
	}
	return store.FavoriteType(value), true
}

// parseFavoriteKey validates the (item id, item type) pair used by the
// query-string endpoints.
func parseFavoriteKey(rawID, rawType string) (int64, store.FavoriteType, error) {
	if strings.TrimSpace(rawID) == "" || strings.TrimSpace(rawType) == "" {
		return 0, "", missingFavoriteFields()
	}
	itemID, ok := parseID(rawID)
	if !ok {
		return 0, "", domainError(http.StatusBadRequest, "INVALID_ID", "Invalid itemId", nil)
	}
	itemType, ok := favoriteType(rawType)
	if !ok {
		return 0, "", domainError(http.StatusBadRequest, "INVALID_ITEM_TYPE", "Invalid item type", nil)
	}
	return itemID, itemType, nil
}

// ListFavorites returns the user's favorites grouped by item type, each with
// its current item embedded. Served from the cache when one is configured.
func (s *Service) ListFavorites(ctx context.Context, rawUserID string) (any, error) {
	userID := s.userID(rawUserID)
	if s.cache != nil {
		cached, ok, err := s.cache.GetFavorites(ctx, userID)
		if err != nil {
			s.logger.Warn("read favorites cache", zap.String("user_id", userID), zap.Error(err))
		} else if ok {
			var grouped map[string][]map[string]any
			decodeErr := json.Unmarshal(cached, &grouped)
			if decodeErr == nil {
				refreshDueInfo(grouped, s.now())
				return grouped, nil
			}
			s.logger.Warn("decode favorites cache", zap.String("user_id", userID), zap.Error(decodeErr))
		}
	}

	favorites, err := s.store.ListFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := make([]map[string]any, len(favorites))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, favorite := range favorites {
		g.Go(func() error {
			item, err := s.favoriteItem(gctx, favorite.ItemType, favorite.ItemID)
			if isNoRows(err) {
				s.logger.Warn("favorite points at a missing item",
					zap.Int64("favorite_id", favorite.ID),
					zap.String("item_type", string(favorite.ItemType)),
					zap.Int64("item_id", favorite.ItemID),
				)
				return nil
			}
			if err != nil {
				return err
			}
			resolved[i] = map[string]any{
				"favoriteId": favorite.ID,
				"itemId":     favorite.ItemID,
				"type":       favorite.ItemType,
				"item":       item,
				"createdAt":  favorite.CreatedAt,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	grouped := make(map[string][]map[string]any, len(favoriteGroups))
	for _, group := range favoriteGroups {
		grouped[string(group)] = []map[string]any{}
	}
	for i, entry := range resolved {
		if entry == nil {
			continue
		}
		key := string(favorites[i].ItemType)
		grouped[key] = append(grouped[key], entry)
	}

	if s.cache != nil {
		if raw, err := json.Marshal(grouped); err == nil {
			if err := s.cache.SetFavorites(ctx, userID, raw); err != nil {
				s.logger.Warn("write favorites cache", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}
	return grouped, nil
}

// refreshDueInfo recomputes the due badges of cached task entries, which go
// stale once the day rolls over.
func refreshDueInfo(grouped map[string][]map[string]any, now time.Time) {
	for _, entry := range grouped[string(store.FavoriteTask)] {
		item, ok := entry["item"].(map[string]any)
		if !ok {
			continue
		}
		var due *time.Time
		if raw, ok := item["dueDate"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				due = &parsed
			}
		}
		item["daysLeft"], item["dueState"] = dueInfo(due, now)
	}
}

func (s *Service) favoriteItem(ctx context.Context, itemType store.FavoriteType, itemID int64) (map[string]any, error) {
	switch itemType {
	case store.FavoriteArea:
		area, err := s.store.GetArea(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return areaPayload(area), nil
	case store.FavoriteProject:
		project, err := s.store.GetProject(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return s.projectWithArea(ctx, project)
	case store.FavoriteTask:
		task, err := s.store.GetTask(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return taskPayload(task, s.now()), nil
	}
	return nil, domainError(http.StatusBadRequest, "INVALID_ITEM_TYPE", "Invalid item type or item not found", nil)
}

func (s *Service) AddFavorite(ctx context.Context, input FavoriteInput) (map[string]any, error) {
	if input.ItemID <= 0 || strings.TrimSpace(input.ItemType) == "" {
		return nil, missingFavoriteFields()
	}
	itemType, ok := favoriteType(input.ItemType)
	if !ok {
		return nil, domainError(http.StatusBadRequest, "INVALID_ITEM_TYPE", "Invalid item type or item not found", nil)
	}
	itemID := int64(input.ItemID)
	if _, err := s.favoriteItem(ctx, itemType, itemID); err != nil {
		return nil, notFound(err, "Item not found")
	}

	userID := s.userID(input.UserID)
	favorite, err := s.store.InsertFavorite(ctx, store.Favorite{
		UserID:   userID,
		ItemID:   itemID,
		ItemType: itemType,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, domainError(http.StatusConflict, "ALREADY_FAVORITED", "Item already favorited", nil)
	}
	if err != nil {
		return nil, err
	}
	s.favoritesChanged(ctx, userID)
	return favoritePayload(favorite), nil
}

func (s *Service) RemoveFavorite(ctx context.Context, rawUserID, rawItemID, rawItemType string) (map[string]any, error) {
	itemID, itemType, err := parseFavoriteKey(rawItemID, rawItemType)
	if err != nil {
		return nil, err
	}
	userID := s.userID(rawUserID)
	removed, err := s.store.DeleteFavorite(ctx, userID, itemID, itemType)
	if err != nil {
		return nil, err
	}
	if removed == 0 {
		return nil, domainError(http.StatusNotFound, "NOT_FOUND", "Favorite not found", nil)
	}
	s.favoritesChanged(ctx, userID)
	return map[string]any{"message": "Favorite removed successfully"}, nil
}

func (s *Service) CheckFavorite(ctx context.Context, rawUserID, rawItemID, rawItemType string) (map[string]any, error) {
	itemID, itemType, err := parseFavoriteKey(rawItemID, rawItemType)
	if err != nil {
		return nil, err
	}
	favorite, err := s.store.GetFavorite(ctx, s.userID(rawUserID), itemID, itemType)
	if isNoRows(err) {
		return map[string]any{"isFavorited": false, "favoriteId": nil}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"isFavorited": true, "favoriteId": favorite.ID}, nil
}
