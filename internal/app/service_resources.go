package app

import (
	"context"

	"paradash/api/internal/store"
)

func (s *Service) ListResources(ctx context.Context, filter store.ResourceFilter) ([]map[string]any, error) {
	resources, err := s.store.ListResources(ctx, filter)
	if err != nil {
		return nil, err
	}
	return resourcesPayload(resources), nil
}

func (s *Service) GetResource(ctx context.Context, resourceID int64) (map[string]any, error) {
	resource, err := s.store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, notFound(err, "Resource not found")
	}
	return resourcePayload(resource), nil
}

func (s *Service) CreateResource(ctx context.Context, input ResourceInput) (map[string]any, error) {
	patch, err := resourcePatch(input, true)
	if err != nil {
		return nil, err
	}
	created, err := s.store.InsertResource(ctx, store.Resource{
		Name:        *patch.Name,
		Description: deref(patch.Description),
		Type:        deref(patch.Type),
		URL:         deref(patch.URL),
		ProjectID:   deref(patch.ProjectID),
		AreaID:      deref(patch.AreaID),
	})
	if err != nil {
		return nil, err
	}
	return resourcePayload(created), nil
}

// UpdateResource only touches the fields present in the input. A missing
// projectId or areaId leaves the attachment alone.
func (s *Service) UpdateResource(ctx context.Context, resourceID int64, input ResourceInput) (map[string]any, error) {
	patch, err := resourcePatch(input, false)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateResource(ctx, resourceID, patch)
	if err != nil {
		return nil, notFound(err, "Resource not found")
	}
	return resourcePayload(updated), nil
}

func (s *Service) DeleteResource(ctx context.Context, resourceID int64) (map[string]any, error) {
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		resource, err := tx.GetResource(ctx, resourceID)
		if err != nil {
			return err
		}
		if err := archiveResource(ctx, tx, resource); err != nil {
			return err
		}
		return tx.DeleteResource(ctx, resourceID)
	})
	if err != nil {
		return nil, notFound(err, "Resource not found")
	}
	return map[string]any{"message": "Resource archived successfully"}, nil
}

func resourcePatch(input ResourceInput, create bool) (store.ResourcePatch, error) {
	name, err := nameField(input.Name, create)
	if err != nil {
		return store.ResourcePatch{}, err
	}
	return store.ResourcePatch{
		Name:        name,
		Description: textField(input.Description),
		Type:        textField(input.Type),
		URL:         textField(input.URL),
		ProjectID:   idField(input.ProjectID),
		AreaID:      idField(input.AreaID),
	}, nil
}
