package searchlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ignite/memorial-crm/internal/docstore"
	"github.com/ignite/memorial-crm/internal/domain"
	"github.com/ignite/memorial-crm/internal/segmentation"
)

// Service implements saved search list persistence.
type Service struct {
	store      docstore.Store
	collection string
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store, collection: domain.CollectionSearchLists}
}

// CreateOptions carries the optional attributes of a new list.
type CreateOptions struct {
	Description string
	CreatedBy   string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name            *string                        `json:"name,omitempty"`
	Description     *string                        `json:"description,omitempty"`
	ConditionGroups *[]domain.FilterConditionGroup `json:"conditionGroups,omitempty"`
}

// List returns the system lists in their fixed order followed by user lists,
// most recently updated first.
func (s *Service) List(ctx context.Context) ([]domain.SavedSearchList, error) {
	page, err := s.store.List(ctx, s.collection, docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list search lists: %w", err)
	}

	user := make([]domain.SavedSearchList, 0, len(page.Docs))
	for _, d := range page.Docs {
		user = append(user, decodeList(d))
	}
	sort.SliceStable(user, func(i, j int) bool {
		if !user[i].UpdatedAt.Equal(user[j].UpdatedAt) {
			return user[i].UpdatedAt.After(user[j].UpdatedAt)
		}
		return user[i].ID < user[j].ID
	})

	return append(segmentation.SystemLists(), user...), nil
}

// Get returns a list by id, resolving system lists in memory.
func (s *Service) Get(ctx context.Context, id string) (domain.SavedSearchList, error) {
	if l, ok := segmentation.SystemList(id); ok {
		return l, nil
	}
	doc, err := s.store.Get(ctx, s.collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.SavedSearchList{}, ErrNotFound
	}
	if err != nil {
		return domain.SavedSearchList{}, fmt.Errorf("get search list %s: %w", id, err)
	}
	return decodeList(doc), nil
}

// Lookup satisfies segmentation.ListSource: it returns nil, nil for an
// unknown id.
func (s *Service) Lookup(ctx context.Context, id string) (*domain.SavedSearchList, error) {
	l, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create persists a new user list and returns its id. Groups and conditions
// without an id are assigned one.
func (s *Service) Create(ctx context.Context, name string, groups []domain.FilterConditionGroup, opts CreateOptions) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}

	id := uuid.NewString()
	data := map[string]any{
		"name":            name,
		"conditionGroups": encodeGroups(assignIDs(groups)),
		"createdAt":       docstore.ServerTimestamp,
		"updatedAt":       docstore.ServerTimestamp,
	}
	if opts.Description != "" {
		data["description"] = opts.Description
	}
	if opts.CreatedBy != "" {
		data["createdBy"] = opts.CreatedBy
	}

	if err := s.store.Set(ctx, s.collection, id, data, false); err != nil {
		return "", fmt.Errorf("create search list: %w", err)
	}
	return id, nil
}

// Update applies a partial update to a user list.
func (s *Service) Update(ctx context.Context, id string, p Patch) error {
	if segmentation.IsSystemListID(id) {
		return ErrSystemList
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}

	data := map[string]any{"updatedAt": docstore.ServerTimestamp}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return ErrNameRequired
		}
		data["name"] = name
	}
	if p.Description != nil {
		data["description"] = *p.Description
	}
	if p.ConditionGroups != nil {
		data["conditionGroups"] = encodeGroups(assignIDs(*p.ConditionGroups))
	}

	if err := s.store.Set(ctx, s.collection, id, data, true); err != nil {
		return fmt.Errorf("update search list %s: %w", id, err)
	}
	return nil
}

// Delete removes a user list. Saved lists carry no history, so unlike
// customers they are deleted outright.
func (s *Service) Delete(ctx context.Context, id string) error {
	if segmentation.IsSystemListID(id) {
		return ErrSystemList
	}
	if err := s.exists(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, s.collection, id); err != nil {
		return fmt.Errorf("delete search list %s: %w", id, err)
	}
	return nil
}

func (s *Service) exists(ctx context.Context, id string) error {
	_, err := s.store.Get(ctx, s.collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get search list %s: %w", id, err)
	}
	return nil
}

func assignIDs(groups []domain.FilterConditionGroup) []domain.FilterConditionGroup {
	out := make([]domain.FilterConditionGroup, len(groups))
	for i, g := range groups {
		if g.ID == "" {
			g.ID = uuid.NewString()
		}
		conds := make([]domain.FilterCondition, len(g.Conditions))
		for j, c := range g.Conditions {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			conds[j] = c
		}
		g.Conditions = conds
		out[i] = g
	}
	return out
}
