// Package services wires storage, budget tracking, notifications and
// reporting into the operations callers actually invoke.
package services

import (
	"context"
	"fmt"

	"pfm/internal/core"
	"pfm/internal/log"
)

type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListVisibleCategories(ctx context.Context, userID string) ([]core.Category, error)
}

type CategoryService struct {
	store  CategoryStore
	logger *log.Logger
}

func NewCategoryService(store CategoryStore, logger *log.Logger) *CategoryService {
	return &CategoryService{
		store:  store,
		logger: logger.WithComponent(log.ComponentCategory),
	}
}

// Create adds a personal category for the user. Global categories are
// seeded by migration and cannot be created through here.
func (s *CategoryService) Create(ctx context.Context, userID, name string, entryType core.EntryType) (core.Category, error) {
	if userID == "" {
		return core.Category{}, core.ErrMissingUser
	}

	c := core.Category{OwnerID: userID, Name: name, Type: entryType}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		log.FieldUserID, userID,
		log.FieldCategoryID, created.ID,
		"name", created.Name)
	return created, nil
}

// Get returns a category if the user may see it, core.ErrNotFound
// otherwise. Another user's personal category is indistinguishable from
// a missing one.
func (s *CategoryService) Get(ctx context.Context, userID string, id int64) (core.Category, error) {
	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if !c.VisibleTo(userID) {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

// List returns the global categories plus the user's own, ordered by
// name.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	out, err := s.store.ListVisibleCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}
