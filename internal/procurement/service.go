package procurement

import (
	"context"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service wraps procurement persistence with pagination metadata.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput collects the attributes of a new procurement record.
type CreateInput struct {
	Name      string
	Type      string
	Supplier  string
	Quantity  float64
	UnitPrice float64
}

// Create inserts a record attributed to the identity.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (int64, error) {
	return s.repo.Create(ctx, Item{
		Name:      input.Name,
		Type:      input.Type,
		Supplier:  input.Supplier,
		Quantity:  input.Quantity,
		UnitPrice: input.UnitPrice,
		CreatedBy: identity.ClientID,
	})
}

// Get fetches one record.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered page of records.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Item, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}
