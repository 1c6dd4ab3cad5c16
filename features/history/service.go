package history

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record stores c, assigning an ID when it has none.
func (s *Service) Record(ctx context.Context, c *Conversion) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return s.repo.Save(ctx, c)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]Conversion, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// Get returns sql.ErrNoRows for IDs that are not UUIDs so callers see one
// not-found error regardless of input shape.
func (s *Service) Get(ctx context.Context, id string) (*Conversion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, sql.ErrNoRows
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
