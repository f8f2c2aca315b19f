package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/georgemunganga/printa-pos/internal/platform/apperr"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultSearchLimit = 10

// Service defines product lookup for the till.
type Service interface {
	ListProducts(ctx context.Context) ([]*Product, error)
	GetProduct(ctx context.Context, id string) (*Product, error)
	LookupByCode(ctx context.Context, code string) (*Product, error)
	Search(ctx context.Context, query string, limit int) ([]*Product, error)
	StockChanged(ctx context.Context, productIDs ...uuid.UUID)
}

type invalidator interface {
	Invalidate(ctx context.Context, ids ...uuid.UUID) error
}

type service struct {
	repo   Repository
	logger logrus.FieldLogger
}

func NewService(repo Repository, logger logrus.FieldLogger) Service {
	return &service{repo: repo, logger: logger}
}

func (s *service) ListProducts(ctx context.Context) ([]*Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "could not load products")
	}
	return products, nil
}

func (s *service) GetProduct(ctx context.Context, id string) (*Product, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid product id: %s", id)
	}
	return s.get(ctx, func() (*Product, error) { return s.repo.GetByID(ctx, uid) }, id)
}

// LookupByCode finds a product by exact barcode.
func (s *service) LookupByCode(ctx context.Context, code string) (*Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperr.New(apperr.KindValidation, "product code is required")
	}
	return s.get(ctx, func() (*Product, error) { return s.repo.GetByBarcode(ctx, code) }, code)
}

// Search matches query as a case-insensitive substring of the name,
// description, barcode, or category of each product.
func (s *service) Search(ctx context.Context, query string, limit int) ([]*Product, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []*Product{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]*Product, 0, limit)
	for _, p := range products {
		if matchesQuery(p, needle) {
			matches = append(matches, p)
			if len(matches) == limit {
				break
			}
		}
	}
	return matches, nil
}

// StockChanged drops cached copies of the given products, if caching is on.
func (s *service) StockChanged(ctx context.Context, productIDs ...uuid.UUID) {
	inv, ok := s.repo.(invalidator)
	if !ok || len(productIDs) == 0 {
		return
	}
	if err := inv.Invalidate(ctx, productIDs...); err != nil {
		s.logger.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func (s *service) get(ctx context.Context, load func() (*Product, error), key string) (*Product, error) {
	p, err := load()
	if errors.Is(err, ErrProductNotFound) {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "product %s not found", key)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnknown, err, "could not load product")
	}
	return p, nil
}

func matchesQuery(p *Product, needle string) bool {
	for _, field := range []string{p.Name, p.Description, p.Barcode, p.CategoryName} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
