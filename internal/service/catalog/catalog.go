package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service ведёт товары и пересчитывает их итоговые цены.
type Service struct {
	uow    domain.UnitOfWork
	logger *log.Entry
	now    func() time.Time
}

// NewService создаёт сервис каталога.
func NewService(uow domain.UnitOfWork, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{uow: uow, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateProduct проверяет товар, считает итоговые цены и сохраняет его.
func (s *Service) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	product.Name = strings.TrimSpace(product.Name)
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	now := s.now()
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	for i := range product.Variants {
		if product.Variants[i].ID == "" {
			product.Variants[i].ID = uuid.NewString()
		}
	}
	product.CreatedAt = now
	product.UpdatedAt = now

	err := s.uow.InTx(ctx, func(repos domain.Repositories) error {
		category, err := s.category(ctx, repos, product.CategoryID)
		if err != nil {
			return err
		}
		product.Reprice(category, now)
		return repos.Products.Create(ctx, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"variants":   len(product.Variants),
	}).Info("product created")
	return product, nil
}

// GetProduct возвращает товар с вариантами.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if id == "" {
		return domain.Product{}, domain.NewValidationError("productId", "is required")
	}
	return s.uow.Repositories().Products.Get(ctx, id)
}

// SetBlocked блокирует или разблокирует продажу товара.
func (s *Service) SetBlocked(ctx context.Context, id string, blocked bool) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	var product domain.Product
	err := s.uow.InTx(ctx, func(repos domain.Repositories) error {
		if err := repos.Products.SetBlocked(ctx, id, blocked); err != nil {
			return err
		}
		var err error
		product, err = repos.Products.Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{"product_id": id, "blocked": blocked}).Info("product availability changed")
	return product, nil
}

// Reprice пересчитывает итоговые цены вариантов с учётом текущих предложений.
// Возвращает товар и признак того, что цены изменились.
func (s *Service) Reprice(ctx context.Context, id string) (domain.Product, bool, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, false, err
	}

	var (
		product domain.Product
		changed bool
	)
	err := s.uow.InTx(ctx, func(repos domain.Repositories) error {
		var err error
		product, err = repos.Products.Get(ctx, id)
		if err != nil {
			return err
		}
		category, err := s.category(ctx, repos, product.CategoryID)
		if err != nil {
			return err
		}
		changed = product.Reprice(category, s.now())
		if !changed {
			return nil
		}
		return repos.Products.UpdatePrices(ctx, product)
	})
	if err != nil {
		return domain.Product{}, false, err
	}
	return product, changed, nil
}

// category загружает категорию товара; отсутствующая категория не мешает расчёту цены.
func (s *Service) category(ctx context.Context, repos domain.Repositories, id string) (*domain.Category, error) {
	if id == "" {
		return nil, nil
	}
	category, err := repos.Categories.Get(ctx, id)
	if errors.Is(err, domain.ErrCategoryNotFound) {
		s.logger.WithField("category_id", id).Debug("category not found, pricing without category offer")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	return &category, nil
}

func requireAdmin(ctx context.Context) error {
	principal, ok := domain.PrincipalFrom(ctx)
	if !ok {
		return domain.ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}
