package inventory

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Service резервирует и возвращает остатки вариантов товаров.
// Сам транзакций не открывает: вызывающий передаёт репозиторий своей транзакции.
type Service struct {
	logger *log.Entry
}

// NewService создаёт сервис резервирования.
func NewService(logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Service{logger: logger}
}

type variantKey struct {
	productID string
	variantID string
}

// Reserve проверяет все позиции, а затем списывает остатки в порядке позиций.
// Одинаковые варианты в одном заказе проверяются по суммарному количеству.
// Цена позиции должна совпадать с текущей итоговой ценой варианта. Неизвестный
// товар или вариант в корзине считается ошибкой запроса.
// Если списание проиграло гонку, ошибка откатывает транзакцию вызывающего целиком.
func (s *Service) Reserve(ctx context.Context, products domain.ProductRepository, items []domain.OrderItem) error {
	if len(items) == 0 {
		return domain.ErrItemsRequired
	}

	requested := make(map[variantKey]int32, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.VariantID == "" {
			return domain.ErrItemRefRequired
		}
		if item.Qty <= 0 {
			return domain.NewValidationError("quantity", fmt.Sprintf("must be positive for product %s", item.ProductID))
		}
		requested[variantKey{item.ProductID, item.VariantID}] += item.Qty
	}

	loaded := make(map[string]domain.Product)
	for _, item := range items {
		product, err := loadProduct(ctx, products, loaded, item.ProductID)
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.AsValidation("items", err)
		}
		if err != nil {
			return err
		}
		if product.Blocked {
			return fmt.Errorf("product %s: %w", product.ID, domain.ErrProductUnavailable)
		}
		variant, ok := product.Variant(item.VariantID)
		if !ok {
			return domain.AsValidation("items",
				fmt.Errorf("product %s variant %s: %w", product.ID, item.VariantID, domain.ErrVariantNotFound))
		}
		if item.PriceMinor != variant.FinalPriceMinor {
			return domain.NewValidationError("price", fmt.Sprintf(
				"product %s variant %s costs %d, got %d", product.ID, variant.ID, variant.FinalPriceMinor, item.PriceMinor))
		}
		total := requested[variantKey{item.ProductID, item.VariantID}]
		if variant.Stock < total {
			return &domain.InsufficientStockError{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Requested: total,
				Available: variant.Stock,
			}
		}
	}

	for _, item := range items {
		if err := products.DecrementStock(ctx, item.ProductID, item.VariantID, item.Qty); err != nil {
			s.logger.WithError(err).WithFields(log.Fields{
				"product_id": item.ProductID,
				"variant_id": item.VariantID,
				"qty":        item.Qty,
			}).Warn("stock decrement rejected")
			return err
		}
	}
	return nil
}

// Release возвращает на склад количество каждой позиции.
func (s *Service) Release(ctx context.Context, products domain.ProductRepository, items []domain.OrderItem) error {
	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		if err := products.IncrementStock(ctx, item.ProductID, item.VariantID, item.Qty); err != nil {
			return fmt.Errorf("release product %s variant %s: %w", item.ProductID, item.VariantID, err)
		}
	}
	return nil
}

// Availability: результат проверки одной позиции корзины.
type Availability struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Requested int32  `json:"requested"`
	Available int32  `json:"available"`
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
}

// CheckAvailability строит отчёт по корзине без изменения остатков.
// Ошибки «не найдено» и «нет в наличии» попадают в отчёт, а не в err.
func (s *Service) CheckAvailability(ctx context.Context, products domain.ProductRepository, items []domain.OrderItem) ([]Availability, error) {
	requested := make(map[variantKey]int32, len(items))
	for _, item := range items {
		requested[variantKey{item.ProductID, item.VariantID}] += item.Qty
	}

	loaded := make(map[string]domain.Product)
	report := make([]Availability, 0, len(items))
	for _, item := range items {
		row := Availability{ProductID: item.ProductID, VariantID: item.VariantID, Requested: item.Qty}

		if item.Qty <= 0 {
			row.Reason = "quantity must be positive"
			report = append(report, row)
			continue
		}

		product, err := loadProduct(ctx, products, loaded, item.ProductID)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			row.Reason = "product not found"
			report = append(report, row)
			continue
		case err != nil:
			return nil, err
		}

		variant, ok := product.Variant(item.VariantID)
		switch {
		case product.Blocked:
			row.Reason = "product is unavailable"
		case !ok:
			row.Reason = "variant not found"
		default:
			row.Available = variant.Stock
			if variant.Stock >= requested[variantKey{item.ProductID, item.VariantID}] {
				row.OK = true
			} else {
				row.Reason = fmt.Sprintf("only %d left in stock", variant.Stock)
			}
		}
		report = append(report, row)
	}
	return report, nil
}

func loadProduct(ctx context.Context, products domain.ProductRepository, cache map[string]domain.Product, id string) (domain.Product, error) {
	if p, ok := cache[id]; ok {
		return p, nil
	}
	p, err := products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.Product{}, fmt.Errorf("product %s: %w", id, err)
		}
		return domain.Product{}, err
	}
	cache[id] = p
	return p, nil
}
