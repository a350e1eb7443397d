package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comanda/internal/domain"
	apperrors "comanda/internal/errors"
)

const maxLineQuantity = 100

type CartRepository interface {
	Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error)
	Update(ctx context.Context, tenantID, tableID string, fn func(*domain.Cart) error) (*domain.Cart, error)
	Clear(ctx context.Context, tenantID, tableID string) error
}

// CartService edits the display-only cart of a table. Prices stored here are
// whatever the client sent; checkout re-prices every line.
type CartService struct {
	repo   CartRepository
	logger *zap.Logger
}

func NewCartService(repo CartRepository, logger *zap.Logger) *CartService {
	return &CartService{repo: repo, logger: logger}
}

func (s *CartService) Get(ctx context.Context, tenantID, tableID string) (*domain.Cart, error) {
	return s.repo.Get(ctx, tenantID, tableID)
}

func (s *CartService) AddItem(ctx context.Context, tenantID, tableID string, item domain.CartItem) (*domain.Cart, error) {
	if err := validateItem(item); err != nil {
		return nil, err
	}
	item.LineID = uuid.NewString()

	cart, err := s.repo.Update(ctx, tenantID, tableID, func(c *domain.Cart) error {
		c.Items = append(c.Items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("cart item added",
		zap.String("tenantId", tenantID),
		zap.String("tableId", tableID),
		zap.String("lineId", item.LineID),
		zap.String("menuItemId", item.MenuItemID),
	)
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, tenantID, tableID, lineID string) (*domain.Cart, error) {
	return s.repo.Update(ctx, tenantID, tableID, func(c *domain.Cart) error {
		for i, item := range c.Items {
			if item.LineID == lineID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
		return apperrors.NewNotFoundError(fmt.Sprintf("cart line %s not found", lineID))
	})
}

// UpdateQuantity sets the quantity of a line. Zero removes it.
func (s *CartService) UpdateQuantity(ctx context.Context, tenantID, tableID, lineID string, quantity int) (*domain.Cart, error) {
	if quantity < 0 || quantity > maxLineQuantity {
		return nil, apperrors.NewValidationError("invalid quantity", apperrors.ValidationDetail{
			Field:   "quantity",
			Message: fmt.Sprintf("quantity must be between 0 and %d", maxLineQuantity),
		})
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, tenantID, tableID, lineID)
	}

	return s.repo.Update(ctx, tenantID, tableID, func(c *domain.Cart) error {
		for i := range c.Items {
			if c.Items[i].LineID == lineID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
		return apperrors.NewNotFoundError(fmt.Sprintf("cart line %s not found", lineID))
	})
}

func (s *CartService) Clear(ctx context.Context, tenantID, tableID string) error {
	return s.repo.Clear(ctx, tenantID, tableID)
}

func validateItem(item domain.CartItem) error {
	var details []apperrors.ValidationDetail

	if item.MenuItemID == "" {
		details = append(details, apperrors.ValidationDetail{Field: "menuItemId", Message: "menuItemId is required"})
	}
	if item.Quantity < 1 || item.Quantity > maxLineQuantity {
		details = append(details, apperrors.ValidationDetail{
			Field:   "quantity",
			Message: fmt.Sprintf("quantity must be between 1 and %d", maxLineQuantity),
		})
	}
	if item.Price < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "price", Message: "price must be non-negative"})
	}
	if item.CourseNumber < 0 {
		details = append(details, apperrors.ValidationDetail{Field: "courseNumber", Message: "courseNumber must be non-negative"})
	}
	for i, m := range item.Modifiers {
		if m.OptionID == "" {
			details = append(details, apperrors.ValidationDetail{
				Field:   fmt.Sprintf("modifiers[%d].optionId", i),
				Message: "optionId is required",
			})
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}
	return nil
}
