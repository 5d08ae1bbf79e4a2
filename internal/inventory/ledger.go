package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
	"github.com/kanakkart/storefront-backend/pkg/types"
)

// Line is one product/size/quantity movement against the ledger.
type Line struct {
	ProductID uuid.UUID
	Size      *string
	Quantity  int
}

// Ledger applies stock movements inside a caller-owned transaction. Every
// call is all-or-nothing: the first failing line aborts with an error and the
// caller is expected to roll the transaction back.
type Ledger interface {
	Deduct(ctx context.Context, tx *gorm.DB, lines []Line) error
	Restore(ctx context.Context, tx *gorm.DB, lines []Line) error
}

type ledger struct{}

// NewLedger builds the inventory ledger.
func NewLedger() Ledger {
	return &ledger{}
}

func (l *ledger) Deduct(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.apply(ctx, tx, lines, -1)
}

func (l *ledger) Restore(ctx context.Context, tx *gorm.DB, lines []Line) error {
	return l.apply(ctx, tx, lines, +1)
}

func (l *ledger) apply(ctx context.Context, tx *gorm.DB, lines []Line, direction int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger requires a transaction")
	}
	for _, line := range lines {
		if err := validateLine(line); err != nil {
			return err
		}
		product, err := loadProduct(ctx, tx, line.ProductID)
		if err != nil {
			return err
		}

		if product.HasSizes() {
			if err := applySized(ctx, tx, product, line, direction); err != nil {
				return err
			}
			continue
		}
		if line.Size != nil && *line.Size != "" {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %s does not track sizes", product.SKU))
		}
		if err := applyFlat(ctx, tx, product, line, direction); err != nil {
			return err
		}
	}
	return nil
}

func validateLine(line Line) error {
	if line.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "line product id is required")
	}
	if line.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
	}
	return nil
}

func loadProduct(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := tx.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

// applyFlat moves stock on an unsized product with a conditional update, so
// concurrent deductions cannot drive stock negative.
func applyFlat(ctx context.Context, tx *gorm.DB, product *models.Product, line Line, direction int) error {
	delta := line.Quantity * direction
	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND stock + ? >= 0
	`, delta, product.ID, delta)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update product stock")
	}
	if res.RowsAffected == 0 {
		return insufficientStock(product.SKU, nil)
	}
	return nil
}

// applySized rewrites the size map in Go and persists it with the previous
// flat stock as an optimistic guard, keeping stock equal to the sum of sizes.
func applySized(ctx context.Context, tx *gorm.DB, product *models.Product, line Line, direction int) error {
	if line.Size == nil || *line.Size == "" {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("product %s requires a size", product.SKU))
	}
	size := *line.Size
	current, ok := product.SizeStock[size]
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("product %s has no size %q", product.SKU, size))
	}

	next := current + line.Quantity*direction
	if next < 0 {
		return insufficientStock(product.SKU, &size)
	}

	updated := make(types.SizeStock, len(product.SizeStock))
	for k, v := range product.SizeStock {
		updated[k] = v
	}
	updated[size] = next

	res := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock = ?", product.ID, product.Stock).
		Select("size_stock", "stock").
		Updates(&models.Product{SizeStock: updated, Stock: updated.Sum()})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update size stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("product %s stock changed concurrently", product.SKU))
	}
	return nil
}

func insufficientStock(sku string, size *string) error {
	msg := fmt.Sprintf("insufficient stock for product %s", sku)
	if size != nil {
		msg = fmt.Sprintf("insufficient stock for product %s size %s", sku, *size)
	}
	return pkgerrors.New(pkgerrors.CodeConflict, msg).WithDetails(map[string]any{
		"sku": sku,
	})
}
