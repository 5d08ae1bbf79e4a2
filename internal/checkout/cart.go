package checkout

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kanakkart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/kanakkart/storefront-backend/pkg/errors"
)

// IntentMetadata is the durable record of a prepaid checkout before any
// order row exists. It travels as gateway notes and is read back by the
// payment webhook.
type IntentMetadata struct {
	UserID    uuid.UUID  `json:"user_id"`
	AddressID uuid.UUID  `json:"address_id"`
	Cart      []CartLine `json:"cart"`
	Notes     *string    `json:"notes,omitempty"`
}

const (
	noteKeyCart      = "cart"
	noteKeyUserID    = "user_id"
	noteKeyAddressID = "address_id"
	noteKeyNotes     = "notes"
)

// EncodeIntentNotes flattens the metadata into gateway note fields. The cart
// is a JSON string because gateway notes only carry scalars.
func EncodeIntentNotes(meta IntentMetadata) (map[string]interface{}, error) {
	cart, err := json.Marshal(meta.Cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart snapshot")
	}
	notes := map[string]interface{}{
		noteKeyCart:      string(cart),
		noteKeyUserID:    meta.UserID.String(),
		noteKeyAddressID: meta.AddressID.String(),
	}
	if meta.Notes != nil && *meta.Notes != "" {
		notes[noteKeyNotes] = *meta.Notes
	}
	return notes, nil
}

// DecodeIntentNotes rebuilds checkout metadata from gateway note fields.
func DecodeIntentNotes(notes map[string]interface{}) (*IntentMetadata, error) {
	if len(notes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order carries no checkout metadata")
	}
	meta := &IntentMetadata{}

	rawCart, ok := notes[noteKeyCart].(string)
	if !ok || rawCart == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart snapshot missing from gateway notes")
	}
	if err := json.Unmarshal([]byte(rawCart), &meta.Cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cart snapshot")
	}
	if len(meta.Cart) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart snapshot is empty")
	}

	userID, err := parseNoteUUID(notes, noteKeyUserID)
	if err != nil {
		return nil, err
	}
	addressID, err := parseNoteUUID(notes, noteKeyAddressID)
	if err != nil {
		return nil, err
	}
	meta.UserID = userID
	meta.AddressID = addressID

	if customerNotes, ok := notes[noteKeyNotes].(string); ok && customerNotes != "" {
		meta.Notes = &customerNotes
	}
	return meta, nil
}

func parseNoteUUID(notes map[string]interface{}, key string) (uuid.UUID, error) {
	raw, ok := notes[key].(string)
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s missing from gateway notes", key))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("malformed %s in gateway notes", key))
	}
	return id, nil
}

// PriceCart resolves each cart line against the live catalog: the product
// must exist and be active, carry enough stock for the requested quantity,
// and the price charged is always the catalog price. Returns the priced
// lines and the order total.
func PriceCart(products map[uuid.UUID]*models.Product, lines []CartLine) ([]PricedLine, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	priced := make([]PricedLine, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		product, ok := products[line.ProductID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("product %s not found", line.ProductID))
		}
		if !product.IsActive {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q is no longer available", product.Title))
		}
		if err := checkAvailability(product, line); err != nil {
			return nil, decimal.Zero, err
		}

		pl := PricedLine{
			Product:   product,
			Quantity:  line.Quantity,
			Size:      line.Size,
			UnitPrice: product.Price,
		}
		priced = append(priced, pl)
		total = total.Add(pl.Subtotal())
	}
	return priced, total, nil
}

func checkAvailability(product *models.Product, line CartLine) error {
	if product.HasSizes() {
		if line.Size == nil || *line.Size == "" {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product %q requires a size", product.Title))
		}
		if product.SizeStock.Available(*line.Size) < line.Quantity {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("insufficient stock for %q size %s", product.Title, *line.Size))
		}
		return nil
	}
	if line.Size != nil && *line.Size != "" {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("product %q has no sizes", product.Title))
	}
	if product.Stock < line.Quantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("insufficient stock for %q", product.Title))
	}
	return nil
}
