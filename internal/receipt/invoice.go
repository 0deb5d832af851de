package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pfm/internal/core"
)

// Invoice is the structured result the analyzer extracts from a receipt
// image. Field names follow the extraction schema the analyzer is
// prompted with, so the JSON round-trips unchanged through the status
// store.
type Invoice struct {
	InvoiceNumber  string    `json:"invoice_number"`
	BillingAddress Address   `json:"billing_address"`
	Products       []Product `json:"product"`
	TotalBill      TotalBill `json:"total_bill"`
}

type Address struct {
	Name              string `json:"name"`
	AddressLine       string `json:"address_line"`
	City              string `json:"city"`
	StateProvinceCode string `json:"state_province_code"`
	PostalCode        string `json:"postal_code"`
}

// Product is one line item: description, unit count, unit price, line
// total and the category label the analyzer assigned.
type Product struct {
	Description string  `json:"product_description"`
	Count       int     `json:"count"`
	UnitPrice   float64 `json:"unit_item_price"`
	TotalPrice  float64 `json:"product_total_price"`
	Category    string  `json:"category"`
}

// TotalBill is the computed breakdown: pre-tax total, discount, tax,
// delivery, the final payable amount and per-category subtotals.
type TotalBill struct {
	Total             float64            `json:"total"`
	DiscountAmount    float64            `json:"discount_amount"`
	TaxAmount         float64            `json:"tax_amount"`
	DeliveryCharges   float64            `json:"delivery_charges"`
	FinalTotal        float64            `json:"final_total"`
	CategorySubtotals map[string]float64 `json:"category_subtotals"`
}

// ErrUnreadableResult marks analyzer output that cannot be interpreted as
// an invoice. Unlike transport failures it is permanent: retrying the
// same image will not help.
var ErrUnreadableResult = errors.New("unreadable analyzer result")

// ParseInvoice decodes and sanity-checks an analyzer result.
func ParseInvoice(data []byte) (*Invoice, error) {
	var inv Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableResult, err)
	}
	if err := inv.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableResult, err)
	}
	return &inv, nil
}

func (inv *Invoice) Validate() error {
	if len(inv.Products) == 0 {
		return errors.New("invoice has no line items")
	}
	if inv.TotalBill.FinalTotal < 0 {
		return errors.New("negative final total")
	}
	for i, p := range inv.Products {
		if p.TotalPrice < 0 {
			return fmt.Errorf("line item %d has a negative total", i)
		}
	}
	return nil
}

// Amount returns the final payable total as money.
func (inv *Invoice) Amount() core.Money {
	return core.MoneyFromFloat(inv.TotalBill.FinalTotal)
}

// Summary builds a short transaction note from the invoice: the line-item
// descriptions, prefixed with the invoice number when present.
func (inv *Invoice) Summary() string {
	items := make([]string, 0, len(inv.Products))
	for _, p := range inv.Products {
		items = append(items, p.Description)
	}
	note := strings.Join(items, ", ")
	if inv.InvoiceNumber != "" {
		note = "Receipt " + inv.InvoiceNumber + ": " + note
	}
	if len(note) > 500 {
		note = note[:497] + "..."
	}
	return note
}
