package compat

import (
	"fmt"
	"strings"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
	"mercator-hq/courier/pkg/export/generator"
)

// Legacy column keys added by the transforms in this file.
const (
	FieldItemVariation   = "item_variation"
	FieldBillingAddress  = "billing_address"
	FieldShippingAddress = "shipping_address"
	orderItemPrefix      = "order_item_"
)

// DefaultImportItemColumns is the number of fixed order_item_N columns of
// the legacy import format.
const DefaultImportItemColumns = 10

// LegacyOptions tunes the legacy transforms.
type LegacyOptions struct {
	// ImportItemColumns is the number of order_item_N columns of
	// legacy_import. Orders with more line items are truncated.
	ImportItemColumns int

	// Values renders prices and quantities.
	Values generator.Options
}

// OrderItemColumnKey returns the key of the n-th (1-based) legacy item column.
func OrderItemColumnKey(n int) string {
	return fmt.Sprintf("%s%d", orderItemPrefix, n)
}

// RegisterLegacy installs the transforms that give the legacy built-ins
// their historical shape.
func RegisterLegacy(r *Registry, opts LegacyOptions) {
	if opts.ImportItemColumns <= 0 {
		opts.ImportItemColumns = DefaultImportItemColumns
	}
	if opts.Values.DateFormat == "" {
		opts.Values = generator.DefaultOptions()
	}

	orders := export.RecordTypeOrders
	customers := export.RecordTypeCustomers

	// legacy_import: fixed-width item columns and state backfill.
	r.RegisterHeader(orders, format.KeyLegacyImport, func(_ *format.Definition, cols format.Columns) format.Columns {
		cols = cols.Clone()
		for n := 1; n <= opts.ImportItemColumns; n++ {
			cols = append(cols, format.Column{Key: OrderItemColumnKey(n), Header: fmt.Sprintf("Order Item %d", n)})
		}
		return cols
	})
	r.RegisterRow(orders, format.KeyLegacyImport, fixedWidthItems(opts))
	r.RegisterRow(orders, format.KeyLegacyImport, backfillStates)

	// legacy_one_row_per_item: composite variation string next to the name.
	r.RegisterHeader(orders, format.KeyLegacyOneRowPerItem, func(_ *format.Definition, cols format.Columns) format.Columns {
		return insertAfter(cols, format.FieldItemName, format.Column{Key: FieldItemVariation, Header: "Item Variation"})
	})
	r.RegisterRow(orders, format.KeyLegacyOneRowPerItem, itemVariation)
	r.RegisterRow(orders, format.KeyLegacyOneRowPerItem, couponCodes)

	// legacy_single_column: one human-readable cell for all items.
	r.RegisterHeader(orders, format.KeyLegacySingleColumn, func(_ *format.Definition, cols format.Columns) format.Columns {
		return replaceColumns(cols, []string{format.FieldLineItems}, format.Column{Key: format.FieldLineItems, Header: "Order Items"})
	})
	r.RegisterRow(orders, format.KeyLegacySingleColumn, itemSummary(opts))
	r.RegisterRow(orders, format.KeyLegacySingleColumn, couponCodes)

	// customers legacy: guests as id 0, one combined street column.
	r.RegisterHeader(customers, format.KeyLegacy, func(_ *format.Definition, cols format.Columns) format.Columns {
		cols = replaceColumns(cols, []string{"billing_address_1", "billing_address_2"},
			format.Column{Key: FieldBillingAddress, Header: "Billing Address"})
		return replaceColumns(cols, []string{"shipping_address_1", "shipping_address_2"},
			format.Column{Key: FieldShippingAddress, Header: "Shipping Address"})
	})
	r.RegisterRow(customers, format.KeyLegacy, legacyCustomer)
}

func fixedWidthItems(opts LegacyOptions) RowTransform {
	return func(_ *format.Definition, row generator.Row, src generator.Source) generator.Row {
		if src.Order == nil {
			return row
		}
		for i, it := range src.Order.LineItems {
			if i >= opts.ImportItemColumns {
				break
			}
			item := generator.Item{
				{Key: "name", Value: it.Name},
				{Key: "product_id", Value: it.ProductID},
				{Key: "sku", Value: it.SKU},
				{Key: "quantity", Value: opts.Values.Quantity(it.Quantity)},
				{Key: "total", Value: opts.Values.Price(it.Total)},
				{Key: "refunded", Value: opts.Values.Price(it.Refunded)},
			}
			if v := variationString(it.Variation); v != "" {
				item = append(item, generator.Pair{Key: "meta", Value: v})
			}
			row[OrderItemColumnKey(i+1)] = generator.EncodePipeItem(item)
		}
		return row
	}
}

// backfillStates fills state names from codes when only the code is stored.
func backfillStates(_ *format.Definition, row generator.Row, _ generator.Source) generator.Row {
	for _, prefix := range []string{"billing", "shipping"} {
		if row[prefix+"_state"] == "" {
			row[prefix+"_state"] = row[prefix+"_state_code"]
		}
	}
	return row
}

func itemVariation(_ *format.Definition, row generator.Row, src generator.Source) generator.Row {
	if src.Order == nil || src.ItemIndex < 0 || src.ItemIndex >= len(src.Order.LineItems) {
		row[FieldItemVariation] = ""
		return row
	}
	row[FieldItemVariation] = variationString(src.Order.LineItems[src.ItemIndex].Variation)
	return row
}

// variationString renders attributes as "Color: Red, Size: L".
func variationString(attrs []export.MetaEntry) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.Value == "" {
			continue
		}
		parts = append(parts, attributeLabel(a.Key)+": "+oneLine(a.Value))
	}
	return strings.Join(parts, ", ")
}

// attributeLabel turns "pa_color" or "color" into "Color".
func attributeLabel(key string) string {
	key = strings.TrimPrefix(key, "pa_")
	key = strings.ReplaceAll(key, "_", " ")
	key = strings.ReplaceAll(key, "-", " ")
	if key == "" {
		return key
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

func itemSummary(opts LegacyOptions) RowTransform {
	return func(_ *format.Definition, row generator.Row, src generator.Source) generator.Row {
		if src.Order == nil {
			return row
		}
		parts := make([]string, 0, len(src.Order.LineItems))
		for _, it := range src.Order.LineItems {
			name := oneLine(it.Name)
			if it.SKU != "" {
				name += " (" + it.SKU + ")"
			}
			parts = append(parts, name+" x"+opts.Values.Quantity(it.Quantity))
		}
		row[format.FieldLineItems] = strings.Join(parts, "; ")
		return row
	}
}

func couponCodes(_ *format.Definition, row generator.Row, src generator.Source) generator.Row {
	if src.Order == nil {
		return row
	}
	codes := make([]string, 0, len(src.Order.CouponLines))
	for _, c := range src.Order.CouponLines {
		codes = append(codes, c.Code)
	}
	row[format.FieldCouponItems] = strings.Join(codes, ", ")
	return row
}

func legacyCustomer(_ *format.Definition, row generator.Row, src generator.Source) generator.Row {
	if src.Customer != nil && src.Customer.Guest {
		row[format.FieldCustomerUserID] = "0"
	}
	row[FieldBillingAddress] = joinNonEmpty(", ", row["billing_address_1"], row["billing_address_2"])
	row[FieldShippingAddress] = joinNonEmpty(", ", row["shipping_address_1"], row["shipping_address_2"])
	return row
}

func joinNonEmpty(sep string, values ...string) string {
	parts := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
