package generator

import (
	"strings"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

// ItemIndexNone marks a row that is not tied to a line item.
const ItemIndexNone = -1

type taxJSON struct {
	RateID   string      `json:"rate_id"`
	Total    interface{} `json:"total"`
	Subtotal interface{} `json:"subtotal,omitempty"`
}

type metaJSON struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// orderRows builds the rows of one order. In one-row-per-subitem mode there
// is one row per line item; an order without line items still yields one
// row with blank item columns.
func (g *Generator) orderRows(def *format.Definition, order *export.OrderRecord) ([]Row, []int) {
	base := g.orderBase(def, order)

	if !def.IsPerSubItem() {
		return []Row{base}, []int{ItemIndexNone}
	}
	if len(order.LineItems) == 0 {
		return []Row{base}, []int{ItemIndexNone}
	}

	rows := make([]Row, len(order.LineItems))
	indexes := make([]int, len(order.LineItems))
	for i := range order.LineItems {
		row := base.Clone()
		g.addItemColumns(row, def, &order.LineItems[i])
		rows[i] = row
		indexes[i] = i
	}
	return rows, indexes
}

func (g *Generator) orderBase(def *format.Definition, o *export.OrderRecord) Row {
	f := g.fmt
	row := Row{
		format.FieldOrderID:            o.ID,
		format.FieldOrderNumber:        o.Number,
		format.FieldOrderDate:          f.date(o.Date),
		format.FieldStatus:             o.Status,
		format.FieldShippingTotal:      f.price(o.ShippingTotal),
		format.FieldShippingTaxTotal:   f.price(o.ShippingTax),
		format.FieldFeeTotal:           f.price(o.FeeTotal),
		format.FieldFeeTaxTotal:        f.price(o.FeeTax),
		format.FieldTaxTotal:           f.price(o.TaxTotal),
		format.FieldCartDiscount:       f.price(o.CartDiscount),
		format.FieldOrderDiscount:      f.price(o.OrderDiscount),
		format.FieldDiscountTotal:      f.price(o.DiscountTotal),
		format.FieldOrderTotal:         f.price(o.Total),
		format.FieldRefundedTotal:      f.price(o.RefundedTotal),
		format.FieldOrderCurrency:      o.Currency,
		format.FieldPaymentMethod:      o.PaymentMethod,
		format.FieldPaymentMethodTitle: o.PaymentTitle,
		format.FieldShippingMethod:     o.ShippingMethod,
		format.FieldCustomerID:         o.CustomerID,
		format.FieldCustomerNote:       o.CustomerNote,
	}
	row[format.FieldDownloadPermissions] = boolCell(o.DownloadsGrants)
	addAddress(row, "billing", o.Billing)
	addAddress(row, "shipping", o.Shipping)

	if def.ItemEncoding == format.EncodingJSON {
		row[format.FieldLineItems] = encodeJSON(g.lineItemsJSON(o.LineItems))
		row[format.FieldShippingItems] = encodeJSON(g.shippingJSON(o.ShippingLines))
		row[format.FieldFeeItems] = encodeJSON(g.feesJSON(o.FeeLines))
		row[format.FieldTaxItems] = encodeJSON(g.taxLinesJSON(o.TaxLines))
		row[format.FieldCouponItems] = encodeJSON(g.couponsJSON(o.CouponLines))
		row[format.FieldRefunds] = encodeJSON(g.refundsJSON(o.Refunds))
		row[format.FieldOrderNotes] = encodeJSON(collapseAll(o.Notes))
	} else {
		row[format.FieldLineItems] = EncodePipe(g.lineItemsPipe(o.LineItems))
		row[format.FieldShippingItems] = EncodePipe(g.shippingPipe(o.ShippingLines))
		row[format.FieldFeeItems] = EncodePipe(g.feesPipe(o.FeeLines))
		row[format.FieldTaxItems] = EncodePipe(g.taxLinesPipe(o.TaxLines))
		row[format.FieldCouponItems] = EncodePipe(g.couponsPipe(o.CouponLines))
		row[format.FieldRefunds] = EncodePipe(g.refundsPipe(o.Refunds))
		row[format.FieldOrderNotes] = joinNotes(o.Notes)
	}

	addMeta(row, o.Metadata)
	addStatic(row, def)
	return row
}

func (g *Generator) addItemColumns(row Row, def *format.Definition, it *export.LineItem) {
	f := g.fmt
	row[format.FieldItemID] = it.ID
	row[format.FieldItemName] = it.Name
	row[format.FieldItemSKU] = it.SKU
	row[format.FieldItemProductID] = it.ProductID
	row[format.FieldItemQuantity] = f.quantity(it.Quantity)
	row[format.FieldItemSubtotal] = f.price(it.Subtotal)
	row[format.FieldItemSubtotalTax] = f.price(it.SubtotalTax)
	row[format.FieldItemTotal] = f.price(it.Total)
	row[format.FieldItemTotalTax] = f.price(it.TotalTax)
	row[format.FieldItemRefunded] = f.price(it.Refunded)
	row[format.FieldItemRefundedQty] = f.quantity(it.RefundedQty)

	if def.ItemEncoding == format.EncodingJSON {
		row[format.FieldItemMeta] = encodeJSON(itemMetaJSON(it))
	} else {
		row[format.FieldItemMeta] = EncodePipeItem(itemMetaPairs(it))
	}
}

func itemMetaPairs(it *export.LineItem) Item {
	var pairs Item
	for _, m := range it.Variation {
		pairs = append(pairs, Pair{Key: m.Key, Value: collapseLines(m.Value)})
	}
	for _, m := range it.Meta {
		pairs = append(pairs, Pair{Key: m.Key, Value: collapseLines(m.Value)})
	}
	return pairs
}

func itemMetaJSON(it *export.LineItem) []metaJSON {
	var out []metaJSON
	for _, p := range itemMetaPairs(it) {
		out = append(out, metaJSON{Key: p.Key, Value: p.Value})
	}
	return out
}

func (g *Generator) lineItemsPipe(items []export.LineItem) []Item {
	f := g.fmt
	out := make([]Item, 0, len(items))
	for i := range items {
		it := &items[i]
		item := Item{
			{"id", it.ID},
			{"name", it.Name},
			{"product_id", it.ProductID},
		}
		if it.VariationID != "" {
			item = append(item, Pair{"variation_id", it.VariationID})
		}
		item = append(item,
			Pair{"sku", it.SKU},
			Pair{"quantity", f.quantity(it.Quantity)},
			Pair{"subtotal", f.price(it.Subtotal)},
			Pair{"subtotal_tax", f.price(it.SubtotalTax)},
			Pair{"total", f.price(it.Total)},
			Pair{"total_tax", f.price(it.TotalTax)},
			Pair{"refunded", f.price(it.Refunded)},
			Pair{"refunded_qty", f.quantity(it.RefundedQty)},
		)
		item = append(item, itemMetaPairs(it)...)
		out = append(out, item)
	}
	return out
}

type lineItemJSON struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProductID   string      `json:"product_id,omitempty"`
	VariationID string      `json:"variation_id,omitempty"`
	SKU         string      `json:"sku,omitempty"`
	Quantity    float64     `json:"quantity"`
	Subtotal    interface{} `json:"subtotal"`
	SubtotalTax interface{} `json:"subtotal_tax"`
	Total       interface{} `json:"total"`
	TotalTax    interface{} `json:"total_tax"`
	Refunded    interface{} `json:"refunded"`
	RefundedQty float64     `json:"refunded_qty"`
	Taxes       []taxJSON   `json:"taxes,omitempty"`
	Meta        []metaJSON  `json:"meta,omitempty"`
}

func (g *Generator) lineItemsJSON(items []export.LineItem) []lineItemJSON {
	f := g.fmt
	out := make([]lineItemJSON, 0, len(items))
	for i := range items {
		it := &items[i]
		out = append(out, lineItemJSON{
			ID:          it.ID,
			Name:        it.Name,
			ProductID:   it.ProductID,
			VariationID: it.VariationID,
			SKU:         it.SKU,
			Quantity:    it.Quantity,
			Subtotal:    f.priceNumber(it.Subtotal),
			SubtotalTax: f.priceNumber(it.SubtotalTax),
			Total:       f.priceNumber(it.Total),
			TotalTax:    f.priceNumber(it.TotalTax),
			Refunded:    f.priceNumber(it.Refunded),
			RefundedQty: it.RefundedQty,
			Taxes:       g.taxesJSON(it.Taxes),
			Meta:        itemMetaJSON(it),
		})
	}
	return out
}

func (g *Generator) taxesJSON(taxes []export.ItemTax) []taxJSON {
	var out []taxJSON
	for _, t := range taxes {
		out = append(out, taxJSON{
			RateID:   t.RateID,
			Total:    g.fmt.priceNumber(t.Total),
			Subtotal: g.fmt.priceNumber(t.Subtotal),
		})
	}
	return out
}

func (g *Generator) shippingPipe(lines []export.ShippingLine) []Item {
	out := make([]Item, 0, len(lines))
	for _, l := range lines {
		out = append(out, Item{
			{"id", l.ID},
			{"method_id", l.MethodID},
			{"method_title", l.Title},
			{"total", g.fmt.price(l.Total)},
			{"total_tax", g.fmt.price(l.TotalTax)},
		})
	}
	return out
}

func (g *Generator) shippingJSON(lines []export.ShippingLine) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"id":           l.ID,
			"method_id":    l.MethodID,
			"method_title": l.Title,
			"total":        g.fmt.priceNumber(l.Total),
			"total_tax":    g.fmt.priceNumber(l.TotalTax),
			"taxes":        g.taxesJSON(l.Taxes),
		})
	}
	return out
}

func (g *Generator) feesPipe(lines []export.FeeLine) []Item {
	out := make([]Item, 0, len(lines))
	for _, l := range lines {
		out = append(out, Item{
			{"id", l.ID},
			{"name", l.Name},
			{"total", g.fmt.price(l.Total)},
			{"total_tax", g.fmt.price(l.TotalTax)},
			{"taxable", boolCell(l.Taxable)},
		})
	}
	return out
}

func (g *Generator) feesJSON(lines []export.FeeLine) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"id":        l.ID,
			"name":      l.Name,
			"total":     g.fmt.priceNumber(l.Total),
			"total_tax": g.fmt.priceNumber(l.TotalTax),
			"taxable":   l.Taxable,
			"taxes":     g.taxesJSON(l.Taxes),
		})
	}
	return out
}

func (g *Generator) taxLinesPipe(lines []export.TaxLine) []Item {
	out := make([]Item, 0, len(lines))
	for _, l := range lines {
		out = append(out, Item{
			{"id", l.ID},
			{"rate_id", l.RateID},
			{"code", l.Code},
			{"title", l.Title},
			{"total", g.fmt.price(l.Total)},
			{"shipping_tax_total", g.fmt.price(l.ShippingTaxTotal)},
		})
	}
	return out
}

func (g *Generator) taxLinesJSON(lines []export.TaxLine) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"id":                 l.ID,
			"rate_id":            l.RateID,
			"code":               l.Code,
			"title":              l.Title,
			"total":              g.fmt.priceNumber(l.Total),
			"shipping_tax_total": g.fmt.priceNumber(l.ShippingTaxTotal),
		})
	}
	return out
}

func (g *Generator) couponsPipe(lines []export.CouponLine) []Item {
	out := make([]Item, 0, len(lines))
	for _, l := range lines {
		out = append(out, Item{
			{"id", l.ID},
			{"code", l.Code},
			{"amount", g.fmt.price(l.Amount)},
			{"description", collapseLines(l.Description)},
		})
	}
	return out
}

func (g *Generator) couponsJSON(lines []export.CouponLine) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"id":          l.ID,
			"code":        l.Code,
			"amount":      g.fmt.priceNumber(l.Amount),
			"description": collapseLines(l.Description),
		})
	}
	return out
}

func (g *Generator) refundsPipe(refunds []export.Refund) []Item {
	out := make([]Item, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, Item{
			{"id", r.ID},
			{"date", g.fmt.date(r.Date)},
			{"amount", g.fmt.price(r.Amount)},
			{"reason", collapseLines(r.Reason)},
		})
	}
	return out
}

func (g *Generator) refundsJSON(refunds []export.Refund) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(refunds))
	for _, r := range refunds {
		out = append(out, map[string]interface{}{
			"id":     r.ID,
			"date":   g.fmt.date(r.Date),
			"amount": g.fmt.priceNumber(r.Amount),
			"reason": collapseLines(r.Reason),
		})
	}
	return out
}

func collapseAll(notes []string) []string {
	if len(notes) == 0 {
		return nil
	}
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = collapseLines(n)
	}
	return out
}

// joinNotes joins order notes with ';', escaping the separator inside notes.
func joinNotes(notes []string) string {
	parts := make([]string, len(notes))
	for i, n := range notes {
		parts[i] = EscapePipe(collapseLines(n))
	}
	return strings.Join(parts, string(itemSep))
}
