package format

import (
	"strings"

	"mercator-hq/courier/pkg/export"
)

// MetaPrefix prefixes column keys that read a record's metadata bag.
const MetaPrefix = "meta:"

// MetaColumnKey returns the column key for a metadata key.
func MetaColumnKey(metaKey string) string {
	return MetaPrefix + metaKey
}

// Order field names. These are the canonical row keys produced by the
// generator for orders.
const (
	FieldOrderID             = "order_id"
	FieldOrderNumber         = "order_number"
	FieldOrderDate           = "order_date"
	FieldStatus              = "status"
	FieldShippingTotal       = "shipping_total"
	FieldShippingTaxTotal    = "shipping_tax_total"
	FieldFeeTotal            = "fee_total"
	FieldFeeTaxTotal         = "fee_tax_total"
	FieldTaxTotal            = "tax_total"
	FieldCartDiscount        = "cart_discount"
	FieldOrderDiscount       = "order_discount"
	FieldDiscountTotal       = "discount_total"
	FieldOrderTotal          = "order_total"
	FieldRefundedTotal       = "refunded_total"
	FieldOrderCurrency       = "order_currency"
	FieldPaymentMethod       = "payment_method"
	FieldPaymentMethodTitle  = "payment_method_title"
	FieldShippingMethod      = "shipping_method"
	FieldCustomerID          = "customer_id"
	FieldCustomerNote        = "customer_note"
	FieldLineItems           = "line_items"
	FieldShippingItems       = "shipping_items"
	FieldFeeItems            = "fee_items"
	FieldTaxItems            = "tax_items"
	FieldCouponItems         = "coupon_items"
	FieldRefunds             = "refunds"
	FieldOrderNotes          = "order_notes"
	FieldDownloadPermissions = "download_permissions"

	FieldItemID          = "item_id"
	FieldItemName        = "item_name"
	FieldItemSKU         = "item_sku"
	FieldItemProductID   = "item_product_id"
	FieldItemQuantity    = "item_quantity"
	FieldItemSubtotal    = "item_subtotal"
	FieldItemSubtotalTax = "item_subtotal_tax"
	FieldItemTotal       = "item_total"
	FieldItemTotalTax    = "item_total_tax"
	FieldItemRefunded    = "item_refunded"
	FieldItemRefundedQty = "item_refunded_qty"
	FieldItemMeta        = "item_meta"
)

// Customer field names.
const (
	FieldCustomerUserID  = "customer_id"
	FieldFirstName       = "first_name"
	FieldLastName        = "last_name"
	FieldUserLogin       = "user_login"
	FieldEmail           = "email"
	FieldDateRegistered  = "date_registered"
	FieldTotalSpent      = "total_spent"
	FieldOrderCount      = "order_count"
	FieldCustomerIsGuest = "is_guest"
)

var addressParts = []string{
	"first_name", "last_name", "full_name", "company", "email", "phone",
	"address_1", "address_2", "postcode", "city", "state", "state_code", "country",
}

// AddressFields returns the column keys for an address block with prefix
// "billing" or "shipping". Shipping addresses carry no email or phone.
func AddressFields(prefix string) []string {
	fields := make([]string, 0, len(addressParts))
	for _, part := range addressParts {
		if prefix == "shipping" && (part == "email" || part == "phone") {
			continue
		}
		fields = append(fields, prefix+"_"+part)
	}
	return fields
}

// OrderFields lists the record-level order fields in default column order.
func OrderFields() []string {
	fields := []string{
		FieldOrderID, FieldOrderNumber, FieldOrderDate, FieldStatus,
		FieldShippingTotal, FieldShippingTaxTotal, FieldFeeTotal, FieldFeeTaxTotal,
		FieldTaxTotal, FieldCartDiscount, FieldOrderDiscount, FieldDiscountTotal,
		FieldOrderTotal, FieldRefundedTotal, FieldOrderCurrency,
		FieldPaymentMethod, FieldPaymentMethodTitle, FieldShippingMethod, FieldCustomerID,
	}
	fields = append(fields, AddressFields("billing")...)
	fields = append(fields, AddressFields("shipping")...)
	return append(fields, FieldCustomerNote)
}

// OrderCollectionFields lists the multi-valued order columns.
func OrderCollectionFields() []string {
	return []string{
		FieldLineItems, FieldShippingItems, FieldFeeItems, FieldTaxItems,
		FieldCouponItems, FieldRefunds, FieldOrderNotes, FieldDownloadPermissions,
	}
}

// OrderItemFields lists the per-line-item columns used in one-row-per-subitem mode.
func OrderItemFields() []string {
	return []string{
		FieldItemID, FieldItemName, FieldItemSKU, FieldItemProductID, FieldItemQuantity,
		FieldItemSubtotal, FieldItemSubtotalTax, FieldItemTotal, FieldItemTotalTax,
		FieldItemRefunded, FieldItemRefundedQty, FieldItemMeta,
	}
}

// CustomerFields lists customer fields in default column order.
func CustomerFields() []string {
	fields := []string{
		FieldCustomerUserID, FieldFirstName, FieldLastName, FieldUserLogin,
		FieldEmail, FieldDateRegistered,
	}
	fields = append(fields, AddressFields("billing")...)
	fields = append(fields, AddressFields("shipping")...)
	return append(fields, FieldTotalSpent, FieldOrderCount)
}

var knownFields = map[export.RecordType]map[string]struct{}{
	export.RecordTypeOrders:    fieldSet(OrderFields(), OrderCollectionFields(), OrderItemFields()),
	export.RecordTypeCustomers: fieldSet(CustomerFields(), []string{FieldCustomerIsGuest}),
}

func fieldSet(groups ...[]string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, group := range groups {
		for _, f := range group {
			set[f] = struct{}{}
		}
	}
	return set
}

// KnownFields returns every field name a custom mapping may reference for
// the record type. The returned map must not be modified.
func KnownFields(t export.RecordType) map[string]struct{} {
	return knownFields[t]
}

// legacyMetaAliases are storage-level meta keys that back dedicated fields
// under a different name.
var legacyMetaAliases = map[export.RecordType][]string{
	export.RecordTypeOrders: {
		"customer_user", "order_shipping", "order_shipping_tax", "order_tax",
		"order_currency", "billing_address_index", "shipping_address_index",
	},
	export.RecordTypeCustomers: {
		"nickname",
	},
}

// IsDedicatedMetaKey reports whether a meta key backs a field that already
// has its own column, so it must not be duplicated into the generic meta
// block. A leading underscore is ignored.
func IsDedicatedMetaKey(t export.RecordType, metaKey string) bool {
	name := strings.TrimPrefix(metaKey, "_")
	if _, ok := KnownFields(t)[name]; ok {
		return true
	}
	for _, alias := range legacyMetaAliases[t] {
		if alias == name {
			return true
		}
	}
	return false
}
