package format

import (
	"strings"

	"mercator-hq/courier/pkg/export"
)

// Built-in format keys.
const (
	KeyDefault              = "default"
	KeyDefaultOneRowPerItem = "default_one_row_per_item"
	KeyImport               = "import"
	KeyLegacyImport         = "legacy_import"
	KeyLegacyOneRowPerItem  = "legacy_one_row_per_item"
	KeyLegacySingleColumn   = "legacy_single_column"
	KeyLegacy               = "legacy"
)

// template is the static shape a built-in definition is constructed from.
type template struct {
	key          string
	name         string
	rowMode      RowMode
	itemEncoding ItemEncoding
	columns      Columns
}

// builtins holds the process-wide, read-only built-in definitions.
var builtins = buildBuiltins()

func buildBuiltins() map[export.RecordType][]*Definition {
	out := map[export.RecordType][]*Definition{}
	for t, templates := range map[export.RecordType][]template{
		export.RecordTypeOrders:    orderTemplates(),
		export.RecordTypeCustomers: customerTemplates(),
	} {
		for _, tpl := range templates {
			out[t] = append(out[t], &Definition{
				Kind:         KindBuiltin,
				Key:          tpl.key,
				Name:         tpl.name,
				RecordType:   t,
				Delimiter:    ',',
				Enclosure:    '"',
				RowMode:      tpl.rowMode,
				ItemEncoding: tpl.itemEncoding,
				Columns:      tpl.columns,
			})
		}
	}
	return out
}

// Builtins returns copies of the built-in definitions for a record type in
// their canonical order.
func Builtins(t export.RecordType) []*Definition {
	defs := builtins[t]
	out := make([]*Definition, len(defs))
	for i, d := range defs {
		cp := *d
		cp.Columns = d.Columns.Clone()
		out[i] = &cp
	}
	return out
}

// Builtin returns a copy of one built-in definition.
func Builtin(t export.RecordType, key string) (*Definition, bool) {
	for _, d := range Builtins(t) {
		if d.Key == key {
			return d, true
		}
	}
	return nil, false
}

// IsBuiltinKey reports whether key names a built-in format for t.
func IsBuiltinKey(t export.RecordType, key string) bool {
	for _, d := range builtins[t] {
		if d.Key == key {
			return true
		}
	}
	return false
}

// identity builds columns whose header equals the key.
func identity(keys ...[]string) Columns {
	var cols Columns
	for _, group := range keys {
		for _, k := range group {
			cols = append(cols, Column{Key: k, Header: k})
		}
	}
	return cols
}

// titled builds columns with title-cased headers ("billing_first_name" ->
// "Billing First Name"), the shape legacy spreadsheets expect.
func titled(keys ...[]string) Columns {
	var cols Columns
	for _, group := range keys {
		for _, k := range group {
			cols = append(cols, Column{Key: k, Header: titleCase(k)})
		}
	}
	return cols
}

func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		switch w {
		case "id", "sku":
			words[i] = strings.ToUpper(w)
		case "":
		default:
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// renamed applies header overrides to columns.
func renamed(cols Columns, headers map[string]string) Columns {
	out := cols.Clone()
	for i, col := range out {
		if h, ok := headers[col.Key]; ok {
			out[i].Header = h
		}
	}
	return out
}

func without(fields []string, drop ...string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		skip := false
		for _, d := range drop {
			if f == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, f)
		}
	}
	return out
}

func orderTemplates() []template {
	collections := OrderCollectionFields()
	return []template{
		{
			key:          KeyDefault,
			name:         "Default",
			rowMode:      RowPerRecord,
			itemEncoding: EncodingPipe,
			columns:      identity(OrderFields(), collections),
		},
		{
			key:          KeyDefaultOneRowPerItem,
			name:         "Default - One Row per Item",
			rowMode:      RowPerSubItem,
			itemEncoding: EncodingPipe,
			columns:      identity(OrderFields(), without(collections, FieldLineItems), OrderItemFields()),
		},
		{
			key:          KeyImport,
			name:         "CSV Import",
			rowMode:      RowPerRecord,
			itemEncoding: EncodingJSON,
			columns: renamed(identity(OrderFields(), collections), map[string]string{
				FieldOrderDate:           "date",
				FieldCustomerID:          "customer_user",
				FieldDownloadPermissions: "download_permissions_granted",
			}),
		},
		{
			key:          KeyLegacyImport,
			name:         "Legacy CSV Import",
			rowMode:      RowPerRecord,
			itemEncoding: EncodingPipe,
			columns: renamed(titled(without(OrderFields(),
				FieldPaymentMethodTitle, FieldCartDiscount, FieldOrderDiscount,
				"billing_full_name", "shipping_full_name", "billing_state_code", "shipping_state_code",
			), []string{FieldOrderNotes}), map[string]string{
				FieldOrderID:       "Order ID",
				FieldOrderCurrency: "Currency",
			}),
		},
		{
			key:          KeyLegacyOneRowPerItem,
			name:         "Legacy - One Row per Item",
			rowMode:      RowPerSubItem,
			itemEncoding: EncodingPipe,
			columns: titled(
				[]string{FieldOrderID, FieldOrderDate, FieldStatus, FieldShippingTotal, FieldTaxTotal,
					FieldDiscountTotal, FieldOrderTotal, FieldRefundedTotal, FieldPaymentMethod,
					FieldShippingMethod, FieldCustomerID},
				AddressFields("billing"),
				AddressFields("shipping"),
				[]string{FieldCustomerNote, FieldItemSKU, FieldItemName, FieldItemQuantity,
					FieldItemTotal, FieldItemRefunded, FieldCouponItems},
			),
		},
		{
			key:          KeyLegacySingleColumn,
			name:         "Legacy - Single Column Items",
			rowMode:      RowPerRecord,
			itemEncoding: EncodingPipe,
			columns: titled(
				[]string{FieldOrderID, FieldOrderDate, FieldStatus, FieldShippingTotal, FieldTaxTotal,
					FieldDiscountTotal, FieldOrderTotal, FieldRefundedTotal, FieldPaymentMethod,
					FieldShippingMethod, FieldCustomerID},
				AddressFields("billing"),
				AddressFields("shipping"),
				[]string{FieldCustomerNote, FieldLineItems, FieldCouponItems},
			),
		},
	}
}

func customerTemplates() []template {
	return []template{
		{
			key:     KeyDefault,
			name:    "Default",
			columns: identity(CustomerFields()),
		},
		{
			key:  KeyImport,
			name: "CSV Import",
			columns: renamed(identity(CustomerFields()), map[string]string{
				FieldUserLogin: "username",
			}),
		},
		{
			key:  KeyLegacy,
			name: "Legacy",
			columns: titled(
				[]string{FieldCustomerUserID, FieldFirstName, FieldLastName, FieldEmail, FieldDateRegistered},
				without(AddressFields("billing"), "billing_full_name", "billing_state_code"),
				without(AddressFields("shipping"), "shipping_full_name", "shipping_state_code"),
			),
		},
	}
}
