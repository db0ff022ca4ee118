package generator

import (
	"strconv"

	"mercator-hq/courier/pkg/export"
	"mercator-hq/courier/pkg/export/format"
)

func (g *Generator) customerRow(def *format.Definition, c *export.CustomerRecord) Row {
	f := g.fmt
	row := Row{
		format.FieldCustomerUserID:  c.ID,
		format.FieldFirstName:       c.FirstName,
		format.FieldLastName:        c.LastName,
		format.FieldUserLogin:       c.Username,
		format.FieldEmail:           c.Email,
		format.FieldDateRegistered:  f.date(c.DateRegistered),
		format.FieldTotalSpent:      f.price(c.TotalSpent),
		format.FieldOrderCount:      strconv.Itoa(c.OrderCount),
		format.FieldCustomerIsGuest: boolCell(c.Guest),
	}
	addAddress(row, "billing", c.Billing)
	addAddress(row, "shipping", c.Shipping)
	addMeta(row, c.Metadata)
	addStatic(row, def)
	return row
}
