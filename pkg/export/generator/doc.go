// Package generator is the row generator: it loads records, flattens them
// into rows keyed by column key and encodes the rows as CSV for a resolved
// format.Definition.
//
// Orders expand their sub-collections (line items, shipping, fees, taxes,
// coupons, refunds) into single cells, either pipe-delimited
//
//	id:7|name:Mug|sku:MUG-1|quantity:2;id:8|name:Tea \| Green|...
//
// or as a JSON array. In one-row-per-subitem mode the order row is repeated
// once per line item with the item_* columns filled; an order without line
// items yields one row whose item columns are blank.
//
// Every declared column is present in every row (blank when absent), every
// cell passes the formula-injection guard, and header and data rows share
// one encoder. A missing record is skipped; any other record store failure
// aborts generation with *export.RecordStoreError.
package generator
