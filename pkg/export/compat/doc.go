// Package compat is the compatibility transform layer. It keeps the quirks
// of historical export schemas out of the row generator: transforms are
// registered per format key and run after a row has been generated and
// before it is encoded.
//
// Header transforms decide the effective columns of a format and depend on
// the format alone. Row transforms rewrite a single row and receive the
// source record. A column that no transform fills is written blank.
//
// RegisterLegacy installs the transforms of the legacy built-in formats:
// fixed-width order_item_N columns, a single-column item summary, the
// composite variation string and the combined customer address.
package compat
