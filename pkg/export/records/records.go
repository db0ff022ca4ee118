package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"mercator-hq/courier/pkg/export"
)

var errUnknownType = errors.New("unknown record type")

// Writer loads records into a store.
type Writer interface {
	PutOrder(ctx context.Context, o *export.OrderRecord) error
	PutCustomer(ctx context.Context, c *export.CustomerRecord) error
}

// Dump is the JSON document accepted by Import.
type Dump struct {
	Orders    []*export.OrderRecord    `json:"orders"`
	Customers []*export.CustomerRecord `json:"customers"`
}

// ImportResult counts imported records.
type ImportResult struct {
	Orders    int
	Customers int
}

// Import decodes a Dump from r and writes every record to w.
func Import(ctx context.Context, w Writer, r io.Reader) (ImportResult, error) {
	var res ImportResult
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return res, fmt.Errorf("failed to decode records: %w", err)
	}
	for _, o := range dump.Orders {
		if o == nil || o.ID == "" {
			return res, fmt.Errorf("order %d has no id", res.Orders)
		}
		if err := w.PutOrder(ctx, o); err != nil {
			return res, err
		}
		res.Orders++
	}
	for _, c := range dump.Customers {
		if c == nil || c.ID == "" {
			return res, fmt.Errorf("customer %d has no id", res.Customers)
		}
		if err := w.PutCustomer(ctx, c); err != nil {
			return res, err
		}
		res.Customers++
	}
	return res, nil
}

// sortOrders orders by date, then id.
func sortOrders(orders []*export.OrderRecord) {
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Date.Equal(orders[j].Date) {
			return orders[i].Date.Before(orders[j].Date)
		}
		return orders[i].ID < orders[j].ID
	})
}

func inRange(t time.Time, f export.QueryFilter) bool {
	if f.Since != nil && t.Before(*f.Since) {
		return false
	}
	if f.Until != nil && t.After(*f.Until) {
		return false
	}
	return true
}

func matchOrder(o *export.OrderRecord, f export.QueryFilter) bool {
	if !inRange(o.Date, f) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if strings.EqualFold(s, o.Status) {
			return true
		}
	}
	return false
}

// guestIdentifiers returns one identifier per distinct guest billing email,
// addressed by the first order (in the given order) that used it.
func guestIdentifiers(orders []*export.OrderRecord, f export.QueryFilter) []export.Identifier {
	seen := make(map[string]struct{})
	var ids []export.Identifier
	for _, o := range orders {
		if o.CustomerID != "" || o.Billing.Email == "" {
			continue
		}
		email := strings.ToLower(o.Billing.Email)
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		if !inRange(o.Date, f) {
			continue
		}
		ids = append(ids, export.Identifier{OrderID: o.ID, Email: o.Billing.Email})
	}
	return ids
}

func limit(ids []export.Identifier, n int) []export.Identifier {
	if n > 0 && len(ids) > n {
		return ids[:n]
	}
	return ids
}
