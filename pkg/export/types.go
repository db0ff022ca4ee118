package export

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RecordType identifies the kind of entity being exported.
type RecordType string

const (
	// RecordTypeOrders exports orders.
	RecordTypeOrders RecordType = "orders"
	// RecordTypeCustomers exports customers (registered and guest).
	RecordTypeCustomers RecordType = "customers"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeOrders, RecordTypeCustomers:
		return true
	}
	return false
}

// HasSubItems reports whether records of this type carry line items, which
// makes row mode and item encoding meaningful.
func (t RecordType) HasSubItems() bool {
	return t == RecordTypeOrders
}

// ParseRecordType parses s into a RecordType.
func ParseRecordType(s string) (RecordType, error) {
	t := RecordType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown record type %q", s)
	}
	return t, nil
}

// Identifier addresses one record. Registered records use ID only. Guest
// customers have no record of their own and are addressed by the email and
// order that introduced them.
type Identifier struct {
	ID      string `json:"id,omitempty"`
	Email   string `json:"email,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

const guestPrefix = "guest:"

// IsGuest reports whether the identifier denotes a guest customer.
func (i Identifier) IsGuest() bool {
	return i.ID == "" && i.OrderID != ""
}

// String encodes the identifier. Guests encode as guest:<orderID>:<email>.
func (i Identifier) String() string {
	if i.IsGuest() {
		return guestPrefix + i.OrderID + ":" + i.Email
	}
	return i.ID
}

// ParseIdentifier is the inverse of Identifier.String.
func ParseIdentifier(s string) (Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Identifier{}, fmt.Errorf("empty identifier")
	}
	if !strings.HasPrefix(s, guestPrefix) {
		return Identifier{ID: s}, nil
	}
	parts := strings.SplitN(strings.TrimPrefix(s, guestPrefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return Identifier{}, fmt.Errorf("malformed guest identifier %q", s)
	}
	return Identifier{OrderID: parts[0], Email: parts[1]}, nil
}

// ParseIdentifiers parses a list of encoded identifiers, skipping blanks.
func ParseIdentifiers(values []string) ([]Identifier, error) {
	ids := make([]Identifier, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		id, err := ParseIdentifier(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// QueryFilter narrows RecordStore.QueryIDs.
type QueryFilter struct {
	// Statuses limits orders to the given statuses. Empty means any.
	Statuses []string

	// Since and Until bound the record date (inclusive).
	Since *time.Time
	Until *time.Time

	// OnlyNew excludes records already flagged as exported.
	OnlyNew bool

	// Limit caps the number of identifiers returned. 0 means unlimited.
	Limit int
}

// RecordStore is the read side of the host platform's data layer.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// GetOrder loads one order. Returns ErrRecordNotFound if it does not exist
	// and a RecordStoreError if the store is unreachable.
	GetOrder(ctx context.Context, id string) (*OrderRecord, error)

	// GetCustomer loads one registered customer. Returns ErrRecordNotFound if
	// no registered customer exists for id.
	GetCustomer(ctx context.Context, id string) (*CustomerRecord, error)

	// QueryIDs returns identifiers of the given type matching filter, in
	// ascending record order.
	QueryIDs(ctx context.Context, recordType RecordType, filter QueryFilter) ([]Identifier, error)

	// ListMetaKeys returns every metadata key present on records of the type.
	ListMetaKeys(ctx context.Context, recordType RecordType) ([]string, error)

	// MarkExported flags records as exported. The flag is set-once.
	MarkExported(ctx context.Context, recordType RecordType, ids []Identifier) error
}
