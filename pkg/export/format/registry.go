package format

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/courier/pkg/export"
)

// MetaKeyLister discovers metadata keys for a record type. export.RecordStore
// satisfies it.
type MetaKeyLister interface {
	ListMetaKeys(ctx context.Context, t export.RecordType) ([]string, error)
}

// Registry resolves format keys to definitions. Built-ins are matched first,
// then custom formats from the Store. Custom formats are resolved on every
// lookup against a live meta-key query, so edits and new meta keys take
// effect for the next export.
type Registry struct {
	store  Store
	meta   MetaKeyLister
	mapper *Mapper
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a registry over store. meta may be nil, in which case
// includeAllMeta expands to nothing.
func NewRegistry(store Store, meta MetaKeyLister) *Registry {
	return &Registry{
		store:  store,
		meta:   meta,
		mapper: NewMapper(),
		logger: slog.Default().With("component", "export.format.registry"),
		now:    time.Now,
	}
}

// Store returns the backing custom format store.
func (r *Registry) Store() Store { return r.store }

// GetFormat resolves key for record type t. An empty key resolves the active
// format. Returns export.ErrFormatNotFound for unknown keys.
func (r *Registry) GetFormat(ctx context.Context, t export.RecordType, key string) (*Definition, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown record type %q", export.ErrFormatNotFound, t)
	}
	if key == "" {
		active, err := r.ActiveFormat(ctx, t)
		if err != nil {
			return nil, err
		}
		key = active
	}

	if def, ok := Builtin(t, key); ok {
		return def, nil
	}

	cf, err := r.store.Get(ctx, t, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", err, t, key)
	}
	return r.resolve(ctx, cf)
}

// ListFormats returns every format of t: built-ins in canonical order, then
// custom formats by key. Custom formats that no longer resolve are logged and
// left out.
func (r *Registry) ListFormats(ctx context.Context, t export.RecordType) ([]*Definition, error) {
	defs := Builtins(t)

	customs, err := r.store.List(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, cf := range customs {
		def, err := r.resolve(ctx, cf)
		if err != nil {
			if !isFormatError(err) {
				return nil, err
			}
			r.logger.Warn("Custom format does not resolve", "record_type", t, "key", cf.Key, "error", err)
			continue
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ListCustomFormats returns the stored custom formats of t.
func (r *Registry) ListCustomFormats(ctx context.Context, t export.RecordType) ([]*CustomFormat, error) {
	return r.store.List(ctx, t)
}

// SaveCustomFormat validates and stores cf. A blank key is generated from the
// name. Built-in keys cannot be overwritten. The stored format is returned.
func (r *Registry) SaveCustomFormat(ctx context.Context, cf *CustomFormat) (*CustomFormat, error) {
	cf = cf.Clone()
	if cf.Key == "" {
		key, err := r.GenerateKey(ctx, cf.RecordType, cf.Name)
		if err != nil {
			return nil, err
		}
		cf.Key = key
	}
	if IsBuiltinKey(cf.RecordType, cf.Key) {
		return nil, export.NewFormatError(cf.RecordType, cf.Key, "key", "built-in formats are read-only")
	}
	if err := ValidateCustomFormat(cf); err != nil {
		return nil, err
	}
	cf.UpdatedAt = r.now().UTC()

	if err := r.store.Save(ctx, cf); err != nil {
		return nil, err
	}
	r.logger.Info("Custom format saved", "record_type", cf.RecordType, "key", cf.Key)
	return cf, nil
}

// DeleteCustomFormat removes a custom format. It fails with
// export.ErrFormatInUse if key is the active format of t.
func (r *Registry) DeleteCustomFormat(ctx context.Context, t export.RecordType, key string) error {
	if IsBuiltinKey(t, key) {
		return export.NewFormatError(t, key, "key", "built-in formats cannot be deleted")
	}
	active, err := r.store.ActiveFormat(ctx, t)
	if err != nil {
		return err
	}
	if active == key {
		return fmt.Errorf("%w: %s/%s", export.ErrFormatInUse, t, key)
	}
	if err := r.store.Delete(ctx, t, key); err != nil {
		return err
	}
	r.logger.Info("Custom format deleted", "record_type", t, "key", key)
	return nil
}

// GenerateKey derives a free custom key for name against the current store.
func (r *Registry) GenerateKey(ctx context.Context, t export.RecordType, name string) (string, error) {
	customs, err := r.store.List(ctx, t)
	if err != nil {
		return "", err
	}
	existing := make([]string, len(customs))
	for i, cf := range customs {
		existing[i] = cf.Key
	}
	return GenerateKey(t, name, existing), nil
}

// ActiveFormat returns the selected format key of t, or KeyDefault.
func (r *Registry) ActiveFormat(ctx context.Context, t export.RecordType) (string, error) {
	key, err := r.store.ActiveFormat(ctx, t)
	if err != nil {
		return "", err
	}
	if key == "" {
		return KeyDefault, nil
	}
	return key, nil
}

// SetActiveFormat selects key for t. The key must resolve.
func (r *Registry) SetActiveFormat(ctx context.Context, t export.RecordType, key string) error {
	if _, err := r.GetFormat(ctx, t, key); err != nil {
		return err
	}
	return r.store.SetActiveFormat(ctx, t, key)
}

func (r *Registry) resolve(ctx context.Context, cf *CustomFormat) (*Definition, error) {
	var discover MetaKeysFunc
	if cf.IncludeAllMeta && r.meta != nil {
		discover = func() ([]string, error) {
			return r.meta.ListMetaKeys(ctx, cf.RecordType)
		}
	}
	cols, err := r.mapper.ResolveColumns(cf, discover)
	if err != nil {
		return nil, err
	}
	return cf.definition(cols)
}

func isFormatError(err error) bool {
	var fe *export.FormatError
	return errors.As(err, &fe)
}
