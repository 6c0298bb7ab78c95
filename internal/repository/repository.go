package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
)

// Repository persists one entity type and runs its lifecycle functions at
// fixed points. Every write happens inside a single transaction.
type Repository[T any] struct {
	db       *gorm.DB
	writable []string
	goNames  map[string]string
}

// New returns a repository for T. writable lists the JSON fields a partial
// update may change.
func New[T any](db *gorm.DB, writable ...string) *Repository[T] {
	return &Repository[T]{
		db:       db,
		writable: writable,
		goNames:  jsonToGoNames(reflect.TypeOf((*T)(nil)).Elem()),
	}
}

func (r *Repository[T]) DB() *gorm.DB { return r.db }

// New allocates an entity with its defaults applied, ready to be decoded
// into.
func (r *Repository[T]) New() *T {
	entity := new(T)
	if d, ok := any(entity).(models.Defaulter); ok {
		d.ApplyDefaults()
	}
	return entity
}

// Query returns a retrieval query with the entity scope and population.
func (r *Repository[T]) Query(ctx context.Context) *gorm.DB {
	return populate[T](scope[T](r.db.WithContext(ctx).Model(new(T))))
}

func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	entity := new(T)
	if err := r.Query(ctx).Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).Take(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

// FindOne returns the first scoped record matching the condition, without
// population.
func (r *Repository[T]) FindOne(ctx context.Context, query interface{}, args ...interface{}) (*T, error) {
	entity := new(T)
	if err := scope[T](r.db.WithContext(ctx)).Where(query, args...).Take(entity).Error; err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	if err := r.prepare(ctx, entity, nil); err != nil {
		return err
	}
	if ider, ok := any(entity).(models.Identifiable); ok {
		ider.EnsureID()
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := beforePersist(ctx, tx, entity, true); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(entity).Error; err != nil {
			return err
		}
		if err := afterPersist(ctx, tx, entity); err != nil {
			return err
		}
		return reload(tx, entity)
	})
}

// Save writes a loaded entity back after full validation.
func (r *Repository[T]) Save(ctx context.Context, entity *T) error {
	if err := r.prepare(ctx, entity, nil); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return save(ctx, tx, entity)
	})
}

// Update applies a partial JSON payload restricted to the writable fields.
func (r *Repository[T]) Update(ctx context.Context, id string, patch map[string]json.RawMessage) (*T, error) {
	return r.UpdateFields(ctx, id, patch, r.writable...)
}

// UpdateFields is Update with an explicit allow-list. Only the changed
// fields are validated; nothing is written when the payload changes
// nothing.
func (r *Repository[T]) UpdateFields(ctx context.Context, id string, patch map[string]json.RawMessage, allowed ...string) (*T, error) {
	var entity *T

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity = new(T)
		err := populate[T](scope[T](tx.Model(entity))).
			Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).
			Take(entity).Error
		if err != nil {
			return err
		}

		filtered := allowFields(patch, allowed)
		if len(filtered) == 0 {
			return nil
		}

		before, err := json.Marshal(entity)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(filtered)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(payload, entity); err != nil {
			return apperror.Validation("Invalid input data. "+err.Error(), nil)
		}

		if err := r.prepare(ctx, entity, r.changedGoFields(filtered)); err != nil {
			return err
		}

		after, err := json.Marshal(entity)
		if err != nil {
			return err
		}
		if bytes.Equal(before, after) {
			return nil
		}

		return save(ctx, tx, entity)
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := new(T)
		err := scope[T](tx.Model(entity)).
			Where(clause.Eq{Column: clause.PrimaryColumn, Value: id}).
			Take(entity).Error
		if err != nil {
			return err
		}

		if h, ok := any(entity).(models.BeforeRemover); ok {
			if err := h.BeforeRemove(ctx, tx); err != nil {
				return err
			}
		}
		if err := tx.Delete(entity).Error; err != nil {
			return err
		}
		if h, ok := any(entity).(models.AfterRemover); ok {
			return h.AfterRemove(ctx, tx)
		}
		return nil
	})
}

// prepare normalizes and validates entity. A nil fields list validates the
// whole struct.
func (r *Repository[T]) prepare(ctx context.Context, entity *T, fields []string) error {
	if n, ok := any(entity).(models.Normalizer); ok {
		n.Normalize()
	}

	v := models.Validator()
	var err error
	if fields == nil {
		err = v.StructCtx(ctx, entity)
	} else if len(fields) > 0 {
		err = v.StructPartialCtx(ctx, entity, fields...)
	}
	if err != nil {
		return err
	}

	if c, ok := any(entity).(models.ConstraintChecker); ok {
		return c.CheckConstraints()
	}
	return nil
}

func (r *Repository[T]) changedGoFields(patch map[string]json.RawMessage) []string {
	fields := make([]string, 0, len(patch))
	for name := range patch {
		if goName, ok := r.goNames[name]; ok {
			fields = append(fields, goName)
		}
	}
	return fields
}

func save[T any](ctx context.Context, tx *gorm.DB, entity *T) error {
	if err := beforePersist(ctx, tx, entity, false); err != nil {
		return err
	}
	if v, ok := any(entity).(models.Versioned); ok {
		v.BumpVersion()
	}
	if err := tx.Omit(clause.Associations).Save(entity).Error; err != nil {
		return err
	}
	if err := afterPersist(ctx, tx, entity); err != nil {
		return err
	}
	return reload(tx, entity)
}

func beforePersist[T any](ctx context.Context, tx *gorm.DB, entity *T, isNew bool) error {
	if h, ok := any(entity).(models.BeforePersister); ok {
		return h.BeforePersist(ctx, tx, isNew)
	}
	return nil
}

func afterPersist[T any](ctx context.Context, tx *gorm.DB, entity *T) error {
	if h, ok := any(entity).(models.AfterPersister); ok {
		return h.AfterPersist(ctx, tx)
	}
	return nil
}

// reload reads the written record back with its references populated. The
// scope is skipped so a record that just left it can still be returned.
func reload[T any](tx *gorm.DB, entity *T) error {
	ider, ok := any(entity).(models.Identifiable)
	if !ok {
		return nil
	}
	fresh := new(T)
	err := populate[T](tx.Model(fresh)).
		Where(clause.Eq{Column: clause.PrimaryColumn, Value: ider.GetID()}).
		Take(fresh).Error
	if err != nil {
		return err
	}
	*entity = *fresh
	return nil
}

func scope[T any](db *gorm.DB) *gorm.DB {
	if s, ok := any(new(T)).(models.Scoper); ok {
		return s.Scope(db)
	}
	return db
}

func populate[T any](db *gorm.DB) *gorm.DB {
	if p, ok := any(new(T)).(models.Populator); ok {
		return p.Populate(db)
	}
	return db
}

func allowFields(patch map[string]json.RawMessage, allowed []string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(allowed))
	for _, name := range allowed {
		if v, ok := patch[name]; ok {
			out[name] = v
		}
	}
	return out
}

// jsonToGoNames maps JSON names to Go field names, following embedded
// structs the way encoding/json does.
func jsonToGoNames(t reflect.Type) map[string]string {
	names := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			for k, v := range jsonToGoNames(f.Type) {
				names[k] = f.Name + "." + v
			}
			continue
		}
		if !f.IsExported() || name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[name] = f.Name
	}
	return names
}
