package query

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Field describes one JSON-visible column of an entity.
type Field struct {
	Name       string
	Column     string
	Type       schema.DataType
	Filterable bool
}

// Comparable reports whether gte/gt/lte/lt make sense on the field.
func (f Field) Comparable() bool {
	switch f.Type {
	case schema.Int, schema.Uint, schema.Float, schema.Time:
		return true
	}
	return false
}

func (f Field) scalar() bool {
	switch f.Type {
	case schema.Int, schema.Uint, schema.Float, schema.Time, schema.String, schema.Bool:
		return true
	}
	return false
}

// FieldSet maps JSON names to columns for one entity.
type FieldSet struct {
	fields   map[string]Field
	internal map[string]bool
}

func (s FieldSet) Lookup(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// FieldsOf builds the field set of model from its GORM schema. Only the
// names in filterable accept filters; with none given every scalar field
// does. Fields hidden from JSON are never exposed.
func FieldsOf(db *gorm.DB, model interface{}, filterable ...string) (FieldSet, error) {
	s, err := schema.Parse(model, &sync.Map{}, db.NamingStrategy)
	if err != nil {
		return FieldSet{}, err
	}

	allow := make(map[string]bool, len(filterable))
	for _, name := range filterable {
		allow[name] = true
	}

	set := FieldSet{
		fields:   make(map[string]Field, len(s.Fields)),
		internal: map[string]bool{"version": true},
	}
	for _, f := range s.Fields {
		if f.DBName == "" {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}

		field := Field{Name: name, Column: f.DBName, Type: dataTypeOf(f)}
		field.Filterable = field.scalar() && (len(allow) == 0 || allow[name])
		set.fields[name] = field
	}
	return set, nil
}

// dataTypeOf classifies a field by its Go type. DataType carries the raw
// column type when a `type:` tag is present ("varchar(40)"), so it cannot
// be used for that.
func dataTypeOf(f *schema.Field) schema.DataType {
	switch f.GORMDataType {
	case schema.Bool, schema.Int, schema.Uint, schema.Float, schema.String, schema.Time:
		return f.GORMDataType
	}

	t := f.FieldType
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Time{}) {
		return schema.Time
	}
	switch t.Kind() {
	case reflect.String:
		return schema.String
	case reflect.Bool:
		return schema.Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return schema.Int
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.Uint
	case reflect.Float32, reflect.Float64:
		return schema.Float
	}
	return f.GORMDataType
}

// MustFieldsOf is FieldsOf for package level wiring; it panics on a model
// GORM cannot parse.
func MustFieldsOf(db *gorm.DB, model interface{}, filterable ...string) FieldSet {
	set, err := FieldsOf(db, model, filterable...)
	if err != nil {
		panic(err)
	}
	return set
}
