package query

import (
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	DefaultPage     = 1
	DefaultLimit    = 100
	DefaultMaxLimit = 500
)

var (
	reservedKeys = map[string]bool{"page": true, "sort": true, "limit": true, "fields": true}
	operatorKey  = regexp.MustCompile(`^([A-Za-z0-9_]+)\[([a-z]+)\]$`)
	fieldName    = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Composer turns request query parameters into clauses on a GORM query.
// Stages are meant to run as Filter, Sort, LimitFields, Paginate.
type Composer struct {
	db       *gorm.DB
	params   url.Values
	fields   FieldSet
	maxLimit int

	include []string
	exclude map[string]bool

	page  int
	limit int
}

func New(db *gorm.DB, params url.Values, fields FieldSet) *Composer {
	return &Composer{
		db:       db,
		params:   params,
		fields:   fields,
		maxLimit: DefaultMaxLimit,
		page:     DefaultPage,
		limit:    DefaultLimit,
	}
}

// WithMaxLimit caps the page size; n <= 0 keeps the default cap.
func (c *Composer) WithMaxLimit(n int) *Composer {
	if n > 0 {
		c.maxLimit = n
	}
	return c
}

// Filter adds one constraint per known, filterable parameter. Repeated
// values become IN, field[gte|gt|lte|lt] comparisons. Unknown fields,
// unknown operators and values that do not parse as the column type are
// dropped.
func (c *Composer) Filter() *Composer {
	for key, values := range c.params {
		if reservedKeys[key] || len(values) == 0 {
			continue
		}

		name, op := key, ""
		if m := operatorKey.FindStringSubmatch(key); m != nil {
			name, op = m[1], m[2]
		}

		field, ok := c.fields.Lookup(name)
		if !ok || !field.Filterable {
			continue
		}
		col := clause.Column{Table: clause.CurrentTable, Name: field.Column}

		if op == "" {
			if expr, ok := equality(col, field, values); ok {
				c.db = c.db.Where(expr)
			}
			continue
		}

		if !field.Comparable() {
			continue
		}
		v, ok := coerce(field, values[len(values)-1])
		if !ok {
			continue
		}
		switch op {
		case "gte":
			c.db = c.db.Where(clause.Gte{Column: col, Value: v})
		case "gt":
			c.db = c.db.Where(clause.Gt{Column: col, Value: v})
		case "lte":
			c.db = c.db.Where(clause.Lte{Column: col, Value: v})
		case "lt":
			c.db = c.db.Where(clause.Lt{Column: col, Value: v})
		}
	}
	return c
}

func equality(col clause.Column, field Field, values []string) (clause.Expression, bool) {
	coerced := make([]interface{}, 0, len(values))
	for _, raw := range values {
		if v, ok := coerce(field, raw); ok {
			coerced = append(coerced, v)
		}
	}
	switch len(coerced) {
	case 0:
		return nil, false
	case 1:
		return clause.Eq{Column: col, Value: coerced[0]}, true
	}
	return clause.IN{Column: col, Values: coerced}, true
}

func coerce(field Field, raw string) (interface{}, bool) {
	raw = strings.TrimSpace(raw)
	switch field.Type {
	case schema.Int, schema.Uint:
		n, err := strconv.ParseInt(raw, 10, 64)
		return n, err == nil
	case schema.Float:
		f, err := strconv.ParseFloat(raw, 64)
		return f, err == nil
	case schema.Bool:
		b, err := strconv.ParseBool(raw)
		return b, err == nil
	case schema.Time:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
		return nil, false
	case schema.String:
		return raw, true
	}
	return nil, false
}

// Sort orders by the comma separated sort parameter, "-" meaning
// descending. The id column always breaks ties. Without a usable sort the
// newest records come first.
func (c *Composer) Sort() *Composer {
	var columns []clause.OrderByColumn
	hasID := false

	for _, part := range splitList(c.params.Get("sort")) {
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		field, ok := c.fields.Lookup(name)
		if !ok || !field.scalar() {
			continue
		}
		if field.Column == "id" {
			hasID = true
		}
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: field.Column},
			Desc:   desc,
		})
	}

	if len(columns) == 0 {
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: "created_at"},
			Desc:   true,
		})
	}
	if !hasID {
		columns = append(columns, clause.OrderByColumn{
			Column: clause.Column{Table: clause.CurrentTable, Name: "id"},
			Desc:   true,
		})
	}

	for _, col := range columns {
		c.db = c.db.Order(col)
	}
	return c
}

// LimitFields records the projection used by Project. A list of plain
// names keeps only those fields plus id; a list of "-name" entries drops
// them. With no list, internal fields are dropped.
func (c *Composer) LimitFields() *Composer {
	c.include = nil
	c.exclude = make(map[string]bool)

	var include []string
	for _, part := range splitList(c.params.Get("fields")) {
		if strings.HasPrefix(part, "-") {
			if name := strings.TrimPrefix(part, "-"); fieldName.MatchString(name) && name != "id" {
				c.exclude[name] = true
			}
			continue
		}
		if fieldName.MatchString(part) {
			include = append(include, part)
		}
	}

	if len(include) > 0 {
		c.include = append([]string{"id"}, include...)
		c.exclude = nil
		return c
	}
	if len(c.exclude) == 0 {
		for name := range c.fields.internal {
			c.exclude[name] = true
		}
	}
	return c
}

// Paginate applies page and limit. Missing, malformed or non-positive
// values fall back to the defaults; limits above the cap are clamped.
func (c *Composer) Paginate() *Composer {
	c.page = positiveInt(c.params.Get("page"), DefaultPage)
	c.limit = positiveInt(c.params.Get("limit"), DefaultLimit)
	if c.limit > c.maxLimit {
		c.limit = c.maxLimit
	}
	if maxPage := math.MaxInt / c.limit; c.page > maxPage {
		c.page = maxPage
	}

	c.db = c.db.Offset(c.limit * (c.page - 1)).Limit(c.limit)
	return c
}

// Query returns the composed, not yet executed query.
func (c *Composer) Query() *gorm.DB {
	return c.db
}

func (c *Composer) Page() int  { return c.page }
func (c *Composer) Limit() int { return c.limit }

// Project serializes rows, a slice of records, into JSON objects holding
// only the fields selected by LimitFields.
func (c *Composer) Project(rows interface{}) ([]map[string]json.RawMessage, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var docs []map[string]json.RawMessage
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []map[string]json.RawMessage{}
	}

	for i, doc := range docs {
		docs[i] = c.projectOne(doc)
	}
	return docs, nil
}

func (c *Composer) projectOne(doc map[string]json.RawMessage) map[string]json.RawMessage {
	if c.include != nil {
		out := make(map[string]json.RawMessage, len(c.include))
		for _, name := range c.include {
			if v, ok := doc[name]; ok {
				out[name] = v
			}
		}
		return out
	}
	for name := range c.exclude {
		delete(doc, name)
	}
	return doc
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
