package resource

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"natours_echo/internal/apperror"
	"natours_echo/internal/models"
	"natours_echo/internal/query"
	"natours_echo/internal/repository"
)

// Config customizes the generated handlers for one entity.
type Config[T any] struct {
	Fields   query.FieldSet
	MaxLimit int

	// Prepare runs on a bound create payload before it is persisted.
	Prepare func(c echo.Context, entity *T) error
	// PreparePatch can add to or rewrite an update payload.
	PreparePatch func(c echo.Context, patch map[string]json.RawMessage) error
	// PreFilter narrows GetAll before the query parameters apply.
	PreFilter func(c echo.Context, db *gorm.DB) *gorm.DB
	// AfterWrite runs after every successful create, update or delete.
	AfterWrite func(c echo.Context)
}

// Handler provides the CRUD endpoints of one entity.
type Handler[T any] struct {
	repo *repository.Repository[T]
	cfg  Config[T]
}

func New[T any](repo *repository.Repository[T], cfg Config[T]) *Handler[T] {
	return &Handler[T]{repo: repo, cfg: cfg}
}

func (h *Handler[T]) Repository() *repository.Repository[T] { return h.repo }

func (h *Handler[T]) CreateOne(c echo.Context) error {
	entity := h.repo.New()
	if err := (&echo.DefaultBinder{}).BindBody(c, entity); err != nil {
		return err
	}
	if r, ok := any(entity).(models.IdentityResetter); ok {
		r.ResetIdentity()
	}

	if h.cfg.Prepare != nil {
		if err := h.cfg.Prepare(c, entity); err != nil {
			return err
		}
	}

	if err := h.repo.Create(c.Request().Context(), entity); err != nil {
		return err
	}
	h.afterWrite(c)
	return One(c, http.StatusCreated, entity)
}

func (h *Handler[T]) GetOne(c echo.Context) error {
	entity, err := h.repo.FindByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return One(c, http.StatusOK, entity)
}

func (h *Handler[T]) GetAll(c echo.Context) error {
	db := h.repo.Query(c.Request().Context())
	if h.cfg.PreFilter != nil {
		db = h.cfg.PreFilter(c, db)
	}

	q := query.New(db, c.QueryParams(), h.cfg.Fields).
		WithMaxLimit(h.cfg.MaxLimit).
		Filter().
		Sort().
		LimitFields().
		Paginate()

	var rows []T
	if err := q.Query().Find(&rows).Error; err != nil {
		return err
	}

	docs, err := q.Project(rows)
	if err != nil {
		return err
	}
	return Many(c, docs, len(docs))
}

func (h *Handler[T]) UpdateOne(c echo.Context) error {
	patch, err := ReadPatch(c)
	if err != nil {
		return err
	}
	if h.cfg.PreparePatch != nil {
		if err := h.cfg.PreparePatch(c, patch); err != nil {
			return err
		}
	}

	entity, err := h.repo.Update(c.Request().Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	h.afterWrite(c)
	return One(c, http.StatusOK, entity)
}

func (h *Handler[T]) DeleteOne(c echo.Context) error {
	if err := h.repo.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	h.afterWrite(c)
	return NoContent(c)
}

func (h *Handler[T]) afterWrite(c echo.Context) {
	if h.cfg.AfterWrite != nil {
		h.cfg.AfterWrite(c)
	}
}

// ReadPatch decodes an update payload. JSON bodies are taken as is; form
// bodies contribute their text values as JSON strings.
func ReadPatch(c echo.Context) (map[string]json.RawMessage, error) {
	patch := map[string]json.RawMessage{}
	req := c.Request()
	if req.ContentLength == 0 {
		return patch, nil
	}

	ctype := req.Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ctype, echo.MIMEMultipartForm) || strings.HasPrefix(ctype, echo.MIMEApplicationForm) {
		form, err := c.FormParams()
		if err != nil {
			return nil, apperror.Validation("Invalid form data", nil)
		}
		for key, values := range form {
			if len(values) == 0 {
				continue
			}
			raw, err := json.Marshal(values[len(values)-1])
			if err != nil {
				return nil, err
			}
			patch[key] = raw
		}
		return patch, nil
	}

	if err := (&echo.DefaultBinder{}).BindBody(c, &patch); err != nil {
		return nil, err
	}
	if patch == nil {
		patch = map[string]json.RawMessage{}
	}
	return patch, nil
}
