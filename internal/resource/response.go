package resource

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every successful JSON response.
type Envelope struct {
	Status  string      `json:"status"`
	Results *int        `json:"results,omitempty"`
	Token   string      `json:"token,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Data wraps a single document as {"data": doc}.
type Data struct {
	Data interface{} `json:"data"`
}

func One(c echo.Context, code int, doc interface{}) error {
	return c.JSON(code, Envelope{Status: "success", Data: Data{Data: doc}})
}

func Many(c echo.Context, docs interface{}, count int) error {
	return c.JSON(http.StatusOK, Envelope{Status: "success", Results: &count, Data: Data{Data: docs}})
}

func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}
