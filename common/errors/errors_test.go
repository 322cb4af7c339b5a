package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	cause := fmt.Errorf("row locked")
	err := Wrap(ErrInsufficientStock, cause)

	assert.True(t, stderrors.Is(err, ErrInsufficientStock))
	assert.True(t, stderrors.Is(err, cause))
	assert.Nil(t, ErrInsufficientStock.Err, "sentinel must not be mutated")
	assert.Equal(t, "Insufficient stock: row locked", err.Error())
}

func TestAsFallsBackToInternal(t *testing.T) {
	appErr := As(fmt.Errorf("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Nil(t, ErrInternalServer.Err)

	wrapped := fmt.Errorf("checkout: %w", ErrEmptyCart)
	assert.Equal(t, http.StatusBadRequest, As(wrapped).Code)
}

func TestErrorMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/orders/:id", func(c *gin.Context) {
		_ = c.Error(ErrOrderNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/42", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Order not found"}`, w.Body.String())
}
