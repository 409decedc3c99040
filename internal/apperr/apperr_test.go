package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"jobmate/search-service/internal/apperr"
)

func TestIs_MatchesByKind(t *testing.T) {
	err := apperr.NotFound("job not found")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NotErrorIs(t, err, apperr.ErrForbidden)

	wrapped := fmt.Errorf("handler: %w", apperr.Unavailable("search down", errors.New("dial tcp")))
	assert.ErrorIs(t, wrapped, apperr.ErrUnavailable)
}

func TestUnavailable_KeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := apperr.Unavailable("search down", cause)
	assert.Equal(t, "search down", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *apperr.Error
		want int
	}{
		{apperr.NotFound("x"), http.StatusNotFound},
		{apperr.Forbidden("x"), http.StatusForbidden},
		{apperr.Invalid("x"), http.StatusBadRequest},
		{apperr.Conflict("x"), http.StatusConflict},
		{apperr.Unavailable("x", nil), http.StatusServiceUnavailable},
		{apperr.Internal("x", nil), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.err.HTTPStatus(), "kind %s", c.err.Kind)
	}
}

func TestAs_ClassifiesForeignErrorsAsInternal(t *testing.T) {
	e := apperr.As(errors.New("pgx: boom"))
	assert.Equal(t, apperr.KindInternal, e.Kind)
	assert.Equal(t, "internal error", e.Message)

	nf := apperr.As(fmt.Errorf("wrap: %w", apperr.NotFound("missing")))
	assert.Equal(t, apperr.KindNotFound, nf.Kind)
}
