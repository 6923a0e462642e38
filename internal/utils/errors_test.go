package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeInvalidState, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeUnavailable, http.StatusInternalServerError},
		{CodeAnalyzerFailure, http.StatusInternalServerError},
		{CodePersistenceFailure, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(E(tc.code, "Op", "msg", nil)))
		})
	}
}

func TestHTTPStatusFallbacks(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestAppErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := E(CodePersistenceFailure, "EvaluationService.Get", "failed to load evaluation", inner)

	assert.Equal(t, "EvaluationService.Get: failed to load evaluation: dial tcp: refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.True(t, IsCode(err, CodePersistenceFailure))
	assert.Equal(t, CodePersistenceFailure, CodeOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, CodeNotFound, CodeOf(ErrNotFound))
}
