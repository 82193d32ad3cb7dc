package errors_test

import (
	"errors"
	"net/http"
	"testing"

	gerrs "github.com/lmcintyre/gather/internal/errors"
	"github.com/lmcintyre/gather/internal/gather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEConstructor(t *testing.T) {
	got := gerrs.E(
		"something went wrong",
		gerrs.Detail{Field: "limit", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &gerrs.Error{
		Err: errors.New("something went wrong"),
		Details: []gerrs.Detail{
			{Field: "limit", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestUnwrap(t *testing.T) {
	err := gerrs.E(gather.ErrInvalidCursor, http.StatusBadRequest)
	require.ErrorIs(t, err, gather.ErrInvalidCursor)
}
