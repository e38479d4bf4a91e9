package httpjson

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/inventory-order-system/pkg/apperr"
)

func TestWriteError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.Invalidf("quantity must be at least 1"), http.StatusBadRequest, "quantity must be at least 1"},
		{apperr.NotFoundf("no order with the given ID exists"), http.StatusNotFound, "no order with the given ID exists"},
		{apperr.New(apperr.Conflict, "try again"), http.StatusConflict, "try again"},
		{errors.New("pg: connection refused"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		WriteError(rec, log, tc.err)

		assert.Equal(t, tc.status, rec.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.message, body.Message)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x","colour":"red"}`))
	var v struct {
		Name string `json:"name"`
	}
	err := Decode(req, &v)
	assert.True(t, apperr.Is(err, apperr.Invalid))
}
