package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/6529-collections/tdh-indexer/pkg/tdherr"
)

func doRequest(t *testing.T, h HandlerFunc) (*httptest.ResponseRecorder, errorResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(h)(rec, req)

	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec, body
}

func TestHandleErrorValidation(t *testing.T) {
	rec, body := doRequest(t, func(http.ResponseWriter, *http.Request) error {
		return tdherr.Validation("wallet must be a 0x-prefixed address")
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.ErrMsg, "wallet must be")
	assert.Equal(t, http.StatusBadRequest, body.ErrMsgCode)
}

func TestHandleErrorRateLimited(t *testing.T) {
	rec, _ := doRequest(t, func(http.ResponseWriter, *http.Request) error {
		return tdherr.RateLimited(errors.New("provider throttled"))
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHandleErrorStoreLocked(t *testing.T) {
	rec, _ := doRequest(t, func(http.ResponseWriter, *http.Request) error {
		return tdherr.StoreLocked(errors.New("deadlock detected"))
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleErrorUnknownIsOpaque(t *testing.T) {
	rec, body := doRequest(t, func(http.ResponseWriter, *http.Request) error {
		return fmt.Errorf("querying snapshot: %w", errors.New("column does not exist"))
	})

	// Internal details must not leak to callers.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Unexpected Service Error", body.ErrMsg)
}

func TestHandleErrorWrappedKindStillMapped(t *testing.T) {
	rec, _ := doRequest(t, func(http.ResponseWriter, *http.Request) error {
		return fmt.Errorf("looking up wallet: %w", tdherr.Validation("bad wallet"))
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleErrorSuccessWritesNothingExtra(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(func(w http.ResponseWriter, _ *http.Request) error {
		return writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
