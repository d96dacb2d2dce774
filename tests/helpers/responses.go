package helpers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorResponse struct {
	Message string `json:"message"`
	Fields  []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"fields"`
}

// AssertErrorResponse checks that the recorded response has the status code
// provided, and that the error body carries a message. If fields are
// provided, then the body must report a validation failure for each of them.
func AssertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, expectedStatusCode int, expectedFields ...string) {
	t.Helper()
	require.Equal(t, expectedStatusCode, rec.Code, "unexpected status code. Body: %s", rec.Body.String())

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "error response body should be JSON")
	assert.NotEmpty(t, body.Message)

	reported := make([]string, len(body.Fields))
	for k, v := range body.Fields {
		reported[k] = v.Field
	}
	for _, field := range expectedFields {
		assert.Contains(t, reported, field)
	}
}

// DecodeJSON unmarshals the recorded response body in to a new T.
func DecodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "response body should be JSON. Body: %s", rec.Body.String())
	return out
}
