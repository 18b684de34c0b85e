package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/chatwoot-scheduler/pkg/errors"
)

type noteRequest struct {
	Message string `json:"message" validate:"notblank,max=10"`
	Status  string `json:"status" validate:"omitempty,oneof=sent error"`
}

func jsonRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func requireValidation(t *testing.T, err error) *pkgerrors.Error {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return typed
}

func TestDecodeStrictRejectsUnknownFields(t *testing.T) {
	var dest noteRequest
	err := DecodeJSONBody(jsonRequest(`{"message":"hi","extra":true}`), &dest)
	typed := requireValidation(t, err)
	assert.Equal(t, "invalid request body", typed.Message())

	require.NoError(t, DecodeWidgetBody(jsonRequest(`{"message":"hi","extra":true}`), &dest))
	assert.Equal(t, "hi", dest.Message)
}

func TestDecodeRejectsEmptyAndTrailingBodies(t *testing.T) {
	var dest noteRequest
	typed := requireValidation(t, DecodeJSONBody(jsonRequest(""), &dest))
	assert.Equal(t, "request body is required", typed.Message())

	typed = requireValidation(t, DecodeJSONBody(jsonRequest(`{"message":"a"} {"message":"b"}`), &dest))
	assert.Contains(t, typed.Message(), "single JSON object")
}

func TestDecodeReportsBodyLimit(t *testing.T) {
	req := jsonRequest(`{"message":"` + strings.Repeat("x", 64) + `"}`)
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dest noteRequest
	typed := requireValidation(t, DecodeJSONBody(req, &dest))
	assert.Equal(t, "request body too large", typed.Message())
	assert.EqualValues(t, 16, typed.Details()["limit_bytes"])
}

func TestValidateStructMapsJSONFieldPaths(t *testing.T) {
	typed := requireValidation(t, ValidateStruct(&noteRequest{Message: "   ", Status: "queued"}))
	assert.Equal(t, map[string]any{
		"message": "is required",
		"status":  "must be one of [sent error]",
	}, typed.Details())

	typed = requireValidation(t, ValidateStruct(&noteRequest{Message: "far too long for this"}))
	assert.Equal(t, "must be at most 10", typed.Details()["message"])
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abc  ", 0))
	assert.Equal(t, "ab", SanitizeString("abcdef", 2))
	// "ã" is two bytes; a 2-byte cap must not leave half of it behind
	assert.Equal(t, "n", SanitizeString("não", 2))
	assert.Equal(t, "nã", SanitizeString("não", 3))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", FirstNonEmpty("", "  ", " b ", "c"))
	assert.Empty(t, FirstNonEmpty())
}

func TestQueryParsers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&includeInactive=yes&page=abc", nil)

	_, err := ParseQueryInt(req, "limit", 50, 1, 200)
	typed := requireValidation(t, err)
	assert.Equal(t, 200, typed.Details()["max"])

	_, err = ParseQueryInt(req, "page", 1, 1, 10)
	requireValidation(t, err)

	n, err := ParseQueryInt(req, "missing", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	_, err = ParseQueryBool(req, "includeInactive")
	requireValidation(t, err)

	id, err := ParsePositiveID(" 42 ", "contactId")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	_, err = ParsePositiveID("0", "contactId")
	requireValidation(t, err)
}
