package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"filevc/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type editRequest struct {
	Path    string `json:"path" validate:"required"`
	Content string `json:"content"`
}

func request(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecode(t *testing.T) {
	req, err := Decode[editRequest](httptest.NewRecorder(), request(`{"path":"a.txt","content":""}`))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", req.Path)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "empty body", body: ""},
		{name: "not json", body: "{"},
		{name: "unknown field", body: `{"path":"a","mode":1}`},
		{name: "missing path", body: `{"content":"x"}`, field: "path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[editRequest](httptest.NewRecorder(), request(tt.body))
			require.ErrorIs(t, err, errors.ErrValidation)
			if tt.field != "" {
				e, ok := errors.As(err)
				require.True(t, ok)
				assert.Equal(t, map[string]string{tt.field: "required"}, e.Details)
			}
		})
	}
}
