package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		token  string
		header string
		query  string
		want   int
	}{
		{name: "disabled without token", token: "", header: "Bearer anything", want: http.StatusNotFound},
		{name: "missing credentials", token: "s3cret", want: http.StatusUnauthorized},
		{name: "wrong bearer", token: "s3cret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid bearer", token: "s3cret", header: "Bearer s3cret", want: http.StatusNoContent},
		{name: "valid query token", token: "s3cret", query: "?token=s3cret", want: http.StatusNoContent},
		{name: "wrong scheme", token: "s3cret", header: "Basic s3cret", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/stats"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			RequireToken(tt.token)(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
