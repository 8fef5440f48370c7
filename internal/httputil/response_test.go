package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"method not allowed", MethodNotAllowed, http.StatusMethodNotAllowed, "method not allowed"},
		{"bad request", func(w http.ResponseWriter) { BadRequest(w, "bad limit") }, http.StatusBadRequest, "bad limit"},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "db gone") }, http.StatusInternalServerError, "db gone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestWriteJSONOK(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSONOK(rec, map[string]int{"captures": 4})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"captures": 4}`, rec.Body.String())
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"limit=10", 10, false},
		{"limit=1000", 1000, false},
		{"limit=0", 0, true},
		{"limit=1001", 0, true},
		{"limit=ten", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/events?"+tt.query, nil)
			got, err := QueryInt(r, "limit", 50, 1, 1000)
			if tt.wantErr {
				var qe *QueryError
				assert.ErrorAs(t, err, &qe)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/stats?hours=1.5", nil)
	v, err := QueryFloat(r, "hours", 24)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	r = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	v, err = QueryFloat(r, "hours", 24)
	require.NoError(t, err)
	assert.Equal(t, 24.0, v)

	r = httptest.NewRequest(http.MethodGet, "/api/stats?hours=-2", nil)
	_, err = QueryFloat(r, "hours", 24)
	assert.EqualError(t, err, "invalid hours '-2': must be a positive number")
}

func TestQueryFloat_RejectsNonFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "nan", "Inf", "%2BInf", "-Inf", "1e400", "0", "abc"} {
		t.Run(raw, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/charts/speeds?bin="+raw, nil)
			_, err := QueryFloat(r, "bin", 5)
			var qerr *QueryError
			require.ErrorAs(t, err, &qerr)
			assert.Equal(t, "bin", qerr.Name)
		})
	}
}
