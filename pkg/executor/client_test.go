package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sandbox(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 2*time.Second)
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"python", "python"},
		{"Python", "python"},
		{"js", "javascript"},
		{"c++", "cpp"},
		{"cpp", "cpp"},
		{" c ", "c"},
		{"java", "java"},
	}
	for _, tt := range tests {
		got, err := NormalizeLanguage(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeLanguage("cobol")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestExecute_Success(t *testing.T) {
	var got Request
	client := sandbox(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/execute", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"output":"1\n","error":null,"execution_time":0.25}`))
	})

	res, err := client.Execute(context.Background(), Request{Code: "print(1)", Language: "Py"})
	require.NoError(t, err)

	assert.Equal(t, Request{Code: "print(1)", Language: "python"}, got)
	assert.Equal(t, &Result{Success: true, Output: "1\n", ExecutionTimeSeconds: 0.25}, res)
}

func TestExecute_ProgramFailureIsAResult(t *testing.T) {
	client := sandbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"output":"","error":"SyntaxError","execution_time":0.01}`))
	})

	res, err := client.Execute(context.Background(), Request{Code: "print(", Language: "python"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "SyntaxError", res.Error)
}

func TestExecute_ServerErrorIsUnavailable(t *testing.T) {
	client := sandbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Execute(context.Background(), Request{Code: "x", Language: "c"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecute_NetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	_, err := client.Execute(context.Background(), Request{Code: "x", Language: "java"})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecute_RejectsBeforeCallingSandbox(t *testing.T) {
	called := false
	client := sandbox(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := client.Execute(context.Background(), Request{Code: "   ", Language: "python"})
	assert.ErrorIs(t, err, ErrEmptyCode)

	_, err = client.Execute(context.Background(), Request{Code: "x", Language: "cobol"})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)

	assert.False(t, called)
}

func TestHealthCheck(t *testing.T) {
	client := sandbox(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, client.HealthCheck(context.Background()))
}
