package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountCompletionNotes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orders/7", r.URL.Path)
		w.Write([]byte(`{"order":{"id":7,"status":"paid"},"notes":[
			{"text":"Lightning payment detected (pending confirmation)"},
			{"text":"Lightning payment completed via Strike"},
			{"text":"Lightning payment completed via Strike webhook"}
		]}`))
	}))
	t.Cleanup(server.Close)
	targetURL = server.URL

	n, err := countCompletionNotes(server.Client(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a poll and a webhook both settled")
}
