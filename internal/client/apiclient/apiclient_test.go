package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalize_SendsCompletePath(t *testing.T) {
	t.Parallel()

	var gotPath, gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	require.NoError(t, c.Finalize(context.Background(), "sess-1"))

	assert.Equal(t, "/upload/sess-1/complete", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestCancel_SendsDelete(t *testing.T) {
	t.Parallel()

	var gotMethod string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	require.NoError(t, c.Cancel(context.Background(), "sess-1"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestResume_DecodesResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("totalChunks"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sessionId":"sess-1","totalChunks":10,"receivedChunks":[3,4,5,6,7],"missingChunks":[0,1,2],"canResume":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	info, err := c.Resume(context.Background(), "sess-1", 10, "f.bin", 1000, 100)
	require.NoError(t, err)

	assert.Equal(t, "sess-1", info.SessionID)
	assert.Equal(t, 10, info.TotalChunks)
	assert.Len(t, info.ReceivedChunks, 5)
	assert.Len(t, info.MissingChunks, 3)
	assert.True(t, info.CanResume)
}

func TestStatus_PropagatesServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, srv.Client())
	_, err := c.Status(context.Background(), "missing")
	assert.Error(t, err)
}
