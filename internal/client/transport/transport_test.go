package transport

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipart_Send_EncodesFieldsAndFile(t *testing.T) {
	t.Parallel()

	var gotContentType string
	var gotSessionID, gotChunkIndex, gotTotalChunks, gotFileName string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotSessionID = r.FormValue("sessionId")
		gotChunkIndex = r.FormValue("chunkIndex")
		gotTotalChunks = r.FormValue("totalChunks")
		gotFileName = r.FormValue("fileName")

		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()

		gotData, err = io.ReadAll(f)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMultipart(srv.Client())
	result, err := m.Send(context.Background(), srv.URL, Chunk{
		SessionID: "sess-1", ChunkIndex: 2, TotalChunks: 5, FileName: "a.bin", Data: []byte("hello"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "sess-1", gotSessionID)
	assert.Equal(t, "2", gotChunkIndex)
	assert.Equal(t, "5", gotTotalChunks)
	assert.Equal(t, "a.bin", gotFileName)
	assert.Equal(t, []byte("hello"), gotData)

	mt, _, err := mime.ParseMediaType(gotContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mt)
}

func TestBinary_Send_EncodesHeadersAndBody(t *testing.T) {
	t.Parallel()

	var gotSessionID, gotChunkIndex, gotTotalChunks string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSessionID = r.Header.Get("X-File-Id")
		gotChunkIndex = r.Header.Get("X-Chunk-Number")
		gotTotalChunks = r.Header.Get("X-Total-Chunks")

		var err error
		gotData, err = io.ReadAll(r.Body)
		require.NoError(t, err)

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	b := NewBinary(srv.Client())
	result, err := b.Send(context.Background(), srv.URL, Chunk{
		SessionID: "sess-2", ChunkIndex: 1, TotalChunks: 3, FileName: "b.bin", Data: []byte("world"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "sess-2", gotSessionID)
	assert.Equal(t, "1", gotChunkIndex)
	assert.Equal(t, "3", gotTotalChunks)
	assert.Equal(t, []byte("world"), gotData)
}

func TestDo_ServerErrorIsReturnedAsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b := NewBinary(srv.Client())
	result, err := b.Send(context.Background(), srv.URL, Chunk{SessionID: "s", TotalChunks: 1})

	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, result.StatusCode)
}
