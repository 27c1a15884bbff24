package gzippedhttp

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, payload string) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	_, err := zw.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf
}

func TestUngzipRequest(t *testing.T) {
	echo := http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		body, err := io.ReadAll(request.Body)
		require.NoError(t, err)
		response.Write(body)
	})

	t.Run("gzip body is decompressed", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", gzipBytes(t, "hello"))
		request.Header.Set("Content-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		UngzipRequest(echo).ServeHTTP(recorder, request)

		assert.Equal(t, "hello", recorder.Body.String())
	})

	t.Run("plain body passes through", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("hello"))
		recorder := httptest.NewRecorder()

		UngzipRequest(echo).ServeHTTP(recorder, request)

		assert.Equal(t, "hello", recorder.Body.String())
	})

	t.Run("corrupt gzip body fails", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("not gzip"))
		request.Header.Set("Content-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		UngzipRequest(echo).ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}

func TestGzipResponse(t *testing.T) {
	handler := http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
		response.WriteHeader(http.StatusOK)
		response.Write([]byte("hello"))
	})

	t.Run("accepting client gets gzip", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.Header.Set("Accept-Encoding", "gzip")
		recorder := httptest.NewRecorder()

		GzipResponse(handler).ServeHTTP(recorder, request)

		assert.Equal(t, "gzip", recorder.Header().Get("Content-Encoding"))

		zr, err := gzip.NewReader(recorder.Body)
		require.NoError(t, err)
		decoded, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(decoded))
	})

	t.Run("other clients get plain text", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		recorder := httptest.NewRecorder()

		GzipResponse(handler).ServeHTTP(recorder, request)

		assert.Empty(t, recorder.Header().Get("Content-Encoding"))
		assert.Equal(t, "hello", recorder.Body.String())
	})
}
