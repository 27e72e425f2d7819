package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"elasticpool/internal/service"
	blobmemory "elasticpool/pkg/blobstore/memory"
	queuememory "elasticpool/pkg/queue/memory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type ingressFixture struct {
	engine   *gin.Engine
	input    *blobmemory.Store
	output   *blobmemory.Store
	requests *queuememory.MemoryQueueProvider
}

func newIngressFixture() *ingressFixture {
	f := &ingressFixture{
		input:    blobmemory.NewStore(),
		output:   blobmemory.NewStore(),
		requests: queuememory.NewMemoryQueueProvider("req", time.Minute),
	}
	h := NewIngressHandler(service.NewIngressService(f.input, f.output, f.requests, nil))
	f.engine = gin.New()
	f.engine.POST("/", h.Submit)
	f.engine.GET("/v1/results/:id", h.Result)
	return f
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, w.WriteField("note", "no file"))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIngressHandler_Submit(t *testing.T) {
	f := newIngressFixture()
	rec := httptest.NewRecorder()

	f.engine.ServeHTTP(rec, multipartRequest(t, FormFileField, "cat1.jpg", []byte("jpeg")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cat1:Processing", rec.Body.String())

	staged, err := f.input.Get(context.Background(), "cat1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), staged)
	assert.Equal(t, 1, f.requests.Stats().PendingCount)
}

func TestIngressHandler_SubmitRejectsMalformed(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
	}{
		{"no file", "", ""},
		{"wrong field", "upload", "cat1.jpg"},
		{"empty filename", FormFileField, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIngressFixture()
			rec := httptest.NewRecorder()

			f.engine.ServeHTTP(rec, multipartRequest(t, tt.field, tt.filename, []byte("x")))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "ERROR")
			assert.Equal(t, 0, f.requests.Stats().PendingCount)
		})
	}
}

func TestIngressHandler_SubmitNonMultipart(t *testing.T) {
	f := newIngressFixture()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"inputFile":"cat1.jpg"}`))
	req.Header.Set("Content-Type", "application/json")

	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngressHandler_Result(t *testing.T) {
	f := newIngressFixture()

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/results/cat1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, f.output.Put(context.Background(), "cat1", []byte("cat1:cat")))
	rec = httptest.NewRecorder()
	f.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/results/cat1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cat1:cat", rec.Body.String())
}
