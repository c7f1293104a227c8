package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-cms/inkwell/pkg/inkwell"
	blobmemory "github.com/inkwell-cms/inkwell/pkg/inkwell/blob/memory"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/image"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/markdown"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin/text"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/repo/memory"
)

func setupNodeHandlerTest(t *testing.T) *NodeHandler {
	t.Helper()

	registry := plugin.NewRegistry(text.New(), markdown.New(), image.New(blobmemory.New()))
	svc, err := inkwell.New(
		inkwell.WithRepository(memory.New()),
		inkwell.WithRegistry(registry),
	)
	require.NoError(t, err)

	return NewNodeHandler(svc, nil)
}

func doJSON(t *testing.T, h *NodeHandler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeNode(t *testing.T, rec *httptest.ResponseRecorder) NodeResponse {
	t.Helper()
	var resp NodeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestSetAndGetNode(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:     "sv-se@page/title.md",
		Data:    "# Heading",
		Author:  "master",
		Publish: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	created := decodeNode(t, rec)
	assert.Equal(t, "i18n://sv-se@page/title.md#1", created.URI)
	assert.Equal(t, "<h1>Heading</h1>", created.Content)
	assert.True(t, created.Meta.IsPublished)

	rec = doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeNode(t, rec)
	assert.Equal(t, "i18n://sv-se@page/title.md#1", got.URI)
	assert.Equal(t, "<h1>Heading</h1>", got.Content)
}

func TestGetMissingNode(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestGetMalformedURI(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title#latest"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/node", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetRejectsMissingNamespace(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:  "i18n://page/title",
		Data: "Heading",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetUnknownExtension(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:  "sv-se@page/title.foo",
		Data: "Heading",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublishFlow(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:  "sv-se@page/title.txt",
		Data: "Heading",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "i18n://sv-se@page/title.txt#draft", decodeNode(t, rec).URI)

	// Unpublished drafts are invisible to plain reads.
	rec = doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title.txt"), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPut, "/node/publish?uri="+url.QueryEscape("sv-se@page/title.txt#draft"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "i18n://sv-se@page/title.txt#1", decodeNode(t, rec).URI)

	rec = doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title.txt"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRevisions(t *testing.T) {
	h := setupNodeHandlerTest(t)

	for _, data := range []string{"one", "two"} {
		rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
			URI:     "sv-se@page/title.txt",
			Data:    data,
			Publish: true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/node/revisions?uri="+url.QueryEscape("sv-se@page/title.txt"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var refs []RevisionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&refs))
	require.Len(t, refs, 2)
	assert.Equal(t, "i18n://sv-se@page/title.txt#1", refs[0].URI)
	assert.False(t, refs[0].Published)
	assert.Equal(t, "i18n://sv-se@page/title.txt#2", refs[1].URI)
	assert.True(t, refs[1].Published)
}

func TestLoadAbsentNode(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodGet, "/node/raw?uri="+url.QueryEscape("sv-se@page/title"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// An absent node serializes its data as an explicit null.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, "null", string(raw["data"]))

	resp := decodeNode(t, rec)
	assert.Equal(t, "i18n://sv-se@page/title.txt", resp.URI)
	assert.Nil(t, resp.Data)
	assert.Empty(t, resp.Content)
}

func TestLoadDistinguishesEmptyFromAbsent(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:     "sv-se@page/blank.txt",
		Data:    "",
		Publish: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/node/raw?uri="+url.QueryEscape("sv-se@page/blank.txt"), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeNode(t, rec)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "", *resp.Data)
}

func TestDeleteNode(t *testing.T) {
	h := setupNodeHandlerTest(t)

	rec := doJSON(t, h, http.MethodDelete, "/node?uri="+url.QueryEscape("sv-se@page/title"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/node", SetNodeRequest{
		URI:     "sv-se@page/title.txt",
		Data:    "Heading",
		Publish: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/node?uri="+url.QueryEscape("sv-se@page/title.txt"), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/node?uri="+url.QueryEscape("sv-se@page/title.txt"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRenderEndpoint(t *testing.T) {
	h := setupNodeHandlerTest(t)

	req := httptest.NewRequest(http.MethodPost, "/render/md", strings.NewReader("# Heading"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<h1>Heading</h1>", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/render/foo", strings.NewReader("# Heading"))
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMultipartImageUpload(t *testing.T) {
	h := setupNodeHandlerTest(t)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("uri", "sv-se@header/logo.img"))
	require.NoError(t, writer.WriteField("publish", "true"))
	require.NoError(t, writer.WriteField("alt", "Zwitter"))

	part, err := writer.CreateFormFile("file", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/node", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeNode(t, rec)
	assert.Equal(t, "i18n://sv-se@header/logo.img#1", resp.URI)
	assert.Contains(t, resp.Content, "<img src=")
	assert.Contains(t, resp.Content, `alt="Zwitter"`)
}
