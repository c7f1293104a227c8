package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/inkwell-cms/inkwell/pkg/inkwell"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/plugin"
	"github.com/inkwell-cms/inkwell/pkg/inkwell/uri"
)

// maxUploadBytes bounds multipart uploads held in memory.
const maxUploadBytes = 32 << 20

// NodeHandler handles HTTP requests for content nodes
type NodeHandler struct {
	service inkwell.Service
	logger  *slog.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(service inkwell.Service, logger *slog.Logger) *NodeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeHandler{
		service: service,
		logger:  logger,
	}
}

// Routes returns the routes for nodes
func (h *NodeHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/node", h.GetNode)
	r.Post("/node", h.SetNode)
	r.Delete("/node", h.DeleteNode)

	r.Get("/node/raw", h.LoadNode)
	r.Put("/node/publish", h.PublishNode)
	r.Get("/node/revisions", h.ListRevisions)

	r.Post("/render/{ext}", h.Render)

	return r
}

// SetNodeRequest is the JSON request body for writing a node
type SetNodeRequest struct {
	URI     string            `json:"uri"`
	Data    string            `json:"data"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Author  string            `json:"author,omitempty"`
	Message string            `json:"message,omitempty"`
	Publish bool              `json:"publish,omitempty"`
}

// NodeResponse is the response body for a node. Data is null only when
// the node does not exist; an empty stored node serializes as "".
type NodeResponse struct {
	URI     string           `json:"uri"`
	Data    *string          `json:"data"`
	Content string           `json:"content,omitempty"`
	Meta    inkwell.NodeMeta `json:"meta"`
}

// RevisionResponse is one entry of a revision listing
type RevisionResponse struct {
	URI       string `json:"uri"`
	Published bool   `json:"published"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
}

func nodeResponse(node *inkwell.Node) NodeResponse {
	resp := NodeResponse{
		URI:     node.URI.String(),
		Content: node.Content,
		Meta:    node.Meta,
	}
	if node.Data != nil {
		data := string(node.Data)
		resp.Data = &data
	}
	return resp
}

// GetNode resolves a URI to its rendered node
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		h.renderError(w, r, &uri.ParseError{Raw: rawURI, Reason: "uri query parameter is required"})
		return
	}

	node, err := h.service.Get(r.Context(), rawURI)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, nodeResponse(node))
}

// LoadNode returns the raw stored data without rendering. Absent nodes
// yield an empty node rather than a 404.
func (h *NodeHandler) LoadNode(w http.ResponseWriter, r *http.Request) {
	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		h.renderError(w, r, &uri.ParseError{Raw: rawURI, Reason: "uri query parameter is required"})
		return
	}

	node, err := h.service.Load(r.Context(), rawURI)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, nodeResponse(node))
}

// SetNode writes a new draft revision, optionally publishing it. Accepts
// a JSON body for textual content and multipart form data for uploads.
func (h *NodeHandler) SetNode(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSetRequest(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	node, err := h.service.Set(r.Context(), *req)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, nodeResponse(node))
}

// PublishNode promotes a revision to the published state
func (h *NodeHandler) PublishNode(w http.ResponseWriter, r *http.Request) {
	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		h.renderError(w, r, &uri.ParseError{Raw: rawURI, Reason: "uri query parameter is required"})
		return
	}

	node, err := h.service.Publish(r.Context(), rawURI)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, nodeResponse(node))
}

// ListRevisions lists a node's numbered revisions in ascending order
func (h *NodeHandler) ListRevisions(w http.ResponseWriter, r *http.Request) {
	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		h.renderError(w, r, &uri.ParseError{Raw: rawURI, Reason: "uri query parameter is required"})
		return
	}

	refs, err := h.service.Revisions(r.Context(), rawURI)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	resp := make([]RevisionResponse, 0, len(refs))
	for _, ref := range refs {
		resp = append(resp, RevisionResponse{URI: ref.URI.String(), Published: ref.Published})
	}

	render.JSON(w, r, resp)
}

// DeleteNode removes a revision or a whole node
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	rawURI := r.URL.Query().Get("uri")
	if rawURI == "" {
		h.renderError(w, r, &uri.ParseError{Raw: rawURI, Reason: "uri query parameter is required"})
		return
	}

	if err := h.service.Delete(r.Context(), rawURI); err != nil {
		h.renderError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Render renders raw data through the plugin for an extension without
// touching storage.
func (h *NodeHandler) Render(w http.ResponseWriter, r *http.Request) {
	ext := chi.URLParam(r, "ext")

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	content, err := h.service.Render(r.Context(), ext, data)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

func (h *NodeHandler) decodeSetRequest(r *http.Request) (*inkwell.SetRequest, error) {
	contentType := r.Header.Get("Content-Type")

	if contentType == "" || strings.HasPrefix(contentType, "application/json") {
		var req SetNodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, &uri.ParseError{Raw: req.URI, Reason: "invalid JSON body: " + err.Error()}
		}
		return &inkwell.SetRequest{
			URI:     req.URI,
			Input:   plugin.Input{Text: req.Data, Attrs: req.Attrs},
			Author:  req.Author,
			Message: req.Message,
			Publish: req.Publish,
		}, nil
	}

	// Anything else is treated as a multipart upload.
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, &uri.ParseError{Reason: "invalid multipart body: " + err.Error()}
	}

	req := inkwell.SetRequest{
		URI:     r.FormValue("uri"),
		Author:  r.FormValue("author"),
		Message: r.FormValue("message"),
	}
	if v := r.FormValue("publish"); v != "" {
		publish, err := strconv.ParseBool(v)
		if err != nil {
			return nil, &uri.ParseError{Raw: req.URI, Reason: "invalid publish flag: " + err.Error()}
		}
		req.Publish = publish
	}

	attrs := map[string]string{}
	for _, key := range []string{"alt", "width", "height"} {
		if v := r.FormValue(key); v != "" {
			attrs[key] = v
		}
	}
	if len(attrs) > 0 {
		req.Input.Attrs = attrs
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			return nil, readErr
		}
		req.Input.File = &plugin.File{Name: header.Filename, Data: data}
	} else if !errors.Is(err, http.ErrMissingFile) {
		return nil, err
	} else {
		req.Input.Text = r.FormValue("data")
	}

	return &req, nil
}

// renderError maps service errors onto HTTP statuses: malformed input is
// a 400, missing nodes and unknown extensions a 404, everything else a
// 500.
func (h *NodeHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var parseErr *uri.ParseError
	var validationErr *plugin.ValidationError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.Is(err, inkwell.ErrNodeNotFound), errors.Is(err, plugin.ErrUnknownExtension):
		status = http.StatusNotFound
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: err.Error()})
}
