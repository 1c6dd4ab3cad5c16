package conversion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"careerstack/apps/converter/internal/middleware"
)

// multipart parts above this size spill to disk
const formMemory = 32 << 20

type Handler struct {
	service   *Service
	maxUpload int64
}

func NewHandler(service *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &Handler{service: service, maxUpload: maxUploadBytes}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(r.Context(), w, http.StatusOK, h.service.Health(r.Context()))
}

func (h *Handler) DocxToHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.parseForm(w, r) {
		return
	}
	defer removeForm(ctx, r)

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part sent without a filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			h.writeError(ctx, w, "BAD_REQUEST", "No file selected", http.StatusBadRequest)
			return
		}
		h.writeError(ctx, w, "BAD_REQUEST", "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		h.writeError(ctx, w, "BAD_REQUEST", "No file selected", http.StatusBadRequest)
		return
	}

	res, err := h.service.DocxToHTML(ctx, header.Filename, file)
	if err != nil {
		h.writeError(ctx, w, "CONVERSION_FAILED", "Conversion failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"html":      res.HTML,
		"hash":      res.Hash,
		"timestamp": res.Timestamp,
	})
}

func (h *Handler) HTMLToDocx(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var req struct {
		HTML     *string `json:"html"`
		Template string  `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(ctx, w, "TOO_LARGE", "Request too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(ctx, w, "BAD_REQUEST", "No HTML content provided", http.StatusBadRequest)
		return
	}
	if req.HTML == nil {
		h.writeError(ctx, w, "BAD_REQUEST", "No HTML content provided", http.StatusBadRequest)
		return
	}

	doc, err := h.service.HTMLToDocx(ctx, *req.HTML, req.Template)
	if err != nil {
		if errors.Is(err, ErrInvalidTemplate) {
			h.writeError(ctx, w, "BAD_REQUEST", "Invalid template name", http.StatusBadRequest)
			return
		}
		h.writeError(ctx, w, "CONVERSION_FAILED", "Conversion failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Content); err != nil {
		slog.ErrorContext(ctx, "failed to write docx response", "error", err)
	}
}

func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.parseForm(w, r) {
		return
	}
	defer removeForm(ctx, r)

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.writeError(ctx, w, "BAD_REQUEST", "No files provided", http.StatusBadRequest)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, Upload{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	result := h.service.Batch(ctx, uploads)
	h.writeJSON(ctx, w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"results":   result.Results,
		"processed": result.Processed,
	})
}

// parseForm bounds and parses a multipart body, writing the error response
// itself when it fails.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(r.Context(), w, "TOO_LARGE", "File too large", http.StatusRequestEntityTooLarge)
			return false
		}
		h.writeError(r.Context(), w, "BAD_REQUEST", "No file provided", http.StatusBadRequest)
		return false
	}
	return true
}

func removeForm(ctx context.Context, r *http.Request) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		slog.WarnContext(ctx, "failed to remove multipart temp files", "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	h.writeJSON(ctx, w, status, map[string]interface{}{
		"error":         message,
		"code":          code,
		"correlationId": middleware.GetCorrelationID(ctx),
	})
}
