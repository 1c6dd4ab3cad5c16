package conversion

import (
	"errors"
	"io"
)

const (
	KindDocxToHTML = "docx_to_html"
	KindHTMLToDocx = "html_to_docx"

	DocxMIME         = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	DocxDownloadName = "resume.docx"
	DefaultTemplate  = "default"
)

var (
	ErrInvalidTemplate   = errors.New("invalid template name")
	ErrUnsupportedFormat = errors.New("unsupported conversion")
)

// Result is the outcome of one DOCX to HTML conversion. Hash is the hex
// SHA-256 of HTML; it is reported to callers and never used for caching.
type Result struct {
	HTML      string  `json:"html"`
	Hash      string  `json:"hash"`
	Timestamp float64 `json:"timestamp"`
}

// Document is a DOCX produced from HTML.
type Document struct {
	Content     []byte
	Filename    string
	ContentType string
	// Template is the resolved template path, empty when none applied.
	Template string
}

// Upload is one file of a batch. Open is called once, right before the file
// is converted.
type Upload struct {
	Filename string
	Open     func() (io.ReadCloser, error)
}

type FileResult struct {
	Filename string `json:"filename"`
	Success  bool   `json:"success"`
	HTML     string `json:"html,omitempty"`
	Hash     string `json:"hash,omitempty"`
	Error    string `json:"error,omitempty"`
}

type BatchResult struct {
	Results   []FileResult `json:"results"`
	Processed int          `json:"processed"`
}

type Health struct {
	Status    string  `json:"status"`
	Service   string  `json:"service"`
	Timestamp float64 `json:"timestamp"`
	Office    string  `json:"office"`
}
