package conversion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"careerstack/apps/converter/features/history"
	"careerstack/apps/converter/internal/events"
	"careerstack/apps/converter/internal/htmlpatch"
	"careerstack/apps/converter/internal/middleware"
	"careerstack/apps/converter/internal/office"
)

const ServiceName = "libreoffice-converter"

// Converter runs one office export. *office.Bridge implements it.
type Converter interface {
	Convert(ctx context.Context, in, out string, f office.Filter) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Recorder interface {
	Record(ctx context.Context, c *history.Conversion) error
}

type Announcer interface {
	Emit(ctx context.Context, ev events.ConversionEvent) error
}

type Options struct {
	Preset      htmlpatch.Preset
	TempDir     string
	TemplateDir string
}

type Service struct {
	conv      Converter
	pinger    Pinger
	recorder  Recorder
	announcer Announcer
	opts      Options
	now       func() time.Time
}

// NewService wires the conversion pipeline. pinger, recorder and announcer
// may be nil.
func NewService(conv Converter, pinger Pinger, recorder Recorder, announcer Announcer, opts Options) *Service {
	if opts.Preset == "" {
		opts.Preset = htmlpatch.PresetReadable
	}
	return &Service{
		conv:      conv,
		pinger:    pinger,
		recorder:  recorder,
		announcer: announcer,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) Health(ctx context.Context) Health {
	state := "unknown"
	if s.pinger != nil {
		if err := s.pinger.Ping(ctx); err != nil {
			state = "down"
		} else {
			state = "up"
		}
	}
	return Health{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: unixSeconds(s.now()),
		Office:    state,
	}
}

// DocxToHTML converts the DOCX read from r and returns the patched HTML.
func (s *Service) DocxToHTML(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	start := s.now()
	res, err := s.docxToHTML(ctx, r)
	hash := ""
	if res != nil {
		hash = res.Hash
	}
	s.finish(ctx, KindDocxToHTML, filename, hash, start, err)
	return res, err
}

func (s *Service) docxToHTML(ctx context.Context, r io.Reader) (*Result, error) {
	dir, err := s.workDir()
	if err != nil {
		return nil, err
	}
	defer s.cleanup(ctx, dir)

	in := filepath.Join(dir, "input.docx")
	out := filepath.Join(dir, "output.html")
	if err := writeFile(in, r); err != nil {
		return nil, err
	}

	if err := s.conv.Convert(ctx, in, out, office.DocxToHTML); err != nil {
		return nil, err
	}

	if s.opts.Preset != htmlpatch.PresetNone {
		if err := htmlpatch.PatchFile(ctx, out, s.opts.Preset); err != nil {
			slog.ErrorContext(ctx, "failed to enhance html output", "error", err)
		}
	}

	raw, err := os.ReadFile(out) // #nosec G304 -- out lives in our own temp dir
	if err != nil {
		return nil, fmt.Errorf("read html output: %w", err)
	}

	return &Result{
		HTML:      string(raw),
		Hash:      fmt.Sprintf("%x", sha256.Sum256(raw)),
		Timestamp: unixSeconds(s.now()),
	}, nil
}

// HTMLToDocx converts html to a DOCX. template names a .dotx under the
// template directory; "default" or empty means none.
func (s *Service) HTMLToDocx(ctx context.Context, html, template string) (*Document, error) {
	start := s.now()
	doc, err := s.htmlToDocx(ctx, html, template)
	s.finish(ctx, KindHTMLToDocx, DocxDownloadName, "", start, err)
	return doc, err
}

func (s *Service) htmlToDocx(ctx context.Context, html, template string) (*Document, error) {
	templatePath, err := s.resolveTemplate(ctx, template)
	if err != nil {
		return nil, err
	}

	dir, err := s.workDir()
	if err != nil {
		return nil, err
	}
	defer s.cleanup(ctx, dir)

	in := filepath.Join(dir, "input.html")
	out := filepath.Join(dir, "output.docx")
	if err := writeFile(in, strings.NewReader(html)); err != nil {
		return nil, err
	}

	if err := s.conv.Convert(ctx, in, out, office.HTMLToDocx); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(out) // #nosec G304 -- out lives in our own temp dir
	if err != nil {
		return nil, fmt.Errorf("read docx output: %w", err)
	}

	return &Document{
		Content:     content,
		Filename:    DocxDownloadName,
		ContentType: DocxMIME,
		Template:    templatePath,
	}, nil
}

// Batch converts uploads one after another. A failed file is reported in its
// own result and does not stop the batch.
func (s *Service) Batch(ctx context.Context, uploads []Upload) *BatchResult {
	results := make([]FileResult, 0, len(uploads))
	for _, u := range uploads {
		results = append(results, s.batchOne(ctx, u))
	}
	return &BatchResult{Results: results, Processed: len(results)}
}

func (s *Service) batchOne(ctx context.Context, u Upload) FileResult {
	failed := FileResult{Filename: u.Filename, Success: false, Error: "Conversion failed"}

	rc, err := u.Open()
	if err != nil {
		slog.ErrorContext(ctx, "failed to open batch file", "filename", u.Filename, "error", err)
		return failed
	}
	defer rc.Close()

	res, err := s.DocxToHTML(ctx, u.Filename, rc)
	if err != nil {
		return failed
	}
	return FileResult{Filename: u.Filename, Success: true, HTML: res.HTML, Hash: res.Hash}
}

// ConvertFile converts in to out on disk, choosing the direction from the
// file extensions.
func (s *Service) ConvertFile(ctx context.Context, in, out, template string) error {
	if err := CheckFormats(in, out); err != nil {
		return err
	}
	toHTML := strings.EqualFold(filepath.Ext(in), ".docx")

	f, err := os.Open(in) // #nosec G304 -- path supplied by the CLI operator
	if err != nil {
		return err
	}
	defer f.Close()

	if toHTML {
		res, err := s.DocxToHTML(ctx, filepath.Base(in), f)
		if err != nil {
			return err
		}
		return os.WriteFile(out, []byte(res.HTML), 0o644) // #nosec G306 -- user-facing output file
	}

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	doc, err := s.HTMLToDocx(ctx, string(raw), template)
	if err != nil {
		return err
	}
	return os.WriteFile(out, doc.Content, 0o644) // #nosec G306 -- user-facing output file
}

// CheckFormats reports ErrUnsupportedFormat unless in and out form a
// docx to html or html to docx pair.
func CheckFormats(in, out string) error {
	inExt := strings.ToLower(filepath.Ext(in))
	outExt := strings.ToLower(filepath.Ext(out))
	if (inExt == ".docx" && isHTML(outExt)) || (isHTML(inExt) && outExt == ".docx") {
		return nil
	}
	return fmt.Errorf("%w: %q to %q", ErrUnsupportedFormat, inExt, outExt)
}

func isHTML(ext string) bool {
	return ext == ".html" || ext == ".htm"
}

var templateName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func (s *Service) resolveTemplate(ctx context.Context, name string) (string, error) {
	if name == "" || name == DefaultTemplate {
		return "", nil
	}
	if !templateName.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTemplate, name)
	}

	path := filepath.Join(s.opts.TemplateDir, name+".dotx")
	if _, err := os.Stat(path); err != nil {
		slog.WarnContext(ctx, "template not found, converting without it", "template", name, "path", path)
		return "", nil
	}
	slog.InfoContext(ctx, "template resolved", "template", name, "path", path)
	return path, nil
}

func (s *Service) workDir() (string, error) {
	dir, err := os.MkdirTemp(s.opts.TempDir, "conversion-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// cleanup removes the work dir including any images the export wrote next
// to the HTML.
func (s *Service) cleanup(ctx context.Context, dir string) {
	if err := os.RemoveAll(dir); err != nil {
		slog.WarnContext(ctx, "failed to remove work dir", "path", dir, "error", err)
	}
}

func (s *Service) finish(ctx context.Context, kind, filename, hash string, start time.Time, err error) {
	elapsed := s.now().Sub(start)

	rec := &history.Conversion{
		ID:            uuid.New().String(),
		Kind:          kind,
		Filename:      filename,
		Hash:          hash,
		Status:        history.StatusSucceeded,
		DurationMs:    elapsed.Milliseconds(),
		CorrelationID: middleware.GetCorrelationID(ctx),
	}
	if err != nil {
		rec.Status = history.StatusFailed
		rec.Error = err.Error()
		slog.ErrorContext(ctx, "conversion failed", "kind", kind, "filename", filename, "error", err)
	} else {
		slog.InfoContext(ctx, "conversion finished", "kind", kind, "filename", filename, "duration", elapsed)
	}

	// Bookkeeping must not outlive or fail the request.
	bg := context.WithoutCancel(ctx)

	if s.recorder != nil {
		if rerr := s.recorder.Record(bg, rec); rerr != nil {
			slog.WarnContext(ctx, "failed to record conversion", "error", rerr)
		}
	}

	if s.announcer != nil {
		ev := events.ConversionEvent{
			ID:            rec.ID,
			Kind:          rec.Kind,
			Filename:      rec.Filename,
			Hash:          rec.Hash,
			Status:        rec.Status,
			Error:         rec.Error,
			DurationMs:    rec.DurationMs,
			CorrelationID: rec.CorrelationID,
		}
		if aerr := s.announcer.Emit(bg, ev); aerr != nil {
			slog.WarnContext(ctx, "failed to publish conversion event", "error", aerr)
		}
	}
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304 -- path lives in our own temp dir
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	return f.Close()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
