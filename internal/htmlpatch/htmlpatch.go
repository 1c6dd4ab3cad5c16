// Package htmlpatch injects CSS overrides into office-exported HTML.
//
// Patching is plain text search/replace on well-known anchors (<head>,
// </head>, <style>). The HTML is never parsed, so a document without the
// anchor comes back unchanged.
package htmlpatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

var ErrNotFound = errors.New("html file not found")

type Preset string

const (
	// PresetReadable adds charset/viewport meta tags and a readable stylesheet after <head>.
	PresetReadable Preset = "readable"
	// PresetPreserve adds a layout-preserving stylesheet before </head>.
	PresetPreserve Preset = "preserve"
	// PresetNone leaves the export untouched.
	PresetNone Preset = "none"
)

const readableHead = `<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; line-height: 1.6; margin: 0; padding: 20px; }
    .resume-container { max-width: 800px; margin: 0 auto; background: white; }
    table { width: 100%; border-collapse: collapse; margin: 10px 0; }
    td, th { padding: 8px; text-align: left; vertical-align: top; }
    h1, h2, h3 { color: #333; margin-top: 20px; margin-bottom: 10px; }
    p { margin: 8px 0; }
    ul, ol { margin: 8px 0; padding-left: 20px; }
    .page-break { page-break-before: always; }
</style>`

const preserveStyles = `
<style>
    /* Preserve exact dimensions and spacing */
    body { margin: 0; padding: 0; -webkit-text-size-adjust: 100%; }
    p { margin-bottom: 0; white-space: pre-wrap; }
    /* Preserve font metrics */
    * { line-height: normal !important; font-family: inherit !important; }
    /* Preserve table layouts */
    table { border-collapse: collapse; width: auto !important; table-layout: fixed; }
    td, th { padding: inherit; border-spacing: 0; }
    /* Preserve list formatting */
    ul, ol { margin: 0; padding-left: 40px; list-style-position: outside; }
    /* Preserve image dimensions */
    img { max-width: none; height: auto; display: inline-block; }
    /* Preserve section breaks and page layout */
    div { page-break-inside: avoid; }
    br { display: block; }
    /* Preserve whitespace */
    pre { white-space: pre-wrap; margin: 0; }
    /* Preserve text positioning */
    span { position: relative; }
</style>
`

const boxSizingRule = `
    /* Preserve exact formatting */
    body * {
        box-sizing: border-box !important;
        -webkit-box-sizing: border-box !important;
        -moz-box-sizing: border-box !important;
    }
`

func ParsePreset(s string) (Preset, error) {
	switch p := Preset(strings.ToLower(strings.TrimSpace(s))); p {
	case PresetReadable, PresetPreserve, PresetNone:
		return p, nil
	case "":
		return PresetReadable, nil
	default:
		return "", fmt.Errorf("unknown html style preset %q", s)
	}
}

// Patch applies preset p to content.
func Patch(content string, p Preset) string {
	switch p {
	case PresetReadable:
		return strings.ReplaceAll(content, "<head>", readableHead)
	case PresetPreserve:
		return patchPreserve(content)
	default:
		return content
	}
}

func patchPreserve(content string) string {
	content = strings.ReplaceAll(content, "</head>", preserveStyles+"</head>")

	open := strings.Index(content, "<style>")
	if open < 0 {
		return content
	}
	start := open + len("<style>")
	// the closing tag of this block, not of an earlier <style type=...> one
	n := strings.Index(content[start:], "</style>")
	if n <= 0 {
		return content
	}
	styles := content[start : start+n]
	return strings.ReplaceAll(content, styles, styles+boxSizingRule)
}

// PatchFile rewrites the HTML file at path in place.
func PatchFile(ctx context.Context, path string, p Preset) error {
	raw, err := os.ReadFile(path) // #nosec G304 -- path is a service-owned temp file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.ErrorContext(ctx, "html file not found", "path", path)
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("read html: %w", err)
	}

	if err := os.WriteFile(path, []byte(Patch(string(raw), p)), 0o600); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	slog.DebugContext(ctx, "enhanced html formatting", "path", path, "preset", string(p))
	return nil
}
