// Package pages turns submitted page payloads into exam.Page values: it
// decodes base64 and data URLs, fills in missing media types by sniffing the
// bytes, and counts the pages inside PDF payloads.
package pages

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jackzampolin/papercheck/internal/exam"
)

const (
	// MaxPageBytes bounds one decoded payload.
	MaxPageBytes = 20 << 20
	// MaxPages bounds the pages of one request, counting pages inside PDFs.
	MaxPages = 30
)

// ErrInvalidPage marks a payload that cannot be sent to the oracle.
var ErrInvalidPage = errors.New("invalid page")

// Supported media types.
const (
	PNG  = "image/png"
	JPEG = "image/jpeg"
	WebP = "image/webp"
	GIF  = "image/gif"
	PDF  = "application/pdf"
)

var supported = map[string]bool{PNG: true, JPEG: true, WebP: true, GIF: true, PDF: true}

// Input is a page as it arrives over the wire: base64 or a data URL, with an
// optional media type.
type Input struct {
	Data      string `json:"data"`
	MediaType string `json:"mediaType,omitempty"`
}

// Decode converts wire pages to exam pages. The error names the first bad
// page (1-indexed).
func Decode(inputs []Input) ([]exam.Page, error) {
	out := make([]exam.Page, 0, len(inputs))
	for i, in := range inputs {
		p, err := decodeOne(in)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeOne(in Input) (exam.Page, error) {
	payload, mediaType := strings.TrimSpace(in.Data), in.MediaType
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return exam.Page{}, fmt.Errorf("%w: data URL must be base64 encoded", ErrInvalidPage)
		}
		if mediaType == "" {
			mediaType = strings.TrimSuffix(header, ";base64")
		}
		payload = body
	}
	if payload == "" {
		return exam.Page{}, fmt.Errorf("%w: empty payload", ErrInvalidPage)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return exam.Page{}, fmt.Errorf("%w: not base64: %v", ErrInvalidPage, err)
		}
	}
	return New(data, mediaType)
}

// New validates raw bytes as a page, sniffing the media type when it is
// empty.
func New(data []byte, mediaType string) (exam.Page, error) {
	if len(data) == 0 {
		return exam.Page{}, fmt.Errorf("%w: empty payload", ErrInvalidPage)
	}
	if len(data) > MaxPageBytes {
		return exam.Page{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrInvalidPage, len(data), MaxPageBytes)
	}
	mediaType = normalize(mediaType)
	if mediaType == "" {
		mediaType = Sniff(data)
	}
	if !supported[mediaType] {
		return exam.Page{}, fmt.Errorf("%w: unsupported media type %q", ErrInvalidPage, mediaType)
	}
	return exam.Page{Data: data, MediaType: mediaType}, nil
}

// FromFile reads a page from disk.
func FromFile(path string) (exam.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return exam.Page{}, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := New(data, "")
	if err != nil {
		return exam.Page{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Encode converts exam pages back to wire form.
func Encode(ps []exam.Page) []Input {
	out := make([]Input, len(ps))
	for i, p := range ps {
		out[i] = Input{Data: base64.StdEncoding.EncodeToString(p.Data), MediaType: p.MediaType}
	}
	return out
}

// Sniff identifies the media type from magic bytes.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return PDF
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return WebP
	}
	return normalize(http.DetectContentType(data))
}

func normalize(mediaType string) string {
	mediaType, _, _ = strings.Cut(mediaType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "image/jpg" {
		return JPEG
	}
	return mediaType
}

// Info summarizes a request's payloads.
type Info struct {
	Payloads int            `json:"payloads"`
	Pages    int            `json:"pages"` // PDF payloads count every page inside
	Bytes    int            `json:"bytes"`
	Types    map[string]int `json:"types"`
}

// Inspect counts pages and enforces MaxPages.
func Inspect(ps []exam.Page) (Info, error) {
	info := Info{Payloads: len(ps), Types: make(map[string]int)}
	for i, p := range ps {
		info.Bytes += len(p.Data)
		info.Types[p.MediaType]++
		if p.MediaType != PDF {
			info.Pages++
			continue
		}
		n, err := PDFPageCount(p.Data)
		if err != nil {
			return info, fmt.Errorf("page %d: %w", i+1, err)
		}
		info.Pages += n
	}
	if info.Pages > MaxPages {
		return info, fmt.Errorf("%w: %d pages exceeds the %d page limit; split the paper", ErrInvalidPage, info.Pages, MaxPages)
	}
	return info, nil
}

// PDFPageCount reads the page count of an in-memory PDF.
func PDFPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: unreadable PDF: %v", ErrInvalidPage, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: PDF has no pages", ErrInvalidPage)
	}
	return n, nil
}
