package pages

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/papercheck/internal/exam"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
	webpBytes = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

// minimalPDF builds a valid PDF with n empty pages and a correct xref table.
func minimalPDF(n int) []byte {
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, n)
	for i := range n {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /Resources << >> /MediaBox [0 0 612 792] >>", strings.Join(kids, " "), n))
	for range n {
		obj("<< /Type /Page /Parent 2 0 R >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngBytes, PNG},
		{"jpeg", jpegBytes, JPEG},
		{"webp", webpBytes, WebP},
		{"gif", []byte("GIF89a\x01\x00\x01\x00"), GIF},
		{"pdf", []byte("%PDF-1.7\n"), PDF},
		{"text", []byte("hello"), "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sniff(tt.data); got != tt.want {
				t.Errorf("Sniff() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	b64 := base64.StdEncoding.EncodeToString

	t.Run("plain base64 is sniffed", func(t *testing.T) {
		got, err := Decode([]Input{{Data: b64(pngBytes)}})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got[0].MediaType != PNG || !bytes.Equal(got[0].Data, pngBytes) {
			t.Errorf("page = %s %q", got[0].MediaType, got[0].Data)
		}
	})

	t.Run("data URL carries its type", func(t *testing.T) {
		got, err := Decode([]Input{{Data: "data:image/jpg;base64," + b64(jpegBytes)}})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got[0].MediaType != JPEG {
			t.Errorf("media type = %q", got[0].MediaType)
		}
	})

	t.Run("explicit type wins and is normalized", func(t *testing.T) {
		got, err := Decode([]Input{{Data: b64(pngBytes), MediaType: "Image/PNG; charset=binary"}})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got[0].MediaType != PNG {
			t.Errorf("media type = %q", got[0].MediaType)
		}
	})

	t.Run("unpadded base64", func(t *testing.T) {
		raw := base64.RawStdEncoding.EncodeToString(jpegBytes)
		if _, err := Decode([]Input{{Data: raw}}); err != nil {
			t.Errorf("Decode() error = %v", err)
		}
	})

	errorCases := []struct {
		name  string
		input Input
		want  string
	}{
		{"empty", Input{}, "empty payload"},
		{"not base64", Input{Data: "%%%"}, "not base64"},
		{"url-encoded data URL", Input{Data: "data:image/png,abc"}, "base64 encoded"},
		{"unsupported type", Input{Data: b64([]byte("just some text"))}, "unsupported media type"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]Input{{Data: b64(pngBytes)}, tt.input})
			if !errors.Is(err, ErrInvalidPage) {
				t.Fatalf("error = %v, want ErrInvalidPage", err)
			}
			if !strings.Contains(err.Error(), "page 2") || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want page 2 and %q", err, tt.want)
			}
		})
	}
}

func TestNew_SizeLimit(t *testing.T) {
	big := make([]byte, MaxPageBytes+1)
	copy(big, pngBytes)
	if _, err := New(big, PNG); !errors.Is(err, ErrInvalidPage) {
		t.Errorf("error = %v, want ErrInvalidPage", err)
	}
}

func TestEncode(t *testing.T) {
	in := []exam.Page{{Data: pngBytes, MediaType: PNG}}
	back, err := Decode(Encode(in))
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}
	if !bytes.Equal(back[0].Data, pngBytes) || back[0].MediaType != PNG {
		t.Errorf("got %+v", back[0])
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.jpg")
	if err := os.WriteFile(path, jpegBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if p.MediaType != JPEG {
		t.Errorf("media type = %q", p.MediaType)
	}

	if _, err := FromFile(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestInspect(t *testing.T) {
	t.Run("images and pdf pages", func(t *testing.T) {
		info, err := Inspect([]exam.Page{
			{Data: pngBytes, MediaType: PNG},
			{Data: minimalPDF(3), MediaType: PDF},
		})
		if err != nil {
			t.Fatalf("Inspect() error = %v", err)
		}
		if info.Payloads != 2 || info.Pages != 4 || info.Types[PDF] != 1 || info.Types[PNG] != 1 {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("broken pdf", func(t *testing.T) {
		_, err := Inspect([]exam.Page{{Data: []byte("%PDF-1.4\ngarbage"), MediaType: PDF}})
		if !errors.Is(err, ErrInvalidPage) || !strings.Contains(err.Error(), "page 1") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("too many pages", func(t *testing.T) {
		_, err := Inspect([]exam.Page{{Data: minimalPDF(MaxPages + 1), MediaType: PDF}})
		if !errors.Is(err, ErrInvalidPage) || !strings.Contains(err.Error(), "split") {
			t.Errorf("error = %v", err)
		}
	})
}
