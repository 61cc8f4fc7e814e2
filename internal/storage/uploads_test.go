package storage

import (
	"bytes"
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// fileHeader builds a real multipart.FileHeader the way a request would.
func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("images", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	w.Close()

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["images"][0]
}

func TestSaveStoresImageUnderRandomName(t *testing.T) {
	u, err := NewUploads(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	path, err := u.Save(fileHeader(t, "tank.png", pngHeader))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, PublicPrefix) || !strings.HasSuffix(path, ".png") {
		t.Fatalf("path = %q", path)
	}
	if strings.Contains(path, "tank") {
		t.Errorf("client file name leaked into %q", path)
	}

	stored, err := os.ReadFile(filepath.Join(u.Dir(), strings.TrimPrefix(path, PublicPrefix)))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stored, pngHeader) {
		t.Error("stored content differs")
	}
}

func TestSaveRejectsNonImages(t *testing.T) {
	u, _ := NewUploads(t.TempDir())

	_, err := u.Save(fileHeader(t, "evil.png", []byte("<html><script>alert(1)</script></html>")))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
	entries, _ := os.ReadDir(u.Dir())
	if len(entries) != 0 {
		t.Errorf("rejected upload left %d files", len(entries))
	}
}

func TestOwns(t *testing.T) {
	u := &Uploads{dir: "x"}
	tests := []struct {
		path string
		want bool
	}{
		{"/uploads/abc.png", true},
		{"/uploads/", false},
		{"/uploads/../etc/passwd", false},
		{"/uploads/.hidden", false},
		{"data:image/png;base64,AAAA", false},
		{"https://example.com/uploads/a.png", false},
	}
	for _, tt := range tests {
		if got := u.Owns(tt.path); got != tt.want {
			t.Errorf("Owns(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestRemoveOnlyTouchesOwnFiles(t *testing.T) {
	u, _ := NewUploads(t.TempDir())
	path, err := u.Save(fileHeader(t, "a.png", pngHeader))
	if err != nil {
		t.Fatal(err)
	}

	u.Remove("data:image/png;base64,AAAA", "/uploads/missing.png", path)

	entries, _ := os.ReadDir(u.Dir())
	if len(entries) != 0 {
		t.Errorf("expected upload dir to be empty, found %d files", len(entries))
	}
}
