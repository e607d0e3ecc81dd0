package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveUploadAndExtractText(t *testing.T) {
	ex := NewExtractor(t.TempDir())

	path, err := ex.SaveUpload("../escape/cv.txt", strings.NewReader("Ada Lovelace\nGo engineer"))
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	// Path traversal in the filename is neutralized.
	if filepath.Base(path) != "cv.txt" {
		t.Fatalf("unexpected stored name: %s", path)
	}

	text, err := ex.ExtractFile(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if text != "Ada Lovelace\nGo engineer" {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestExtractFileUnsupportedType(t *testing.T) {
	ex := NewExtractor(t.TempDir())
	if _, err := ex.ExtractFile("photo.png"); err == nil {
		t.Fatalf("expected unsupported type error")
	}
}

func TestExtractHTMLTextStripsBoilerplate(t *testing.T) {
	html := `<html><head><title>JD</title><style>body{color:red}</style></head>
<body>
<nav>Home | Jobs | About</nav>
<script>trackPageView();</script>
<h1>Backend Engineer</h1>
<p>We are looking for a Go developer.</p>
<footer>© Example Corp</footer>
</body></html>`

	text, err := ExtractHTMLText(html)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if !strings.Contains(text, "Backend Engineer") || !strings.Contains(text, "Go developer") {
		t.Fatalf("expected content kept, got %q", text)
	}
	if strings.Contains(text, "trackPageView") || strings.Contains(text, "Home | Jobs") {
		t.Fatalf("expected scripts and nav stripped, got %q", text)
	}
}

func TestExtractFileNormalizesWhitespace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messy.txt")
	content := "Line   one\t\twith   gaps\r\n\r\n\r\n\r\nLine two\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	ex := NewExtractor(dir)
	text, err := ex.ExtractFile(path)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if text != "Line one with gaps\n\nLine two" {
		t.Fatalf("unexpected normalization: %q", text)
	}
}

func TestClassifyDocument(t *testing.T) {
	jobText := "About the role: we are looking for a backend engineer.\nResponsibilities: build APIs.\nRequirements: Go.\nBenefits: remote."
	if kind := ClassifyDocument(jobText); kind != DocumentKindJob {
		t.Fatalf("expected job, got %s", kind)
	}

	resumeText := "Ada Lovelace\nProfessional Experience\nEducation\nSkills: Go, SQL\nreferences available upon request"
	if kind := ClassifyDocument(resumeText); kind != DocumentKindResume {
		t.Fatalf("expected resume, got %s", kind)
	}

	// Ambiguous text falls back to resume.
	if kind := ClassifyDocument("hello world"); kind != DocumentKindResume {
		t.Fatalf("expected tie to classify as resume, got %s", kind)
	}
}
