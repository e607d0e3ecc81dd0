package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"code.sajari.com/docconv"
	"github.com/PuerkitoBio/goquery"
)

// Extractor turns uploaded documents into plain text suitable for LLM
// analysis. Binary formats go through docconv; HTML is stripped down with
// goquery; plain text passes through unchanged.
type Extractor struct {
	uploadsDir string
}

// NewExtractor creates an extractor that stages uploads under uploadsDir.
func NewExtractor(uploadsDir string) *Extractor {
	return &Extractor{uploadsDir: uploadsDir}
}

// SaveUpload writes an uploaded file into the uploads directory and returns
// its path.
func (e *Extractor) SaveUpload(filename string, reader io.Reader) (string, error) {
	if err := os.MkdirAll(e.uploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads dir: %w", err)
	}

	path := filepath.Join(e.uploadsDir, filepath.Base(filename))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}
	return path, nil
}

// ExtractFile extracts plain text from a file on disk based on its
// extension.
func (e *Extractor) ExtractFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".pdf", ".docx", ".doc", ".rtf", ".odt":
		res, err := docconv.ConvertPath(path)
		if err != nil {
			return "", fmt.Errorf("failed to parse document: %w", err)
		}
		return normalizeWhitespace(res.Body), nil
	case ".html", ".htm":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read html file: %w", err)
		}
		return ExtractHTMLText(string(content))
	case ".txt", ".md", "":
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read text file: %w", err)
		}
		return normalizeWhitespace(string(content)), nil
	default:
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
}

// ExtractHTMLText strips markup, scripts and boilerplate from an HTML
// document and returns readable text.
func ExtractHTMLText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	for _, tag := range []string{
		"script", "style", "noscript", "iframe", "nav", "header",
		"footer", "aside", "form", "svg", "meta", "link",
	} {
		doc.Find(tag).Remove()
	}

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return normalizeWhitespace(text), nil
}

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	lineSpaces = regexp.MustCompile(`[ \t]+`)
)

func normalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(lineSpaces.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
