package extract

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/url"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedType marks documents whose media type has no extractor.
var ErrUnsupportedType = errors.New("unsupported media type")

// Canonical media types the service understands. Everything else is
// rejected rather than guessed at.
const (
	TypeText = "text/plain"
	TypeJSON = "application/json"
	TypeCSV  = "text/csv"
	TypeHTML = "text/html"
	TypePDF  = "application/pdf"
)

const DefaultMaxChars = 20000

// Extraction is the handoff to the scoring engine: cleaned text plus enough
// provenance for the caller to report what happened to the upload.
type Extraction struct {
	Text      string `json:"text"`
	MediaType string `json:"mediaType"`
	Chars     int    `json:"chars"`
	Truncated bool   `json:"truncated"`
}

type Service struct {
	maxChars int
}

func New(maxChars int) *Service {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Service{maxChars: maxChars}
}

func (s *Service) FromReader(r io.Reader, name, declaredType string) (Extraction, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Extraction{}, fmt.Errorf("read upload: %w", err)
	}
	return s.FromBytes(raw, name, declaredType)
}

// FromBytes resolves the document's media type from the declared type, the
// filename extension, and finally content sniffing, then extracts plain text
// and normalizes it for the engine.
func (s *Service) FromBytes(raw []byte, name, declaredType string) (Extraction, error) {
	mediaType := resolveMediaType(raw, name, declaredType)

	var text string
	var err error
	switch mediaType {
	case TypeText:
		text = string(raw)
	case TypeJSON:
		text = jsonText(raw)
	case TypeCSV:
		text = csvText(raw)
	case TypeHTML:
		text = htmlText(raw)
	case TypePDF:
		text, err = pdfText(raw)
	default:
		err = fmt.Errorf("%w %q", ErrUnsupportedType, mediaType)
	}
	if err != nil {
		return Extraction{}, err
	}

	cleaned, truncated := s.clean(text)
	return Extraction{
		Text:      cleaned,
		MediaType: mediaType,
		Chars:     utf8.RuneCountInString(cleaned),
		Truncated: truncated,
	}, nil
}

func resolveMediaType(raw []byte, name, declared string) string {
	if t := canonicalType(declared); t != "" {
		return t
	}
	if t := typeByExtension(name); t != "" {
		return t
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return TypeText
	}
	detected := mimetype.Detect(raw)
	for _, t := range []string{TypePDF, TypeHTML, TypeJSON, TypeCSV, TypeText} {
		if detected.Is(t) {
			return t
		}
	}
	// Unrecognized text subtypes still carry usable prose.
	if strings.HasPrefix(detected.String(), "text/") {
		return TypeText
	}
	return detected.String()
}

func canonicalType(declared string) string {
	base, _, _ := strings.Cut(declared, ";")
	switch strings.ToLower(strings.TrimSpace(base)) {
	case TypeText:
		return TypeText
	case TypeJSON, "text/json":
		return TypeJSON
	case TypeCSV, "application/csv":
		return TypeCSV
	case TypeHTML:
		return TypeHTML
	case TypePDF, "application/x-pdf":
		return TypePDF
	}
	return ""
}

func typeByExtension(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".log":
		return TypeText
	case ".json":
		return TypeJSON
	case ".csv":
		return TypeCSV
	case ".html", ".htm":
		return TypeHTML
	case ".pdf":
		return TypePDF
	}
	return ""
}

// jsonText collects every string value in the document, walking object keys
// in sorted order so output is deterministic. Input that fails to decode
// degrades to plain text.
func jsonText(raw []byte) string {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return string(raw)
	}
	var b strings.Builder
	collectJSONStrings(doc, &b)
	return b.String()
}

func collectJSONStrings(node any, b *strings.Builder) {
	switch v := node.(type) {
	case string:
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(v)
	case []any:
		for _, item := range v {
			collectJSONStrings(item, b)
		}
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectJSONStrings(v[k], b)
		}
	}
}

// csvText joins cells with spaces and rows with newlines. The reader is
// deliberately lenient: transcripts exported from spreadsheets rarely agree
// on column counts or quoting.
func csvText(raw []byte) string {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return string(raw)
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, " "))
	}
	return strings.Join(lines, "\n")
}

// uploadURL satisfies readability's need for a document base. Uploads have
// no real URL.
var uploadURL = &url.URL{Scheme: "https", Host: "veracity.local", Path: "/upload"}

func htmlText(raw []byte) string {
	article, err := readability.FromReader(bytes.NewReader(raw), uploadURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent
	}
	return stripTags(string(raw))
}

var scriptBlocks = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
var htmlTags = regexp.MustCompile(`(?s)<[^>]+>`)

func stripTags(s string) string {
	s = scriptBlocks.ReplaceAllString(s, " ")
	s = htmlTags.ReplaceAllString(s, " ")
	return html.UnescapeString(s)
}

func pdfText(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, pageErr := p.GetPlainText(nil)
		if pageErr != nil || strings.TrimSpace(content) == "" {
			continue
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no extractable text found in pdf")
	}
	return b.String(), nil
}

// clean strips control characters, collapses whitespace, and truncates to
// the character budget on a rune boundary.
func (s *Service) clean(text string) (string, bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(dropControl, text)

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	joined := strings.Join(out, "\n")

	runes := []rune(joined)
	if len(runes) <= s.maxChars {
		return joined, false
	}
	return string(runes[:s.maxChars]), true
}

func dropControl(r rune) rune {
	if r == '\n' || r == '\t' {
		return r
	}
	if unicode.IsControl(r) {
		return -1
	}
	return r
}
