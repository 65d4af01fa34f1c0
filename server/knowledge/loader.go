// Package knowledge loads, chunks, and indexes the knowledge base documents
// that ground chat responses.
package knowledge

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	serverai "github.com/pachverse/sitechat/server/ai"
)

// Document is one knowledge base file, loaded and flattened to plain text.
type Document struct {
	Path        string // path relative to the knowledge dir
	Name        string // file name, e.g. "projects.md"
	Stem        string // file name without extension
	Content     string
	ContentType string
	Tags        []string
}

// LoadDir reads every .md and .txt file under dir. Markdown is flattened to
// plain text before chunking so formatting noise never reaches the
// embeddings. Files that cannot be read are skipped and reported together.
func LoadDir(dir string) ([]Document, []error) {
	var docs []Document
	var failures []error

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".md" && ext != ".txt" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, errors.Wrapf(err, "failed to read %s", path))
			return nil
		}

		content := string(raw)
		if ext == ".md" {
			content = MarkdownToText(raw)
		}
		content = serverai.CleanContent(content)
		if content == "" {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		name := filepath.Base(path)
		stem := strings.TrimSuffix(name, filepath.Ext(name))

		docs = append(docs, Document{
			Path:        rel,
			Name:        name,
			Stem:        stem,
			Content:     content,
			ContentType: ClassifyContentType(stem),
			Tags:        ExtractTags(stem + " " + content),
		})
		return nil
	})
	if err != nil {
		failures = append(failures, errors.Wrapf(err, "failed to walk %s", dir))
	}

	return docs, failures
}

// MarkdownToText flattens markdown to plain text, keeping block structure
// as blank-line separated paragraphs so the chunker sees real boundaries.
func MarkdownToText(source []byte) string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	walkBlocks(doc, source, &buf)
	return strings.TrimSpace(buf.String())
}

func walkBlocks(node ast.Node, source []byte, buf *bytes.Buffer) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		renderBlock(c, source, buf)
	}
}

func renderBlock(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		buf.WriteString(collectText(n, source))
		buf.WriteString("\n\n")

	case *ast.FencedCodeBlock:
		writeLines(n, source, buf)
		buf.WriteString("\n")

	case *ast.CodeBlock:
		writeLines(n, source, buf)
		buf.WriteString("\n")

	case *ast.List:
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			buf.WriteString("- ")
			buf.WriteString(collectText(item, source))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")

	case *ast.ThematicBreak:
		// Nothing to keep.

	default:
		// Blockquotes and other containers: recurse.
		walkBlocks(node, source, buf)
	}
}

func writeLines(node interface{ Lines() *text.Segments }, source []byte, buf *bytes.Buffer) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
}

// collectText recursively gathers the raw text of a node's inline children.
func collectText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() || n.HardLineBreak() {
				buf.WriteString(" ")
			}
		case *ast.CodeSpan, *ast.Emphasis, *ast.Link:
			buf.WriteString(collectText(c, source))
		case *ast.AutoLink:
			buf.Write(n.URL(source))
		case *ast.Image:
			// Keep alt text only.
			buf.WriteString(collectText(c, source))
		default:
			buf.WriteString(collectText(c, source))
		}
	}
	return strings.TrimSpace(buf.String())
}

// contentTypeKeywords maps file stem fragments to content types.
var contentTypeKeywords = []struct {
	keyword     string
	contentType string
}{
	{"skill", "skills"},
	{"tech", "skills"},
	{"project", "projects"},
	{"work", "experience"},
	{"experience", "experience"},
	{"career", "experience"},
	{"education", "education"},
	{"study", "education"},
	{"about", "about"},
	{"intro", "about"},
	{"profile", "about"},
	{"contact", "contact"},
}

// ClassifyContentType maps a document's file stem to a content type.
// Unmatched stems classify as "general".
func ClassifyContentType(stem string) string {
	lower := strings.ToLower(stem)
	for _, entry := range contentTypeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.contentType
		}
	}
	return "general"
}

// techKeywords are the technology names recognized as tags. Matching is
// case-insensitive on word boundaries.
var techKeywords = []string{
	"python", "javascript", "typescript", "java", "golang", "go", "rust",
	"c++", "react", "vue", "angular", "node.js", "django", "flask",
	"fastapi", "spring", "docker", "kubernetes", "aws", "azure", "gcp",
	"postgresql", "mysql", "mongodb", "redis", "elasticsearch",
	"machine learning", "deep learning", "ai", "nlp",
}

// ExtractTags returns the technology keywords present in the content,
// in the keyword table's order, without duplicates.
func ExtractTags(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, keyword := range techKeywords {
		if containsWord(lower, keyword) {
			tags = append(tags, keyword)
		}
	}
	return tags
}

// containsWord reports whether text contains keyword bounded by
// non-alphanumeric runes. Plain substring match would tag "go" inside
// "categories".
func containsWord(text, keyword string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], keyword)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(keyword)
		beforeOK := idx == 0 || !isWordRune(rune(text[idx-1]))
		afterOK := end == len(text) || !isWordRune(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
