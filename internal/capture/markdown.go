// Package capture writes conversation answers into markdown documents and
// reads back which sections a document has.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

// Quality scoring: a section body of FullCreditWords words or more scores 1.
const FullCreditWords = 20

// section is one heading and the byte range it owns.
type section struct {
	title     string
	level     int
	start     int
	bodyStart int
	end       int
}

// MarkdownCapture edits markdown files section by section. New sections are
// written as level-2 headings.
type MarkdownCapture struct {
	mu     sync.Mutex
	md     goldmark.Markdown
	logger *slog.Logger
}

// NewMarkdownCapture creates a capture using goldmark's CommonMark parser.
func NewMarkdownCapture() *MarkdownCapture {
	return &MarkdownCapture{
		md:     goldmark.New(),
		logger: slog.Default().With("component", "capture"),
	}
}

// GetSections returns the heading titles of the document in order. A missing
// document has no sections.
func (c *MarkdownCapture) GetSections(ctx context.Context, path string) ([]string, error) {
	src, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	secs := c.parseSections(src)
	titles := make([]string, len(secs))
	for i, s := range secs {
		titles[i] = s.title
	}
	return titles, nil
}

// UpdateDocument applies updates in order and writes the document back. The
// file and its directory are created if needed.
func (c *MarkdownCapture) UpdateDocument(ctx context.Context, path string, updates []models.DocumentUpdate) (models.CaptureResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, err := readDocument(path)
	if err != nil {
		return models.CaptureResult{Error: err.Error()}, err
	}

	res := models.CaptureResult{SectionsUpdated: []string{}}
	for _, u := range updates {
		if strings.TrimSpace(u.Section) == "" {
			continue
		}
		src = c.apply(src, u)
		res.SectionsUpdated = append(res.SectionsUpdated, u.Section)
	}
	if len(res.SectionsUpdated) == 0 {
		res.Success = true
		return res, nil
	}

	if err := writeDocument(path, src); err != nil {
		c.logger.Error("MarkdownCapture UpdateDocument failed", "error", err, "path", path)
		res.Error = err.Error()
		return res, err
	}
	res.Success = true
	c.logger.Debug("MarkdownCapture document updated", "path", path, "sections", res.SectionsUpdated)
	return res, nil
}

// AssessQuality scores how well the phase's required sections are filled in:
// the mean over present sections of min(words/FullCreditWords, 1).
func (c *MarkdownCapture) AssessQuality(ctx context.Context, phase models.WorkflowPhase, path string) (float64, error) {
	src, err := readDocument(path)
	if err != nil {
		return 0, err
	}
	secs := c.parseSections(src)
	byTitle := make(map[string]section, len(secs))
	for _, s := range secs {
		byTitle[normalize(s.title)] = s
	}

	var total float64
	present := 0
	for _, title := range workflow.RequiredSections(phase) {
		s, ok := byTitle[normalize(title)]
		if !ok {
			continue
		}
		present++
		words := len(strings.Fields(string(src[s.bodyStart:s.end])))
		total += min(float64(words)/FullCreditWords, 1)
	}
	if present == 0 {
		return 0, nil
	}
	return total / float64(present), nil
}

func (c *MarkdownCapture) apply(src []byte, u models.DocumentUpdate) []byte {
	content := strings.TrimSpace(u.Content)
	var target *section
	secs := c.parseSections(src)
	for i := range secs {
		if normalize(secs[i].title) == normalize(u.Section) {
			target = &secs[i]
			break
		}
	}

	var buf bytes.Buffer
	if target == nil {
		buf.Write(bytes.TrimRight(src, "\n"))
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		fmt.Fprintf(&buf, "## %s\n\n%s\n", strings.TrimSpace(u.Section), content)
		return buf.Bytes()
	}

	buf.Write(src[:target.bodyStart])
	if u.Mode != models.UpdateModeReplace {
		if existing := bytes.TrimRight(src[target.bodyStart:target.end], "\n\t "); len(bytes.TrimSpace(existing)) > 0 {
			buf.Write(existing)
			buf.WriteString("\n")
		}
	}
	buf.WriteString("\n")
	buf.WriteString(content)
	buf.WriteString("\n")
	if target.end < len(src) {
		buf.WriteString("\n")
		buf.Write(src[target.end:])
	}
	return buf.Bytes()
}

// parseSections finds top-level headings and the byte range each one owns,
// which runs until the next heading of the same or higher level.
func (c *MarkdownCapture) parseSections(src []byte) []section {
	doc := c.md.Parser().Parse(text.NewReader(src))

	var secs []section
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || h.Lines().Len() == 0 {
			continue
		}
		first := h.Lines().At(0)
		last := h.Lines().At(h.Lines().Len() - 1)
		start := lineStart(src, first.Start)
		bodyStart := lineEnd(src, max(last.Start, last.Stop-1))
		if src[start] != '#' && bodyStart < len(src) {
			// setext underline
			next := lineEnd(src, bodyStart)
			if isUnderline(bytes.TrimSpace(src[bodyStart:next])) {
				bodyStart = next
			}
		}
		secs = append(secs, section{
			title:     headingText(h, src),
			level:     h.Level,
			start:     start,
			bodyStart: bodyStart,
		})
	}

	for i := range secs {
		secs[i].end = len(src)
		for j := i + 1; j < len(secs); j++ {
			if secs[j].level <= secs[i].level {
				secs[i].end = secs[j].start
				break
			}
		}
	}
	return secs
}

func headingText(h *ast.Heading, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(h, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func lineStart(src []byte, pos int) int {
	if i := bytes.LastIndexByte(src[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

func lineEnd(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

func isUnderline(line []byte) bool {
	if len(line) == 0 {
		return false
	}
	for _, b := range line {
		if b != line[0] {
			return false
		}
	}
	return line[0] == '=' || line[0] == '-'
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func readDocument(path string) ([]byte, error) {
	src, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}
	return src, nil
}

// writeDocument replaces path atomically via a temp file in the same directory.
func writeDocument(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".docflow-*.md")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace document %s: %w", path, err)
	}
	return nil
}
