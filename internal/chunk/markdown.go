package chunk

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// splitMarkdown cuts on heading boundaries so a chunk never straddles two
// sections. Oversized sections fall back to fixed splitting with the
// heading re-attached to each piece.
func splitMarkdown(source string, size, overlap int) []string {
	src := []byte(source)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	type section struct {
		heading string
		body    []string
	}
	var sections []section
	current := section{}
	flush := func() {
		if current.heading != "" || len(current.body) > 0 {
			sections = append(sections, current)
		}
		current = section{}
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok && h.Level <= 2 {
			flush()
			current.heading = nodeText(h, src)
			continue
		}
		if txt := nodeText(node, src); txt != "" {
			current.body = append(current.body, txt)
		}
	}
	flush()

	var chunks []string
	for _, sec := range sections {
		body := strings.Join(sec.body, "\n\n")
		full := body
		if sec.heading != "" {
			full = sec.heading + "\n\n" + body
		}
		if len(full) <= size {
			if strings.TrimSpace(full) != "" {
				chunks = append(chunks, strings.TrimSpace(full))
			}
			continue
		}
		for _, piece := range splitSemantic(body, size, overlap) {
			if sec.heading != "" {
				piece = sec.heading + "\n\n" + piece
			}
			chunks = append(chunks, piece)
		}
	}
	return chunks
}

func nodeText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := child.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
