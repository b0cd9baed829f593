package converter

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/stenmark/docbridge/internal/apperr"
)

// ToStorage converts Markdown to wiki storage markup. Constructs outside the
// modelled set are emitted as escaped literal text rather than erroring.
func (c *Converter) ToStorage(markdown string) (string, error) {
	src := []byte(markdown)
	doc := c.md.Parser().Parse(text.NewReader(src))

	r := &storageRenderer{src: src}
	if err := r.blocks(doc); err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrConversion, err)
	}
	return r.buf.String(), nil
}

type storageRenderer struct {
	src []byte
	buf strings.Builder
}

func (r *storageRenderer) blocks(parent ast.Node) error {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if err := r.block(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *storageRenderer) block(n ast.Node) error {
	switch v := n.(type) {
	case *ast.Heading:
		r.buf.WriteString(fmt.Sprintf("<h%d>", v.Level))
		r.inlines(v)
		r.buf.WriteString(fmt.Sprintf("</h%d>\n", v.Level))

	case *ast.Paragraph:
		r.buf.WriteString("<p>")
		r.inlines(v)
		r.buf.WriteString("</p>\n")

	case *ast.TextBlock:
		// Tight list item content: inline, no paragraph wrapper.
		r.inlines(v)
		r.buf.WriteString("\n")

	case *ast.FencedCodeBlock:
		lang := string(v.Language(r.src))
		r.codeMacro(lang, r.rawLines(v))

	case *ast.CodeBlock:
		r.codeMacro("", r.rawLines(v))

	case *ast.Blockquote:
		r.buf.WriteString("<blockquote>\n")
		if err := r.blocks(v); err != nil {
			return err
		}
		r.buf.WriteString("</blockquote>\n")

	case *ast.List:
		tag := "ul"
		if v.IsOrdered() {
			tag = "ol"
		}
		r.buf.WriteString("<" + tag + ">\n")
		for item := v.FirstChild(); item != nil; item = item.NextSibling() {
			r.buf.WriteString("<li>")
			if err := r.listItem(item); err != nil {
				return err
			}
			r.buf.WriteString("</li>\n")
		}
		r.buf.WriteString("</" + tag + ">\n")

	case *ast.ThematicBreak:
		r.buf.WriteString("<hr />\n")

	case *ast.HTMLBlock:
		// Raw HTML is outside the modelled set: literal text.
		r.buf.WriteString("<p>")
		r.buf.WriteString(escapeText(strings.TrimRight(r.rawLines(v), "\n")))
		r.buf.WriteString("</p>\n")

	case *extast.Table:
		r.buf.WriteString("<table><tbody>\n")
		for row := v.FirstChild(); row != nil; row = row.NextSibling() {
			cellTag := "td"
			if _, isHeader := row.(*extast.TableHeader); isHeader {
				cellTag = "th"
			}
			r.buf.WriteString("<tr>")
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				r.buf.WriteString("<" + cellTag + ">")
				r.inlines(cell)
				r.buf.WriteString("</" + cellTag + ">")
			}
			r.buf.WriteString("</tr>\n")
		}
		r.buf.WriteString("</tbody></table>\n")

	default:
		// Unknown block: pass its text through literally.
		r.buf.WriteString("<p>")
		r.buf.WriteString(escapeText(string(n.Text(r.src))))
		r.buf.WriteString("</p>\n")
	}
	return nil
}

// listItem renders a list item's children: inline content directly, nested
// blocks (sublists, paragraphs in loose lists) recursively.
func (r *storageRenderer) listItem(item ast.Node) error {
	for n := item.FirstChild(); n != nil; n = n.NextSibling() {
		switch n.(type) {
		case *ast.TextBlock:
			r.inlines(n)
		case *ast.Paragraph:
			r.inlines(n)
		default:
			r.buf.WriteString("\n")
			if err := r.block(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *storageRenderer) inlines(parent ast.Node) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		r.inline(n)
	}
}

func (r *storageRenderer) inline(n ast.Node) {
	switch v := n.(type) {
	case *ast.Text:
		r.buf.WriteString(escapeText(string(v.Segment.Value(r.src))))
		switch {
		case v.HardLineBreak():
			r.buf.WriteString("<br />")
		case v.SoftLineBreak():
			r.buf.WriteString(" ")
		}

	case *ast.String:
		r.buf.WriteString(escapeText(string(v.Value)))

	case *ast.Emphasis:
		tag := "em"
		if v.Level >= 2 {
			tag = "strong"
		}
		r.buf.WriteString("<" + tag + ">")
		r.inlines(v)
		r.buf.WriteString("</" + tag + ">")

	case *ast.CodeSpan:
		r.buf.WriteString("<code>")
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				r.buf.WriteString(escapeText(string(t.Segment.Value(r.src))))
			}
		}
		r.buf.WriteString("</code>")

	case *ast.Link:
		r.buf.WriteString(`<a href="` + escapeAttr(string(v.Destination)) + `">`)
		r.inlines(v)
		r.buf.WriteString("</a>")

	case *ast.AutoLink:
		url := string(v.URL(r.src))
		r.buf.WriteString(`<a href="` + escapeAttr(url) + `">` + escapeText(string(v.Label(r.src))) + "</a>")

	case *ast.Image:
		// Images are outside the modelled set: literal Markdown text.
		r.buf.WriteString(escapeText("![" + string(v.Text(r.src)) + "](" + string(v.Destination) + ")"))

	case *extast.Strikethrough:
		r.buf.WriteString(escapeText("~~"))
		r.inlines(v)
		r.buf.WriteString(escapeText("~~"))

	case *extast.TaskCheckBox:
		if v.IsChecked {
			r.buf.WriteString("[x] ")
		} else {
			r.buf.WriteString("[ ] ")
		}

	case *ast.RawHTML:
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			r.buf.WriteString(escapeText(string(seg.Value(r.src))))
		}

	default:
		r.buf.WriteString(escapeText(string(n.Text(r.src))))
	}
}

// codeMacro emits a structured code macro with a language, or a bare
// pre-formatted block when no language was declared.
func (r *storageRenderer) codeMacro(lang, body string) {
	body = strings.TrimRight(body, "\n")
	if lang != "" {
		r.buf.WriteString(`<ac:structured-macro ac:name="code"><ac:parameter ac:name="language">` +
			escapeText(lang) + `</ac:parameter><ac:plain-text-body>` + cdata(body) +
			"</ac:plain-text-body></ac:structured-macro>\n")
		return
	}
	r.buf.WriteString(`<ac:structured-macro ac:name="noformat"><ac:plain-text-body>` +
		cdata(body) + "</ac:plain-text-body></ac:structured-macro>\n")
}

func (r *storageRenderer) rawLines(n ast.Node) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(r.src))
	}
	return sb.String()
}

func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escapeText(s), `"`, "&quot;")
}
