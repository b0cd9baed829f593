package converter

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codeMacroRe = regexp.MustCompile(`(?s)<ac:structured-macro ac:name="code">\s*<ac:parameter ac:name="language">(.*?)</ac:parameter>\s*<ac:plain-text-body><!\[CDATA\[(.*?)\]\]></ac:plain-text-body>\s*</ac:structured-macro>`)
	noformatRe  = regexp.MustCompile(`(?s)<ac:structured-macro ac:name="noformat">\s*<ac:plain-text-body><!\[CDATA\[(.*?)\]\]></ac:plain-text-body>\s*</ac:structured-macro>`)
)

const cdataSplit = "]]]]><![CDATA[>"
const cdataMark = "\x01cdata-gt\x01"

// FromStorage converts wiki storage markup back to Markdown. The result is
// semantically equivalent to the source document, not byte-identical:
// ordered lists come back with a uniform leading marker and tables in
// canonical pipe form. Unknown markup degrades to its literal text.
func (c *Converter) FromStorage(markup string) string {
	markup = strings.ReplaceAll(markup, cdataSplit, cdataMark)

	// Lift code macros out before tag parsing so their bodies stay verbatim.
	var fences []string
	take := func(lang, body string) string {
		body = strings.ReplaceAll(body, cdataMark, "]]>")
		fences = append(fences, "```"+lang+"\n"+body+"\n```")
		return fencePlaceholder(len(fences) - 1)
	}
	markup = codeMacroRe.ReplaceAllStringFunc(markup, func(m string) string {
		parts := codeMacroRe.FindStringSubmatch(m)
		return take(unescapeEntities(parts[1]), parts[2])
	})
	markup = noformatRe.ReplaceAllStringFunc(markup, func(m string) string {
		parts := noformatRe.FindStringSubmatch(m)
		return take("", parts[1])
	})

	blocks := blocksToMarkdown(parseMarkup(markup))
	out := strings.Join(blocks, "\n\n")
	for i, fence := range fences {
		out = strings.Replace(out, fencePlaceholder(i), fence, 1)
	}
	if out != "" {
		out += "\n"
	}
	return out
}

func fencePlaceholder(i int) string {
	return fmt.Sprintf("\x00docbridge-fence-%d\x00", i)
}

// --- minimal markup tree ---

// xnode is a node of the parsed storage markup: either an element (tag set)
// or a text run (tag empty).
type xnode struct {
	tag   string
	attrs map[string]string
	text  string
	kids  []*xnode
}

var voidTags = map[string]bool{"hr": true, "br": true}

var attrRe = regexp.MustCompile(`([A-Za-z:_][\w:.-]*)="([^"]*)"`)

// parseMarkup builds a node tree from storage markup. It is tolerant:
// mismatched close tags pop to the nearest matching ancestor, and anything
// unparseable is kept as text.
func parseMarkup(s string) []*xnode {
	root := &xnode{tag: "#root"}
	stack := []*xnode{root}
	cur := func() *xnode { return stack[len(stack)-1] }
	appendText := func(t string) {
		if t != "" {
			cur().kids = append(cur().kids, &xnode{text: t})
		}
	}

	pos := 0
	for pos < len(s) {
		lt := strings.IndexByte(s[pos:], '<')
		if lt < 0 {
			appendText(s[pos:])
			break
		}
		appendText(s[pos : pos+lt])
		pos += lt
		rest := s[pos:]

		switch {
		case strings.HasPrefix(rest, "<!--"):
			end := strings.Index(rest, "-->")
			if end < 0 {
				return root.kids
			}
			pos += end + 3

		case strings.HasPrefix(rest, "<![CDATA["):
			end := strings.Index(rest, "]]>")
			if end < 0 {
				appendText(rest)
				return root.kids
			}
			appendText(rest[len("<![CDATA["):end])
			pos += end + 3

		case strings.HasPrefix(rest, "</"):
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				appendText(rest)
				return root.kids
			}
			name := strings.TrimSpace(rest[2:gt])
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].tag == name {
					stack = stack[:i]
					break
				}
			}
			pos += gt + 1

		default:
			gt := strings.IndexByte(rest, '>')
			if gt < 0 {
				appendText(rest)
				return root.kids
			}
			inner := strings.TrimSpace(rest[1:gt])
			selfClose := strings.HasSuffix(inner, "/")
			inner = strings.TrimSpace(strings.TrimSuffix(inner, "/"))

			name := inner
			attrPart := ""
			if sp := strings.IndexAny(inner, " \t\n"); sp >= 0 {
				name, attrPart = inner[:sp], inner[sp:]
			}
			if name == "" {
				appendText(rest[:gt+1])
				pos += gt + 1
				continue
			}

			node := &xnode{tag: strings.ToLower(name)}
			if attrPart != "" {
				node.attrs = map[string]string{}
				for _, m := range attrRe.FindAllStringSubmatch(attrPart, -1) {
					node.attrs[strings.ToLower(m[1])] = m[2]
				}
			}
			cur().kids = append(cur().kids, node)
			if !selfClose && !voidTags[node.tag] {
				stack = append(stack, node)
			}
			pos += gt + 1
		}
	}
	return root.kids
}

// --- markdown rendering ---

var headingTags = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

func blocksToMarkdown(nodes []*xnode) []string {
	var blocks []string
	for _, n := range nodes {
		switch {
		case n.tag == "":
			if t := strings.TrimSpace(unescapeEntities(n.text)); t != "" {
				blocks = append(blocks, t)
			}

		case headingTags[n.tag] > 0:
			blocks = append(blocks, strings.Repeat("#", headingTags[n.tag])+" "+inlineNodes(n.kids))

		case n.tag == "p":
			if t := strings.TrimSpace(inlineNodes(n.kids)); t != "" {
				blocks = append(blocks, t)
			}

		case n.tag == "blockquote":
			inner := strings.Join(blocksToMarkdown(n.kids), "\n\n")
			var quoted []string
			for _, line := range strings.Split(inner, "\n") {
				if line == "" {
					quoted = append(quoted, ">")
				} else {
					quoted = append(quoted, "> "+line)
				}
			}
			blocks = append(blocks, strings.Join(quoted, "\n"))

		case n.tag == "ul" || n.tag == "ol":
			blocks = append(blocks, renderList(n, 0))

		case n.tag == "table":
			if t := renderTable(n); t != "" {
				blocks = append(blocks, t)
			}

		case n.tag == "hr":
			blocks = append(blocks, "---")

		case n.tag == "tbody" || n.tag == "thead" || n.tag == "div" || n.tag == "section":
			blocks = append(blocks, blocksToMarkdown(n.kids)...)

		default:
			// Unknown element: keep its textual content.
			if t := strings.TrimSpace(inlineNodes(n.kids)); t != "" {
				blocks = append(blocks, t)
			}
		}
	}
	return blocks
}

// renderList renders a ul/ol node. The wiki auto-numbers ordered lists, so
// every ordered item comes back with the marker "1." regardless of the
// ordinals the source document used.
func renderList(list *xnode, depth int) string {
	marker := "-"
	if list.tag == "ol" {
		marker = "1."
	}
	indent := strings.Repeat("  ", depth)

	var lines []string
	for _, li := range list.kids {
		if li.tag != "li" {
			continue
		}
		var content []*xnode
		var sublists []*xnode
		for _, k := range li.kids {
			switch k.tag {
			case "ul", "ol":
				sublists = append(sublists, k)
			case "p":
				content = append(content, k.kids...)
			default:
				content = append(content, k)
			}
		}
		lines = append(lines, indent+marker+" "+strings.TrimSpace(inlineNodes(content)))
		for _, sub := range sublists {
			lines = append(lines, renderList(sub, depth+1))
		}
	}
	return strings.Join(lines, "\n")
}

func renderTable(table *xnode) string {
	var rows []*xnode
	var collect func(nodes []*xnode)
	collect = func(nodes []*xnode) {
		for _, n := range nodes {
			if n.tag == "tr" {
				rows = append(rows, n)
			} else if n.tag != "" {
				collect(n.kids)
			}
		}
	}
	collect(table.kids)
	if len(rows) == 0 {
		return ""
	}

	renderRow := func(row *xnode) ([]string, bool) {
		var cells []string
		header := false
		for _, c := range row.kids {
			if c.tag != "td" && c.tag != "th" {
				continue
			}
			if c.tag == "th" {
				header = true
			}
			cells = append(cells, strings.ReplaceAll(strings.TrimSpace(inlineNodes(c.kids)), "|", `\|`))
		}
		return cells, header
	}

	var lines []string
	first, _ := renderRow(rows[0])
	lines = append(lines, "| "+strings.Join(first, " | ")+" |")
	sep := make([]string, len(first))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
	for _, row := range rows[1:] {
		cells, _ := renderRow(row)
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
	}
	return strings.Join(lines, "\n")
}

func inlineNodes(nodes []*xnode) string {
	var sb strings.Builder
	for _, n := range nodes {
		switch n.tag {
		case "":
			sb.WriteString(unescapeEntities(n.text))
		case "strong", "b":
			sb.WriteString("**" + inlineNodes(n.kids) + "**")
		case "em", "i":
			sb.WriteString("*" + inlineNodes(n.kids) + "*")
		case "code":
			sb.WriteString("`" + rawText(n) + "`")
		case "a":
			href := ""
			if n.attrs != nil {
				href = unescapeEntities(n.attrs["href"])
			}
			sb.WriteString("[" + inlineNodes(n.kids) + "](" + href + ")")
		case "br":
			sb.WriteString("\n")
		default:
			sb.WriteString(inlineNodes(n.kids))
		}
	}
	return sb.String()
}

func rawText(n *xnode) string {
	var sb strings.Builder
	for _, k := range n.kids {
		if k.tag == "" {
			sb.WriteString(unescapeEntities(k.text))
		} else {
			sb.WriteString(rawText(k))
		}
	}
	return sb.String()
}

var entityReplacer = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

func unescapeEntities(s string) string {
	return entityReplacer.Replace(s)
}
