package doctree

import "strings"

// DocTree is the root of an extracted document.
type DocTree struct {
	Title    string     // From the filename
	Children []*DocNode // Pages (PDF) or paragraphs (DOCX, TXT)
}

// DocNode is one page or paragraph block of extracted text.
type DocNode struct {
	Text     string
	Page     int // Source page (0 if N/A)
	Children []*DocNode
}

// PlainText concatenates all node text in document order, one block per line group.
func (t *DocTree) PlainText() string {
	var sb strings.Builder
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if n.Text != "" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(n.Text)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return sb.String()
}
