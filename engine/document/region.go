package document

import "strings"

// ContentStartMarker separates the protected preamble from the body.
const ContentStartMarker = `\begin{document}`

// Level is the structural depth a region was split at.
type Level int

const (
	LevelDocument Level = iota
	LevelSection
	LevelSubsection
	LevelSubsubsection
)

// sectionMarkers are the split points, outermost first.
var sectionMarkers = [...]string{`\section`, `\subsection`, `\subsubsection`}

func (l Level) String() string {
	switch l {
	case LevelDocument:
		return "document"
	case LevelSection:
		return "section"
	case LevelSubsection:
		return "subsection"
	case LevelSubsubsection:
		return "subsubsection"
	default:
		return "unknown"
	}
}

// RegionKind tags whether a region may be translated.
type RegionKind int

const (
	RegionBody RegionKind = iota
	RegionPreamble
)

// Region is a node of the document tree. Leaves carry text; inner nodes
// carry children whose concatenation is the node's text.
type Region struct {
	Kind     RegionKind
	Level    Level
	Text     string
	Children []*Region
}

// IsLeaf reports whether r is a minimal unit.
func (r *Region) IsLeaf() bool {
	return len(r.Children) == 0
}

// String reproduces the exact source text of the region.
func (r *Region) String() string {
	if r.IsLeaf() {
		return r.Text
	}
	var b strings.Builder
	for _, c := range r.Children {
		b.WriteString(c.String())
	}
	return b.String()
}

// Walk visits leaves in document order.
func (r *Region) Walk(fn func(leaf *Region)) {
	if r.IsLeaf() {
		fn(r)
		return
	}
	for _, c := range r.Children {
		c.Walk(fn)
	}
}

// Parse builds the region tree of text. When the content start marker is
// present everything before it becomes a single preamble leaf.
func Parse(text string) *Region {
	root := &Region{Kind: RegionBody, Level: LevelDocument}
	body := text
	if idx := strings.Index(text, ContentStartMarker); idx > 0 {
		root.Children = append(root.Children, &Region{
			Kind:  RegionPreamble,
			Level: LevelDocument,
			Text:  text[:idx],
		})
		body = text[idx:]
	}
	root.Children = append(root.Children, split(body, 0))
	return root
}

// split divides text at sectionMarkers[depth] and recurses into each piece.
// Every piece after the first starts with the marker it was split at.
func split(text string, depth int) *Region {
	level := Level(depth)
	if depth >= len(sectionMarkers) {
		return &Region{Kind: RegionBody, Level: level, Text: text}
	}
	pieces := splitKeepMarker(text, sectionMarkers[depth])
	if len(pieces) == 1 {
		child := split(text, depth+1)
		if child.IsLeaf() {
			child.Level = level
			return child
		}
		return &Region{Kind: RegionBody, Level: level, Children: []*Region{child}}
	}
	node := &Region{Kind: RegionBody, Level: level}
	for _, p := range pieces {
		node.Children = append(node.Children, split(p, depth+1))
	}
	return node
}

func splitKeepMarker(text, marker string) []string {
	parts := strings.Split(text, marker)
	out := make([]string, 0, len(parts))
	out = append(out, parts[0])
	for _, p := range parts[1:] {
		out = append(out, marker+p)
	}
	return out
}

// HasDocumentClass reports whether text declares a document class.
func HasDocumentClass(text string) bool {
	return strings.Contains(text, `\documentclass`)
}
