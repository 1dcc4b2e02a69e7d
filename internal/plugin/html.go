package plugin

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/conneroisu/refract/internal/runtime"
)

// TransformHTML injects the refresh bootstrap preamble into a served HTML
// document as the first child of <head>, so the registration hooks exist
// before any compiled module executes. Build mode leaves documents alone.
func (a *Adapter) TransformHTML(doc string) (string, error) {
	if a.mode != ModeServe {
		return doc, nil
	}

	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", fmt.Errorf("parsing HTML document: %w", err)
	}

	head := findElement(root, atom.Head)
	if head == nil {
		// html.Parse synthesizes <head> for any well-formed input; a nil
		// here means the document was beyond repair.
		return doc, nil
	}

	script := &html.Node{
		Type:     html.ElementNode,
		Data:     "script",
		DataAtom: atom.Script,
		Attr:     []html.Attribute{{Key: "type", Val: "module"}},
	}
	script.AppendChild(&html.Node{
		Type: html.TextNode,
		Data: runtime.PreambleJS(),
	})

	head.InsertBefore(script, head.FirstChild)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("rendering HTML document: %w", err)
	}
	return buf.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
