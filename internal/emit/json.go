package emit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/robert-at-pretension-io/paramgen/internal/param"
	"github.com/robert-at-pretension-io/paramgen/internal/tree"
)

// Signal node types in the UI tree
const (
	SignalR  = "SignalR"
	SignalW  = "SignalW"
	SignalRW = "SignalRW"
	GroupT   = "Group"
)

// Field order in these structs is the field order of the output

type widgetJSON struct {
	Type    tree.WidgetKind `json:"type"`
	Lines   int             `json:"lines,omitempty"`
	Choices []string        `json:"choices,omitempty"`
}

type groupJSON struct {
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	Children []interface{} `json:"children"`
}

type signalJSON struct {
	Type   string     `json:"type"`
	Name   string     `json:"name"`
	PV     string     `json:"pv"`
	Widget widgetJSON `json:"widget"`
}

type signalRWJSON struct {
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	PV         string     `json:"pv"`
	Widget     widgetJSON `json:"widget"`
	ReadPV     string     `json:"read_pv"`
	ReadWidget widgetJSON `json:"read_widget"`
}

type treeJSON struct {
	Parameters []groupJSON `json:"parameters"`
}

func toWidget(w tree.Widget) widgetJSON {
	return widgetJSON{Type: w.Kind, Lines: w.Lines, Choices: w.Choices}
}

func toLeaf(l *tree.Leaf) interface{} {
	p := l.Param
	switch p.Access {
	case param.ReadOnly:
		return signalJSON{Type: SignalR, Name: p.Name, PV: p.ReadKey(), Widget: toWidget(l.Widget)}
	case param.WriteOnly:
		return signalJSON{Type: SignalW, Name: p.Name, PV: p.WriteKey(), Widget: toWidget(l.Widget)}
	}
	rw := signalRWJSON{
		Type:   SignalRW,
		Name:   p.Name,
		PV:     p.WriteKey(),
		Widget: toWidget(l.Widget),
		ReadPV: p.ReadKey(),
	}
	if l.ReadWidget != nil {
		rw.ReadWidget = toWidget(*l.ReadWidget)
	} else {
		rw.ReadWidget = widgetJSON{Type: tree.TextRead, Lines: 1}
	}
	return rw
}

func toGroup(g *tree.Group) groupJSON {
	out := groupJSON{Type: GroupT, Name: g.Name, Children: []interface{}{}}
	for _, c := range g.Children {
		switch n := c.(type) {
		case *tree.Leaf:
			out.Children = append(out.Children, toLeaf(n))
		case *tree.Group:
			out.Children = append(out.Children, toGroup(n))
		}
	}
	return out
}

// UITree serializes a parameter tree as {"parameters":[...]}. The output has
// no trailing newline. Equal trees give byte-identical output.
func UITree(t *tree.Tree, indent bool) ([]byte, error) {
	doc := treeJSON{Parameters: []groupJSON{}}
	for _, g := range t.Groups {
		doc.Parameters = append(doc.Parameters, toGroup(g))
	}
	return encode(doc, indent)
}

func encode(v interface{}, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encoding parameter tree: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// quoteC renders s as a double-quoted C string literal
func quoteC(s string) (string, error) {
	b, err := encode(s, false)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
