package tree

import "github.com/robert-at-pretension-io/paramgen/internal/param"

// WidgetKind is the UI element used for a leaf
type WidgetKind string

const (
	TextRead    WidgetKind = "TextRead"
	TextWrite   WidgetKind = "TextWrite"
	CheckBox    WidgetKind = "CheckBox"
	ComboBox    WidgetKind = "ComboBox"
	LED         WidgetKind = "LED"
	ProgressBar WidgetKind = "ProgressBar"
)

// Widget describes how a leaf is displayed
type Widget struct {
	Kind    WidgetKind
	Lines   int
	Choices []string
}

func textWidget(kind WidgetKind) Widget {
	return Widget{Kind: kind, Lines: 1}
}

// DeriveWidget picks the primary widget for a parameter and, for ReadWrite
// parameters, the paired read-back widget. The result depends only on the
// type tag, the access mode and the parameter's flag, choices and progress
// context.
func DeriveWidget(p param.Parameter) (Widget, *Widget) {
	if p.Access == param.ReadOnly {
		return readWidget(p), nil
	}

	var w Widget
	switch {
	case p.Type == param.Int32 && p.Flag:
		w = Widget{Kind: CheckBox}
	case p.Type == param.Int32 && len(p.Choices) > 0:
		w = Widget{Kind: ComboBox, Choices: append([]string(nil), p.Choices...)}
	default:
		w = textWidget(TextWrite)
	}

	if p.Access != param.ReadWrite {
		return w, nil
	}
	rw := readWidget(p)
	if rw.Kind == ProgressBar {
		rw = textWidget(TextRead)
	}
	return w, &rw
}

func readWidget(p param.Parameter) Widget {
	switch {
	case p.Type == param.Int32 && p.Flag:
		return Widget{Kind: LED}
	case p.Type == param.Float64 && p.Progress:
		return Widget{Kind: ProgressBar}
	default:
		return textWidget(TextRead)
	}
}
