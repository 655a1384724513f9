package emit

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// InlineSource is the header and implementation of an inline-registration
// class
type InlineSource struct {
	Header string
	Impl   string
}

// upperSnake turns PilatusParameters into PILATUS_PARAMETERS
func upperSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// InlineClass renders a class that creates its parameters on the parent
// driver with createParam. Members are annotated with type and access
// label, and each run of same-group members is headed by a separator.
func InlineClass(class string, list param.List) (InlineSource, error) {
	if class == "" {
		return InlineSource{}, fmt.Errorf("inline class name is empty")
	}
	if err := list.Validate(); err != nil {
		return InlineSource{}, fmt.Errorf("inline class %s: %w", class, err)
	}

	var h strings.Builder
	g := upperSnake(class) + "_H"
	fmt.Fprintf(&h, "#ifndef %s\n#define %s\n\n", g, g)
	fmt.Fprintf(&h, "class %s {\npublic:\n", class)
	fmt.Fprintf(&h, "%s%s(asynPortDriver *parent);\n", indentUnit, class)
	current := ""
	for i, p := range list {
		if grp := groupName(p); i == 0 || grp != current {
			fmt.Fprintf(&h, "%s/* Group: %s */\n", indentUnit, grp)
			current = grp
		}
		fmt.Fprintf(&h, "%sint %s;  /* %s %s */\n", indentUnit, p.Name, p.Type.AsynName(), p.AccessLabel())
	}
	fmt.Fprintf(&h, "};\n\n#endif // %s\n", g)

	var c strings.Builder
	fmt.Fprintf(&c, "%s::%s(asynPortDriver *parent) {\n", class, class)
	for _, p := range list {
		fmt.Fprintf(&c, "%sparent->createParam(%s, %s, &%s);\n",
			indentUnit, strconv.Quote(p.ExternalKey), p.Type.AsynName(), p.Name)
	}
	c.WriteString("}\n")

	return InlineSource{Header: h.String(), Impl: c.String()}, nil
}
