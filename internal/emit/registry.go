package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/paramgen/internal/param"
	"github.com/robert-at-pretension-io/paramgen/internal/tree"
)

const indentUnit = "    "

// Registry names the generated registry class
type Registry struct {
	// Class is the registry class, e.g. demoDetectorParamSet
	Class string
	// Parent is the registry class it derives from
	Parent string
	// Label prefixes the embedded tree constant, <Label>ParamTree
	Label string
}

// Boundary is the exported first-parameter constant of the class
func (r Registry) Boundary() string {
	return param.BoundaryConstant(r.Class)
}

func (r Registry) parent() string {
	if r.Parent == "" {
		return param.ParentRegistryClass("")
	}
	return r.Parent
}

func (r Registry) label() string {
	if r.Label != "" {
		return r.Label
	}
	return strings.TrimSuffix(r.Class, "ParamSet")
}

// guard builds an include guard from a file stem, e.g. DemoDetectorParamSet_H
func guard(stem string) string {
	if stem == "" {
		return "_H"
	}
	return strings.ToUpper(stem[:1]) + stem[1:] + "_H"
}

// groupName is the group a parameter is listed under in generated code
func groupName(p param.Parameter) string {
	if g := strings.TrimSpace(p.Group); g != "" {
		return g
	}
	return tree.DefaultGroup
}

// RegistryClass renders the registry header for list. The tree is embedded
// as a string constant and assigned to paramTree in the constructor.
func RegistryClass(r Registry, list param.List, t *tree.Tree) (string, error) {
	if r.Class == "" {
		return "", fmt.Errorf("registry class name is empty")
	}
	if err := list.Validate(); err != nil {
		return "", fmt.Errorf("registry %s: %w", r.Class, err)
	}
	treeText, err := UITree(t, false)
	if err != nil {
		return "", err
	}
	literal, err := quoteC(string(treeText))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	g := guard(r.Class)
	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", g, g)
	fmt.Fprintf(&b, "#include \"%s.h\"\n\n", r.parent())

	for _, p := range list {
		fmt.Fprintf(&b, "#define %sString %s\n", p.Name, strconv.Quote(p.ExternalKey))
	}
	if len(list) > 0 {
		b.WriteString("\n")
	}

	treeConst := r.label() + "ParamTree"
	fmt.Fprintf(&b, "const std::string %s = \\\n%s;\n\n", treeConst, literal)

	fmt.Fprintf(&b, "class %s : public virtual %s {\npublic:\n", r.Class, r.parent())
	fmt.Fprintf(&b, "%s%s() {\n", indentUnit, r.Class)
	body := indentUnit + indentUnit
	current := ""
	for _, p := range list {
		if g := groupName(p); g != current {
			fmt.Fprintf(&b, "%s/* Group: %s */\n", body, g)
			current = g
		}
		fmt.Fprintf(&b, "%sthis->add(%sString, %s, &%s);  /* %s */\n",
			body, p.Name, p.Type.AsynName(), p.Name, p.AccessLabel())
	}
	fmt.Fprintf(&b, "%sthis->paramTree = %s;\n", body, treeConst)
	fmt.Fprintf(&b, "%s}\n\nprotected:\n", indentUnit)

	for i, p := range list {
		if i == 0 {
			fmt.Fprintf(&b, "%s#define %s %s\n", indentUnit, r.Boundary(), p.Name)
		}
		fmt.Fprintf(&b, "%sint %s;\n", indentUnit, p.Name)
	}
	fmt.Fprintf(&b, "};\n\n#endif // %s\n", g)
	return b.String(), nil
}
