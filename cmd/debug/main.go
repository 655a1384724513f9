package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/spf13/pflag"
)

// Dumps the C++ syntax tree the rewrite engine sees. With --type only the
// matching nodes are shown, each with its direct children and field names.
func main() {
	nodeType := pflag.StringP("type", "t", "", "only show nodes of this type, e.g. call_expression")
	depth := pflag.IntP("depth", "d", 6, "maximum depth of the full dump")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: debug [--type node_type] [--depth n] <file.cpp>")
		os.Exit(1)
	}
	source, err := os.ReadFile(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	root := tree.RootNode()

	if *nodeType == "" {
		dump(root, source, "", 0, *depth)
		return
	}

	found := 0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == *nodeType {
			found++
			fmt.Printf("%s at line %d has %d children:\n", n.Type(), n.StartPoint().Row+1, n.ChildCount())
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				fmt.Printf("  [%d] type=%s field=%q content=%q\n", i, child.Type(), n.FieldNameForChild(i), child.Content(source))
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	if found == 0 {
		fmt.Printf("No %s found\n", *nodeType)
		os.Exit(1)
	}
}

func dump(n *sitter.Node, source []byte, field string, level, maxDepth int) {
	if level > maxDepth {
		return
	}
	label := n.Type()
	if field != "" {
		label = field + ": " + label
	}
	if n.ChildCount() == 0 {
		label += fmt.Sprintf(" %q", n.Content(source))
	}
	fmt.Printf("%s%s\n", strings.Repeat("  ", level), label)
	for i := 0; i < int(n.ChildCount()); i++ {
		dump(n.Child(i), source, n.FieldNameForChild(i), level+1, maxDepth)
	}
}
