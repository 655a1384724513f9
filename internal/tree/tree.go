package tree

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/paramgen/internal/param"
)

// DefaultGroup holds parameters with no group of their own
const DefaultGroup = "Parameters"

// Node is either a *Group or a *Leaf
type Node interface {
	node()
}

// Group is a named section of the UI
type Group struct {
	Name     string
	Children []Node
}

// Leaf places one parameter in the UI
type Leaf struct {
	Param      param.Parameter
	Widget     Widget
	ReadWidget *Widget
}

func (*Group) node() {}
func (*Leaf) node()  {}

// Tree is the rooted group hierarchy. The root's children are groups.
type Tree struct {
	Groups []*Group
}

// Leaves returns every leaf in display order
func (t *Tree) Leaves() []*Leaf {
	var out []*Leaf
	var walk func(g *Group)
	walk = func(g *Group) {
		for _, c := range g.Children {
			switch n := c.(type) {
			case *Leaf:
				out = append(out, n)
			case *Group:
				walk(n)
			}
		}
	}
	for _, g := range t.Groups {
		walk(g)
	}
	return out
}

type pending struct {
	name   string
	leaves []*Leaf
	groups []*pending
}

func (p *pending) child(name string) *pending {
	for _, g := range p.groups {
		if g.name == name {
			return g
		}
	}
	g := &pending{name: name}
	p.groups = append(p.groups, g)
	return g
}

// build drops groups with no leaves below them
func (p *pending) build() *Group {
	g := &Group{Name: p.name}
	sort.SliceStable(p.leaves, func(i, j int) bool {
		return p.leaves[i].Param.DeclOrder < p.leaves[j].Param.DeclOrder
	})
	for _, l := range p.leaves {
		g.Children = append(g.Children, l)
	}
	for _, sub := range p.groups {
		if b := sub.build(); len(b.Children) > 0 {
			g.Children = append(g.Children, b)
		}
	}
	return g
}

// Build groups the parameter list. Skeleton placement wins over a
// parameter's own group; parameters with neither land in the default
// group. Skeleton groups come first in skeleton order, then derived groups
// in order of their first parameter.
func Build(list param.List, skel *Skeleton) *Tree {
	root := &pending{}
	defaultGroup := DefaultGroup
	if skel != nil {
		if skel.DefaultGroup != "" {
			defaultGroup = skel.DefaultGroup
		}
		var seed func(parent *pending, groups []SkeletonGroup)
		seed = func(parent *pending, groups []SkeletonGroup) {
			for _, g := range groups {
				seed(parent.child(g.Name), g.Groups)
			}
		}
		seed(root, skel.Groups)
	}
	placed := skel.placements()

	for _, p := range list {
		path, ok := placed[p.Name]
		if !ok {
			name := strings.TrimSpace(p.Group)
			if name == "" {
				name = defaultGroup
			}
			path = []string{name}
		}
		g := root
		for _, name := range path {
			g = g.child(name)
		}
		w, rw := DeriveWidget(p)
		g.leaves = append(g.leaves, &Leaf{Param: p, Widget: w, ReadWidget: rw})
	}

	t := &Tree{}
	for _, sub := range root.groups {
		if b := sub.build(); len(b.Children) > 0 {
			t.Groups = append(t.Groups, b)
		}
	}
	return t
}
