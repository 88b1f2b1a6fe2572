package topic

import (
	"sort"
	"strconv"
	"strings"
)

// Node is a presentation-ready topic tree entry. The tree is two levels deep:
// root topics (codes without a dot) and their direct children.
type Node struct {
	Label    string `json:"label"`
	Value    string `json:"value"`
	Children []Node `json:"children,omitempty"`
}

type treeEntry struct {
	node     Node
	code     string
	children []treeEntry
}

// BuildTree arranges the catalog into root nodes with children attached,
// both levels in natural code order (1.2 before 1.10).
func BuildTree(catalog []Topic) []Node {
	if len(catalog) == 0 {
		return nil
	}

	entries := make(map[string]*treeEntry, len(catalog))
	for _, t := range catalog {
		if t.Code == "" {
			continue
		}
		entries[t.Code] = &treeEntry{
			node: Node{
				Label: t.Code + " - " + t.Name,
				Value: strconv.FormatInt(t.ID, 10),
			},
			code: t.Code,
		}
	}

	var roots []*treeEntry
	for code, e := range entries {
		if !strings.Contains(code, ".") {
			roots = append(roots, e)
			continue
		}
		parentCode := code[:strings.LastIndex(code, ".")]
		if !strings.Contains(parentCode, ".") {
			if parent, ok := entries[parentCode]; ok {
				parent.children = append(parent.children, *e)
			}
		}
	}

	sort.Slice(roots, func(i, j int) bool { return naturalLess(roots[i].code, roots[j].code) })

	out := make([]Node, 0, len(roots))
	for _, root := range roots {
		sort.Slice(root.children, func(i, j int) bool {
			return naturalLess(root.children[i].code, root.children[j].code)
		})
		node := root.node
		for _, child := range root.children {
			node.Children = append(node.Children, child.node)
		}
		out = append(out, node)
	}
	return out
}

// naturalLess compares dotted codes segment by numeric segment, so "1.2"
// sorts before "1.10". Non-numeric segments fall back to string order.
func naturalLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if as[i] != bs[i] {
				return as[i] < bs[i]
			}
			continue
		}
		if ai != bi {
			return ai < bi
		}
	}
	return len(as) < len(bs)
}
