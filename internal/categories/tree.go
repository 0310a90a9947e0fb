package categories

import (
	"content-wiki/internal/environment"
	"content-wiki/internal/models"
	"github.com/samborkent/uuidv7"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"slices"
)

// Node is a category of the navigation tree together with its sub categories.
type Node struct {
	Uuid string `json:"uuid"`
	models.Category
	Children []*Node `json:"children"`
}

// TreeService builds the category tree shown in the navigation of the wiki.
//
// Siblings are ordered by their Order and then by title. Titles are compared with a
// [collate.Collator] for the configured language instead of Go's pure Unicode code point
// ordering, so that "Zebra" does not sort before "apple" and "Äpfel" sorts next to "Apfel".
type TreeService struct {
	*environment.Env
	Language language.Tag
}

// BuildTree links categories to their parents and returns the sorted roots.
// Categories whose parent does not exist become roots. A cycle of parents is broken
// at the category with the lowest id, which becomes a root.
func (t TreeService) BuildTree(categories []models.Category) []*Node {
	// a Collator keeps internal buffers and must not be shared between requests
	collator := collate.New(t.Language, collate.IgnoreCase)

	nodesById := make(map[uint]*Node, len(categories))
	for _, c := range categories {
		nodesById[c.ID] = &Node{Uuid: uuidv7.New().String(), Category: c, Children: []*Node{}}
	}

	childrenByParentId := make(map[uint][]*Node)
	roots := make([]*Node, 0)
	for _, c := range categories {
		node := nodesById[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if _, ok := nodesById[*c.ParentID]; !ok {
			roots = append(roots, node)
			continue
		}
		childrenByParentId[*c.ParentID] = append(childrenByParentId[*c.ParentID], node)
	}

	visited := make(map[uint]struct{}, len(categories))
	var link func(node *Node)
	link = func(node *Node) {
		visited[node.ID] = struct{}{}
		for _, child := range childrenByParentId[node.ID] {
			if _, ok := visited[child.ID]; ok {
				continue
			}
			node.Children = append(node.Children, child)
			link(child)
		}
	}
	for _, root := range roots {
		link(root)
	}

	// categories still unvisited form cycles
	ids := make([]uint, 0, len(categories))
	for _, c := range categories {
		ids = append(ids, c.ID)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if _, ok := visited[id]; ok {
			continue
		}
		root := nodesById[id]
		roots = append(roots, root)
		link(root)
	}

	sortNodes(collator, roots)
	return roots
}

func sortNodes(collator *collate.Collator, nodes []*Node) {
	slices.SortStableFunc(nodes, func(a, b *Node) int {
		if a.Order != b.Order {
			return a.Order - b.Order
		}
		return collator.CompareString(a.Title, b.Title)
	})
	for _, node := range nodes {
		sortNodes(collator, node.Children)
	}
}
