package topic

import "sort"

// Topic is one node of the syllabus. Hierarchy is implied by the dotted code:
// "1.10.2" is a descendant of "1.10" and "1".
type Topic struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	LegacyID int64  `json:"legacy_id"`
}

// Closure is a resolved set of topic IDs. Partial is set when the group
// expansion step failed and only the code-prefix expansion is included.
type Closure struct {
	IDs     map[int64]struct{}
	Partial bool
}

// Contains reports whether id is part of the closure.
func (c Closure) Contains(id int64) bool {
	_, ok := c.IDs[id]
	return ok
}

// Empty reports whether the closure holds no topics.
func (c Closure) Empty() bool { return len(c.IDs) == 0 }

// Slice returns the closure IDs sorted ascending.
func (c Closure) Slice() []int64 {
	out := make([]int64, 0, len(c.IDs))
	for id := range c.IDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
