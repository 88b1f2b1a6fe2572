package topic

import (
	"context"

	"github.com/rs/zerolog"
)

// GroupStore resolves the many-to-many topic group relations that the dotted
// codes cannot express.
type GroupStore interface {
	GroupsForTopics(ctx context.Context, topicIDs []int64) ([]int64, error)
	TopicsInGroups(ctx context.Context, groupIDs []int64) ([]int64, error)
}

// Expand returns the selected IDs plus every catalog topic whose code sits
// under a selected topic's code prefix. The result is always a superset of
// the input; an empty selection expands to nothing.
func Expand(selectedIDs []int64, catalog []Topic) map[int64]struct{} {
	result := make(map[int64]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		result[id] = struct{}{}
	}
	if len(selectedIDs) == 0 || len(catalog) == 0 {
		return result
	}

	idToCode := make(map[int64]string, len(catalog))
	codeToID := make(map[string]int64, len(catalog))
	for _, t := range catalog {
		idToCode[t.ID] = t.Code
		codeToID[t.Code] = t.ID
	}

	queue := make([]string, 0, len(selectedIDs))
	for _, id := range selectedIDs {
		if code, ok := idToCode[id]; ok {
			queue = append(queue, code)
		}
	}

	processed := make(map[string]struct{})
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		if _, seen := processed[code]; seen {
			continue
		}
		processed[code] = struct{}{}

		prefix := code + "."
		for childCode, childID := range codeToID {
			if len(childCode) > len(prefix) && childCode[:len(prefix)] == prefix {
				result[childID] = struct{}{}
				if _, seen := processed[childCode]; !seen {
					queue = append(queue, childCode)
				}
			}
		}
	}
	return result
}

// ResolveFullClosure expands the selection by code prefix and then unions in
// every topic sharing a group with the expanded set (one hop, groups are not
// re-expanded). A storage failure during the group step degrades to the
// code-only expansion with Partial set instead of failing the selection.
func ResolveFullClosure(ctx context.Context, selectedIDs []int64, catalog []Topic, groups GroupStore, logger zerolog.Logger) Closure {
	if len(selectedIDs) == 0 {
		return Closure{IDs: map[int64]struct{}{}}
	}

	expanded := Expand(selectedIDs, catalog)
	if len(expanded) == 0 || groups == nil {
		return Closure{IDs: expanded}
	}

	ids := make([]int64, 0, len(expanded))
	for id := range expanded {
		ids = append(ids, id)
	}

	groupIDs, err := groups.GroupsForTopics(ctx, ids)
	if err != nil {
		logger.Warn().Err(err).Msg("group lookup failed, falling back to code-only expansion")
		return Closure{IDs: expanded, Partial: true}
	}
	if len(groupIDs) == 0 {
		return Closure{IDs: expanded}
	}

	related, err := groups.TopicsInGroups(ctx, groupIDs)
	if err != nil {
		logger.Warn().Err(err).Msg("group member lookup failed, falling back to code-only expansion")
		return Closure{IDs: expanded, Partial: true}
	}
	for _, id := range related {
		expanded[id] = struct{}{}
	}
	return Closure{IDs: expanded}
}
