package selection

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medprep/quiz-engine/internal/topic"
)

// TheoreticalFilter narrows the theoretical candidate query.
type TheoreticalFilter struct {
	TopicIDs   []int64 // resolved closure; empty means no topic filter
	ExcludeIDs []int64
	Limit      int   // <= 0 means no limit
	TopicCap   int64 // > 0 restricts candidates to topics below the cap
}

// CandidateStore supplies question candidates from the relational store.
type CandidateStore interface {
	// TheoreticalIDs returns scenario-free question IDs in server-side
	// random order, honoring the filter.
	TheoreticalIDs(ctx context.Context, f TheoreticalFilter) ([]int64, error)
	// ScenarioBlocks returns every scenario block unfiltered, members sorted
	// ascending by question ID.
	ScenarioBlocks(ctx context.Context) (map[int64][]int64, error)
	// OfficialQuestionIDs returns the stored exam's questions ordered by
	// question number.
	OfficialQuestionIDs(ctx context.Context, year int, region, specialty string) ([]int64, error)
}

var defaultRandomSizes = []int{20, 50, 100}

// SelectorOptions configures the question selector.
type SelectorOptions struct {
	RandomSizes     []int
	BiochemTopicCap int64
	Rand            *rand.Rand
}

// Selector orchestrates the four selection modes into an ordered ID list.
type Selector struct {
	store       CandidateStore
	qualifier   *Qualifier
	groups      topic.GroupStore
	randomSizes []int
	topicCap    int64
	logger      zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSelector(store CandidateStore, qualifier *Qualifier, groups topic.GroupStore, opts SelectorOptions, logger zerolog.Logger) *Selector {
	sizes := opts.RandomSizes
	if len(sizes) == 0 {
		sizes = defaultRandomSizes
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		store:       store,
		qualifier:   qualifier,
		groups:      groups,
		randomSizes: sizes,
		topicCap:    opts.BiochemTopicCap,
		logger:      logger,
		rng:         rng,
	}
}

// Select produces the ordered question ID list for one quiz. Storage errors
// propagate; configuration problems and empty outcomes are reported through
// Result.Status instead.
func (s *Selector) Select(ctx context.Context, cfg Config, catalog []topic.Topic, biochem bool) (Result, error) {
	switch c := cfg.(type) {
	case Official:
		return s.selectOfficial(ctx, c)
	case FreeRandom:
		return s.selectFreeRandom(ctx, biochem)
	case FreeCustom:
		return s.selectFreeCustom(ctx, c, catalog, biochem)
	default:
		s.logger.Warn().Str("mode", cfg.Mode()).Msg("unknown selection mode")
		return Result{Status: StatusBadConfig}, nil
	}
}

func (s *Selector) selectOfficial(ctx context.Context, cfg Official) (Result, error) {
	if cfg.Year == 0 || cfg.Region == "" || cfg.Specialty == "" {
		s.logger.Warn().Msg("official replay requested with missing exam fields")
		return Result{Status: StatusBadConfig}, nil
	}
	ids, err := s.store.OfficialQuestionIDs(ctx, cfg.Year, cfg.Region, cfg.Specialty)
	if err != nil {
		return Result{}, fmt.Errorf("official questions %d-%s-%s: %w", cfg.Year, cfg.Region, cfg.Specialty, err)
	}
	if len(ids) == 0 {
		s.logger.Warn().Int("year", cfg.Year).Str("region", cfg.Region).Str("specialty", cfg.Specialty).
			Msg("no questions stored for official exam")
		return Result{Status: StatusEmpty}, nil
	}
	return Result{QuestionIDs: ids, Status: StatusOK, TargetSize: len(ids)}, nil
}

func (s *Selector) selectFreeRandom(ctx context.Context, biochem bool) (Result, error) {
	s.mu.Lock()
	target := s.randomSizes[s.rng.Intn(len(s.randomSizes))]
	s.mu.Unlock()

	blocks, err := s.store.ScenarioBlocks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scenario blocks: %w", err)
	}
	claimed := flattenBlocks(blocks)

	theoretical, err := s.store.TheoreticalIDs(ctx, TheoreticalFilter{
		ExcludeIDs: claimed,
		TopicCap:   s.capFor(biochem),
	})
	if err != nil {
		return Result{}, fmt.Errorf("theoretical candidates: %w", err)
	}

	units := buildUnits(blocks, theoretical)
	s.shuffleUnits(units)

	// The fill loop stops only on exact equality; if no unit combination sums
	// to the target the quiz comes back under-filled.
	var selected []int64
	for _, unit := range units {
		if len(selected)+len(unit) <= target {
			selected = append(selected, unit...)
		}
		if len(selected) == target {
			break
		}
	}
	return Result{QuestionIDs: selected, Status: StatusOK, TargetSize: target}, nil
}

func (s *Selector) selectFreeCustom(ctx context.Context, cfg FreeCustom, catalog []topic.Topic, biochem bool) (Result, error) {
	count := cfg.Count
	if count == 0 {
		count = CountAll
	}

	closure := topic.Closure{IDs: map[int64]struct{}{}}
	if len(cfg.TopicIDs) > 0 {
		closure = topic.ResolveFullClosure(ctx, cfg.TopicIDs, catalog, s.groups, s.logger)
		if closure.Empty() {
			return Result{Status: StatusEmpty, ClosurePartial: closure.Partial}, nil
		}
	}

	var (
		selected []int64
		err      error
	)
	switch cfg.Type {
	case TypeTheoretical:
		selected, err = s.selectTheoretical(ctx, closure, count, biochem)
	case TypePractical:
		selected, err = s.selectPractical(ctx, cfg.TopicIDs, closure, count)
	case TypeBoth:
		selected, err = s.selectMixed(ctx, closure, count, biochem)
	default:
		s.logger.Warn().Str("type", string(cfg.Type)).Msg("unknown question type")
		return Result{Status: StatusBadConfig}, nil
	}
	if err != nil {
		return Result{}, err
	}

	status := StatusOK
	if len(selected) == 0 {
		status = StatusEmpty
	}
	return Result{QuestionIDs: selected, Status: status, TargetSize: count, ClosurePartial: closure.Partial}, nil
}

func (s *Selector) selectTheoretical(ctx context.Context, closure topic.Closure, count int, biochem bool) ([]int64, error) {
	limit := 0
	if count != CountAll {
		limit = count
	}
	ids, err := s.store.TheoreticalIDs(ctx, TheoreticalFilter{
		TopicIDs: closure.Slice(),
		Limit:    limit,
		TopicCap: s.capFor(biochem),
	})
	if err != nil {
		return nil, fmt.Errorf("theoretical candidates: %w", err)
	}
	return ids, nil
}

// selectPractical flattens qualified blocks in shuffled order and truncates
// at the requested count. Unlike the mixed branch, the cut may land mid-block.
func (s *Selector) selectPractical(ctx context.Context, topicIDs []int64, closure topic.Closure, count int) ([]int64, error) {
	if len(topicIDs) == 0 {
		s.logger.Warn().Msg("practical selection without topics qualifies no blocks")
		return nil, nil
	}
	qualified, err := s.qualifier.QualifyBlocks(ctx, closure)
	if err != nil {
		return nil, fmt.Errorf("qualify blocks: %w", err)
	}

	blocks := blockList(qualified)
	s.shuffleUnits(blocks)

	var selected []int64
	for _, block := range blocks {
		selected = append(selected, block...)
	}
	if count != CountAll && len(selected) > count {
		selected = selected[:count]
	}
	return selected, nil
}

// selectMixed fills the quiz from shuffled whole units (qualified blocks plus
// theoretical singletons). Units that no longer fit are skipped, never cut.
func (s *Selector) selectMixed(ctx context.Context, closure topic.Closure, count int, biochem bool) ([]int64, error) {
	qualified := map[int64][]int64{}
	if !closure.Empty() {
		var err error
		qualified, err = s.qualifier.QualifyBlocks(ctx, closure)
		if err != nil {
			return nil, fmt.Errorf("qualify blocks: %w", err)
		}
	}
	claimed := flattenBlocks(qualified)

	theoretical, err := s.store.TheoreticalIDs(ctx, TheoreticalFilter{
		TopicIDs:   closure.Slice(),
		ExcludeIDs: claimed,
		TopicCap:   s.capFor(biochem),
	})
	if err != nil {
		return nil, fmt.Errorf("theoretical candidates: %w", err)
	}

	units := buildUnits(qualified, theoretical)
	s.shuffleUnits(units)

	var selected []int64
	for _, unit := range units {
		if count == CountAll || len(selected)+len(unit) <= count {
			selected = append(selected, unit...)
		}
		if count != CountAll && len(selected) >= count {
			selected = selected[:count]
			break
		}
	}
	return selected, nil
}

func (s *Selector) capFor(biochem bool) int64 {
	if biochem {
		return s.topicCap
	}
	return 0
}

func (s *Selector) shuffleUnits(units [][]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(units), func(i, j int) { units[i], units[j] = units[j], units[i] })
}

// buildUnits lists every block as one atomic unit and every theoretical
// question as a singleton unit. Blocks are ordered by scenario ID before the
// caller shuffles, keeping runs reproducible under a seeded source.
func buildUnits(blocks map[int64][]int64, theoretical []int64) [][]int64 {
	units := blockList(blocks)
	for _, id := range theoretical {
		units = append(units, []int64{id})
	}
	return units
}

func blockList(blocks map[int64][]int64) [][]int64 {
	scenarioIDs := make([]int64, 0, len(blocks))
	for id := range blocks {
		scenarioIDs = append(scenarioIDs, id)
	}
	sort.Slice(scenarioIDs, func(i, j int) bool { return scenarioIDs[i] < scenarioIDs[j] })

	units := make([][]int64, 0, len(blocks))
	for _, id := range scenarioIDs {
		units = append(units, blocks[id])
	}
	return units
}

func flattenBlocks(blocks map[int64][]int64) []int64 {
	var out []int64
	for _, members := range blocks {
		out = append(out, members...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
