package retrieval

import (
	"cmp"
	"math"
	"slices"

	"github.com/bull/category-rag/internal/config"
)

// Policy is the fixed scoring and selection policy.
type Policy struct {
	WeightCosine   float64
	WeightKeyword  float64
	WeightZeroShot float64

	// Floor is the absolute minimum final score for selection.
	Floor float64

	// Band keeps every category within Band of the best score.
	Band float64

	// FetchLimit is the number of chunks fetched per selected category.
	FetchLimit int
}

// DefaultPolicy returns weights 0.4/0.3/0.3, floor 0.1, band 0.05 and five
// chunks per category.
func DefaultPolicy() Policy {
	return Policy{
		WeightCosine:   0.4,
		WeightKeyword:  0.3,
		WeightZeroShot: 0.3,
		Floor:          0.1,
		Band:           0.05,
		FetchLimit:     5,
	}
}

// PolicyFromConfig maps the selection config onto a Policy.
func PolicyFromConfig(cfg config.SelectionConfig) Policy {
	return Policy{
		WeightCosine:   cfg.WeightCosine,
		WeightKeyword:  cfg.WeightKeyword,
		WeightZeroShot: cfg.WeightZeroShot,
		Floor:          cfg.Floor,
		Band:           cfg.Band,
		FetchLimit:     cfg.FetchLimit,
	}
}

// CategoryScore records how one category was scored for a query.
type CategoryScore struct {
	Name     string
	Cosine   float64
	Keyword  float64
	ZeroShot float64
	Final    float64

	// Skipped categories take no part in selection. Reason says why.
	Skipped bool
	Reason  string
}

// Fuse combines the three signals into a final score.
func (p Policy) Fuse(cosine, keyword, zeroShot float64) float64 {
	return p.WeightCosine*cosine + p.WeightKeyword*keyword + p.WeightZeroShot*zeroShot
}

// Select picks categories from scored records. It keeps every category that
// meets the floor and lies within the band of the best score; if none does,
// the single best category is kept when it meets the floor. The result is
// ordered by descending final score, ties by name.
func (p Policy) Select(scores []CategoryScore) []string {
	scored := make([]CategoryScore, 0, len(scores))
	for _, s := range scores {
		if !s.Skipped && !math.IsNaN(s.Final) {
			scored = append(scored, s)
		}
	}
	if len(scored) == 0 {
		return []string{}
	}

	slices.SortStableFunc(scored, func(a, b CategoryScore) int {
		if c := cmp.Compare(b.Final, a.Final); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	best := scored[0]
	selected := make([]string, 0, len(scored))
	for _, s := range scored {
		if s.Final >= p.Floor && s.Final >= best.Final-p.Band {
			selected = append(selected, s.Name)
		}
	}

	if len(selected) == 0 && best.Final >= p.Floor {
		selected = append(selected, best.Name)
	}
	return selected
}
