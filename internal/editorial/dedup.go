package editorial

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sciencesimplified/content-service/internal/domain"
)

// GroupPapers partitions papers into generation groups. Papers whose id is
// already referenced by a post are dropped, and the remainder are grouped by
// normalized title so the same study reported under several subjects becomes
// one article. Group order follows the input order of each group's first
// paper, and order within a group is preserved.
//
// The second return value is how many papers the used set excluded.
func GroupPapers(papers []*domain.SelectedPaper, used map[uuid.UUID]struct{}) ([][]*domain.SelectedPaper, int) {
	var groups [][]*domain.SelectedPaper
	index := make(map[string]int)
	excluded := 0

	for _, p := range papers {
		if _, ok := used[p.ID]; ok {
			excluded++
			continue
		}

		key := normalizeTitle(p.ArticleTitle)
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], p)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []*domain.SelectedPaper{p})
	}

	return groups, excluded
}

// normalizeTitle folds case and trims surrounding whitespace. Titles that
// differ only in punctuation or internal spacing are treated as distinct.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}
