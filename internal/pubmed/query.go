package pubmed

import (
	"fmt"
	"strings"
)

// BuildJournalQuery builds the boosted weekly-selection query: the subject
// name combined with an OR-list of quoted journal terms. Journals with
// empty names are skipped. With no usable journals the bare subject is
// returned so the search still runs.
func BuildJournalQuery(subject string, journals []string) string {
	terms := make([]string, 0, len(journals))
	for _, j := range journals {
		j = strings.TrimSpace(j)
		if j == "" {
			continue
		}
		terms = append(terms, fmt.Sprintf("%q[Journal]", j))
	}

	if len(terms) == 0 {
		return subject
	}

	return fmt.Sprintf("%s AND (%s)", subject, strings.Join(terms, " OR "))
}

// BuildTitleAbstractQuery builds the broader batch-path query scoped to
// titles and abstracts rather than journals.
func BuildTitleAbstractQuery(subject string) string {
	return subject + "[Title/Abstract]"
}
