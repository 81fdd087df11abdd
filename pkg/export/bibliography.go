// Package export renders the publication catalog as downloadable bibliographies.
package export

import (
	"fmt"
	"strings"
)

// Entry is one citation.
type Entry struct {
	Title   string
	Authors string
	Year    int
	Journal string
	DOI     string
	URL     string
}

// Bibliography is an ordered list of citations under a heading.
type Bibliography struct {
	Title   string
	Entries []Entry
}

// Citation formats the entry as "Authors (Year). Title. Journal. doi:DOI".
func (e Entry) Citation() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d). %s.", strings.TrimSpace(e.Authors), e.Year, strings.TrimSuffix(strings.TrimSpace(e.Title), "."))
	if e.Journal != "" {
		fmt.Fprintf(&b, " %s.", e.Journal)
	}
	if e.DOI != "" {
		fmt.Fprintf(&b, " doi:%s", e.DOI)
	}
	return b.String()
}
