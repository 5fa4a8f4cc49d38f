package paginate

import (
	"regexp"
	"strconv"

	"github.com/rotisserie/eris"
)

// bannerRe matches the portal pagination banner: "<start> - <end> de <total>".
var bannerRe = regexp.MustCompile(`(\d+)\s*-\s*(\d+)\s+de\s+(\d+)`)

// Banner is a parsed pagination banner.
type Banner struct {
	Start int
	End   int
	Total int
}

// PerPage derives the page size as end-start+1. The value from the
// first observed banner is trusted for the whole run; later banners are
// never re-derived.
func (b Banner) PerPage() int {
	n := b.End - b.Start + 1
	if n < 1 {
		return 1
	}
	return n
}

// ParseBanner extracts the record range and total from the banner text.
func ParseBanner(text string) (Banner, error) {
	m := bannerRe.FindStringSubmatch(text)
	if m == nil {
		return Banner{}, eris.Errorf("paginate: unrecognized banner %q", text)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])
	if end < start {
		return Banner{}, eris.Errorf("paginate: inverted banner range %q", text)
	}
	return Banner{Start: start, End: end, Total: total}, nil
}
