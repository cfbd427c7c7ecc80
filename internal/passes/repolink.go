package passes

import (
	"strings"
)

const stacViewer = "https://developmentseed.org/stac-map/?href="

type RepoLink struct {
	URL    string `json:"url"`
	IsSTAC bool   `json:"is_stac"`
}

// BuildDataRepoLink returns nil without a URL. STAC catalogs open in the
// stac-map viewer; anything else links directly.
func BuildDataRepoLink(repoType, repoURL string) *RepoLink {
	if repoURL == "" {
		return nil
	}
	if !strings.EqualFold(repoType, "stac") {
		return &RepoLink{URL: repoURL}
	}
	return &RepoLink{URL: stacViewer + encodeComponent(repoURL), IsSTAC: true}
}

const upperhex = "0123456789ABCDEF"

// encodeComponent escapes s the way a browser's encodeURIComponent does:
// letters, digits and -_.!~*'() pass through, every other byte of the UTF-8
// encoding becomes %XX.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if componentSafe(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&15])
	}
	return b.String()
}

func componentSafe(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
