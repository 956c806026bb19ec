// Package htmlsafe reduces user-authored rich text to a small, fixed set of
// formatting tags before it is stored and later rendered into the DOM.
package htmlsafe

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// imgSrcPattern admits http(s) URLs and scheme-less relative references.
var imgSrcPattern = regexp.MustCompile(`^(?:(?i:https?)://|[^:]*$)`)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "br")

	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src").Matching(imgSrcPattern).OnElements("img")
	p.AllowAttrs("alt", "title").OnElements("img")

	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.AllowURLSchemes("http", "https", "mailto")
	return p
}

// Sanitize runs text through the allow-list policy, then turns each newline
// in the surviving text into a <br>. Newlines inside tags, such as in an
// attribute value, are left alone. Applying it to its own output is a no-op.
func Sanitize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return withLineBreaks(policy.Sanitize(text))
}

// withLineBreaks walks cleaned markup and adds a <br> before every text
// newline whose line does not already end in a br tag.
func withLineBreaks(cleaned string) string {
	var b strings.Builder
	b.Grow(len(cleaned))
	lineBroken := false

	z := html.NewTokenizer(strings.NewReader(cleaned))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		raw := z.Raw()
		switch tt {
		case html.TextToken:
			for _, r := range string(raw) {
				switch r {
				case '\n':
					if !lineBroken {
						b.WriteString("<br>")
					}
					lineBroken = false
				case ' ', '\t':
				default:
					lineBroken = false
				}
				b.WriteRune(r)
			}
			continue
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			lineBroken = string(name) == "br"
		default:
			lineBroken = false
		}
		b.Write(raw)
	}
}
