// Package extract reduces fetched markup to a length-capped plain-text
// approximation. It is deliberately not a full HTML renderer: structural
// tags become whitespace cues, everything else is stripped.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxChars caps extracted text length.
const MaxChars = 50000

var (
	// Script/style blocks and comments go first so their contents never
	// leak into the output.
	scriptRe  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe   = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	commentRe = regexp.MustCompile(`(?s)<!--.*?-->`)

	breakRe    = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockEndRe = regexp.MustCompile(`(?i)</(?:p|h[1-6]|div)>`)
	listItemRe = regexp.MustCompile(`(?i)<li\b[^>]*>`)
	tagRe      = regexp.MustCompile(`<[^>]+>`)

	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// entityReplacer decodes the six common entities. Anything else is left
// as-is; this is not a full HTML entity decoder.
var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// Text converts markup to plain text. Pure and total: any input yields some
// output, never an error.
func Text(markup string) string {
	s := scriptRe.ReplaceAllString(markup, "")
	s = styleRe.ReplaceAllString(s, "")
	s = commentRe.ReplaceAllString(s, "")

	s = breakRe.ReplaceAllString(s, "\n")
	s = blockEndRe.ReplaceAllString(s, "\n\n")
	s = listItemRe.ReplaceAllString(s, "\n- ")

	s = tagRe.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)

	s = multiNewlineRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	return truncate(s, MaxChars)
}

// Title pulls the document title out of markup, or "" if there is none.
func Title(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
