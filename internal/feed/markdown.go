package feed

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// EmptyBody replaces a post without text.
const EmptyBody = "(no content)"

var (
	fencedBacktick = regexp.MustCompile("```[\\s\\S]*?```")
	fencedTilde    = regexp.MustCompile(`~~~[\s\S]*?~~~`)
	inlineCode     = regexp.MustCompile("`[^`]*`")
	image          = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	link           = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	boldStars      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnders     = regexp.MustCompile(`__(.*?)__`)
	italicStar     = regexp.MustCompile(`\*(.*?)\*`)
	italicUnder    = regexp.MustCompile(`_(.*?)_`)
	heading        = regexp.MustCompile(`(?m)^#+\s*`)
	quote          = regexp.MustCompile(`(?m)^>\s?`)
	rule           = regexp.MustCompile(`(?m)^-{3,}$`)
	blankLines     = regexp.MustCompile(`\n\s*\n`)
	autolink       = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9+.-]{1,31}:[^<>\s]+|[^<>\s@]+@[^<>\s@]+\.[^<>\s@]+)>`)

	// htmlTag matches comments and the elements GitHub renders. Attributes
	// must look like attributes, so prose such as "a<b and c>d" is left alone.
	htmlTag = regexp.MustCompile(`(?i)<!--[\s\S]*?-->|</?(?:a|abbr|b|blockquote|br|code|dd|del|details|div|dl|dt|em|h[1-6]|hr|i|img|ins|kbd|li|ol|p|picture|pre|s|samp|script|source|span|strong|style|sub|summary|sup|table|tbody|td|th|thead|tr|u|ul|video)(?:\s+(?:[a-z][-a-z0-9:]*\s*=\s*(?:"[^"]*"|'[^']*'|[^\s"'<>=]+)|open|hidden|checked|disabled))*\s*/?>`)
	angles  = strings.NewReplacer("<", "&lt;", ">", "&gt;")
)

// StripMarkdown reduces a Markdown body to plain text for the prompt: code is
// dropped, links keep their text, markup and blank lines are removed.
// Autolinks keep their target, known HTML elements are reduced to their text
// and the result is NFC-normalized.
func StripMarkdown(md string) string {
	text := strings.ReplaceAll(md, "\r\n", "\n")
	text = fencedBacktick.ReplaceAllString(text, "")
	text = fencedTilde.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "")
	text = autolink.ReplaceAllString(text, "$1")
	text = stripHTML(text)
	text = image.ReplaceAllString(text, "")
	text = link.ReplaceAllString(text, "$1")
	text = boldStars.ReplaceAllString(text, "$1")
	text = boldUnders.ReplaceAllString(text, "$1")
	text = italicStar.ReplaceAllString(text, "$1")
	text = italicUnder.ReplaceAllString(text, "$1")
	text = heading.ReplaceAllString(text, "")
	text = quote.ReplaceAllString(text, "")
	text = rule.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n")
	return norm.NFC.String(strings.TrimSpace(text))
}

// Body prepares a raw post body: empty bodies get a placeholder, the rest is
// stripped and capped at maxRunes (0 means no cap).
func Body(raw string, maxRunes int) string {
	if strings.TrimSpace(raw) == "" {
		return EmptyBody
	}
	return Truncate(StripMarkdown(raw), maxRunes)
}

// Truncate keeps the first maxRunes runes of s.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}

// stripHTML reduces known HTML elements and entities to text. Any other angle
// bracket is escaped before parsing so that it survives as literal text.
func stripHTML(text string) string {
	tags := htmlTag.FindAllStringIndex(text, -1)
	if len(tags) == 0 && !strings.Contains(text, "&") {
		return text
	}

	var src strings.Builder
	prev := 0
	for _, loc := range tags {
		src.WriteString(angles.Replace(text[prev:loc[0]]))
		src.WriteString(text[loc[0]:loc[1]])
		prev = loc[1]
	}
	src.WriteString(angles.Replace(text[prev:]))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src.String()))
	if err != nil {
		return text
	}
	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	return doc.Find("body").Text()
}
