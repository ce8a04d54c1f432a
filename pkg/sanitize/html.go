// Package sanitize cleans message HTML for display while keeping safe inline styling.
package sanitize

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var (
	anyStyle = regexp.MustCompile(".*")

	// bodyPolicy permits user generated content plus style attributes, which have already been
	// filtered by filterStyles.
	bodyPolicy = bluemonday.UGCPolicy().
			AllowElements("center").
			AllowAttrs("style").Matching(anyStyle).Globally()

	stripPolicy = bluemonday.StrictPolicy()
)

// HTML sanitizes the provided html, while attempting to preserve inline CSS styling.
func HTML(input string) (string, error) {
	var sb strings.Builder
	if err := filterStyles(&sb, strings.NewReader(input)); err != nil {
		return "", err
	}
	return bodyPolicy.Sanitize(sb.String()), nil
}

// Text removes all markup from the provided html, leaving only its text content.
func Text(input string) string {
	return html.UnescapeString(stripPolicy.Sanitize(input))
}

// filterStyles copies tokens from r to w, rewriting every tag that carries a style attribute so
// the attribute only contains allowed CSS properties.
func filterStyles(w io.Writer, r io.Reader) error {
	bw := bufio.NewWriter(w)
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return err
			}
			return bw.Flush()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !hasAttr {
				if _, err := bw.Write(z.Raw()); err != nil {
					return err
				}
				continue
			}
			if _, err := bw.WriteString(rebuildTag(z, name, tt == html.SelfClosingTagToken)); err != nil {
				return err
			}
		default:
			if _, err := bw.Write(z.Raw()); err != nil {
				return err
			}
		}
	}
}

// rebuildTag renders the current tag with double quoted attributes and a filtered style.
func rebuildTag(z *html.Tokenizer, name []byte, selfClosing bool) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.Write(name)
	for more := true; more; {
		var key, val []byte
		key, val, more = z.TagAttr()
		value := string(val)
		if strings.EqualFold(string(key), "style") {
			value = filterDeclarations(value)
			if value == "" {
				continue
			}
		}
		sb.WriteByte(' ')
		sb.Write(key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(value))
		sb.WriteByte('"')
	}
	if selfClosing {
		sb.WriteByte('/')
	}
	sb.WriteByte('>')
	return sb.String()
}
