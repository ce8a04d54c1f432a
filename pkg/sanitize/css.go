package sanitize

import (
	"strings"

	"github.com/gorilla/css/scanner"
)

// allowedProperties lists the CSS properties permitted in inline styles.
var allowedProperties = map[string]bool{
	"align":            true,
	"background-color": true,
	"border":           true,
	"border-bottom":    true,
	"border-left":      true,
	"border-radius":    true,
	"border-right":     true,
	"border-top":       true,
	"box-sizing":       true,
	"clear":            true,
	"color":            true,
	"content":          true,
	"display":          true,
	"font-family":      true,
	"font-size":        true,
	"font-style":       true,
	"font-weight":      true,
	"height":           true,
	"letter-spacing":   true,
	"line-height":      true,
	"margin":           true,
	"margin-bottom":    true,
	"margin-left":      true,
	"margin-right":     true,
	"margin-top":       true,
	"max-height":       true,
	"max-width":        true,
	"min-width":        true,
	"overflow":         true,
	"padding":          true,
	"padding-bottom":   true,
	"padding-left":     true,
	"padding-right":    true,
	"padding-top":      true,
	"table-layout":     true,
	"text-align":       true,
	"text-decoration":  true,
	"text-shadow":      true,
	"text-transform":   true,
	"vertical-align":   true,
	"white-space":      true,
	"width":            true,
	"word-break":       true,
}

// filterDeclarations drops CSS declarations whose property is not allowed.  Input that fails to
// tokenize is discarded entirely.
func filterDeclarations(input string) string {
	var out, decl strings.Builder
	keep, started := false, false
	scan := scanner.New(input)
	for {
		t := scan.Next()
		switch t.Type {
		case scanner.TokenEOF:
			if keep {
				out.WriteString(decl.String())
			}
			return out.String()
		case scanner.TokenError:
			return ""
		}

		if !started {
			// Looking for the property name of the next declaration.
			switch t.Type {
			case scanner.TokenS:
				continue
			case scanner.TokenIdent:
				keep = allowedProperties[strings.ToLower(t.Value)]
			default:
				keep = false
			}
			started = true
		}
		decl.WriteString(t.Value)
		if t.Type == scanner.TokenChar && t.Value == ";" {
			if keep {
				out.WriteString(decl.String())
			}
			decl.Reset()
			started, keep = false, false
		}
	}
}
