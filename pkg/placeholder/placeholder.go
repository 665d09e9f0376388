// Package placeholder fills {name} tokens in prompt bodies.
//
// A placeholder is an opening brace, an identifier ([A-Za-z_][A-Za-z0-9_]*)
// and a closing brace. Any other brace text is left alone, so JSON examples
// embedded in a prompt survive substitution untouched.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pario-ai/promptlab/pkg/models"
)

var pattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Names returns the distinct placeholder names in body, in order of first appearance.
func Names(body string) []string {
	matches := pattern.FindAllStringSubmatch(body, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Missing returns the placeholder names in body that have no binding, sorted.
func Missing(body string, bindings map[string]string) []string {
	var missing []string
	for _, name := range Names(body) {
		if _, ok := bindings[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Fill replaces every placeholder in body with its bound value in a single
// pass. Bound values are inserted verbatim and never rescanned. Bindings
// that body does not use are ignored.
func Fill(body string, bindings map[string]string) (string, error) {
	if missing := Missing(body, bindings); len(missing) > 0 {
		return "", fmt.Errorf("%w: missing bindings for %s", models.ErrValidation, strings.Join(missing, ", "))
	}
	return pattern.ReplaceAllStringFunc(body, func(tok string) string {
		return bindings[tok[1:len(tok)-1]]
	}), nil
}
