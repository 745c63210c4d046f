package config

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ResolvePlaceholders expands ${VAR} placeholders in s from vars. Every
// placeholder must resolve; an unresolved placeholder is a configuration
// error, never a silent pass-through.
func ResolvePlaceholders(s string, vars map[string]string) (string, error) {
	var missing []string
	resolved := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved placeholder(s) %s in %q", strings.Join(missing, ", "), s)
	}
	return resolved, nil
}
