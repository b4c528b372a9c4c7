// Package templating renders message templates containing {{variable}}
// placeholders against a context map.
//
// The syntax is intentionally tiny: {{name}} or {{name.nested}} and nothing
// else. There are no filters, conditionals or loops, so rendering is total:
// it never fails and never has side effects. Text that does not form a
// well-formed placeholder is copied through literally.
package templating

import (
	"fmt"
	"regexp"
	"strings"
)

// varPattern matches {{ name }} and {{ name.nested.path }}. Names must be
// identifiers; anything else ({{guest-name}}, {{1st}}) is literal text even
// when the context has that key.
var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}\}`)

// ValidationResult reports which template variables the context cannot
// resolve.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
}

// Render substitutes every placeholder in tpl with its value from ctx.
// Unresolved and nil values become the empty string.
func Render(tpl string, ctx map[string]any) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	return varPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		val, ok := Lookup(ctx, name)
		if !ok {
			return ""
		}
		return stringify(val)
	})
}

// ExtractVariables returns the distinct placeholder names in tpl in order of
// first appearance.
func ExtractVariables(tpl string) []string {
	matches := varPattern.FindAllStringSubmatch(tpl, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// Validate checks that every variable in tpl resolves to a non-nil value in
// ctx. It is advisory; Render never fails on missing variables.
func Validate(tpl string, ctx map[string]any) ValidationResult {
	res := ValidationResult{Valid: true, Missing: []string{}}
	for _, name := range ExtractVariables(tpl) {
		if _, ok := Lookup(ctx, name); !ok {
			res.Missing = append(res.Missing, name)
		}
	}
	res.Valid = len(res.Missing) == 0
	return res
}

// Lookup resolves a dotted path against nested maps. ok is false when any
// segment is absent or the final value is nil.
func Lookup(ctx map[string]any, path string) (any, bool) {
	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		case map[string]string:
			val, ok := v[part]
			if !ok {
				return nil, false
			}
			current = val
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	if p, isPtr := current.(*string); isPtr && p == nil {
		return nil, false
	}
	return current, true
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		if s == nil {
			return ""
		}
		return *s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
