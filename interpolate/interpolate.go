// Package interpolate substitutes {placeholder} tokens in endpoint templates
// (URLs, headers, params, commands) from a configuration dictionary.
package interpolate

import (
	"fmt"
	"strconv"
	"strings"
)

// Interpolate replaces every {key} occurrence in template with the stringified
// value from ctx. Unmatched keys are left as the literal {key} token; the
// function never fails. Callers that forward interpolated values downstream
// should drop any value for which HasUnresolved still reports true.
func Interpolate(template string, ctx map[string]any) string {
	if template == "" || len(ctx) == 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open == -1 {
			b.WriteString(template[i:])
			break
		}
		open += i
		close := strings.IndexByte(template[open:], '}')
		if close == -1 {
			b.WriteString(template[i:])
			break
		}
		close += open

		if val, ok := ctx[template[open+1:close]]; ok {
			b.WriteString(template[i:open])
			b.WriteString(Stringify(val))
			i = close + 1
			continue
		}

		// No such key. Emit through the opening brace and rescan from the
		// next byte so a token nested inside literal braces is still found.
		b.WriteString(template[i : open+1])
		i = open + 1
	}

	return b.String()
}

// Map interpolates every value of in against ctx, returning a new map.
func Map(in map[string]string, ctx map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = Interpolate(v, ctx)
	}
	return out
}

// HasUnresolved reports whether s still contains template syntax.
func HasUnresolved(s string) bool {
	return strings.Contains(s, "{")
}

// Stringify converts a scalar context value to its string form.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// JSON numbers decode as float64; render integral values without decimals.
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
