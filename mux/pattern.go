package mux

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidPattern is returned (wrapped) when a route pattern cannot be
// parsed.
var ErrInvalidPattern = errors.New("mux: invalid route pattern")

type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentParam
	segmentWildcard
)

// segment is one slash-separated element of a route pattern.
type segment struct {
	kind       segmentKind
	value      string // literal text or parameter name
	constraint *regexp.Regexp
}

// pattern is a compiled route template such as "/api/users/:id(int)".
type pattern struct {
	template string
	segments []segment
	names    []string
}

// constraintMacros maps macro names usable in ":name(macro)" to anchored
// regular expressions. Anything else in parentheses is compiled as a raw
// regular expression.
var constraintMacros = map[string]string{
	"int":      `[0-9]+`,
	"uuid":     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`,
	"slug":     `[a-zA-Z0-9]+(?:-[a-zA-Z0-9]+)*`,
	"alpha":    `[a-zA-Z]+`,
	"alphanum": `[a-zA-Z0-9]+`,
	"hex":      `[0-9a-fA-F]+`,
	"date":     `[0-9]{4}-[0-9]{2}-[0-9]{2}`,
}

func compileConstraint(expr string) (*regexp.Regexp, error) {
	if macro, ok := constraintMacros[expr]; ok {
		expr = macro
	}

	return regexp.Compile("^(?:" + expr + ")$")
}

// parsePattern compiles a route template. Templates must start with "/".
// Parameters are written ":name" or ":name(constraint)"; a final "*name"
// segment captures the rest of the path.
func parsePattern(tpl string) (*pattern, error) {
	if !strings.HasPrefix(tpl, "/") {
		return nil, fmt.Errorf("%w %q: must start with a slash", ErrInvalidPattern, tpl)
	}

	p := &pattern{template: tpl}
	raw := splitPath(tpl)
	seen := make(map[string]struct{}, len(raw))

	for i, part := range raw {
		switch {
		case strings.HasPrefix(part, ":"):
			name, expr, err := splitParam(part[1:])
			if err != nil {
				return nil, fmt.Errorf("%w %q: %w", ErrInvalidPattern, tpl, err)
			}

			seg := segment{kind: segmentParam, value: name}
			if expr != "" {
				re, err := compileConstraint(expr)
				if err != nil {
					return nil, fmt.Errorf("%w %q: constraint for %q: %w", ErrInvalidPattern, tpl, name, err)
				}
				seg.constraint = re
			}

			if err := p.addName(name, seen); err != nil {
				return nil, err
			}
			p.segments = append(p.segments, seg)

		case strings.HasPrefix(part, "*"):
			if i != len(raw)-1 {
				return nil, fmt.Errorf("%w %q: wildcard must be the last segment", ErrInvalidPattern, tpl)
			}

			name := part[1:]
			if name == "" {
				name = "*"
			}

			if err := p.addName(name, seen); err != nil {
				return nil, err
			}
			p.segments = append(p.segments, segment{kind: segmentWildcard, value: name})

		default:
			p.segments = append(p.segments, segment{kind: segmentLiteral, value: part})
		}
	}

	return p, nil
}

func (p *pattern) addName(name string, seen map[string]struct{}) error {
	if _, dup := seen[name]; dup {
		return fmt.Errorf("%w %q: duplicated parameter %q", ErrInvalidPattern, p.template, name)
	}
	seen[name] = struct{}{}
	p.names = append(p.names, name)

	return nil
}

// splitParam splits "id(int)" into ("id", "int").
func splitParam(s string) (string, string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if s == "" {
			return "", "", errors.New("empty parameter name")
		}
		return s, "", nil
	}

	if !strings.HasSuffix(s, ")") {
		return "", "", errors.New("unterminated constraint")
	}

	name := s[:open]
	if name == "" {
		return "", "", errors.New("empty parameter name")
	}

	return name, s[open+1 : len(s)-1], nil
}

// splitPath splits a path into its segments. The root path has none and a
// single trailing slash is ignored.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return nil
	}

	return strings.Split(p, "/")
}

// match reports whether path satisfies the pattern and returns the
// extracted parameters. Segment counts must agree unless the pattern ends
// with a wildcard. path is split in its escaped form so that an encoded
// slash stays inside one segment; segments are unescaped before comparison.
func (p *pattern) match(path string) (Params, bool) {
	parts := splitPath(path)
	for i, part := range parts {
		parts[i] = unescapeSegment(part)
	}

	hasWildcard := len(p.segments) > 0 && p.segments[len(p.segments)-1].kind == segmentWildcard
	if hasWildcard {
		if len(parts) < len(p.segments)-1 {
			return nil, false
		}
	} else if len(parts) != len(p.segments) {
		return nil, false
	}

	var params Params

	for i, seg := range p.segments {
		switch seg.kind {
		case segmentLiteral:
			if parts[i] != seg.value {
				return nil, false
			}

		case segmentParam:
			if seg.constraint != nil && !seg.constraint.MatchString(parts[i]) {
				return nil, false
			}
			if params == nil {
				params = make(Params, len(p.names))
			}
			params[seg.value] = parts[i]

		case segmentWildcard:
			if params == nil {
				params = make(Params, len(p.names))
			}
			params[seg.value] = strings.Join(parts[i:], "/")
		}
	}

	return params, true
}

// unescapeSegment decodes a path segment. Segments that are not valid
// escapes, such as a decoded path containing '%', are used as is.
func unescapeSegment(seg string) string {
	if !strings.Contains(seg, "%") {
		return seg
	}

	if v, err := url.PathUnescape(seg); err == nil {
		return v
	}

	return seg
}

// build expands the pattern with the given parameter values.
func (p *pattern) build(values map[string]string) (string, error) {
	var sb strings.Builder

	for _, seg := range p.segments {
		sb.WriteByte('/')

		switch seg.kind {
		case segmentLiteral:
			sb.WriteString(seg.value)

		case segmentParam:
			v, ok := values[seg.value]
			if !ok {
				return "", fmt.Errorf("mux: missing route parameter %q", seg.value)
			}
			if seg.constraint != nil && !seg.constraint.MatchString(v) {
				return "", fmt.Errorf("mux: parameter %q=%q does not satisfy %s", seg.value, v, seg.constraint)
			}
			sb.WriteString(url.PathEscape(v))

		case segmentWildcard:
			sb.WriteString(values[seg.value])
		}
	}

	if sb.Len() == 0 {
		return "/", nil
	}

	return sb.String(), nil
}
