package filter

import (
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrEmptyFilter      = errors.New("filter: empty filter")
	ErrInvalidFilter    = errors.New("filter: invalid filter syntax")
	ErrUnbalancedParens = errors.New("filter: unbalanced parentheses")
	ErrMissingAttribute = errors.New("filter: missing attribute name")
	ErrInvalidEscape    = errors.New("filter: invalid escape sequence")
)

// Parse parses an RFC 4515 filter string. A bare item without parentheses,
// such as "uid=alice", is accepted and treated as "(uid=alice)".
func Parse(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmptyFilter
	}
	if !strings.HasPrefix(s, "(") {
		if strings.ContainsAny(s, "()") {
			return nil, ErrInvalidFilter
		}
		s = "(" + s + ")"
	}
	return parseFilter(s)
}

func parseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, ErrInvalidFilter
	}
	inner := s[1 : len(s)-1]
	if inner == "" {
		return nil, ErrEmptyFilter
	}

	switch inner[0] {
	case '&', '|':
		children, err := parseFilterList(inner[1:])
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, ErrInvalidFilter
		}
		if inner[0] == '&' {
			return NewAndFilter(children...), nil
		}
		return NewOrFilter(children...), nil
	case '!':
		child, err := parseFilter(inner[1:])
		if err != nil {
			return nil, err
		}
		return NewNotFilter(child), nil
	default:
		return parseItem(inner)
	}
}

func parseFilterList(s string) ([]*Filter, error) {
	var filters []*Filter
	s = strings.TrimSpace(s)
	for s != "" {
		if s[0] != '(' {
			return nil, ErrInvalidFilter
		}
		depth, end := 0, -1
		for i := 0; i < len(s) && end < 0; i++ {
			switch s[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					end = i
				}
			}
		}
		if end < 0 {
			return nil, ErrUnbalancedParens
		}
		f, err := parseFilter(s[:end+1])
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
		s = strings.TrimSpace(s[end+1:])
	}
	return filters, nil
}

// parseItem handles simple, presence, substring and extensible items. The
// operator is decided by the characters before the first '='.
func parseItem(s string) (*Filter, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return nil, ErrInvalidFilter
	}
	if eq == 0 {
		return nil, ErrMissingAttribute
	}
	raw := s[eq+1:]

	op := s[eq-1]
	attrEnd := eq
	if op == '>' || op == '<' || op == '~' || op == ':' {
		attrEnd = eq - 1
	}
	attr := strings.TrimSpace(s[:attrEnd])

	switch op {
	case ':':
		return parseExtensible(attr, raw)
	case '>', '<', '~':
		if attr == "" {
			return nil, ErrMissingAttribute
		}
		value, err := unescape(raw)
		if err != nil {
			return nil, err
		}
		switch op {
		case '>':
			return NewGreaterOrEqualFilter(attr, value), nil
		case '<':
			return NewLessOrEqualFilter(attr, value), nil
		default:
			return NewApproxMatchFilter(attr, value), nil
		}
	}

	if attr == "" {
		return nil, ErrMissingAttribute
	}
	if raw == "*" {
		return NewPresentFilter(attr), nil
	}
	if strings.Contains(raw, "*") {
		return parseSubstring(attr, raw)
	}
	value, err := unescape(raw)
	if err != nil {
		return nil, err
	}
	return NewEqualityFilter(attr, value), nil
}

func parseSubstring(attr, raw string) (*Filter, error) {
	parts := strings.Split(raw, "*")
	sf := &SubstringFilter{Attribute: attr}
	for i, part := range parts {
		if part == "" {
			continue
		}
		value, err := unescape(part)
		if err != nil {
			return nil, err
		}
		switch i {
		case 0:
			sf.Initial = value
		case len(parts) - 1:
			sf.Final = value
		default:
			sf.Any = append(sf.Any, value)
		}
	}
	return NewSubstringFilter(sf), nil
}

// parseExtensible parses the left-hand side "attr:dn:rule" of an extensible
// match; every part is optional but an attribute or a rule is required.
func parseExtensible(lhs, raw string) (*Filter, error) {
	parts := strings.Split(lhs, ":")
	em := &ExtensibleMatch{Attribute: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		switch {
		case strings.EqualFold(p, "dn"):
			em.DNAttributes = true
		case p != "":
			em.MatchingRule = p
		}
	}
	if em.Attribute == "" && em.MatchingRule == "" {
		return nil, ErrMissingAttribute
	}
	value, err := unescape(raw)
	if err != nil {
		return nil, err
	}
	em.Value = value
	return NewExtensibleMatchFilter(em), nil
}

// unescape decodes RFC 4515 \XX escapes.
func unescape(s string) ([]byte, error) {
	if !strings.Contains(s, `\`) {
		return []byte(s), nil
	}
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			out = append(out, s[i])
			continue
		}
		if i+3 > len(s) {
			return nil, ErrInvalidEscape
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return nil, ErrInvalidEscape
		}
		out = append(out, b[0])
		i += 2
	}
	return out, nil
}

// escape is the inverse of unescape for the characters RFC 4515 requires.
func escape(v []byte) string {
	var b strings.Builder
	for _, c := range v {
		switch c {
		case '*', '(', ')', '\\', 0:
			b.WriteByte('\\')
			b.WriteString(hex.EncodeToString([]byte{c}))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
