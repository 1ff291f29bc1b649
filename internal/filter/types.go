package filter

import "fmt"

// Type identifies a filter choice. Values equal the RFC 4511 context tags.
type Type int

const (
	FilterAnd Type = iota
	FilterOr
	FilterNot
	FilterEquality
	FilterSubstring
	FilterGreaterOrEqual
	FilterLessOrEqual
	FilterPresent
	FilterApproxMatch
	FilterExtensibleMatch
)

var typeNames = [...]string{
	"AND", "OR", "NOT", "EQUALITY", "SUBSTRING",
	"GREATER_OR_EQUAL", "LESS_OR_EQUAL", "PRESENT", "APPROX_MATCH", "EXTENSIBLE_MATCH",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
	return typeNames[t]
}

// Filter is one node of a search filter tree.
type Filter struct {
	Type       Type
	Attribute  string
	Value      []byte
	Children   []*Filter        // AND, OR
	Child      *Filter          // NOT
	Substring  *SubstringFilter // SUBSTRING
	Extensible *ExtensibleMatch // EXTENSIBLE_MATCH
}

// SubstringFilter holds the pieces of (attr=initial*any*final).
type SubstringFilter struct {
	Attribute string
	Initial   []byte
	Any       [][]byte
	Final     []byte
}

// ExtensibleMatch is a MatchingRuleAssertion, (attr:dn:rule:=value).
type ExtensibleMatch struct {
	MatchingRule string
	Attribute    string
	Value        []byte
	DNAttributes bool
}

func NewAndFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterAnd, Children: children}
}

func NewOrFilter(children ...*Filter) *Filter {
	return &Filter{Type: FilterOr, Children: children}
}

func NewNotFilter(child *Filter) *Filter {
	return &Filter{Type: FilterNot, Child: child}
}

func NewEqualityFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterEquality, Attribute: attribute, Value: value}
}

func NewSubstringFilter(sf *SubstringFilter) *Filter {
	return &Filter{Type: FilterSubstring, Attribute: sf.Attribute, Substring: sf}
}

func NewPresentFilter(attribute string) *Filter {
	return &Filter{Type: FilterPresent, Attribute: attribute}
}

func NewGreaterOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterGreaterOrEqual, Attribute: attribute, Value: value}
}

func NewLessOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterLessOrEqual, Attribute: attribute, Value: value}
}

func NewApproxMatchFilter(attribute string, value []byte) *Filter {
	return &Filter{Type: FilterApproxMatch, Attribute: attribute, Value: value}
}

func NewExtensibleMatchFilter(em *ExtensibleMatch) *Filter {
	return &Filter{Type: FilterExtensibleMatch, Attribute: em.Attribute, Value: em.Value, Extensible: em}
}
