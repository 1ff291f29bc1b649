package filter

import (
	"fmt"
	"strings"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// Substring and extensible-match component tags.
const (
	substringInitial = 0
	substringAny     = 1
	substringFinal   = 2

	extMatchingRule = 1
	extType         = 2
	extMatchValue   = 3
	extDNAttributes = 4
)

// Encode appends the wire form of f to enc.
func (f *Filter) Encode(enc *ber.BEREncoder) error {
	if f == nil {
		return ErrEmptyFilter
	}
	tag := int(f.Type)

	switch f.Type {
	case FilterAnd, FilterOr:
		if len(f.Children) == 0 {
			return fmt.Errorf("%w: %s without children", ErrInvalidFilter, f.Type)
		}
		pos := enc.WriteContextTag(tag, true)
		for _, c := range f.Children {
			if err := c.Encode(enc); err != nil {
				return err
			}
		}
		return enc.EndContextTag(pos)

	case FilterNot:
		pos := enc.WriteContextTag(tag, true)
		if err := f.Child.Encode(enc); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterEquality, FilterGreaterOrEqual, FilterLessOrEqual, FilterApproxMatch:
		pos := enc.WriteContextTag(tag, true)
		if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		if err := enc.WriteOctetString(f.Value); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterSubstring:
		sf := f.Substring
		if sf == nil {
			return fmt.Errorf("%w: substring filter without components", ErrInvalidFilter)
		}
		pos := enc.WriteContextTag(tag, true)
		if err := enc.WriteOctetString([]byte(f.Attribute)); err != nil {
			return err
		}
		seq := enc.BeginSequence()
		if sf.Initial != nil {
			if err := enc.WriteTaggedValue(substringInitial, false, sf.Initial); err != nil {
				return err
			}
		}
		for _, a := range sf.Any {
			if err := enc.WriteTaggedValue(substringAny, false, a); err != nil {
				return err
			}
		}
		if sf.Final != nil {
			if err := enc.WriteTaggedValue(substringFinal, false, sf.Final); err != nil {
				return err
			}
		}
		if err := enc.EndSequence(seq); err != nil {
			return err
		}
		return enc.EndContextTag(pos)

	case FilterPresent:
		return enc.WriteTaggedValue(tag, false, []byte(f.Attribute))

	case FilterExtensibleMatch:
		em := f.Extensible
		if em == nil {
			return fmt.Errorf("%w: extensible filter without assertion", ErrInvalidFilter)
		}
		pos := enc.WriteContextTag(tag, true)
		if em.MatchingRule != "" {
			if err := enc.WriteTaggedValue(extMatchingRule, false, []byte(em.MatchingRule)); err != nil {
				return err
			}
		}
		if em.Attribute != "" {
			if err := enc.WriteTaggedValue(extType, false, []byte(em.Attribute)); err != nil {
				return err
			}
		}
		if err := enc.WriteTaggedValue(extMatchValue, false, em.Value); err != nil {
			return err
		}
		if em.DNAttributes {
			if err := enc.WriteTaggedValue(extDNAttributes, false, []byte{0xFF}); err != nil {
				return err
			}
		}
		return enc.EndContextTag(pos)
	}
	return fmt.Errorf("%w: unknown type %d", ErrInvalidFilter, int(f.Type))
}

// Decode reads one wire filter from dec.
func Decode(dec *ber.BERDecoder) (*Filter, error) {
	tag, constructed, data, err := dec.ReadTaggedValue()
	if err != nil {
		return nil, err
	}
	t := Type(tag)
	sub := ber.NewBERDecoder(data)

	if t != FilterPresent && !constructed {
		return nil, fmt.Errorf("%w: %s must be constructed", ErrInvalidFilter, t)
	}

	switch t {
	case FilterAnd, FilterOr:
		f := &Filter{Type: t}
		for sub.Remaining() > 0 {
			c, err := Decode(sub)
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, c)
		}
		return f, nil

	case FilterNot:
		c, err := Decode(sub)
		if err != nil {
			return nil, err
		}
		return NewNotFilter(c), nil

	case FilterEquality, FilterGreaterOrEqual, FilterLessOrEqual, FilterApproxMatch:
		attr, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		value, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		return &Filter{Type: t, Attribute: string(attr), Value: value}, nil

	case FilterSubstring:
		attr, err := sub.ReadOctetString()
		if err != nil {
			return nil, err
		}
		parts, err := sub.ReadSequenceContents()
		if err != nil {
			return nil, err
		}
		sf := &SubstringFilter{Attribute: string(attr)}
		for parts.Remaining() > 0 {
			n, _, v, err := parts.ReadTaggedValue()
			if err != nil {
				return nil, err
			}
			switch n {
			case substringInitial:
				sf.Initial = v
			case substringAny:
				sf.Any = append(sf.Any, v)
			case substringFinal:
				sf.Final = v
			default:
				return nil, fmt.Errorf("%w: substring component [%d]", ErrInvalidFilter, n)
			}
		}
		return NewSubstringFilter(sf), nil

	case FilterPresent:
		if constructed {
			return nil, fmt.Errorf("%w: present filter must be primitive", ErrInvalidFilter)
		}
		return NewPresentFilter(string(data)), nil

	case FilterExtensibleMatch:
		em := &ExtensibleMatch{}
		for sub.Remaining() > 0 {
			n, _, v, err := sub.ReadTaggedValue()
			if err != nil {
				return nil, err
			}
			switch n {
			case extMatchingRule:
				em.MatchingRule = string(v)
			case extType:
				em.Attribute = string(v)
			case extMatchValue:
				em.Value = v
			case extDNAttributes:
				em.DNAttributes = len(v) > 0 && v[0] != 0
			}
		}
		return NewExtensibleMatchFilter(em), nil
	}
	return nil, fmt.Errorf("%w: unknown filter tag %d", ErrInvalidFilter, tag)
}

// String renders f in RFC 4515 form.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	f.write(&b)
	return b.String()
}

func (f *Filter) write(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd, FilterOr:
		if f.Type == FilterAnd {
			b.WriteByte('&')
		} else {
			b.WriteByte('|')
		}
		for _, c := range f.Children {
			c.write(b)
		}
	case FilterNot:
		b.WriteByte('!')
		if f.Child != nil {
			f.Child.write(b)
		}
	case FilterEquality:
		b.WriteString(f.Attribute + "=" + escape(f.Value))
	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute + ">=" + escape(f.Value))
	case FilterLessOrEqual:
		b.WriteString(f.Attribute + "<=" + escape(f.Value))
	case FilterApproxMatch:
		b.WriteString(f.Attribute + "~=" + escape(f.Value))
	case FilterPresent:
		b.WriteString(f.Attribute + "=*")
	case FilterSubstring:
		b.WriteString(f.Attribute + "=")
		if f.Substring != nil {
			b.WriteString(escape(f.Substring.Initial))
			b.WriteByte('*')
			for _, a := range f.Substring.Any {
				b.WriteString(escape(a))
				b.WriteByte('*')
			}
			b.WriteString(escape(f.Substring.Final))
		}
	case FilterExtensibleMatch:
		if em := f.Extensible; em != nil {
			b.WriteString(em.Attribute)
			if em.DNAttributes {
				b.WriteString(":dn")
			}
			if em.MatchingRule != "" {
				b.WriteString(":" + em.MatchingRule)
			}
			b.WriteString(":=" + escape(em.Value))
		}
	}
	b.WriteByte(')')
}
