package filter

import (
	"testing"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		typ  Type
		attr string
		val  string
	}{
		{"(uid=alice)", FilterEquality, "uid", "alice"},
		{"uid=alice", FilterEquality, "uid", "alice"},
		{"(mail=*)", FilterPresent, "mail", ""},
		{"(age>=21)", FilterGreaterOrEqual, "age", "21"},
		{"(age<=65)", FilterLessOrEqual, "age", "65"},
		{"(cn~=jon)", FilterApproxMatch, "cn", "jon"},
		{`(cn=a\2ab)`, FilterEquality, "cn", "a*b"},
		{"(note=x>=y)", FilterEquality, "note", "x>=y"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, f.Type)
			assert.Equal(t, tt.attr, f.Attribute)
			if tt.val != "" {
				assert.Equal(t, tt.val, string(f.Value))
			}
		})
	}
}

func TestParseComposite(t *testing.T) {
	f, err := Parse("(&(objectClass=person)(|(uid=a)(uid=b))(!(status=off)))")
	require.NoError(t, err)
	require.Equal(t, FilterAnd, f.Type)
	require.Len(t, f.Children, 3)
	assert.Equal(t, FilterOr, f.Children[1].Type)
	assert.Len(t, f.Children[1].Children, 2)
	require.Equal(t, FilterNot, f.Children[2].Type)
	assert.Equal(t, "status", f.Children[2].Child.Attribute)
}

func TestParseSubstring(t *testing.T) {
	f, err := Parse("(cn=Jo*h*n*Doe)")
	require.NoError(t, err)
	require.Equal(t, FilterSubstring, f.Type)
	assert.Equal(t, []byte("Jo"), f.Substring.Initial)
	assert.Equal(t, [][]byte{[]byte("h"), []byte("n")}, f.Substring.Any)
	assert.Equal(t, []byte("Doe"), f.Substring.Final)

	f, err = Parse("(cn=*smith)")
	require.NoError(t, err)
	assert.Nil(t, f.Substring.Initial)
	assert.Equal(t, []byte("smith"), f.Substring.Final)
}

func TestParseExtensible(t *testing.T) {
	f, err := Parse("(cn:dn:caseExactMatch:=Fred)")
	require.NoError(t, err)
	require.Equal(t, FilterExtensibleMatch, f.Type)
	assert.Equal(t, "cn", f.Extensible.Attribute)
	assert.Equal(t, "caseExactMatch", f.Extensible.MatchingRule)
	assert.True(t, f.Extensible.DNAttributes)
	assert.Equal(t, []byte("Fred"), f.Extensible.Value)

	f, err = Parse("(:2.5.13.5:=Dino)")
	require.NoError(t, err)
	assert.Equal(t, "2.5.13.5", f.Extensible.MatchingRule)
	assert.Empty(t, f.Extensible.Attribute)
}

func TestParseErrors(t *testing.T) {
	tests := map[string]error{
		"":             ErrEmptyFilter,
		"()":           ErrEmptyFilter,
		"(=x)":         ErrMissingAttribute,
		"(&(a=b)(c=d)": ErrUnbalancedParens,
		"(&(a=b)":      ErrUnbalancedParens,
		"(&)":          ErrInvalidFilter,
		`(cn=\2)`:      ErrInvalidEscape,
		"(cn)":         ErrInvalidFilter,
		"(&(a=b)(c=d":  ErrInvalidFilter,
	}
	for in, want := range tests {
		_, err := Parse(in)
		assert.ErrorIs(t, err, want, "input %q", in)
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, in := range []string{
		"(uid=alice)",
		"(mail=*)",
		"(&(objectClass=person)(!(cn=ad*min*)))",
		"(|(age>=21)(age<=10)(cn~=x))",
		"(cn:dn:2.5.13.5:=Fred)",
		`(cn=a\2ab)`,
	} {
		t.Run(in, func(t *testing.T) {
			f, err := Parse(in)
			require.NoError(t, err)

			enc := ber.NewBEREncoder(64)
			require.NoError(t, f.Encode(enc))

			dec := ber.NewBERDecoder(enc.Bytes())
			got, err := Decode(dec)
			require.NoError(t, err)
			assert.Equal(t, 0, dec.Remaining())
			assert.Equal(t, in, got.String())
		})
	}
}

func TestEncodeWireBytes(t *testing.T) {
	enc := ber.NewBEREncoder(16)
	require.NoError(t, NewPresentFilter("objectClass").Encode(enc))
	assert.Equal(t, append([]byte{0x87, 0x0B}, "objectClass"...), enc.Bytes())

	enc = ber.NewBEREncoder(16)
	require.NoError(t, NewEqualityFilter("cn", []byte("x")).Encode(enc))
	assert.Equal(t, []byte{0xA3, 0x07, 0x04, 0x02, 'c', 'n', 0x04, 0x01, 'x'}, enc.Bytes())
}
