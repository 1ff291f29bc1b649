package commands

import (
	"encoding/base64"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/KilimcininKorOglu/ldapc/internal/client"
)

// writeEntry prints e as an LDIF record. Values that are not safe strings
// (RFC 2849) are base64 encoded.
func writeEntry(w io.Writer, e *client.Entry) {
	writeLine(w, "dn", []byte(e.DN()))
	for _, name := range e.AttributeNames() {
		for _, v := range e.RawValues(name) {
			writeLine(w, name, v)
		}
	}
	fmt.Fprintln(w)
}

func writeLine(w io.Writer, name string, v []byte) {
	if safeString(v) {
		fmt.Fprintf(w, "%s: %s\n", name, v)
		return
	}
	fmt.Fprintf(w, "%s:: %s\n", name, base64.StdEncoding.EncodeToString(v))
}

func safeString(v []byte) bool {
	if len(v) == 0 {
		return true
	}
	if v[0] == ' ' || v[0] == ':' || v[0] == '<' || v[len(v)-1] == ' ' {
		return false
	}
	if !utf8.Valid(v) {
		return false
	}
	for _, b := range v {
		if b == 0 || b == '\n' || b == '\r' {
			return false
		}
	}
	return true
}
