package client

import "github.com/KilimcininKorOglu/ldapc/internal/ldap"

// SearchHandle is a Handle for a SearchRequest with per-entry and
// per-reference callbacks.
type SearchHandle struct {
	*Handle
}

// OnEntry registers a callback for each SearchResultEntry.
func (h *SearchHandle) OnEntry(f func(*Entry)) {
	h.configure(func() { h.onEntry = append(h.onEntry, f) })
}

// OnReference registers a callback for each SearchResultReference.
func (h *SearchHandle) OnReference(f func(uris []string)) {
	h.configure(func() { h.onReference = append(h.onReference, f) })
}

// CompareHandle is a Handle for a CompareRequest.
type CompareHandle struct {
	*Handle
}

// OnCompare registers a callback for the boolean outcome. It fires only for
// compareTrue and compareFalse results.
func (h *CompareHandle) OnCompare(f func(matched bool)) {
	h.OnResult(func(r *Result) {
		switch r.Code() {
		case ldap.ResultCompareTrue:
			f(true)
		case ldap.ResultCompareFalse:
			f(false)
		}
	})
}

// ExtendedHandle is a Handle for an ExtendedRequest.
type ExtendedHandle struct {
	*Handle
}

// OnExtended registers a callback for the responseName and responseValue
// of the ExtendedResponse.
func (h *ExtendedHandle) OnExtended(f func(name string, value []byte)) {
	h.OnResult(func(r *Result) {
		f(r.ResponseName(), r.ResponseValue())
	})
}
