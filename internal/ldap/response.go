package ldap

import "fmt"

// Response is the decoded protocolOp of a server message. It is a closed set:
// *Result, *SearchResultEntry, *SearchResultReference,
// *IntermediateResponse and *Notice.
type Response interface {
	isResponse()
}

func (*Result) isResponse()                {}
func (*SearchResultEntry) isResponse()     {}
func (*SearchResultReference) isResponse() {}
func (*IntermediateResponse) isResponse()  {}
func (*Notice) isResponse()                {}

// Notice is an unsolicited notification: an ExtendedResponse carrying
// message ID 0 that belongs to no operation.
type Notice struct {
	Name  string
	Value []byte
	LDAPResult
}

// IsDisconnection reports whether the server is about to drop the connection.
func (n *Notice) IsDisconnection() bool {
	return n.Name == NoticeOfDisconnectionOID
}

// DecodeResponse interprets the operation body of a server message.
func DecodeResponse(msg *LDAPMessage) (Response, error) {
	if msg == nil || msg.Operation == nil {
		return nil, ErrMissingOperation
	}
	t := msg.OperationType()
	data := msg.Operation.Data

	switch {
	case t == ApplicationExtendedResponse && msg.MessageID == 0:
		res, err := ParseResult(t, data)
		if err != nil {
			return nil, err
		}
		return &Notice{Name: res.ResponseName, Value: res.ResponseValue, LDAPResult: res.LDAPResult}, nil
	case isFinalResponse(t):
		return ParseResult(t, data)
	case t == ApplicationSearchResultEntry:
		return ParseSearchResultEntry(data)
	case t == ApplicationSearchResultReference:
		return ParseSearchResultReference(data)
	case t == ApplicationIntermediateResponse:
		return ParseIntermediateResponse(data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, t)
}
