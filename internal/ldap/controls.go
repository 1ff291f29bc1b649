package ldap

import (
	"errors"

	"github.com/KilimcininKorOglu/ldapc/internal/ber"
)

// Control OIDs this client understands.
const (
	PagedResultsOID            = "1.2.840.113556.1.4.319"  // RFC 2696
	PersistentSearchOID        = "2.16.840.1.113730.3.4.3" // draft-ietf-ldapext-psearch
	EntryChangeNotificationOID = "2.16.840.1.113730.3.4.7" // draft-ietf-ldapext-psearch
	ManageDsaITOID             = "2.16.840.1.113730.3.4.2" // RFC 3296
)

// Persistent search change types, combined as a bitmask.
const (
	ChangeTypeAdd    = 1
	ChangeTypeDelete = 2
	ChangeTypeModify = 4
	ChangeTypeModDN  = 8
)

var ErrControlMismatch = errors.New("ldap: control has unexpected OID")

// FindControl returns the first control with the given OID.
func FindControl(controls []Control, oid string) (Control, bool) {
	for _, c := range controls {
		if c.OID == oid {
			return c, true
		}
	}
	return Control{}, false
}

// parseControls reads the [0] Controls field. Some servers omit the
// SEQUENCE OF wrapper and place Control sequences directly under [0]; both
// layouts are accepted.
func parseControls(dec *ber.BERDecoder) ([]Control, error) {
	body, err := dec.ReadContextTagContents(ContextTagControls)
	if err != nil {
		return nil, err
	}
	if body.Remaining() == 0 {
		return nil, nil
	}

	start := body.Offset()
	list, err := body.ReadSequenceContents()
	if err != nil {
		return nil, err
	}
	if class, _, tag, err := list.PeekTag(); err == nil && class == ber.ClassUniversal && tag == ber.TagOctetString {
		// Unwrapped: the sequence just read was itself a Control.
		body.SetOffset(start)
		list = body
	}

	var controls []Control
	for list.Remaining() > 0 {
		c, err := parseControl(list)
		if err != nil {
			return nil, err
		}
		controls = append(controls, c)
	}
	return controls, nil
}

func parseControl(dec *ber.BERDecoder) (Control, error) {
	var c Control
	seq, err := dec.ReadSequenceContents()
	if err != nil {
		return c, err
	}
	oid, err := seq.ReadOctetString()
	if err != nil {
		return c, NewParseError(seq.Offset(), "failed to read control OID", err)
	}
	c.OID = string(oid)

	if class, _, tag, err := seq.PeekTag(); err == nil && class == ber.ClassUniversal && tag == ber.TagBoolean {
		if c.Criticality, err = seq.ReadBoolean(); err != nil {
			return c, NewParseError(seq.Offset(), "failed to read control criticality", err)
		}
	}
	if seq.Remaining() > 0 {
		if c.Value, err = seq.ReadOctetString(); err != nil {
			return c, NewParseError(seq.Offset(), "failed to read control value", err)
		}
	}
	return c, nil
}

func encodeControls(enc *ber.BEREncoder, controls []Control) error {
	ctx := enc.WriteContextTag(ContextTagControls, true)
	for _, c := range controls {
		seq := enc.BeginSequence()
		if err := enc.WriteOctetString([]byte(c.OID)); err != nil {
			return err
		}
		if c.Criticality {
			if err := enc.WriteBoolean(true); err != nil {
				return err
			}
		}
		if c.Value != nil {
			if err := enc.WriteOctetString(c.Value); err != nil {
				return err
			}
		}
		if err := enc.EndSequence(seq); err != nil {
			return err
		}
	}
	return enc.EndContextTag(ctx)
}

// PagedResults is the RFC 2696 control value, used both to request a page
// and to carry the server's cookie back.
type PagedResults struct {
	Size   int
	Cookie []byte
}

// Control encodes p as a control.
func (p *PagedResults) Control(critical bool) (Control, error) {
	enc := ber.NewBEREncoder(32)
	seq := enc.BeginSequence()
	if err := enc.WriteInteger(int64(p.Size)); err != nil {
		return Control{}, err
	}
	if err := enc.WriteOctetString(p.Cookie); err != nil {
		return Control{}, err
	}
	if err := enc.EndSequence(seq); err != nil {
		return Control{}, err
	}
	return Control{OID: PagedResultsOID, Criticality: critical, Value: enc.Bytes()}, nil
}

// ParsePagedResults decodes a paged results control value.
func ParsePagedResults(c Control) (*PagedResults, error) {
	if c.OID != PagedResultsOID {
		return nil, ErrControlMismatch
	}
	seq, err := ber.NewBERDecoder(c.Value).ReadSequenceContents()
	if err != nil {
		return nil, err
	}
	size, err := seq.ReadInteger()
	if err != nil {
		return nil, err
	}
	cookie, err := seq.ReadOctetString()
	if err != nil {
		return nil, err
	}
	return &PagedResults{Size: int(size), Cookie: cookie}, nil
}

// PersistentSearch is the persistent search request control value.
type PersistentSearch struct {
	ChangeTypes int
	ChangesOnly bool
	ReturnECs   bool
}

// Control encodes ps as a control. Persistent search is always critical.
func (ps *PersistentSearch) Control() (Control, error) {
	enc := ber.NewBEREncoder(16)
	seq := enc.BeginSequence()
	if err := enc.WriteInteger(int64(ps.ChangeTypes)); err != nil {
		return Control{}, err
	}
	if err := enc.WriteBoolean(ps.ChangesOnly); err != nil {
		return Control{}, err
	}
	if err := enc.WriteBoolean(ps.ReturnECs); err != nil {
		return Control{}, err
	}
	if err := enc.EndSequence(seq); err != nil {
		return Control{}, err
	}
	return Control{OID: PersistentSearchOID, Criticality: true, Value: enc.Bytes()}, nil
}

// EntryChange is the entry change notification response control value
// attached to entries returned by a persistent search.
type EntryChange struct {
	ChangeType   int
	PreviousDN   string
	ChangeNumber int64
}

// Control encodes ec as a control.
func (ec *EntryChange) Control() (Control, error) {
	enc := ber.NewBEREncoder(32)
	seq := enc.BeginSequence()
	if err := enc.WriteEnumerated(int64(ec.ChangeType)); err != nil {
		return Control{}, err
	}
	if ec.ChangeType == ChangeTypeModDN && ec.PreviousDN != "" {
		if err := enc.WriteOctetString([]byte(ec.PreviousDN)); err != nil {
			return Control{}, err
		}
	}
	if ec.ChangeNumber > 0 {
		if err := enc.WriteInteger(ec.ChangeNumber); err != nil {
			return Control{}, err
		}
	}
	if err := enc.EndSequence(seq); err != nil {
		return Control{}, err
	}
	return Control{OID: EntryChangeNotificationOID, Value: enc.Bytes()}, nil
}

// ParseEntryChange decodes an entry change notification control.
func ParseEntryChange(c Control) (*EntryChange, error) {
	if c.OID != EntryChangeNotificationOID {
		return nil, ErrControlMismatch
	}
	seq, err := ber.NewBERDecoder(c.Value).ReadSequenceContents()
	if err != nil {
		return nil, err
	}
	ct, err := seq.ReadEnumerated()
	if err != nil {
		return nil, err
	}
	ec := &EntryChange{ChangeType: int(ct)}
	for seq.Remaining() > 0 {
		_, _, tag, err := seq.PeekTag()
		if err != nil {
			return nil, err
		}
		switch tag {
		case ber.TagOctetString:
			dn, err := seq.ReadOctetString()
			if err != nil {
				return nil, err
			}
			ec.PreviousDN = string(dn)
		case ber.TagInteger:
			if ec.ChangeNumber, err = seq.ReadInteger(); err != nil {
				return nil, err
			}
		default:
			return ec, nil
		}
	}
	return ec, nil
}
