package ber

// BEREncoder appends BER-encoded values to an internal buffer.
type BEREncoder struct {
	buf []byte
	// open holds the length-octet positions of constructed values that have
	// been started but not yet closed, innermost last.
	open []int
}

// NewBEREncoder creates an encoder with the given initial capacity.
func NewBEREncoder(capacity int) *BEREncoder {
	if capacity <= 0 {
		capacity = 64
	}
	return &BEREncoder{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer.
func (e *BEREncoder) Bytes() []byte {
	return e.buf
}

// Reset clears the buffer for reuse.
func (e *BEREncoder) Reset() {
	e.buf = e.buf[:0]
	e.open = e.open[:0]
}

// Len returns the number of bytes written so far.
func (e *BEREncoder) Len() int {
	return len(e.buf)
}

// WriteTag writes an identifier octet, using the long form for numbers above 30.
func (e *BEREncoder) WriteTag(class, constructed, number int) error {
	switch class {
	case ClassUniversal, ClassApplication, ClassContextSpecific, ClassPrivate:
	default:
		return ErrInvalidTagClass
	}
	if number < 0 {
		return ErrInvalidTagNumber
	}
	if number <= 30 {
		e.buf = append(e.buf, byte(class|constructed|number))
		return nil
	}

	e.buf = append(e.buf, byte(class|constructed|0x1F))
	var groups []byte
	for v := number; v > 0; v >>= 7 {
		groups = append(groups, byte(v&0x7F))
	}
	for i := len(groups) - 1; i >= 0; i-- {
		b := groups[i]
		if i > 0 {
			b |= 0x80
		}
		e.buf = append(e.buf, b)
	}
	return nil
}

// WriteLength writes a definite length.
func (e *BEREncoder) WriteLength(length int) error {
	enc, err := encodeLength(length)
	if err != nil {
		return err
	}
	e.buf = append(e.buf, enc...)
	return nil
}

func encodeLength(length int) ([]byte, error) {
	if length < 0 {
		return nil, ErrNegativeLength
	}
	if length <= MaxShortFormLength {
		return []byte{byte(length)}, nil
	}
	var octets []byte
	for v := length; v > 0; v >>= 8 {
		octets = append([]byte{byte(v)}, octets...)
	}
	if len(octets) > 126 {
		return nil, ErrLengthOverflow
	}
	return append([]byte{byte(LengthLongFormBit | len(octets))}, octets...), nil
}

func (e *BEREncoder) writePrimitive(class, number int, content []byte) error {
	if err := e.WriteTag(class, TypePrimitive, number); err != nil {
		return err
	}
	if err := e.WriteLength(len(content)); err != nil {
		return err
	}
	e.buf = append(e.buf, content...)
	return nil
}

// WriteBoolean writes a BOOLEAN. TRUE is encoded as 0xFF.
func (e *BEREncoder) WriteBoolean(v bool) error {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return e.writePrimitive(ClassUniversal, TagBoolean, []byte{b})
}

// WriteInteger writes an INTEGER in minimal two's complement form.
func (e *BEREncoder) WriteInteger(v int64) error {
	return e.writePrimitive(ClassUniversal, TagInteger, EncodeIntegerContent(v))
}

// WriteEnumerated writes an ENUMERATED.
func (e *BEREncoder) WriteEnumerated(v int64) error {
	return e.writePrimitive(ClassUniversal, TagEnumerated, EncodeIntegerContent(v))
}

// WriteOctetString writes an OCTET STRING.
func (e *BEREncoder) WriteOctetString(v []byte) error {
	return e.writePrimitive(ClassUniversal, TagOctetString, v)
}

// WriteNull writes a NULL.
func (e *BEREncoder) WriteNull() error {
	return e.writePrimitive(ClassUniversal, TagNull, nil)
}

// WriteRaw appends pre-encoded bytes.
func (e *BEREncoder) WriteRaw(data []byte) {
	e.buf = append(e.buf, data...)
}

// WriteTaggedValue writes a context-specific element with the given content.
func (e *BEREncoder) WriteTaggedValue(tagNumber int, constructed bool, value []byte) error {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	if err := e.WriteTag(ClassContextSpecific, flag, tagNumber); err != nil {
		return err
	}
	if err := e.WriteLength(len(value)); err != nil {
		return err
	}
	e.buf = append(e.buf, value...)
	return nil
}

// EncodeIntegerContent returns the minimal two's complement content octets
// of v, without tag or length.
func EncodeIntegerContent(v int64) []byte {
	n := 8
	for n > 1 {
		top := byte(v >> ((n - 1) * 8))
		next := byte(v >> ((n - 2) * 8))
		if (top == 0x00 && next&0x80 == 0) || (top == 0xFF && next&0x80 != 0) {
			n--
			continue
		}
		break
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = byte(v >> ((n - 1 - i) * 8))
	}
	return out
}

// begin writes an identifier octet plus a one-byte length placeholder and
// returns the placeholder position.
func (e *BEREncoder) begin(class, constructed, number int) int {
	// Tag parameters come from package constants; an error here is a bug in
	// the caller and surfaces through the unbalanced check at end.
	if err := e.WriteTag(class, constructed, number); err != nil {
		return -1
	}
	pos := len(e.buf)
	e.buf = append(e.buf, 0x00)
	e.open = append(e.open, pos)
	return pos
}

// end back-patches the length for the value opened at pos, widening the
// length field when the content exceeds the short form.
func (e *BEREncoder) end(pos int) error {
	if len(e.open) == 0 || e.open[len(e.open)-1] != pos {
		return ErrUnbalanced
	}
	e.open = e.open[:len(e.open)-1]

	contentLen := len(e.buf) - pos - 1
	enc, err := encodeLength(contentLen)
	if err != nil {
		return err
	}
	if extra := len(enc) - 1; extra > 0 {
		e.buf = append(e.buf, make([]byte, extra)...)
		copy(e.buf[pos+1+extra:], e.buf[pos+1:pos+1+contentLen])
	}
	copy(e.buf[pos:], enc)
	return nil
}

// BeginSequence opens a SEQUENCE.
func (e *BEREncoder) BeginSequence() int {
	return e.begin(ClassUniversal, TypeConstructed, TagSequence)
}

// EndSequence closes the SEQUENCE opened at pos.
func (e *BEREncoder) EndSequence(pos int) error {
	return e.end(pos)
}

// BeginSet opens a SET.
func (e *BEREncoder) BeginSet() int {
	return e.begin(ClassUniversal, TypeConstructed, TagSet)
}

// EndSet closes the SET opened at pos.
func (e *BEREncoder) EndSet(pos int) error {
	return e.end(pos)
}

// WriteApplicationTag opens an APPLICATION-class element.
func (e *BEREncoder) WriteApplicationTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.begin(ClassApplication, flag, number)
}

// EndApplicationTag closes the element opened by WriteApplicationTag.
func (e *BEREncoder) EndApplicationTag(pos int) error {
	return e.end(pos)
}

// WriteContextTag opens a context-specific element.
func (e *BEREncoder) WriteContextTag(number int, constructed bool) int {
	flag := TypePrimitive
	if constructed {
		flag = TypeConstructed
	}
	return e.begin(ClassContextSpecific, flag, number)
}

// EndContextTag closes the element opened by WriteContextTag.
func (e *BEREncoder) EndContextTag(pos int) error {
	return e.end(pos)
}
