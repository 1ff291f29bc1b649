package ber

// BERDecoder reads BER values from a byte slice.
type BERDecoder struct {
	data   []byte
	offset int
}

// NewBERDecoder creates a decoder over data.
func NewBERDecoder(data []byte) *BERDecoder {
	return &BERDecoder{data: data}
}

// Offset returns the current read position.
func (d *BERDecoder) Offset() int {
	return d.offset
}

// Remaining returns the number of unread bytes.
func (d *BERDecoder) Remaining() int {
	return len(d.data) - d.offset
}

// SetOffset moves the read position.
func (d *BERDecoder) SetOffset(offset int) {
	d.offset = offset
}

// ReadTag reads an identifier octet (or octets, for long-form numbers).
func (d *BERDecoder) ReadTag() (class, constructed, number int, err error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, 0, 0, NewDecodeError(start, "cannot read tag", ErrUnexpectedEOF)
	}
	first := d.data[d.offset]
	d.offset++

	class = int(first & 0xC0)
	constructed = int(first & 0x20)
	number = int(first & 0x1F)
	if number != 0x1F {
		return class, constructed, number, nil
	}

	number = 0
	for {
		if d.offset >= len(d.data) {
			return 0, 0, 0, NewDecodeError(start, "cannot read long form tag number", ErrUnexpectedEOF)
		}
		if number > 1<<24 {
			return 0, 0, 0, NewDecodeError(start, "tag number overflow", ErrInvalidTagNumber)
		}
		b := d.data[d.offset]
		d.offset++
		number = number<<7 | int(b&0x7F)
		if b&0x80 == 0 {
			return class, constructed, number, nil
		}
	}
}

// ReadLength reads a definite length.
func (d *BERDecoder) ReadLength() (int, error) {
	start := d.offset
	if d.offset >= len(d.data) {
		return 0, NewDecodeError(start, "cannot read length", ErrUnexpectedEOF)
	}
	first := d.data[d.offset]
	d.offset++
	if first&LengthLongFormBit == 0 {
		return int(first), nil
	}

	n := int(first & 0x7F)
	if n == 0 {
		return 0, NewDecodeError(start, "indefinite length encoding", ErrIndefiniteLength)
	}
	if d.offset+n > len(d.data) {
		return 0, NewDecodeError(start, "truncated length encoding", ErrUnexpectedEOF)
	}
	length := 0
	for i := 0; i < n; i++ {
		if length > 1<<24 {
			return 0, NewDecodeError(start, "length value overflow", ErrInvalidLength)
		}
		length = length<<8 | int(d.data[d.offset])
		d.offset++
	}
	return length, nil
}

// header reads a tag and length, checks the tag against the expectation and
// that the content is fully present. number < 0 accepts any tag number;
// constructed < 0 accepts either form.
func (d *BERDecoder) header(wantClass, wantConstructed, wantNumber int) (number, constructed, length int, err error) {
	start := d.offset
	class, constructed, number, err := d.ReadTag()
	if err != nil {
		return 0, 0, 0, err
	}
	if class != wantClass ||
		(wantNumber >= 0 && number != wantNumber) ||
		(wantConstructed >= 0 && constructed != wantConstructed) {
		return 0, 0, 0, &TagMismatchError{
			Offset:            start,
			ExpectedClass:     wantClass,
			ExpectedNumber:    wantNumber,
			ActualClass:       class,
			ActualNumber:      number,
			ActualConstructed: constructed,
		}
	}
	length, err = d.ReadLength()
	if err != nil {
		return 0, 0, 0, err
	}
	if d.offset+length > len(d.data) {
		return 0, 0, 0, NewDecodeError(start, "truncated value", ErrUnexpectedEOF)
	}
	return number, constructed, length, nil
}

func (d *BERDecoder) take(length int) []byte {
	v := make([]byte, length)
	copy(v, d.data[d.offset:d.offset+length])
	d.offset += length
	return v
}

func (d *BERDecoder) readInt(class, number int) (int64, error) {
	start := d.offset
	_, _, length, err := d.header(class, TypePrimitive, number)
	if err != nil {
		return 0, err
	}
	if length == 0 || length > 8 {
		return 0, NewDecodeError(start, "integer length out of range", ErrInvalidInteger)
	}
	v := int64(int8(d.data[d.offset]))
	for i := 1; i < length; i++ {
		v = v<<8 | int64(d.data[d.offset+i])
	}
	d.offset += length
	return v, nil
}

// ReadBoolean reads a BOOLEAN.
func (d *BERDecoder) ReadBoolean() (bool, error) {
	start := d.offset
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, TagBoolean)
	if err != nil {
		return false, err
	}
	if length != 1 {
		return false, NewDecodeError(start, "boolean must have length 1", ErrInvalidBoolean)
	}
	v := d.data[d.offset] != 0x00
	d.offset++
	return v, nil
}

// ReadInteger reads an INTEGER.
func (d *BERDecoder) ReadInteger() (int64, error) {
	return d.readInt(ClassUniversal, TagInteger)
}

// ReadEnumerated reads an ENUMERATED.
func (d *BERDecoder) ReadEnumerated() (int64, error) {
	return d.readInt(ClassUniversal, TagEnumerated)
}

// ReadIntegerWithTag reads a primitive integer carried under a context tag.
func (d *BERDecoder) ReadIntegerWithTag(tag int) (int64, error) {
	return d.readInt(ClassContextSpecific, tag)
}

// ReadOctetString reads a primitive OCTET STRING.
func (d *BERDecoder) ReadOctetString() ([]byte, error) {
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, TagOctetString)
	if err != nil {
		return nil, err
	}
	return d.take(length), nil
}

// ReadNull reads a NULL.
func (d *BERDecoder) ReadNull() error {
	start := d.offset
	_, _, length, err := d.header(ClassUniversal, TypePrimitive, TagNull)
	if err != nil {
		return err
	}
	if length != 0 {
		return NewDecodeError(start, "null must have length 0", ErrInvalidNull)
	}
	return nil
}

// PeekTag reads the next tag without consuming it.
func (d *BERDecoder) PeekTag() (class, constructed, number int, err error) {
	saved := d.offset
	class, constructed, number, err = d.ReadTag()
	d.offset = saved
	return
}

// Skip consumes the next element whatever its tag.
func (d *BERDecoder) Skip() error {
	_, err := d.ReadRawValue()
	return err
}

// ReadRawValue returns the next element including its tag and length octets.
func (d *BERDecoder) ReadRawValue() ([]byte, error) {
	start := d.offset
	if _, _, _, err := d.ReadTag(); err != nil {
		return nil, err
	}
	length, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	if d.offset+length > len(d.data) {
		return nil, NewDecodeError(start, "truncated value", ErrUnexpectedEOF)
	}
	end := d.offset + length
	raw := make([]byte, end-start)
	copy(raw, d.data[start:end])
	d.offset = end
	return raw, nil
}

// ReadTaggedValue reads any context-specific element and returns its content.
func (d *BERDecoder) ReadTaggedValue() (tagNumber int, constructed bool, value []byte, err error) {
	number, flag, length, err := d.header(ClassContextSpecific, -1, -1)
	if err != nil {
		return 0, false, nil, err
	}
	return number, flag == TypeConstructed, d.take(length), nil
}

// ExpectSequence consumes a SEQUENCE header and returns its content length.
func (d *BERDecoder) ExpectSequence() (int, error) {
	_, _, length, err := d.header(ClassUniversal, TypeConstructed, TagSequence)
	return length, err
}

// ExpectSet consumes a SET header and returns its content length.
func (d *BERDecoder) ExpectSet() (int, error) {
	_, _, length, err := d.header(ClassUniversal, TypeConstructed, TagSet)
	return length, err
}

// ExpectContextTag consumes a context-specific header with the given number.
func (d *BERDecoder) ExpectContextTag(num int) (int, error) {
	_, _, length, err := d.header(ClassContextSpecific, -1, num)
	return length, err
}

// ExpectApplicationTag consumes an APPLICATION header with the given number.
func (d *BERDecoder) ExpectApplicationTag(num int) (int, error) {
	_, _, length, err := d.header(ClassApplication, -1, num)
	return length, err
}

// IsContextTag reports whether the next element is context tag num.
func (d *BERDecoder) IsContextTag(num int) bool {
	class, _, number, err := d.PeekTag()
	return err == nil && class == ClassContextSpecific && number == num
}

// IsApplicationTag reports whether the next element is APPLICATION tag num.
func (d *BERDecoder) IsApplicationTag(num int) bool {
	class, _, number, err := d.PeekTag()
	return err == nil && class == ClassApplication && number == num
}

func (d *BERDecoder) sub(length int, err error) (*BERDecoder, error) {
	if err != nil {
		return nil, err
	}
	contents := d.data[d.offset : d.offset+length]
	d.offset += length
	return NewBERDecoder(contents), nil
}

// ReadSequenceContents returns a decoder over the next SEQUENCE's content.
func (d *BERDecoder) ReadSequenceContents() (*BERDecoder, error) {
	return d.sub(d.ExpectSequence())
}

// ReadSetContents returns a decoder over the next SET's content.
func (d *BERDecoder) ReadSetContents() (*BERDecoder, error) {
	return d.sub(d.ExpectSet())
}

// ReadContextTagContents returns a decoder over context tag num's content.
func (d *BERDecoder) ReadContextTagContents(num int) (*BERDecoder, error) {
	return d.sub(d.ExpectContextTag(num))
}

// ReadApplicationTagContents returns a decoder over APPLICATION tag num's content.
func (d *BERDecoder) ReadApplicationTagContents(num int) (*BERDecoder, error) {
	return d.sub(d.ExpectApplicationTag(num))
}

// ReadBytes consumes the next n bytes verbatim.
func (d *BERDecoder) ReadBytes(n int) ([]byte, error) {
	if n < 0 || d.offset+n > len(d.data) {
		return nil, NewDecodeError(d.offset, "cannot read bytes", ErrUnexpectedEOF)
	}
	return d.take(n), nil
}
