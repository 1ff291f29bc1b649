package ber

import (
	"fmt"
	"io"
)

// ReadPacket reads exactly one complete BER element from r and returns it
// with its tag and length octets. Elements whose declared content length
// exceeds maxSize fail with ErrPacketTooLarge before the content is read.
// A clean EOF before the first byte is returned as io.EOF.
func ReadPacket(r io.Reader, maxSize int) ([]byte, error) {
	head := make([]byte, 0, 8)
	one := make([]byte, 1)

	readByte := func() (byte, error) {
		if _, err := io.ReadFull(r, one); err != nil {
			return 0, err
		}
		head = append(head, one[0])
		return one[0], nil
	}

	tag, err := readByte()
	if err != nil {
		return nil, err
	}
	if tag&0x1F == 0x1F {
		for {
			b, err := readByte()
			if err != nil {
				return nil, unexpected(err)
			}
			if b&0x80 == 0 {
				break
			}
			if len(head) > 6 {
				return nil, ErrInvalidTagNumber
			}
		}
	}

	first, err := readByte()
	if err != nil {
		return nil, unexpected(err)
	}
	length := int(first)
	if first&LengthLongFormBit != 0 {
		n := int(first & 0x7F)
		if n == 0 {
			return nil, ErrIndefiniteLength
		}
		if n > 4 {
			return nil, ErrInvalidLength
		}
		length = 0
		for i := 0; i < n; i++ {
			b, err := readByte()
			if err != nil {
				return nil, unexpected(err)
			}
			length = length<<8 | int(b)
		}
	}
	if maxSize > 0 && length > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, length, maxSize)
	}

	packet := make([]byte, len(head)+length)
	copy(packet, head)
	if _, err := io.ReadFull(r, packet[len(head):]); err != nil {
		return nil, unexpected(err)
	}
	return packet, nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
