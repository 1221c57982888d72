package protocol

import "encoding/binary"

// fieldReader walks a payload in field order. Every read is bounds checked and reports
// a FieldError naming the field instead of panicking.
type fieldReader struct {
	typ    uint8
	buf    []byte
	offset int
}

func newFieldReader(typ uint8, buf []byte) *fieldReader {
	return &fieldReader{typ: typ, buf: buf}
}

func (r *fieldReader) span(field string, n int) ([]byte, error) {
	if n < 0 || r.offset+n > len(r.buf) {
		return nil, &FieldError{Type: r.typ, Field: field}
	}
	b := r.buf[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *fieldReader) uint8(field string) (uint8, error) {
	b, err := r.span(field, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *fieldReader) uint16(field string) (uint16, error) {
	b, err := r.span(field, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *fieldReader) uint32(field string) (uint32, error) {
	b, err := r.span(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *fieldReader) uint64(field string) (uint64, error) {
	b, err := r.span(field, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// copyInto copies exactly len(dst) bytes.
func (r *fieldReader) copyInto(field string, dst []byte) error {
	b, err := r.span(field, len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// rest returns a copy of the unread tail.
func (r *fieldReader) rest() []byte {
	out := make([]byte, len(r.buf)-r.offset)
	copy(out, r.buf[r.offset:])
	r.offset = len(r.buf)
	return out
}

func (r *fieldReader) remaining() int {
	return len(r.buf) - r.offset
}

func appendUint16(b []byte, v uint16) []byte {
	return binary.BigEndian.AppendUint16(b, v)
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func appendUint64(b []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(b, v)
}
