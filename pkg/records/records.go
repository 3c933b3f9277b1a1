// Package records is the codec for the two persistent record kinds owned by
// the gating program: ListConfig and MembershipRecord.
//
// Every record has a fixed byte length and a one-byte initialization
// discriminator in position 0. Numeric fields are little-endian. A layout
// change must use a new discriminator.
package records

import (
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
)

// Record is implemented by pointer types of every persistent record.
type Record interface {
	// Len is the exact encoded length.
	Len() int
	// Discriminator is the initialization tag written at byte 0.
	Discriminator() byte
	decode(data []byte) error
	encode(dst []byte)
}

// recordPtr constrains T so that *T implements Record.
type recordPtr[T any] interface {
	*T
	Record
}

// Load decodes an initialized record. It fails with InvalidAccountData when the
// length differs from the declared length or the discriminator does not match.
func Load[T any, P recordPtr[T]](data []byte) (*T, error) {
	var v T
	p := P(&v)
	if len(data) != p.Len() || data[0] != p.Discriminator() {
		return nil, programerr.ErrInvalidAccountData
	}
	if err := p.decode(data); err != nil {
		return nil, err
	}
	return &v, nil
}

// LoadUnchecked decodes a record checking only its length. Use it only where
// the caller has established initialization by other means, such as right after
// allocating the backing storage.
func LoadUnchecked[T any, P recordPtr[T]](data []byte) (*T, error) {
	var v T
	p := P(&v)
	if len(data) != p.Len() {
		return nil, programerr.ErrInvalidAccountData
	}
	if err := p.decode(data); err != nil {
		return nil, err
	}
	return &v, nil
}

// Store encodes r into dst, writing the discriminator. dst must be exactly
// r.Len() bytes.
func Store(dst []byte, r Record) error {
	if len(dst) != r.Len() {
		return programerr.ErrInvalidAccountData
	}
	r.encode(dst)
	dst[0] = r.Discriminator()
	return nil
}

// Encode returns a freshly allocated encoding of r.
func Encode(r Record) []byte {
	buf := make([]byte, r.Len())
	r.encode(buf)
	buf[0] = r.Discriminator()
	return buf
}

// IsInitialized reports whether data holds a record of r's kind.
func IsInitialized(data []byte, r Record) bool {
	return len(data) == r.Len() && data[0] == r.Discriminator()
}
