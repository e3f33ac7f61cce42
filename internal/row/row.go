// Package row implements the fixed-schema (id, username, email) tuple
// that is the only row type this storage engine understands, and its
// positional, fixed-width on-disk encoding.
package row

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Fixed slot sizes for the two text columns, and the derived encoded
// row size. These are reproduced exactly so the on-disk layout matches
// across implementations.
const (
	UsernameSize = 32
	EmailSize    = 255

	idSize       = 4
	usernameSize = UsernameSize
	emailSize    = EmailSize

	idOffset       = 0
	usernameOffset = idOffset + idSize
	emailOffset    = usernameOffset + usernameSize

	// Size is the number of bytes a serialized Row occupies. The
	// reference layout is id(4) + username(32) + email(255) = 291
	// bytes of payload, padded to 293 bytes so the on-disk format
	// matches the teaching reference exactly.
	Size = emailOffset + emailSize + 2
)

// Recoverable preparer errors. Validate returns ErrStringTooLong; the
// REPL preparer returns ErrNegativeID and ErrSyntax itself, and surfaces
// all three as the fixed messages from the error taxonomy.
var (
	ErrNegativeID     = errors.New("row: id must be positive")
	ErrStringTooLong  = errors.New("row: string is too long")
	ErrSyntax         = errors.New("row: syntax error, could not parse statement")
)

// Row is the fixed-schema record stored at every leaf cell.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// Validate checks field lengths before a Row is admitted to the tree.
// It does not check for a negative id; callers parse the id token as a
// signed integer and must reject negative literals themselves (the id
// reaches this layer only after that check, as an unsigned value).
func Validate(username, email string) error {
	if len(username) > UsernameSize {
		return fmt.Errorf("%w: username", ErrStringTooLong)
	}
	if len(email) > EmailSize {
		return fmt.Errorf("%w: email", ErrStringTooLong)
	}
	return nil
}

// Serialize writes r into dst, which must be at least Size bytes long.
// The two text fields are written into their fixed-width slots,
// NUL-padded on the right; the caller is responsible for zeroing
// freshly allocated cells before the first write, since only the bytes
// within each field's own length are touched here.
func Serialize(r *Row, dst []byte) {
	binary.LittleEndian.PutUint32(dst[idOffset:idOffset+idSize], r.ID)
	copy(dst[usernameOffset:usernameOffset+usernameSize], r.Username)
	copy(dst[emailOffset:emailOffset+emailSize], r.Email)
}

// Deserialize reads a Row out of src, which must be at least Size
// bytes long. Each text field ends at the first NUL byte or at the
// slot boundary, whichever comes first.
func Deserialize(src []byte, r *Row) {
	r.ID = binary.LittleEndian.Uint32(src[idOffset : idOffset+idSize])
	r.Username = readSlot(src[usernameOffset : usernameOffset+usernameSize])
	r.Email = readSlot(src[emailOffset : emailOffset+emailSize])
}

func readSlot(slot []byte) string {
	if i := bytes.IndexByte(slot, 0); i >= 0 {
		return string(slot[:i])
	}
	return string(slot)
}
