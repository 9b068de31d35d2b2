package ranking

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"

	"github.com/google/uuid"
)

// Cursor is the resume token for forward pagination: the sort key of the
// last row a client has seen. The next page is fetched with a strictly-after
// keyset predicate instead of an offset scan.
type Cursor struct {
	Score float64
	ID    uuid.UUID
}

// ErrMalformedCursor indicates the supplied token could not have been
// produced by this service. Tampered or truncated cursors must fail decode
// rather than silently resuming from the wrong position.
var ErrMalformedCursor = errors.New("malformed pagination cursor")

const cursorVersion = 1

// wire layout: 1 version byte, 8 bytes big-endian float64 score, 16 byte uuid.
const cursorLen = 1 + 8 + 16

// Encode serializes the cursor into an opaque URL-safe token.
func (c Cursor) Encode() string {
	buf := make([]byte, cursorLen)
	buf[0] = cursorVersion
	binary.BigEndian.PutUint64(buf[1:9], math.Float64bits(c.Score))
	copy(buf[9:], c.ID[:])
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodeCursor parses a client-supplied token. It returns ErrMalformedCursor
// for anything that is not a well-formed version-1 token.
func DecodeCursor(token string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != cursorLen {
		return Cursor{}, ErrMalformedCursor
	}
	if raw[0] != cursorVersion {
		return Cursor{}, ErrMalformedCursor
	}

	score := math.Float64frombits(binary.BigEndian.Uint64(raw[1:9]))
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return Cursor{}, ErrMalformedCursor
	}

	var id uuid.UUID
	copy(id[:], raw[9:])
	return Cursor{Score: score, ID: id}, nil
}

// Stale reports whether a structurally valid cursor can no longer
// correspond to a real position. Scores always live in [0, 1]; anything
// outside means the resume key predates a policy change or was forged from
// a stale token, and the caller falls back to the first page.
func (c Cursor) Stale() bool {
	return c.Score < 0 || c.Score > 1
}
