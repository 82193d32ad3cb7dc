// Package cursor encodes and decodes the opaque pagination tokens handed out
// with every feed page.
//
// A cursor is the (createdAt, postId) key of the last post a caller saw. It
// goes over the wire authenticated, so a tampered or foreign token is rejected
// outright instead of silently resuming from the wrong place.
package cursor

import (
	"fmt"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/lmcintyre/gather/internal/gather"
)

// Key is the total-order position of a post in the feed: newest first,
// ties broken by post id descending.
type Key struct {
	CreatedAt time.Time `json:"t"`
	PostID    string    `json:"p"`
}

// KeyOf returns the feed position of a post.
func KeyOf(p gather.PostSummary) Key {
	return Key{CreatedAt: p.CreatedAt, PostID: p.PostID}
}

// IsZero reports whether the key is the zero value, meaning "start of feed".
func (k Key) IsZero() bool {
	return k.CreatedAt.IsZero() && k.PostID == ""
}

// Less reports whether a comes before b in feed order (a is newer, or equally
// new with the greater post id).
func Less(a, b Key) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.PostID > b.PostID
}

const tokenName = "feed_cursor"

// Codec turns keys into opaque HMAC-authenticated strings and back.
//
// Decode is a strict inverse of Encode for anything this codec produced;
// anything else fails with [gather.ErrInvalidCursor].
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec builds a codec from a hash key and an optional block key. The hash
// key authenticates tokens; the block key, when present, also encrypts them so
// the resume position is not readable by clients.
func NewCodec(hashKey, blockKey []byte) *Codec {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(0) // cursors do not expire on their own

	return &Codec{sc: sc}
}

func (c *Codec) Encode(k Key) (string, error) {
	s, err := c.sc.Encode(tokenName, k)
	if err != nil {
		return "", fmt.Errorf("error encoding cursor: %w", err)
	}

	return s, nil
}

func (c *Codec) Decode(s string) (Key, error) {
	var k Key
	if err := c.sc.Decode(tokenName, s, &k); err != nil {
		return Key{}, fmt.Errorf("%w: %s", gather.ErrInvalidCursor, err)
	}

	return k, nil
}
