package cursor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcintyre/gather/internal/cursor"
	"github.com/lmcintyre/gather/internal/gather"
)

var testHashKey = []byte("0123456789abcdef0123456789abcdef")

func TestRoundTrip(t *testing.T) {
	codec := cursor.NewCodec(testHashKey, nil)

	k := cursor.Key{
		CreatedAt: time.Date(2025, 6, 12, 9, 30, 0, 123456000, time.UTC),
		PostID:    "post-9",
	}

	s, err := codec.Encode(k)
	require.NoError(t, err)
	require.NotEmpty(t, s)

	got, err := codec.Decode(s)
	require.NoError(t, err)

	assert.True(t, got.CreatedAt.Equal(k.CreatedAt))
	assert.Equal(t, k.PostID, got.PostID)
}

func TestDecode_Tampered(t *testing.T) {
	codec := cursor.NewCodec(testHashKey, nil)

	s, err := codec.Encode(cursor.Key{CreatedAt: time.Now().UTC(), PostID: "p1"})
	require.NoError(t, err)

	// Flip one character of the token.
	mutated := []byte(s)
	if mutated[0] != 'A' {
		mutated[0] = 'A'
	} else {
		mutated[0] = 'B'
	}

	_, err = codec.Decode(string(mutated))
	require.ErrorIs(t, err, gather.ErrInvalidCursor)
}

func TestDecode_ForeignToken(t *testing.T) {
	var (
		ours   = cursor.NewCodec(testHashKey, nil)
		theirs = cursor.NewCodec([]byte("ffffffffffffffffffffffffffffffff"), nil)
	)

	s, err := theirs.Encode(cursor.Key{CreatedAt: time.Now().UTC(), PostID: "p1"})
	require.NoError(t, err)

	_, err = ours.Decode(s)
	require.ErrorIs(t, err, gather.ErrInvalidCursor)
}

func TestDecode_Garbage(t *testing.T) {
	codec := cursor.NewCodec(testHashKey, nil)

	for _, input := range []string{"", "not-a-cursor", "aGVsbG8="} {
		_, err := codec.Decode(input)
		assert.ErrorIs(t, err, gather.ErrInvalidCursor, "input %q", input)
	}
}

func TestLess(t *testing.T) {
	var (
		t100 = time.Unix(100, 0).UTC()
		t90  = time.Unix(90, 0).UTC()
	)

	tests := []struct {
		name string
		a, b cursor.Key
		want bool
	}{
		{
			name: "newer comes first",
			a:    cursor.Key{CreatedAt: t100, PostID: "p1"},
			b:    cursor.Key{CreatedAt: t90, PostID: "p2"},
			want: true,
		},
		{
			name: "older comes second",
			a:    cursor.Key{CreatedAt: t90, PostID: "p2"},
			b:    cursor.Key{CreatedAt: t100, PostID: "p1"},
			want: false,
		},
		{
			name: "same time breaks tie on post id descending",
			a:    cursor.Key{CreatedAt: t100, PostID: "p9"},
			b:    cursor.Key{CreatedAt: t100, PostID: "p2"},
			want: true,
		},
		{
			name: "equal keys are not less",
			a:    cursor.Key{CreatedAt: t100, PostID: "p1"},
			b:    cursor.Key{CreatedAt: t100, PostID: "p1"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cursor.Less(tt.a, tt.b))
		})
	}
}

func TestKeyOf(t *testing.T) {
	p := gather.PostSummary{
		AuthorID:  "a",
		PostID:    "p1",
		CreatedAt: time.Unix(100, 0).UTC(),
	}

	k := cursor.KeyOf(p)
	assert.Equal(t, p.PostID, k.PostID)
	assert.True(t, k.CreatedAt.Equal(p.CreatedAt))
	assert.False(t, k.IsZero())
	assert.True(t, cursor.Key{}.IsZero())
}
