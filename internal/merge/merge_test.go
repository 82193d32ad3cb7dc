package merge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcintyre/gather/internal/cursor"
	"github.com/lmcintyre/gather/internal/gather"
	"github.com/lmcintyre/gather/internal/merge"
)

func post(author, id string, sec int64) gather.PostSummary {
	return gather.PostSummary{
		AuthorID:  author,
		PostID:    id,
		CreatedAt: time.Unix(sec, 0).UTC(),
	}
}

func ids(posts []gather.PostSummary) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.PostID)
	}
	return out
}

func TestMerge_AllEmpty(t *testing.T) {
	res := merge.Merge(map[string]merge.Source{
		"a": {},
		"b": {},
	}, cursor.Key{}, 10)

	assert.Empty(t, res.Posts)
	assert.True(t, res.Exhausted)
	assert.True(t, res.NextKey.IsZero())
	assert.Empty(t, res.Pending)
}

func TestMerge_PageBoundary(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p1", 100), post("a", "p2", 90)}},
		"b": {Posts: []gather.PostSummary{post("b", "p3", 95)}},
	}

	// First page of two: p1 at t=100, then p3 at t=95.
	res := merge.Merge(sources, cursor.Key{}, 2)
	require.Equal(t, []string{"p1", "p3"}, ids(res.Posts))
	assert.False(t, res.Exhausted)
	assert.Equal(t, "p3", res.NextKey.PostID)
	assert.True(t, res.NextKey.CreatedAt.Equal(time.Unix(95, 0).UTC()))
	assert.Equal(t, []string{"a"}, res.Pending)

	// Resuming after p3 yields the remainder with no gap or overlap.
	res = merge.Merge(sources, res.NextKey, 2)
	require.Equal(t, []string{"p2"}, ids(res.Posts))
	assert.True(t, res.Exhausted)
}

func TestMerge_GlobalOrder(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p6", 60), post("a", "p1", 10)}},
		"b": {Posts: []gather.PostSummary{post("b", "p5", 50), post("b", "p3", 30)}},
		"c": {Posts: []gather.PostSummary{post("c", "p4", 40), post("c", "p2", 20)}},
	}

	res := merge.Merge(sources, cursor.Key{}, 10)
	assert.Equal(t, []string{"p6", "p5", "p4", "p3", "p2", "p1"}, ids(res.Posts))
	assert.True(t, res.Exhausted)
}

func TestMerge_ChainedCursorsCoverEverything(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p9", 90), post("a", "p5", 50), post("a", "p1", 10)}},
		"b": {Posts: []gather.PostSummary{post("b", "p8", 80), post("b", "p4", 40)}},
		"c": {Posts: []gather.PostSummary{post("c", "p7", 70), post("c", "p3", 30), post("c", "p2", 20)}},
	}

	var (
		got   []string
		after cursor.Key
	)
	for i := 0; i < 10; i++ {
		res := merge.Merge(sources, after, 3)
		got = append(got, ids(res.Posts)...)
		if res.Exhausted {
			break
		}
		after = res.NextKey
	}

	assert.Equal(t, []string{"p9", "p8", "p7", "p5", "p4", "p3", "p2", "p1"}, got)
}

func TestMerge_TimestampTieBreaksOnPostID(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p2", 100)}},
		"b": {Posts: []gather.PostSummary{post("b", "p9", 100), post("b", "p1", 100)}},
	}

	// Identical timestamps order by post id descending.
	res := merge.Merge(sources, cursor.Key{}, 10)
	assert.Equal(t, []string{"p9", "p2", "p1"}, ids(res.Posts))
}

func TestMerge_DropsDuplicatePostIDs(t *testing.T) {
	shared := post("a", "p1", 100)
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{shared}},
		"b": {Posts: []gather.PostSummary{shared, post("b", "p2", 90)}},
	}

	res := merge.Merge(sources, cursor.Key{}, 10)
	assert.Equal(t, []string{"p1", "p2"}, ids(res.Posts))
}

func TestMerge_SkipsAtOrBeforeResumePoint(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p3", 100), post("a", "p2", 90), post("a", "p1", 80)}},
	}

	// The resume key itself is excluded, not just what's newer than it.
	res := merge.Merge(sources, cursor.Key{CreatedAt: time.Unix(90, 0).UTC(), PostID: "p2"}, 10)
	assert.Equal(t, []string{"p1"}, ids(res.Posts))
}

func TestMerge_TruncatedSourceBlocksExhaustion(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "p2", 100)}},
		"b": {Posts: []gather.PostSummary{post("b", "p1", 90)}, HasMore: true},
	}

	res := merge.Merge(sources, cursor.Key{}, 10)
	require.Equal(t, []string{"p2", "p1"}, ids(res.Posts))

	// b's own pagination truncated its list, so b may still have older
	// posts: the feed must not claim to be done.
	assert.False(t, res.Exhausted)
	assert.Equal(t, []string{"b"}, res.Pending)
	assert.Equal(t, "p1", res.NextKey.PostID)
}

func TestMerge_Deterministic(t *testing.T) {
	sources := map[string]merge.Source{
		"a": {Posts: []gather.PostSummary{post("a", "x", 100), post("a", "m", 50)}},
		"b": {Posts: []gather.PostSummary{post("b", "y", 100), post("b", "n", 50)}},
		"c": {Posts: []gather.PostSummary{post("c", "z", 100), post("c", "o", 50)}},
	}

	want := merge.Merge(sources, cursor.Key{}, 10)
	for i := 0; i < 25; i++ {
		assert.Equal(t, want, merge.Merge(sources, cursor.Key{}, 10))
	}
}
