// Package merge combines per-friend post lists into a single feed page.
//
// Every input list arrives locally sorted newest-first, so a k-way merge over
// the list heads produces the globally ordered page in one pass. The output is
// a pure function of the input set: it does not depend on map iteration order
// or on the order the fetches happened to complete in.
package merge

import (
	"container/heap"
	"slices"

	"github.com/lmcintyre/gather/internal/cursor"
	"github.com/lmcintyre/gather/internal/gather"
)

type (
	// Source is one friend's contribution to the merge. HasMore is carried
	// over from the post store's own pagination: when set, this friend has
	// older posts the merge never saw, so the feed cannot be exhausted.
	Source struct {
		Posts   []gather.PostSummary
		HasMore bool
	}

	// Result is the merged page plus what the caller needs to build the
	// next cursor.
	Result struct {
		Posts []gather.PostSummary

		// NextKey is the position of the last emitted post, zero when
		// nothing was emitted.
		NextKey cursor.Key

		// Exhausted is set when every source was fully consumed and
		// none reported more pages upstream.
		Exhausted bool

		// Pending names sources that still have posts to contribute,
		// sorted for stable output.
		Pending []string
	}
)

// A head tracks the next unconsumed post of one source.
type head struct {
	source string
	posts  []gather.PostSummary
	idx    int
}

func (h head) key() cursor.Key {
	return cursor.KeyOf(h.posts[h.idx])
}

type headHeap []head

func (h headHeap) Len() int { return len(h) }

func (h headHeap) Less(i, j int) bool {
	ki, kj := h[i].key(), h[j].key()
	if cursor.Less(ki, kj) {
		return true
	}
	if cursor.Less(kj, ki) {
		return false
	}

	// Identical keys across sources: break the tie on the source name so
	// the pop order never depends on insertion order.
	return h[i].source < h[j].source
}

func (h headHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *headHeap) Push(x any) { *h = append(*h, x.(head)) }

func (h *headHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Merge produces one feed page from the given sources, resuming strictly after
// the `after` key. A zero `after` starts from the top of the feed.
//
// Posts at or before the resume point in feed order are skipped, which keeps
// successive pages duplicate-free even when a friend's list overlaps the
// previous page. Duplicate post ids are dropped.
func Merge(sources map[string]Source, after cursor.Key, pageSize int) Result {
	h := make(headHeap, 0, len(sources))
	for name, src := range sources {
		if len(src.Posts) == 0 {
			continue
		}
		h = append(h, head{source: name, posts: src.Posts})
	}
	heap.Init(&h)

	var (
		out  []gather.PostSummary
		seen = make(map[string]struct{})
	)
	for h.Len() > 0 && len(out) < pageSize {
		p := h[0].posts[h[0].idx]

		// Advance the winning source before anything else.
		if h[0].idx+1 < len(h[0].posts) {
			h[0].idx++
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}

		// Skip anything at or before the resume point: already returned
		// on an earlier page, or created after pagination began.
		if k := cursor.KeyOf(p); !after.IsZero() && !cursor.Less(after, k) {
			continue
		}
		if _, dup := seen[p.PostID]; dup {
			continue
		}
		seen[p.PostID] = struct{}{}
		out = append(out, p)
	}

	// Anything still on the heap has unconsumed posts; anything with
	// HasMore has pages upstream we never fetched. Either way that source
	// is not done contributing.
	leftover := make(map[string]bool, h.Len())
	for _, hd := range h {
		leftover[hd.source] = true
	}

	res := Result{
		Posts:     out,
		Exhausted: true,
	}
	for name, src := range sources {
		if leftover[name] || src.HasMore {
			res.Pending = append(res.Pending, name)
			res.Exhausted = false
		}
	}
	slices.Sort(res.Pending)

	if len(out) > 0 {
		res.NextKey = cursor.KeyOf(out[len(out)-1])
	}

	return res
}
