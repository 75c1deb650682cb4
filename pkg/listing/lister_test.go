package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/swiftfs/pkg/pathprefix"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/provider/memory"
)

// stubProvider returns a fixed sequence of raw entries and records the
// options each List call received.
type stubProvider struct {
	objects []provider.ObjectSummary
	listErr error
	nextErr error // returned after objects are exhausted, instead of io.EOF

	mu    sync.Mutex
	calls []provider.ListOptions
	pulls int
}

func (s *stubProvider) List(_ context.Context, opts provider.ListOptions) (provider.ObjectIterator, error) {
	s.mu.Lock()
	s.calls = append(s.calls, opts)
	s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return &stubIterator{parent: s}, nil
}

func (s *stubProvider) Head(context.Context, string) (*provider.ObjectMeta, error) {
	return nil, provider.ErrNotFound
}

func (s *stubProvider) Close() error { return nil }

type stubIterator struct {
	parent *stubProvider
	pos    int
}

func (it *stubIterator) Next() (provider.ObjectSummary, error) {
	it.parent.mu.Lock()
	it.parent.pulls++
	it.parent.mu.Unlock()
	if it.pos >= len(it.parent.objects) {
		if it.parent.nextErr != nil {
			return provider.ObjectSummary{}, it.parent.nextErr
		}
		return provider.ObjectSummary{}, io.EOF
	}
	obj := it.parent.objects[it.pos]
	it.pos++
	return obj, nil
}

func rawKeys(keys ...string) []provider.ObjectSummary {
	out := make([]provider.ObjectSummary, 0, len(keys))
	for _, k := range keys {
		out = append(out, provider.ObjectSummary{Key: k, Size: uint64(len(k))})
	}
	return out
}

// describe renders entries as "d:path" / "f:path" for compact assertions.
func describe(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Kind() == KindDirectory {
			out = append(out, "d:"+e.Path())
		} else {
			out = append(out, "f:"+e.Path())
		}
	}
	return out
}

func list(t *testing.T, l *Lister, path string, deep bool) []Entry {
	t.Helper()
	it, err := l.List(context.Background(), path, deep)
	require.NoError(t, err)
	entries, err := it.Collect()
	require.NoError(t, err)
	return entries
}

func TestLister_DeepSynthesizesAncestors(t *testing.T) {
	p := &stubProvider{objects: rawKeys("a/b/c.txt")}
	l := New(p, pathprefix.New(""))

	entries := list(t, l, "a", true)

	assert.Equal(t, []string{"d:a/b", "f:a/b/c.txt"}, describe(entries))
	require.Len(t, p.calls, 1)
	assert.Equal(t, "a/", p.calls[0].Prefix)
	assert.Empty(t, p.calls[0].Delimiter)
}

func TestLister_ShallowNoSynthesis(t *testing.T) {
	p := &stubProvider{objects: rawKeys("x.txt", "y.txt")}
	l := New(p, pathprefix.New(""))

	entries := list(t, l, "", false)

	assert.Equal(t, []string{"f:x.txt", "f:y.txt"}, describe(entries))
	require.Len(t, p.calls, 1)
	assert.Equal(t, "", p.calls[0].Prefix)
	assert.Equal(t, "/", p.calls[0].Delimiter)
}

func TestLister_MarkerIsDirectory(t *testing.T) {
	for _, deep := range []bool{false, true} {
		t.Run(fmt.Sprintf("deep=%v", deep), func(t *testing.T) {
			p := &stubProvider{objects: rawKeys("dir/")}
			entries := list(t, New(p, pathprefix.New("")), "", deep)

			require.Len(t, entries, 1)
			assert.Equal(t, NewDirectory("dir", time.Time{}), entries[0])
		})
	}
}

func TestLister_EmptyInput(t *testing.T) {
	for _, deep := range []bool{false, true} {
		t.Run(fmt.Sprintf("deep=%v", deep), func(t *testing.T) {
			p := &stubProvider{}
			it, err := New(p, pathprefix.New("")).List(context.Background(), "nothing", deep)
			require.NoError(t, err)

			e, err := it.Next()
			assert.Nil(t, e)
			assert.Equal(t, io.EOF, err)
		})
	}
}

func TestLister_ShallowOneToOne(t *testing.T) {
	keys := []string{"p/z.txt", "p/a/", "p/m.bin", "p/b/"}
	p := &stubProvider{objects: rawKeys(keys...)}
	entries := list(t, New(p, pathprefix.New("")), "p", false)

	require.Len(t, entries, len(keys))
	for i, k := range keys {
		assert.Equal(t, strings.TrimSuffix(k, "/"), entries[i].Path())
	}
	assert.Equal(t, []string{"f:p/z.txt", "d:p/a", "f:p/m.bin", "d:p/b"}, describe(entries))
}

func TestLister_ShallowKeepsDuplicates(t *testing.T) {
	p := &stubProvider{objects: rawKeys("d/", "d/")}
	entries := list(t, New(p, pathprefix.New("")), "", false)
	assert.Equal(t, []string{"d:d", "d:d"}, describe(entries))
}

func TestLister_DeepInvariants(t *testing.T) {
	keys := []string{
		"root/a/1.txt",
		"root/a/b/",
		"root/a/b/2.txt",
		"root/a/b/c/d/3.txt",
		"root/e/4.txt",
		"root/a/b/5.txt",
		"root/f/",
		"root/f/g/6.txt",
		"root/7.txt",
	}
	p := &stubProvider{objects: rawKeys(keys...)}
	entries := list(t, New(p, pathprefix.New("root")), "", true)

	assert.Equal(t, []string{
		"d:a", "f:a/1.txt",
		"d:a/b", "f:a/b/2.txt",
		"d:a/b/c", "d:a/b/c/d", "f:a/b/c/d/3.txt",
		"d:e", "f:e/4.txt",
		"f:a/b/5.txt",
		"d:f", "d:f/g", "f:f/g/6.txt",
		"f:7.txt",
	}, describe(entries))

	seen := make(map[string]int)
	for i, e := range entries {
		if e.Kind() != KindDirectory {
			continue
		}
		_, dup := seen[e.Path()]
		assert.False(t, dup, "directory %q emitted twice", e.Path())
		seen[e.Path()] = i
	}

	for i, e := range entries {
		for dir, at := range seen {
			if strings.HasPrefix(e.Path(), dir+"/") {
				assert.Less(t, at, i, "directory %q must precede %q", dir, e.Path())
			}
		}
	}

	var files []string
	for _, e := range entries {
		if e.Kind() == KindFile {
			files = append(files, e.Path())
		}
	}
	assert.Equal(t, []string{"a/1.txt", "a/b/2.txt", "a/b/c/d/3.txt", "e/4.txt", "a/b/5.txt", "f/g/6.txt", "7.txt"}, files)
}

func TestLister_DeepMarkerAfterSynthesisIsDeduplicated(t *testing.T) {
	p := &stubProvider{objects: rawKeys("x/y/1.txt", "x/y/", "x/")}
	entries := list(t, New(p, pathprefix.New("")), "", true)
	assert.Equal(t, []string{"d:x", "d:x/y", "f:x/y/1.txt"}, describe(entries))
}

func TestLister_DeepMarkerKeepsTimestamp(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := &stubProvider{objects: []provider.ObjectSummary{
		{Key: "x/", LastModified: ts},
		{Key: "x/1.txt", LastModified: ts},
	}}
	entries := list(t, New(p, pathprefix.New("")), "", true)

	require.Len(t, entries, 2)
	assert.Equal(t, NewDirectory("x", ts), entries[0])
}

func TestLister_SkipsListedDirectoryMarker(t *testing.T) {
	p := &stubProvider{objects: rawKeys("a/", "a/1.txt")}
	entries := list(t, New(p, pathprefix.New("")), "a", false)
	assert.Equal(t, []string{"f:a/1.txt"}, describe(entries))
}

func TestLister_DeepIgnoresEmptySegments(t *testing.T) {
	p := &stubProvider{objects: rawKeys("a//b.txt")}
	entries := list(t, New(p, pathprefix.New("")), "", true)
	assert.Equal(t, []string{"d:a", "f:a//b.txt"}, describe(entries))
}

func TestLister_PrefixStripped(t *testing.T) {
	p := &stubProvider{objects: rawKeys("tenant/docs/a.txt", "tenant/docs/sub/")}
	l := New(p, pathprefix.New("tenant/"))

	entries := list(t, l, "/docs/", false)

	assert.Equal(t, []string{"f:docs/a.txt", "d:docs/sub"}, describe(entries))
	assert.Equal(t, "tenant/docs/", p.calls[0].Prefix)
}

func TestLister_PageSizePassedThrough(t *testing.T) {
	p := &stubProvider{}
	_ = list(t, New(p, pathprefix.New(""), WithPageSize(42), WithLogger(nil)), "", true)
	assert.Equal(t, 42, p.calls[0].PageSize)
}

func TestLister_ListErrorUnchanged(t *testing.T) {
	want := &provider.ProviderError{Op: "List", Provider: provider.ProviderSwift, Err: provider.ErrAccessDenied}
	p := &stubProvider{listErr: want}

	it, err := New(p, pathprefix.New("")).List(context.Background(), "x", true)

	assert.Nil(t, it)
	assert.Same(t, want, err)
	assert.True(t, provider.IsAccessDenied(err))
}

func TestLister_NextErrorUnchangedAndSticky(t *testing.T) {
	want := errors.New("connection reset")
	p := &stubProvider{objects: rawKeys("a/1.txt"), nextErr: want}
	it, err := New(p, pathprefix.New("")).List(context.Background(), "", true)
	require.NoError(t, err)

	entries, err := it.Collect()
	assert.Same(t, want, err)
	assert.Equal(t, []string{"d:a", "f:a/1.txt"}, describe(entries))

	_, err = it.Next()
	assert.Same(t, want, err)
}

func TestLister_MalformedEntryFailsFast(t *testing.T) {
	p := &stubProvider{objects: rawKeys("a/1.txt", "b/2.txt", "a/3.txt")}
	it, err := New(p, pathprefix.New("")).List(context.Background(), "a", false)
	require.NoError(t, err)

	e, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "a/1.txt", e.Path())

	_, err = it.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEntry)
	var me *MalformedEntryError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "b/2.txt", me.Key)
	assert.Equal(t, "a/", me.Prefix)
	assert.Contains(t, me.Error(), `"b/2.txt"`)

	_, err = it.Next()
	assert.ErrorIs(t, err, ErrMalformedEntry)
}

func TestLister_Lazy(t *testing.T) {
	p := &stubProvider{objects: rawKeys("a/b/1.txt", "a/b/2.txt", "c.txt")}
	it, err := New(p, pathprefix.New("")).List(context.Background(), "", true)
	require.NoError(t, err)
	assert.Equal(t, 0, p.pulls)

	// One pull produces "a", "a/b" and the file.
	for range 3 {
		_, err := it.Next()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.pulls)

	_, err = it.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, p.pulls)
}

func TestIterator_AllStopsEarly(t *testing.T) {
	p := &stubProvider{objects: rawKeys("1", "2", "3")}
	it, err := New(p, pathprefix.New("")).List(context.Background(), "", false)
	require.NoError(t, err)

	var got []string
	for e, err := range it.All() {
		require.NoError(t, err)
		got = append(got, e.Path())
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, got)

	e, err := it.Next()
	require.NoError(t, err)
	assert.Equal(t, "3", e.Path())
}

func TestLister_MemoryProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.New("test")
	for _, k := range []string{"docs/a.txt", "docs/deep/b.txt", "docs/empty/", "top.txt"} {
		require.NoError(t, store.PutObject(ctx, k, strings.NewReader("data"), 4, provider.PutOptions{ContentType: "text/plain; charset=utf-8"}))
	}
	l := New(store, pathprefix.New(""))

	shallow := list(t, l, "docs", false)
	assert.Equal(t, []string{"f:docs/a.txt", "d:docs/deep", "d:docs/empty"}, describe(shallow))
	file, ok := shallow[0].(File)
	require.True(t, ok)
	assert.Equal(t, uint64(4), file.Size())
	assert.Equal(t, "text/plain", file.MimeType())
	_, hasTime := file.LastModified()
	assert.True(t, hasTime)

	deep := list(t, l, "", true)
	assert.Equal(t, []string{
		"d:docs", "f:docs/a.txt", "d:docs/deep", "f:docs/deep/b.txt", "d:docs/empty", "f:top.txt",
	}, describe(deep))
}

func TestLister_ConcurrentListings(t *testing.T) {
	ctx := context.Background()
	store := memory.New("test")
	for i := range 20 {
		key := fmt.Sprintf("d%d/sub/%d.txt", i%4, i)
		require.NoError(t, store.PutObject(ctx, key, strings.NewReader("x"), 1, provider.PutOptions{}))
	}
	l := New(store, pathprefix.New(""))

	want := describe(list(t, l, "", true))

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			it, err := l.List(ctx, "", true)
			if err != nil {
				return
			}
			entries, err := it.Collect()
			if err != nil {
				return
			}
			results[i] = describe(entries)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
