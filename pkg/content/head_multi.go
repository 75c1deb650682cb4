package content

import (
	"context"
	"sync"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// HeadBytesMulti reads the first n bytes of every key with up to parallel
// concurrent reads. The result for keys[i] is at index i. Keys not read
// because ctx ended carry ctx's error.
func HeadBytesMulti(ctx context.Context, p provider.Provider, keys []string, n int64, parallel int) []HeadResult {
	if parallel <= 0 {
		parallel = 4
	}
	results := make([]HeadResult, len(keys))
	next := make(chan int)

	var wg sync.WaitGroup
	for range min(parallel, len(keys)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				data, meta, err := HeadBytes(ctx, p, keys[i], n)
				results[i] = HeadResult{Key: keys[i], Meta: meta, Data: data, Err: err}
			}
		}()
	}

	i := 0
feed:
	for ; i < len(keys); i++ {
		select {
		case next <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(next)
	wg.Wait()

	for ; i < len(keys); i++ {
		results[i] = HeadResult{Key: keys[i], Err: ctx.Err()}
	}
	return results
}
