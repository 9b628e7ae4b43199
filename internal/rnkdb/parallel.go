package rnkdb

import (
	"runtime"
	"sync"

	"github.com/inodb/rnkdb/internal/genesig"
	"github.com/inodb/rnkdb/internal/ranking"
)

// WorkItem is a signature waiting to be loaded.
type WorkItem struct {
	Seq       int
	Signature genesig.GeneSignature
}

// WorkResult holds the rankings loaded for one signature.
type WorkResult struct {
	Seq       int
	Signature genesig.GeneSignature
	Table     *ranking.Table
	Err       error
}

// ParallelLoad loads the rankings of many signatures from db using a pool of
// workers. Results are sent in completion order; use OrderedCollect to
// consume them in sequence-number order. If workers is 0, runtime.NumCPU()
// is used.
//
// Every Database in this package may be loaded from concurrently. Wrap a
// file database in a MemoryDecorator first when loading many signatures.
func ParallelLoad(db Database, items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				tbl, err := db.Load(item.Signature)
				results <- WorkResult{
					Seq:       item.Seq,
					Signature: item.Signature,
					Table:     tbl,
					Err:       err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// Items returns a closed channel holding one WorkItem per signature, numbered
// from 0 in slice order.
func Items[S genesig.GeneSignature](sigs []S) <-chan WorkItem {
	ch := make(chan WorkItem, len(sigs))
	for i, s := range sigs {
		ch <- WorkItem{Seq: i, Signature: s}
	}
	close(ch)
	return ch
}

// OrderedCollect hands the loaded signatures to fn in the order they were
// queued, so the rankings written for one signature never interleave with
// another's. Tables that arrive early are held until every signature queued
// before them has been passed on.
//
// When fn fails, the workers still finish the signatures already queued;
// their tables are dropped and the first error is returned. OrderedCollect
// returns once results is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	held := make(map[int]WorkResult)
	next := 0

	for r := range results {
		held[r.Seq] = r

		for {
			ready, ok := held[next]
			if !ok {
				break
			}
			delete(held, next)
			next++
			if err := fn(ready); err != nil {
				// Workers block on a full results channel; drop the rest.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
