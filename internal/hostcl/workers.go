package hostcl

import "sync"

// groupSpan is a contiguous run of work-groups handed to one worker.
type groupSpan struct{ first, last int }

// splitGroups divides groups work-groups into at most workers contiguous
// spans of near-equal size.
func splitGroups(groups, workers int) []groupSpan {
	if workers < 1 {
		workers = 1
	}
	if workers > groups {
		workers = groups
	}
	if groups == 0 {
		return nil
	}
	per := (groups + workers - 1) / workers
	spans := make([]groupSpan, 0, workers)
	for start := 0; start < groups; start += per {
		end := start + per
		if end > groups {
			end = groups
		}
		spans = append(spans, groupSpan{first: start, last: end})
	}
	return spans
}

// runGroups executes item for every work-item id in [0, global), local ids
// per group, spread over workers goroutines. Every group runs on exactly one
// worker.
func runGroups(global, local, workers int, item func(i int)) {
	groups := global / local
	spans := splitGroups(groups, workers)
	if len(spans) == 1 {
		for i := 0; i < global; i++ {
			item(i)
		}
		return
	}
	var wg sync.WaitGroup
	for _, s := range spans {
		wg.Add(1)
		go func(s groupSpan) {
			defer wg.Done()
			for i := s.first * local; i < s.last*local; i++ {
				item(i)
			}
		}(s)
	}
	wg.Wait()
}
