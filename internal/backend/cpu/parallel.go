package cpu

import "sync"

// forEach runs body(i) for i in [0, n) on at most limit goroutines.
// Bodies must write to disjoint memory.
func forEach(n, limit int, body func(i int)) {
	if n <= 0 {
		return
	}
	if limit <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			body(i)
		}(i)
	}
	wg.Wait()
}
