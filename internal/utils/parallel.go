package utils

import "sync"

// ParallelMap 并发执行 fn，输出顺序与输入一致。
// workers <= 1 或只有一个元素时直接串行处理。
func ParallelMap[T any, R any](input []T, workers int, fn func(T) R) []R {
	result := make([]R, len(input))
	if len(input) == 0 {
		return result
	}
	if workers <= 1 || len(input) == 1 {
		for i, v := range input {
			result[i] = fn(v)
		}
		return result
	}
	if workers > len(input) {
		workers = len(input)
	}

	var wg sync.WaitGroup
	indexes := make(chan int, len(input))
	for i := range input {
		indexes <- i
	}
	close(indexes)

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				result[i] = fn(input[i])
			}
		}()
	}
	wg.Wait()
	return result
}
