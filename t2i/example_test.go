package t2i_test

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"t2i_backend/backends"
	"t2i_backend/output"
	"t2i_backend/t2i"
)

func ExampleDispatcher_Dispatch() {
	pool := backends.NewPool(backends.DefaultRegistry(), nil)
	defer pool.Close()
	if _, err := pool.Add("placeholder", nil); err != nil {
		fmt.Println(err)
		return
	}
	d := t2i.NewDispatcher(pool, t2i.Config{MaxParallel: 4}, nil)

	params := backends.DefaultParams()
	params.Prompt = "a lighthouse at dusk"
	params.Seed = 100
	params.Width, params.Height = 64, 64

	results, derr := t2i.Collect(d.Dispatch(context.Background(), t2i.Request{Images: 4, Params: params}, output.InlineSink{}))
	if derr != nil {
		fmt.Println(derr)
		return
	}

	seeds := make([]int64, 0, len(results))
	for _, r := range results {
		if !strings.HasPrefix(r.Image, "data:image/png;base64,") {
			fmt.Println("unexpected image reference")
		}
		seeds = append(seeds, r.Seed)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	fmt.Println(len(results), seeds)
	// Output: 4 [100 101 102 103]
}
