package memcache_test

import (
	"context"
	"fmt"
	"log"
	"time"

	memcache "github.com/aurorafeint/memcache-client"
)

func Example() {
	cache, err := memcache.New([]string{"localhost:11211"}, memcache.Options{
		Namespace: "sessions",
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	if _, err := cache.Set(ctx, "user:42", map[string]any{"name": "ada"}, memcache.CallOptions{
		ExpiresIn: time.Hour,
	}); err != nil {
		log.Fatal(err)
	}

	value, err := cache.Get(ctx, "user:42", memcache.CallOptions{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(value)
}

func ExampleCache_Fetch() {
	cache, err := memcache.New([]string{"localhost:11211"}, memcache.Options{})
	if err != nil {
		log.Fatal(err)
	}

	// Fetch reads the key and only invokes the compute function on a miss,
	// writing the computed value back for the next caller.
	value, err := cache.Fetch(context.Background(), "report:daily",
		memcache.CallOptions{ExpiresIn: 10 * time.Minute},
		func() (any, error) {
			return buildDailyReport()
		})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(value)
}

func buildDailyReport() (any, error) {
	return "report", nil
}
