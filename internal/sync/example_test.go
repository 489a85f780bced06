package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/clubroster/roster/internal/remote"
	"github.com/clubroster/roster/internal/store"
	"github.com/clubroster/roster/internal/sync"
)

// This example demonstrates a startup pull.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	st, err := store.Open(".roster/roster.db", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	coord := sync.New(remote.NewHTTPClient(nil), nil)
	defer coord.Close()

	ctx := context.Background()
	local := st.Load(ctx)

	res, err := coord.Pull(ctx, local.Endpoint(), local, false)
	if err != nil {
		log.Fatal(err)
	}

	if res.Adopted {
		if err := st.Save(ctx, res.Dataset); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Println("Adopted remote:", res.Adopted)
}

// This example demonstrates an explicit push that waits for the outcome.
func ExampleCoordinator_pushNow() {
	st, err := store.Open(".roster/roster.db", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	coord := sync.New(remote.NewHTTPClient(nil), nil)
	defer coord.Close()

	ctx := context.Background()
	if err := coord.PushNow(ctx, st.Load(ctx)); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Push complete")
}
