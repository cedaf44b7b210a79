// Embedded usage of the supervisor against an in-memory sandbox and store.
// Everything runs in-process; no platform or object storage is needed.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	openclaw "github.com/liorwn/openclaw-cloudflare"
)

func main() {
	sys, err := openclaw.New(openclaw.Options{Dev: true})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = sys.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sys.Boot(ctx); err != nil {
		log.Fatal(err)
	}

	status, err := sys.Facade.StorageStatus(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("configured=%v missing=%v\n", status.Configured, status.Missing)

	if _, err := sys.Facade.Sync(ctx); err != nil {
		fmt.Println("sync:", err)
	}
}
