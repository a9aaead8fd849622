package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hupe1980/memgo"
	"github.com/hupe1980/memgo/index"
	"github.com/hupe1980/memgo/testutil"
)

func main() {
	ctx := context.Background()

	root := "./demo_memory"
	defer os.RemoveAll(root)

	m, err := memgo.New(&testutil.HashEmbedder{Dim: 128},
		memgo.WithRoot(root),
		memgo.WithIndexType(index.TypeFlat),
		memgo.WithLogLevel(slog.LevelInfo),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("--- Add ---")

	memories := []string{
		"i like to play badminton on weekends",
		"my favorite food is sushi",
		"meeting with the team every monday at 10am",
		"training for a half marathon in october",
	}

	for _, text := range memories {
		id, err := m.AddDocument(ctx, "alice", text, nil)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %s\n", id, text)
	}

	fmt.Println("\n--- Search ---")

	results, err := m.Search(ctx, "alice", "what sports do i play?", 2)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Printf("%s score=%.3f %s\n", r.ID, r.Score, r.Text)
	}

	fmt.Println("\n--- Stats ---")

	stats, err := m.Stats(ctx, "alice")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("count=%d dimension=%d index=%s trained=%t\n",
		stats.Count, stats.Dimension, stats.IndexType, stats.Trained)
}
