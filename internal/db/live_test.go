package db

import (
	"context"
	"fmt"
	"os"
	"testing"
)

// TestLiveDatabase opens the real history database and prints recent runs.
// Skipped if the database doesn't exist.
func TestLiveDatabase(t *testing.T) {
	dbPath := DefaultDBPath()
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Skip("database not found at", dbPath)
	}

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs in database")
		return
	}

	for _, r := range runs {
		fmt.Printf("run %s seq=%d status=%s source=%s words=%d ghost=%d at %s\n",
			r.ID, r.Seq, r.Status, r.Source, r.Stats.Total, r.Stats.Ghost,
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	events, err := store.EventsForRun(ctx, runs[0].ID)
	if err != nil {
		t.Fatalf("EventsForRun: %v", err)
	}
	fmt.Printf("Events for latest run: %d\n", len(events))
	for _, e := range events {
		fmt.Printf("  %s %s %s -> %s\n", e.TokenID, e.Action, e.From, e.To)
	}
}
