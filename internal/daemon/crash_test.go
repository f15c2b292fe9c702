package daemon

import (
	"context"
	"sync/atomic"
	"testing"
)

// TestDaemonCrashMidCommand checks that a daemon dropping the connection
// without a response surfaces an error, and that the client recovers on the
// next command once the daemon is back.
func TestDaemonCrashMidCommand(t *testing.T) {
	var calls atomic.Int32
	sockPath, cleanup := startMockDaemon(t, func(cmd Command) []any {
		if calls.Add(1) == 1 {
			return nil
		}
		return []any{Response{OK: true, Words: []Word{{Word: "hello", EndTime: 0.3}}}}
	})
	defer cleanup()

	client, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if _, err := client.Align(context.Background(), "hello", testSource()); err == nil {
		t.Fatal("expected error after daemon dropped the connection")
	}

	words, err := client.Align(context.Background(), "hello", testSource())
	if err != nil {
		t.Fatalf("align after crash: %v", err)
	}
	if len(words) != 1 || words[0].Word != "hello" {
		t.Errorf("words = %+v", words)
	}
}
