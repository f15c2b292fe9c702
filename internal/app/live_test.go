package app

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/daemon"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// TestLiveTUIFlow drives the TUI model through a full analysis against a
// running analyzer daemon. Skipped if the daemon isn't running.
func TestLiveTUIFlow(t *testing.T) {
	sockPath := daemon.SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("daemon not running")
	}

	const rate = 16000
	samples := make([]float32, 3*rate)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*220*float64(i)/rate))
	}
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := audio.WriteWAV(path, samples, rate); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	src, err := audio.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}

	client, err := daemon.Connect(sockPath)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	sess := session.New(client, client, &playback.NullSink{},
		session.WithClockOptions(playback.WithFrame(0)))
	defer sess.Close()

	m := New(Options{Session: sess, Lyrics: "hold the line", Source: src})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 120, Height: 40})

	m, _ = applyUpdate(m, loadCmd(sess, src)())
	if !m.loaded {
		t.Fatalf("load failed: %s", m.errorMessage)
	}
	fmt.Println("=== Loaded View ===")
	fmt.Println(m.View())

	m, _ = applyUpdate(m, analyzeCmd(sess, m.lyrics, src)())
	if m.errorMessage != "" {
		t.Fatalf("analysis failed: %s", m.errorMessage)
	}
	fmt.Printf("\nRun %d: %d words, status=%q\n", m.set.RunSeq, m.set.Len(), m.statusText)
	if m.set.Len() != 3 {
		t.Errorf("got %d words, want 3", m.set.Len())
	}

	for _, tok := range m.set.Tokens {
		fmt.Printf("  %-6s %-5s %5.1f %.2f-%.2f\n", tok.ID, tok.Status, tok.Score, tok.StartTime, tok.EndTime)
	}

	fmt.Println("\n=== Analyzed View ===")
	fmt.Println(m.View())
}
