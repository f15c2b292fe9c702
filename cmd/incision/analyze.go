package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"text/tabwriter"

	"github.com/jwulff/incision/internal/config"
	"github.com/jwulff/incision/internal/daemon"
	"github.com/jwulff/incision/internal/pipeline"
	"github.com/jwulff/incision/internal/timeline"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

const barTotal = 100

// stageBars shows one progress bar per pipeline stage on stderr.
type stageBars struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bars map[pipeline.Stage]*mpb.Bar
}

func newStageBars() *stageBars {
	p := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	sb := &stageBars{p: p, bars: map[pipeline.Stage]*mpb.Bar{}}
	for _, st := range []pipeline.Stage{pipeline.StageAlign, pipeline.StageScore} {
		sb.bars[st] = p.AddBar(barTotal,
			mpb.PrependDecorators(
				decor.Name(string(st), decor.WC{W: 7, C: decor.DindentRight}),
			),
			mpb.AppendDecorators(
				decor.OnAbort(
					decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
					"failed",
				),
				decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 6}),
			),
		)
	}
	return sb
}

// observe advances bars from orchestrator events.
func (sb *stageBars) observe(ev pipeline.Event) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bar, ok := sb.bars[ev.Stage]
	if !ok {
		return
	}
	switch ev.Kind {
	case pipeline.EventFinished:
		bar.SetCurrent(barTotal)
	case pipeline.EventFailed, pipeline.EventSuperseded:
		bar.Abort(false)
	}
}

// progress applies fractional progress streamed by the analyzer daemon.
func (sb *stageBars) progress(ev daemon.Event) {
	if ev.Progress == nil {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()
	bar, ok := sb.bars[pipeline.Stage(ev.Stage)]
	if !ok || bar.Completed() {
		return
	}
	cur := int64(*ev.Progress * barTotal)
	bar.SetCurrent(max(0, min(cur, barTotal-1)))
}

// wait aborts bars that never ran and flushes the container.
func (sb *stageBars) wait() {
	sb.mu.Lock()
	for _, bar := range sb.bars {
		if !bar.Completed() {
			bar.Abort(false)
		}
	}
	sb.mu.Unlock()
	sb.p.Wait()
}

func runAnalyze(cfg config.Config, args []string) error {
	tf, src, lyrics, err := parseTake("analyze", args)
	if err != nil {
		return err
	}

	bars := newStageBars()
	b, err := openBackends(cfg,
		withObserver(bars.observe),
		withDaemonProgress(bars.progress),
		headless(),
	)
	if err != nil {
		bars.wait()
		return err
	}
	defer b.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	set, err := b.sess.Analyze(ctx, lyrics, src)
	bars.wait()
	if err != nil {
		return err
	}

	if tf.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set)
	}
	printSet(set)
	return nil
}

func printSet(set timeline.Set) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWORD\tSTART\tEND\tCLARITY\tSTATUS\tSECTION")
	for _, t := range set.Tokens {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.1f\t%s\t%s\n",
			t.ID, t.Text, t.StartTime, t.EndTime, t.Score, t.Status, t.SectionName)
	}
	tw.Flush()

	st := set.Stats()
	fmt.Printf("\nrun %d: %d words, %d clean, %d warn, %d ghost, mean clarity %.1f\n",
		set.RunSeq, st.Total, st.Clean, st.Warn, st.Ghost, st.MeanClarity)
}
