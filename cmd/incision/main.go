// Command incision inspects and repairs the word timeline of a vocal take.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/jwulff/incision/internal/app"
	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/config"
	"github.com/jwulff/incision/internal/mcpserver"

	tea "github.com/charmbracelet/bubbletea"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, `incision %s

Usage:
  incision tui     -lyrics TEXT | -lyrics-file PATH  TAKE
  incision analyze [-json] -lyrics TEXT | -lyrics-file PATH  TAKE
  incision mcp
  incision version

Environment is read from $INCISION_ENV, ~/.incision.env and ./.env.
`, version)
}

func main() {
	config.LoadDefaultEnv()
	cfg := config.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "tui":
		err = runTUI(cfg, os.Args[2:])
	case "analyze":
		err = runAnalyze(cfg, os.Args[2:])
	case "mcp":
		err = runMCP(cfg)
	case "version":
		fmt.Println(version)
	case "-h", "--help", "help":
		usage()
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "incision: %v\n", err)
		os.Exit(1)
	}
}

// takeFlags parses the flags shared by tui and analyze.
type takeFlags struct {
	lyrics     string
	lyricsFile string
	jsonOut    bool
}

func parseTake(name string, args []string) (takeFlags, audio.Source, string, error) {
	var tf takeFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&tf.lyrics, "lyrics", "", "Lyrics sung in the take")
	fs.StringVar(&tf.lyricsFile, "lyrics-file", "", "File containing the lyrics")
	if name == "analyze" {
		fs.BoolVar(&tf.jsonOut, "json", false, "Print the word timeline as JSON")
	}
	if err := fs.Parse(args); err != nil {
		return tf, audio.Source{}, "", err
	}
	if fs.NArg() != 1 {
		return tf, audio.Source{}, "", errors.New("expected exactly one audio file")
	}

	lyrics := tf.lyrics
	if tf.lyricsFile != "" {
		b, err := os.ReadFile(tf.lyricsFile)
		if err != nil {
			return tf, audio.Source{}, "", fmt.Errorf("read lyrics: %w", err)
		}
		lyrics = string(b)
	}
	if strings.TrimSpace(lyrics) == "" {
		return tf, audio.Source{}, "", errors.New("missing -lyrics or -lyrics-file")
	}

	src, err := audio.ReadFile(fs.Arg(0))
	if err != nil {
		return tf, audio.Source{}, "", err
	}
	return tf, src, lyrics, nil
}

func runTUI(cfg config.Config, args []string) error {
	_, src, lyrics, err := parseTake("tui", args)
	if err != nil {
		return err
	}

	// The terminal belongs to bubbletea; logs go to a file or nowhere.
	if cfg.LogFile != "" {
		f, err := tea.LogToFile(cfg.LogFile, "incision")
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	b, err := openBackends(cfg, sampledByCaller())
	if err != nil {
		return err
	}
	defer b.Close()

	opts := app.Options{
		Session: b.sess,
		Lyrics:  lyrics,
		Source:  src,
		Frame:   cfg.Frame,
	}
	if b.store != nil {
		opts.History = b.store
	}
	if b.eq != nil {
		opts.EQ = b.eq
	}

	p := tea.NewProgram(app.New(opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err = p.Run()
	return err
}

func runMCP(cfg config.Config) error {
	b, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var eq mcpserver.EQGenerator
	if b.eq != nil {
		eq = b.eq
	}
	log.Printf("incision mcp %s: analyzer=%s output=%s", version, cfg.Analyzer, cfg.Output)
	return mcpserver.New(b.sess, eq, version).Serve()
}
