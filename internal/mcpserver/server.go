// Package mcpserver exposes a repair session as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/eqprofile"
	"github.com/jwulff/incision/internal/playback"
	"github.com/jwulff/incision/internal/session"
	"github.com/jwulff/incision/internal/timeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// EQGenerator produces an EQ profile for a production context.
type EQGenerator interface {
	Generate(ctx context.Context, productionContext string) (eqprofile.Profile, error)
}

// Server binds MCP tools to one session.
type Server struct {
	sess *session.Session
	eq   EQGenerator
	mcp  *server.MCPServer
}

// New registers every tool against sess. eq may be nil, in which case the
// eq_profile tool reports an error.
func New(sess *session.Session, eq EQGenerator, version string) *Server {
	s := &Server{
		sess: sess,
		eq:   eq,
		mcp:  server.NewMCPServer("incision", version, server.WithToolCapabilities(false)),
	}
	s.register()
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) register() {
	s.mcp.AddTool(mcp.NewTool("analyze",
		mcp.WithDescription("Load a vocal take and align and score its lyrics. Replaces the current word timeline."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Audio file (wav, flac, mp3, opus)")),
		mcp.WithString("lyrics", mcp.Required(), mcp.Description("Lyrics sung in the take")),
	), s.handleAnalyze)

	s.mcp.AddTool(mcp.NewTool("list_words",
		mcp.WithDescription("List the words of the current timeline"),
		mcp.WithString("status", mcp.Description("Only words with this status: clean, warn, ghost or fixed")),
	), s.handleListWords)

	s.mcp.AddTool(mcp.NewTool("inspect_word",
		mcp.WithDescription("Show one word's clarity, timing and repair state"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Word id, e.g. w_3")),
	), s.handleInspectWord)

	s.mcp.AddTool(mcp.NewTool("approve_word",
		mcp.WithDescription("Accept a word as clean"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Word id")),
	), s.handleApprove)

	s.mcp.AddTool(mcp.NewTool("flag_word",
		mcp.WithDescription("Mark a word as a ghost that needs repair"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Word id")),
		mcp.WithString("reason", mcp.Description("What is wrong with it")),
	), s.handleFlag)

	s.mcp.AddTool(mcp.NewTool("fix_word",
		mcp.WithDescription("Mark a warn or ghost word as repaired"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Word id")),
	), s.handleFix)

	s.mcp.AddTool(mcp.NewTool("isolate_word",
		mcp.WithDescription("Play just one word and pause at its end"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Word id")),
	), s.handleIsolate)

	s.mcp.AddTool(mcp.NewTool("seek",
		mcp.WithDescription("Move the playhead to a fraction of the take"),
		mcp.WithNumber("fraction", mcp.Required(), mcp.Description("0 is the start, 1 the end")),
	), s.handleSeek)

	s.mcp.AddTool(mcp.NewTool("playback_status",
		mcp.WithDescription("Report transport state, position and the word under the playhead"),
	), s.handlePlaybackStatus)

	s.mcp.AddTool(mcp.NewTool("eq_profile",
		mcp.WithDescription("Suggest an EQ, compression and reverb chain for the vocal"),
		mcp.WithString("context", mcp.Required(), mcp.Description("Production context, e.g. 'intimate acoustic ballad'")),
	), s.handleEQProfile)
}

// wordView is the JSON shape of a word.
type wordView struct {
	ID          string  `json:"id"`
	Text        string  `json:"text"`
	StartTime   float64 `json:"startTime"`
	EndTime     float64 `json:"endTime"`
	Clarity     float64 `json:"clarity"`
	Status      string  `json:"status"`
	SectionName string  `json:"sectionName,omitempty"`
	GhostReason string  `json:"ghostReason,omitempty"`
}

func viewOf(t timeline.WordToken) wordView {
	return wordView{
		ID:          t.ID,
		Text:        t.Text,
		StartTime:   t.StartTime,
		EndTime:     t.EndTime,
		Clarity:     t.Score,
		Status:      t.Status.String(),
		SectionName: t.SectionName,
		GhostReason: t.GhostReason,
	}
}

type positionView struct {
	State    string    `json:"state"`
	Offset   float64   `json:"offset"`
	Duration float64   `json:"duration"`
	Progress float64   `json:"progress"`
	Word     *wordView `json:"word,omitempty"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func toolError(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return toolError(err)
	}
	lyrics, err := req.RequireString("lyrics")
	if err != nil {
		return toolError(err)
	}

	src, err := audio.ReadFile(path)
	if err != nil {
		return toolError(err)
	}
	if _, err := s.sess.Load(ctx, src); err != nil {
		return toolError(err)
	}
	set, err := s.sess.Analyze(ctx, lyrics, src)
	if err != nil {
		return toolError(err)
	}

	words := make([]wordView, len(set.Tokens))
	for i, t := range set.Tokens {
		words[i] = viewOf(t)
	}
	return jsonResult(struct {
		Run   uint64         `json:"run"`
		Stats timeline.Stats `json:"stats"`
		Words []wordView     `json:"words"`
	}{set.RunSeq, set.Stats(), words})
}

func (s *Server) handleListWords(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := req.GetString("status", "")
	var want timeline.Status
	if filter != "" {
		st, err := timeline.ParseStatus(filter)
		if err != nil {
			return toolError(err)
		}
		want = st
	}

	words := []wordView{}
	for _, t := range s.sess.Snapshot().Tokens {
		if filter != "" && t.Status != want {
			continue
		}
		words = append(words, viewOf(t))
	}
	return jsonResult(words)
}

func (s *Server) handleInspectWord(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	tok, err := s.sess.Token(id)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(viewOf(tok))
}

func (s *Server) handleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	tok, err := s.sess.Approve(ctx, id)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(viewOf(tok))
}

func (s *Server) handleFlag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	tok, err := s.sess.Flag(ctx, id, req.GetString("reason", ""))
	if err != nil {
		return toolError(err)
	}
	return jsonResult(viewOf(tok))
}

func (s *Server) handleFix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	tok, err := s.sess.Fix(ctx, id)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(viewOf(tok))
}

func (s *Server) handleIsolate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return toolError(err)
	}
	if err := s.sess.Isolate(id); err != nil {
		return toolError(err)
	}
	return jsonResult(s.position())
}

func (s *Server) handleSeek(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fraction, err := req.RequireFloat("fraction")
	if err != nil {
		return toolError(err)
	}
	if err := s.sess.Seek(fraction); err != nil {
		return toolError(err)
	}
	return jsonResult(s.position())
}

func (s *Server) handlePlaybackStatus(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.position())
}

func (s *Server) handleEQProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.eq == nil {
		return toolError(fmt.Errorf("eq profile generation is not configured"))
	}
	pc, err := req.RequireString("context")
	if err != nil {
		return toolError(err)
	}
	p, err := s.eq.Generate(ctx, pc)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(p)
}

// position samples the clock so range and end-of-take stops are applied.
func (s *Server) position() positionView {
	p := s.sess.Clock().Sample()
	v := positionView{
		State:    p.State.String(),
		Offset:   p.Offset,
		Duration: p.Duration,
		Progress: p.Progress,
	}
	if p.State == playback.StateIdle {
		return v
	}
	if tok, ok := s.sess.Snapshot().At(p.Offset); ok {
		w := viewOf(tok)
		v.Word = &w
	}
	return v
}
