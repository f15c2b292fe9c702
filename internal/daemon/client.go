package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jwulff/incision/internal/audio"
	"github.com/jwulff/incision/internal/pipeline"
)

// ErrRemote is wrapped around errors reported by the daemon itself.
var ErrRemote = errors.New("daemon error")

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "incision", "analyzer.sock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".incision", "analyzer.sock")
}

// Client communicates with the analysis daemon over a Unix socket. It
// implements pipeline.Aligner and pipeline.Scorer. A broken connection is
// redialed on the next command.
type Client struct {
	path    string
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex

	onEvent func(Event)
}

var (
	_ pipeline.Aligner = (*Client)(nil)
	_ pipeline.Scorer  = (*Client)(nil)
)

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	c := &Client{path: socketPath}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

// OnEvent registers a handler for events streamed during a command.
func (c *Client) OnEvent(fn func(Event)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *Client) dial() error {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	// Audio travels inline as a data URI.
	scanner.Buffer(make([]byte, 1024*1024), 64*1024*1024)

	c.conn = conn
	c.scanner = scanner
	return nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// SendCommand sends a command and reads lines until the response, passing
// events to the OnEvent handler. Cancelling ctx aborts the exchange and drops
// the connection.
func (c *Client) SendCommand(ctx context.Context, cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dial(); err != nil {
			return Response{}, err
		}
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})

	resp, err := c.exchange(cmd)
	if !stop() || err != nil {
		// A fired deadline leaves the connection unusable.
		conn.Close()
		c.conn = nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("%s: %w", cmd.Cmd, ctx.Err())
		}
		return Response{}, err
	}
	return resp, nil
}

func (c *Client) exchange(cmd Command) (Response, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal command: %w", err)
	}

	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return Response{}, fmt.Errorf("write command: %w", err)
	}

	for {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return Response{}, fmt.Errorf("read response: %w", err)
			}
			return Response{}, fmt.Errorf("connection closed")
		}
		line := c.scanner.Bytes()

		var probe struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return Response{}, fmt.Errorf("unmarshal response: %w", err)
		}
		if probe.Event != "" {
			var ev Event
			if err := json.Unmarshal(line, &ev); err != nil {
				return Response{}, fmt.Errorf("unmarshal event: %w", err)
			}
			if c.onEvent != nil {
				c.onEvent(ev)
			}
			continue
		}

		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil {
			return Response{}, fmt.Errorf("unmarshal response: %w", err)
		}
		return resp, nil
	}
}

// Status asks the daemon for its status line.
func (c *Client) Status(ctx context.Context) (Response, error) {
	resp, err := c.SendCommand(ctx, Command{Cmd: CmdStatus})
	if err != nil {
		return Response{}, err
	}
	if !resp.OK {
		return resp, fmt.Errorf("status: %w: %s", ErrRemote, resp.Error)
	}
	return resp, nil
}

// Align asks the daemon to align lyrics to the take.
func (c *Client) Align(ctx context.Context, lyrics string, src audio.Source) ([]pipeline.AlignedWord, error) {
	resp, err := c.SendCommand(ctx, Command{
		Cmd:    CmdAlign,
		Lyrics: lyrics,
		Audio:  src.DataURI(),
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("align: %w: %s", ErrRemote, resp.Error)
	}
	return alignedFrom(resp.Words), nil
}

// Score asks the daemon to score aligned words.
func (c *Client) Score(ctx context.Context, lyrics string, src audio.Source, words []pipeline.AlignedWord) ([]pipeline.ScoredWord, error) {
	resp, err := c.SendCommand(ctx, Command{
		Cmd:    CmdScore,
		Lyrics: lyrics,
		Audio:  src.DataURI(),
		Words:  words,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("score: %w: %s", ErrRemote, resp.Error)
	}
	return scoredFrom(resp.Words), nil
}
