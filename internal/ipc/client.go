package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net"
	"sync"
	"time"

	"github.com/1broseidon/layerd/internal/runtimepath"
	"github.com/1broseidon/layerd/internal/scene"
)

// ErrConnClosed is returned by Conn requests after the connection is gone.
var ErrConnClosed = errors.New("ipc: connection closed")

// Client handles one-shot IPC requests to the daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new IPC client
func NewClient() *Client {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		// Keep constructor non-failing; sendRequest surfaces connection errors.
		socketPath = ""
	}
	return NewClientAt(socketPath)
}

// NewClientAt creates a client for the socket at socketPath.
func NewClientAt(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// sendRequest sends a request and waits for a response
func (c *Client) sendRequest(req *Request) (*Response, error) {
	// Connect to socket
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	defer conn.Close()

	// Set deadline
	conn.SetDeadline(time.Now().Add(c.timeout))

	// Marshal request
	reqData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	// Send request
	reqData = append(reqData, '\n')
	if _, err := conn.Write(reqData); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	// Read response, skipping events addressed to other windows
	reader := bufio.NewReader(conn)
	for {
		respData, err := reader.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		resp, ev, err := parseMessage(respData)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			continue
		}
		// Check for error response
		if resp.Status == "ERROR" {
			return nil, fmt.Errorf("daemon error: %s", resp.Error)
		}
		return resp, nil
	}
}

// GetStatus retrieves daemon status
func (c *Client) GetStatus() (*StatusData, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetStatus})
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status data: %w", err)
	}
	return &status, nil
}

// GetTree retrieves the scene graph
func (c *Client) GetTree() (*scene.NodeInfo, error) {
	resp, err := c.sendRequest(&Request{Command: CommandGetTree})
	if err != nil {
		return nil, err
	}

	var tree scene.NodeInfo
	if err := json.Unmarshal(resp.Data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree data: %w", err)
	}
	return &tree, nil
}

// Redraw asks the daemon to repaint the whole screen
func (c *Client) Redraw() error {
	_, err := c.sendRequest(&Request{Command: CommandRedraw})
	return err
}

// Ping checks if the daemon is responding
func (c *Client) Ping() error {
	_, err := c.GetStatus()
	return err
}

// Conn is a long-lived session. Windows created on it live until it is
// closed. Events arrive on the Events channel.
type Conn struct {
	conn   net.Conn
	events chan Event

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int64
	waiting map[int64]chan *Response
	err     error
	done    chan struct{}
}

// Dial opens a session with the daemon and says hello.
func (c *Client) Dial(ctx context.Context, name string) (*Conn, *HelloData, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to daemon: %w (is the daemon running?)", err)
	}
	s := &Conn{
		conn:    conn,
		events:  make(chan Event, 256),
		waiting: make(map[int64]chan *Response),
		done:    make(chan struct{}),
	}
	go s.readLoop()

	var hello HelloData
	if err := s.call(ctx, CommandHello, HelloPayload{Name: name}, &hello); err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, &hello, nil
}

// Events delivers DRAW, MOVED and CLOSE_REQUESTED events. It is closed
// when the connection ends.
func (s *Conn) Events() <-chan Event { return s.events }

// Done is closed when the connection ends.
func (s *Conn) Done() <-chan struct{} { return s.done }

// Close ends the session. The daemon destroys its windows.
func (s *Conn) Close() error {
	return s.conn.Close()
}

func (s *Conn) readLoop() {
	defer close(s.events)
	reader := bufio.NewReader(s.conn)
	var err error
	for {
		var line []byte
		line, err = reader.ReadBytes('\n')
		if err != nil {
			break
		}
		resp, ev, perr := parseMessage(line)
		if perr != nil {
			err = perr
			break
		}
		if ev != nil {
			select {
			case s.events <- *ev:
			case <-time.After(time.Second):
				// nobody is reading; drop it
			}
			continue
		}
		s.mu.Lock()
		ch, ok := s.waiting[resp.ID]
		delete(s.waiting, resp.ID)
		s.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	s.mu.Lock()
	s.err = err
	for id, ch := range s.waiting {
		close(ch)
		delete(s.waiting, id)
	}
	s.mu.Unlock()
	close(s.done)
}

func (s *Conn) call(ctx context.Context, cmd CommandType, payload any, out any) error {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", cmd, err)
		}
		raw = b
	}

	ch := make(chan *Response, 1)
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return ErrConnClosed
	}
	s.nextID++
	id := s.nextID
	s.waiting[id] = ch
	s.mu.Unlock()

	data, err := json.Marshal(Request{ID: id, Command: cmd, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	data = append(data, '\n')
	s.writeMu.Lock()
	_, err = s.conn.Write(data)
	s.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrConnClosed
		}
		if resp.Status == "ERROR" {
			return fmt.Errorf("daemon error: %s", resp.Error)
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("failed to parse %s reply: %w", cmd, err)
			}
		}
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.waiting, id)
		s.mu.Unlock()
		return ctx.Err()
	}
}

// CreateWindow opens a window and returns its id and placement.
func (s *Conn) CreateWindow(ctx context.Context, p CreateWindowPayload) (*WindowData, error) {
	var data WindowData
	if err := s.call(ctx, CommandCreateWindow, p, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DestroyWindow closes a window.
func (s *Conn) DestroyWindow(ctx context.Context, window uint64) error {
	return s.call(ctx, CommandDestroyWindow, WindowPayload{Window: window}, nil)
}

// SetFrame moves and resizes a window's content area and returns the frame
// applied.
func (s *Conn) SetFrame(ctx context.Context, window uint64, r image.Rectangle) (image.Rectangle, error) {
	var data WindowData
	if err := s.call(ctx, CommandSetFrame, SetFramePayload{Window: window, Frame: RectOf(r)}, &data); err != nil {
		return image.Rectangle{}, err
	}
	return data.Content.Image(), nil
}

// ScrollBy scrolls a window's content.
func (s *Conn) ScrollBy(ctx context.Context, window uint64, dx, dy float64) error {
	return s.call(ctx, CommandScrollBy, ScrollPayload{Window: window, DX: dx, DY: dy}, nil)
}

// Show undoes one Hide.
func (s *Conn) Show(ctx context.Context, window uint64) error {
	return s.call(ctx, CommandShow, WindowPayload{Window: window}, nil)
}

// Hide hides a window.
func (s *Conn) Hide(ctx context.Context, window uint64) error {
	return s.call(ctx, CommandHide, WindowPayload{Window: window}, nil)
}

// Invalidate damages r in content coordinates, or everything when r is
// empty.
func (s *Conn) Invalidate(ctx context.Context, window uint64, r image.Rectangle) error {
	p := InvalidatePayload{Window: window}
	if !r.Empty() {
		wr := RectOf(r)
		p.Rect = &wr
	}
	return s.call(ctx, CommandInvalidate, p, nil)
}

// BeginUpdate starts a repaint and returns the rectangles to paint.
func (s *Conn) BeginUpdate(ctx context.Context, window uint64) ([]image.Rectangle, error) {
	var data BeginUpdateData
	if err := s.call(ctx, CommandBeginUpdate, WindowPayload{Window: window}, &data); err != nil {
		return nil, err
	}
	out := make([]image.Rectangle, len(data.Rects))
	for i, r := range data.Rects {
		out[i] = r.Image()
	}
	return out, nil
}

// EndUpdate paints fills and completes the repaint.
func (s *Conn) EndUpdate(ctx context.Context, window uint64, fills []FillOp) error {
	return s.call(ctx, CommandEndUpdate, EndUpdatePayload{Window: window, Fills: fills}, nil)
}

// MoveReply acknowledges a MOVED event.
func (s *Conn) MoveReply(ctx context.Context, window uint64) error {
	return s.call(ctx, CommandMoveReply, WindowPayload{Window: window}, nil)
}

// SetTitle renames a window.
func (s *Conn) SetTitle(ctx context.Context, window uint64, title string) error {
	return s.call(ctx, CommandSetTitle, SetTitlePayload{Window: window, Title: title}, nil)
}
