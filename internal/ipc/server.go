package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/1broseidon/layerd/internal/compositor"
	"github.com/1broseidon/layerd/internal/decorator"
	"github.com/1broseidon/layerd/internal/paint"
	"github.com/1broseidon/layerd/internal/region"
	"github.com/1broseidon/layerd/internal/runtimepath"
	"github.com/1broseidon/layerd/internal/winborder"
)

// ProtocolVersion is reported in the HELLO reply.
const ProtocolVersion = "1"

const requestTimeout = 5 * time.Second

// Info describes the running daemon for GET_STATUS.
type Info struct {
	Backend   string
	Decorator string
}

// Server handles IPC requests from clients. Every connection is a session;
// windows created on it are destroyed when it closes.
type Server struct {
	socketPath string
	listener   net.Listener
	comp       *compositor.Compositor
	info       Info
	logger     *slog.Logger
	startTime  time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	sessions     map[uint64]*session
	nextSession  uint64
	shuttingDown bool
	wg           sync.WaitGroup
}

// NewServer creates a server on the runtime socket path.
func NewServer(comp *compositor.Compositor, info Info, logger *slog.Logger) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}
	return NewServerAt(socketPath, comp, info, logger), nil
}

// NewServerAt creates a server listening on socketPath.
func NewServerAt(socketPath string, comp *compositor.Compositor, info Info, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	// Remove existing socket if present
	os.Remove(socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		comp:       comp,
		info:       info,
		logger:     logger,
		startTime:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[uint64]*session),
	}
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string { return s.socketPath }

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("IPC server listening", "socket", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			stopping := s.shuttingDown
			s.mu.Unlock()
			if stopping {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		sess := s.register(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(sess)
		}()
	}
}

func (s *Server) register(conn net.Conn) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSession++
	sess := newSession(s.nextSession, conn, s.logger)
	s.sessions[sess.id] = sess
	return sess
}

func (s *Server) unregister(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
}

// Sessions returns the number of open connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// handleConnection serves one session until the peer disconnects
func (s *Server) handleConnection(sess *session) {
	go sess.writeLoop()
	defer s.cleanup(sess)

	reader := bufio.NewReader(sess.conn)
	for {
		data, err := reader.ReadBytes('\n')
		if line := bytes.TrimSpace(data); len(line) > 0 {
			req, perr := ParseRequest(line)
			if perr != nil {
				sess.send(NewErrorResponse(fmt.Sprintf("Invalid request: %v", perr)))
			} else {
				resp := s.handleCommand(sess, req)
				resp.ID = req.ID
				sess.send(resp)
			}
		}
		if err != nil {
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				sess.logger.Debug("IPC read error", "error", err)
			}
			return
		}
	}
}

func (s *Server) cleanup(sess *session) {
	s.unregister(sess)
	if len(sess.windows) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		if err := s.comp.DestroyClient(ctx, sess); err != nil {
			sess.logger.Debug("destroying session windows failed", "error", err)
		}
		cancel()
		sess.logger.Info("session closed", "windows", len(sess.windows))
	}
	sess.close()
}

func (s *Server) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, requestTimeout)
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(sess *session, req *Request) *Response {
	ctx, cancel := s.requestContext()
	defer cancel()

	switch req.Command {
	case CommandHello:
		return s.handleHello(ctx, sess, req.Payload)
	case CommandCreateWindow:
		return s.handleCreateWindow(ctx, sess, req.Payload)
	case CommandDestroyWindow:
		return s.handleWindowOp(sess, req.Payload, func(id compositor.WindowID) error {
			if err := s.comp.DestroyWindow(ctx, id); err != nil {
				return err
			}
			delete(sess.windows, id)
			return nil
		})
	case CommandSetFrame:
		return s.handleSetFrame(ctx, sess, req.Payload)
	case CommandScrollBy:
		var p ScrollPayload
		if err := decode(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		return s.windowResult(sess, p.Window, func(id compositor.WindowID) error {
			return s.comp.ScrollWindow(ctx, id, p.DX, p.DY)
		})
	case CommandShow:
		return s.handleWindowOp(sess, req.Payload, func(id compositor.WindowID) error {
			return s.comp.ShowWindow(ctx, id)
		})
	case CommandHide:
		return s.handleWindowOp(sess, req.Payload, func(id compositor.WindowID) error {
			return s.comp.HideWindow(ctx, id)
		})
	case CommandInvalidate:
		var p InvalidatePayload
		if err := decode(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		var r Rect
		if p.Rect != nil {
			r = *p.Rect
		}
		return s.windowResult(sess, p.Window, func(id compositor.WindowID) error {
			return s.comp.InvalidateWindow(ctx, id, r.Image())
		})
	case CommandBeginUpdate:
		return s.handleBeginUpdate(ctx, sess, req.Payload)
	case CommandEndUpdate:
		return s.handleEndUpdate(ctx, sess, req.Payload)
	case CommandMoveReply:
		return s.handleWindowOp(sess, req.Payload, func(id compositor.WindowID) error {
			return s.comp.MoveReply(ctx, id)
		})
	case CommandSetTitle:
		var p SetTitlePayload
		if err := decode(req.Payload, &p); err != nil {
			return NewErrorResponse(err.Error())
		}
		return s.windowResult(sess, p.Window, func(id compositor.WindowID) error {
			return s.comp.SetTitle(ctx, id, p.Title)
		})
	case CommandGetStatus:
		return s.handleGetStatus(ctx)
	case CommandGetTree:
		info, err := s.comp.Snapshot(ctx)
		if err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to snapshot tree: %v", err))
		}
		resp, _ := NewOKResponse(info)
		return resp
	case CommandRedraw:
		s.logger.Info("IPC: redraw requested")
		if err := s.comp.Redraw(ctx); err != nil {
			return NewErrorResponse(fmt.Sprintf("Failed to redraw: %v", err))
		}
		resp, _ := NewOKResponse(nil)
		return resp
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func decode(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func (s *Server) handleWindowOp(sess *session, payload json.RawMessage, fn func(compositor.WindowID) error) *Response {
	var p WindowPayload
	if err := decode(payload, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	return s.windowResult(sess, p.Window, fn)
}

// windowResult runs fn for a window the session owns.
func (s *Server) windowResult(sess *session, window uint64, fn func(compositor.WindowID) error) *Response {
	id := compositor.WindowID(window)
	if _, ok := sess.windows[id]; !ok {
		return NewErrorResponse(fmt.Sprintf("Unknown window: %d", window))
	}
	if err := fn(id); err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewOKResponse(nil)
	return resp
}

func (s *Server) handleHello(ctx context.Context, sess *session, payload json.RawMessage) *Response {
	var p HelloPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid hello payload: %v", err))
		}
	}
	st, err := s.comp.Status(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}
	sess.name = p.Name
	sess.logger = sess.logger.With("client", p.Name)
	sess.logger.Info("session started")
	resp, _ := NewOKResponse(HelloData{
		Session: sess.id,
		Screen:  RectOf(st.Screen),
		Version: ProtocolVersion,
	})
	return resp
}

// WindowSpec converts a CREATE_WINDOW payload.
func (p CreateWindowPayload) WindowSpec() (compositor.WindowSpec, error) {
	spec := compositor.WindowSpec{Title: p.Title, Hidden: p.Hidden}
	if p.Frame != nil {
		spec.Frame = p.Frame.Image()
	}
	if p.Look != "" {
		look, ok := decorator.ParseLook(p.Look)
		if !ok {
			return spec, fmt.Errorf("unknown look %q", p.Look)
		}
		spec.Look = look
	}
	feel, ok := decorator.ParseFeel(p.Feel)
	if !ok {
		return spec, fmt.Errorf("unknown feel %q", p.Feel)
	}
	spec.Feel = feel
	flags, err := decorator.ParseFlags(p.Flags)
	if err != nil {
		return spec, err
	}
	spec.Flags = flags
	if p.MinSize != nil {
		spec.MinSize = p.MinSize.Point()
	}
	if p.MaxSize != nil {
		spec.MaxSize = p.MaxSize.Point()
	}
	if a := p.Alignment; a != nil {
		spec.Alignment = winborder.Alignment{
			SizeX: a.SizeX, SizeOffsetX: a.SizeOffsetX,
			SizeY: a.SizeY, SizeOffsetY: a.SizeOffsetY,
			PosX: a.PosX, PosOffsetX: a.PosOffsetX,
			PosY: a.PosY, PosOffsetY: a.PosOffsetY,
		}
	}
	if p.Background != "" {
		c, err := paint.ParseColor(p.Background)
		if err != nil {
			return spec, err
		}
		spec.Background = c
	}
	return spec, nil
}

func (s *Server) handleCreateWindow(ctx context.Context, sess *session, payload json.RawMessage) *Response {
	var p CreateWindowPayload
	if err := decode(payload, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	spec, err := p.WindowSpec()
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Invalid window: %v", err))
	}
	var data WindowData
	err = s.comp.Do(ctx, func(st *compositor.State) error {
		id, err := st.CreateWindow(sess, spec)
		if err != nil {
			return err
		}
		b, err := st.Border(id)
		if err != nil {
			return err
		}
		data = WindowData{
			Window:  uint64(id),
			Title:   p.Title,
			Frame:   RectOf(b.Frame()),
			Content: RectOf(b.ContentFrame()),
			Hidden:  p.Hidden,
		}
		return nil
	})
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to create window: %v", err))
	}
	sess.windows[compositor.WindowID(data.Window)] = struct{}{}
	sess.logger.Debug("IPC: window created", "window", data.Window, "title", p.Title)
	resp, _ := NewOKResponse(data)
	return resp
}

func (s *Server) handleSetFrame(ctx context.Context, sess *session, payload json.RawMessage) *Response {
	var p SetFramePayload
	if err := decode(payload, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	id := compositor.WindowID(p.Window)
	if _, ok := sess.windows[id]; !ok {
		return NewErrorResponse(fmt.Sprintf("Unknown window: %d", p.Window))
	}
	applied, err := s.comp.SetWindowFrame(ctx, id, p.Frame.Image())
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewOKResponse(WindowData{Window: p.Window, Content: RectOf(applied)})
	return resp
}

func (s *Server) handleBeginUpdate(ctx context.Context, sess *session, payload json.RawMessage) *Response {
	var p WindowPayload
	if err := decode(payload, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	id := compositor.WindowID(p.Window)
	if _, ok := sess.windows[id]; !ok {
		return NewErrorResponse(fmt.Sprintf("Unknown window: %d", p.Window))
	}
	clip, err := s.comp.BeginUpdate(ctx, id)
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	resp, _ := NewOKResponse(BeginUpdateData{Rects: RectsOf(clip.Rects())})
	return resp
}

func (s *Server) handleEndUpdate(ctx context.Context, sess *session, payload json.RawMessage) *Response {
	var p EndUpdatePayload
	if err := decode(payload, &p); err != nil {
		return NewErrorResponse(err.Error())
	}
	fills := make([]compositor.Fill, 0, len(p.Fills))
	for _, f := range p.Fills {
		c, err := paint.ParseColor(f.Color)
		if err != nil {
			return NewErrorResponse(err.Error())
		}
		fills = append(fills, compositor.Fill{Rect: f.Rect.Image(), Color: c})
	}
	return s.windowResult(sess, p.Window, func(id compositor.WindowID) error {
		return s.comp.EndUpdate(ctx, id, fills)
	})
}

// handleGetStatus returns current daemon status
func (s *Server) handleGetStatus(ctx context.Context) *Response {
	st, err := s.comp.Status(ctx)
	if err != nil {
		return NewErrorResponse(fmt.Sprintf("Failed to get status: %v", err))
	}
	data := StatusData{
		Windows:       st.Windows,
		Layers:        st.Layers,
		Sessions:      s.Sessions(),
		Focused:       uint64(st.Focused),
		UpdateCycles:  st.Cycles,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Screen:        RectOf(st.Screen),
		Backend:       s.info.Backend,
		Decorator:     s.info.Decorator,
		DaemonRunning: true,
	}
	for _, w := range st.List {
		data.List = append(data.List, WindowData{
			Window:  uint64(w.ID),
			Title:   w.Title,
			Frame:   RectOf(w.Frame),
			Content: RectOf(w.Content),
			Hidden:  w.Hidden,
			Focused: w.Focused,
			Zoomed:  w.Zoomed,
			Pending: w.Pending,
			State:   w.State,
		})
	}
	resp, _ := NewOKResponse(data)
	return resp
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.mu.Lock()
	s.shuttingDown = true
	open := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		open = append(open, sess)
	}
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.Close()
	}
	for _, sess := range open {
		sess.conn.Close()
	}
	s.cancel()
	s.wg.Wait()
	os.Remove(s.socketPath)
}

// session is one client connection. Responses and events share an
// unbounded outgoing queue so the compositor never blocks on a slow peer.
type session struct {
	id      uint64
	name    string
	conn    net.Conn
	logger  *slog.Logger
	windows map[compositor.WindowID]struct{}

	mu     sync.Mutex
	queue  [][]byte
	closed bool
	wake   chan struct{}
}

var _ compositor.Client = (*session)(nil)

func newSession(id uint64, conn net.Conn, logger *slog.Logger) *session {
	return &session{
		id:      id,
		conn:    conn,
		logger:  logger.With("session", id),
		windows: make(map[compositor.WindowID]struct{}),
		wake:    make(chan struct{}, 1),
	}
}

func (s *session) send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to marshal IPC message", "error", err)
		return
	}
	data = append(data, '\n')
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	s.signal()
}

func (s *session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) take() ([][]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q, s.closed
}

// writeLoop drains the queue until the session closes.
func (s *session) writeLoop() {
	for range s.wake {
		msgs, closed := s.take()
		for _, m := range msgs {
			if _, err := s.conn.Write(m); err != nil {
				s.logger.Debug("IPC write failed", "error", err)
				s.conn.Close()
				return
			}
		}
		if closed {
			s.conn.Close()
			return
		}
	}
}

// close flushes what is queued and then closes the connection.
func (s *session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *session) Draw(id compositor.WindowID, damage region.Region, updatePass bool) {
	s.send(Event{Event: EventDraw, Window: uint64(id), Rects: RectsOf(damage.Rects()), UpdatePass: updatePass})
}

func (s *session) Moved(id compositor.WindowID, frame image.Rectangle) {
	r := RectOf(frame)
	s.send(Event{Event: EventMoved, Window: uint64(id), Rect: &r})
}

func (s *session) CloseRequested(id compositor.WindowID) {
	s.send(Event{Event: EventCloseRequested, Window: uint64(id)})
}
