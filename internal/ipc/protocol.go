package ipc

import (
	"encoding/json"
	"fmt"
	"image"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandHello         CommandType = "HELLO"
	CommandCreateWindow  CommandType = "CREATE_WINDOW"
	CommandDestroyWindow CommandType = "DESTROY_WINDOW"
	CommandSetFrame      CommandType = "SET_FRAME"
	CommandScrollBy      CommandType = "SCROLL_BY"
	CommandShow          CommandType = "SHOW"
	CommandHide          CommandType = "HIDE"
	CommandInvalidate    CommandType = "INVALIDATE"
	CommandBeginUpdate   CommandType = "BEGIN_UPDATE"
	CommandEndUpdate     CommandType = "END_UPDATE"
	CommandMoveReply     CommandType = "MOVE_REPLY"
	CommandSetTitle      CommandType = "SET_TITLE"
	CommandGetStatus     CommandType = "GET_STATUS"
	CommandGetTree       CommandType = "GET_TREE"
	CommandRedraw        CommandType = "REDRAW"
)

// EventType names an unsolicited server message.
type EventType string

const (
	// EventDraw asks the client to repaint part of a window.
	EventDraw EventType = "DRAW"
	// EventMoved carries a new content frame; answer with MOVE_REPLY.
	EventMoved EventType = "MOVED"
	// EventCloseRequested reports a click on the close button.
	EventCloseRequested EventType = "CLOSE_REQUESTED"
)

// Request represents an IPC request from client to server
type Request struct {
	ID      int64           `json:"id,omitempty"`
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	ID     int64           `json:"id,omitempty"`
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Event is pushed to a session without a matching request.
type Event struct {
	Event      EventType `json:"event"`
	Window     uint64    `json:"window"`
	Rect       *Rect     `json:"rect,omitempty"`
	Rects      []Rect    `json:"rects,omitempty"`
	UpdatePass bool      `json:"update_pass,omitempty"`
}

// Rect is a rectangle on the wire.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// RectOf converts an image rectangle.
func RectOf(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Image converts back to an image rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RectsOf converts a list of image rectangles.
func RectsOf(rs []image.Rectangle) []Rect {
	out := make([]Rect, len(rs))
	for i, r := range rs {
		out[i] = RectOf(r)
	}
	return out
}

// Size is a width/height pair on the wire.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point converts the size to an image point.
func (s Size) Point() image.Point { return image.Pt(s.Width, s.Height) }

type HelloPayload struct {
	Name string `json:"name,omitempty"`
}

type HelloData struct {
	Session uint64 `json:"session"`
	Screen  Rect   `json:"screen"`
	Version string `json:"version"`
}

// AlignmentPayload snaps window size and position to a grid.
type AlignmentPayload struct {
	SizeX       int `json:"size_x,omitempty"`
	SizeOffsetX int `json:"size_offset_x,omitempty"`
	SizeY       int `json:"size_y,omitempty"`
	SizeOffsetY int `json:"size_offset_y,omitempty"`
	PosX        int `json:"pos_x,omitempty"`
	PosOffsetX  int `json:"pos_offset_x,omitempty"`
	PosY        int `json:"pos_y,omitempty"`
	PosOffsetY  int `json:"pos_offset_y,omitempty"`
}

type CreateWindowPayload struct {
	Title      string            `json:"title"`
	Frame      *Rect             `json:"frame,omitempty"`
	Look       string            `json:"look,omitempty"`
	Feel       string            `json:"feel,omitempty"`
	Flags      []string          `json:"flags,omitempty"`
	MinSize    *Size             `json:"min_size,omitempty"`
	MaxSize    *Size             `json:"max_size,omitempty"`
	Alignment  *AlignmentPayload `json:"alignment,omitempty"`
	Background string            `json:"background,omitempty"`
	Hidden     bool              `json:"hidden,omitempty"`
}

type WindowData struct {
	Window  uint64 `json:"window"`
	Title   string `json:"title,omitempty"`
	Frame   Rect   `json:"frame"`
	Content Rect   `json:"content"`
	Hidden  bool   `json:"hidden,omitempty"`
	Focused bool   `json:"focused,omitempty"`
	Zoomed  bool   `json:"zoomed,omitempty"`
	Pending bool   `json:"move_pending,omitempty"`
	State   string `json:"state,omitempty"`
}

// WindowPayload addresses one window.
type WindowPayload struct {
	Window uint64 `json:"window"`
}

type SetFramePayload struct {
	Window uint64 `json:"window"`
	Frame  Rect   `json:"frame"`
}

type ScrollPayload struct {
	Window uint64  `json:"window"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

type InvalidatePayload struct {
	Window uint64 `json:"window"`
	Rect   *Rect  `json:"rect,omitempty"`
}

type BeginUpdateData struct {
	Rects []Rect `json:"rects"`
}

// FillOp is a solid rectangle painted in window content coordinates.
type FillOp struct {
	Rect  Rect   `json:"rect"`
	Color string `json:"color"`
}

type EndUpdatePayload struct {
	Window uint64   `json:"window"`
	Fills  []FillOp `json:"fills,omitempty"`
}

type SetTitlePayload struct {
	Window uint64 `json:"window"`
	Title  string `json:"title"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Windows       int          `json:"windows"`
	Layers        int          `json:"layers"`
	Sessions      int          `json:"sessions"`
	Focused       uint64       `json:"focused,omitempty"`
	UpdateCycles  uint64       `json:"update_cycles"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Screen        Rect         `json:"screen"`
	Backend       string       `json:"backend"`
	Decorator     string       `json:"decorator"`
	DaemonRunning bool         `json:"daemon_running"`
	List          []WindowData `json:"list,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("failed to parse request: missing command")
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// message is what a client reads off the socket: either a response or an
// event, told apart by which field is set.
type message struct {
	Response
	Event
}

func parseMessage(data []byte) (*Response, *Event, error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if m.Event.Event != "" {
		return nil, &m.Event, nil
	}
	return &m.Response, nil, nil
}
