// Package web serves a browser chat over a websocket. Each connection keeps its
// own transcript; nothing is shared between connections.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"slices"

	"nhooyr.io/websocket"

	"github.com/jpoz/venice"
)

//go:embed static
var staticFiles embed.FS

// Event types sent to the browser.
const (
	EventDelta = "delta"
	EventDone  = "done"
	EventError = "error"
)

// Request is one chat message from the browser. An empty Model selects the
// first available model.
type Request struct {
	Message string `json:"message"`
	Model   string `json:"model"`
}

// Event is one frame sent to the browser: a piece of streamed text, the full
// answer, or an error.
type Event struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

var (
	errEmptyMessage = errors.New("message is empty")
	errUnknownModel = errors.New("unknown model")
)

type Server struct {
	provider     venice.Provider
	models       []string
	sampling     venice.Sampling
	dispatcher   *venice.Dispatcher
	systemPrompt string
	logger       *slog.Logger
}

type Modifier func(*Server)

// WithSampling sets the temperature and token limit of every request. The
// model is ignored; it comes from each message.
func WithSampling(s venice.Sampling) Modifier {
	return func(srv *Server) {
		srv.sampling = s
	}
}

// WithDispatcher lets the chat call tools.
func WithDispatcher(d *venice.Dispatcher) Modifier {
	return func(srv *Server) {
		srv.dispatcher = d
	}
}

func WithSystemPrompt(prompt string) Modifier {
	return func(srv *Server) {
		srv.systemPrompt = prompt
	}
}

func WithLogger(logger *slog.Logger) Modifier {
	return func(srv *Server) {
		srv.logger = logger
	}
}

// New creates a chat server offering models. models must not be empty.
func New(provider venice.Provider, models []string, mods ...Modifier) *Server {
	s := &Server{
		provider: provider,
		models:   slices.Clone(models),
	}
	for _, mod := range mods {
		mod(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Handler routes the chat page, the model list and the websocket.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /", http.FileServerFS(static))
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	return mux
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.models); err != nil {
		s.logger.LogAttrs(r.Context(), slog.LevelError, "failed to write model list", slog.Any("error", err))
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.LogAttrs(r.Context(), slog.LevelWarn, "websocket accept failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sess := &session{server: s, conn: conn}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "websocket read failed", slog.Any("error", err))
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			if err := sess.send(ctx, Event{Type: EventError, Error: "invalid request: " + err.Error()}); err != nil {
				return
			}
			continue
		}

		if err := sess.handle(ctx, req); err != nil {
			return
		}
	}
}

// session is the state of one websocket connection.
type session struct {
	server *Server
	conn   *websocket.Conn
	chat   *venice.Chat
	model  string
}

// handle answers one message. Only write failures are returned; exchange
// failures are reported to the browser.
func (sess *session) handle(ctx context.Context, req Request) error {
	s := sess.server

	if req.Message == "" {
		return sess.send(ctx, Event{Type: EventError, Error: errEmptyMessage.Error()})
	}
	model := req.Model
	if model == "" && len(s.models) > 0 {
		model = s.models[0]
	}
	if !slices.Contains(s.models, model) {
		return sess.send(ctx, Event{Type: EventError, Error: errUnknownModel.Error() + ": " + model})
	}

	if sess.chat == nil {
		sess.chat = venice.NewChat(s.driver(model), s.systemPrompt)
	} else if model != sess.model {
		sess.chat.SetDriver(s.driver(model))
	}
	sess.model = model

	var writeErr error
	ex, err := sess.chat.Send(ctx, req.Message, func(text string) {
		if writeErr == nil {
			writeErr = sess.send(ctx, Event{Type: EventDelta, Text: text})
		}
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "chat exchange failed",
			slog.String("model", model),
			slog.Any("error", err))
		return sess.send(ctx, Event{Type: EventError, Error: err.Error()})
	}

	return sess.send(ctx, Event{Type: EventDone, Text: ex.Answer})
}

func (sess *session) send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return sess.conn.Write(ctx, websocket.MessageText, data)
}

func (s *Server) driver(model string) *venice.Driver {
	sampling := s.sampling
	sampling.Model = model

	return venice.NewDriver(s.provider,
		venice.WithDispatcher(s.dispatcher),
		venice.WithToolPhase(sampling),
		venice.WithLogger(s.logger),
	)
}
