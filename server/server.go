// Package server exposes one session over a connect RPC endpoint so the
// agent loop can run without a terminal. Messages are google.protobuf.Struct
// values; HTTP/2 without TLS is accepted through h2c.
//
// Confirmation is non-interactive: the kernel behind a Server should be
// built without a prompter, so gated calls are declined unless the session
// has auto-approve enabled.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/kernel"
	"github.com/tailored-agentic-units/terminus/observability"
	"github.com/tailored-agentic-units/terminus/session"
)

// Service and procedure names.
const (
	ServiceName = "terminus.v1.TerminusService"

	RunTurnProcedure = "/" + ServiceName + "/RunTurn"
	ClearProcedure   = "/" + ServiceName + "/Clear"
	HistoryProcedure = "/" + ServiceName + "/History"
)

// EventRequest is emitted once per handled RPC.
const EventRequest observability.EventType = "server.request"

const shutdownTimeout = 5 * time.Second

// Runner is the part of the kernel the server drives.
type Runner interface {
	Run(ctx context.Context, sess session.Session, text string) (*kernel.Result, error)
	Clear(sess session.Session)
}

// Server serves RunTurn, Clear, and History for a single session.
type Server struct {
	runner   Runner
	session  session.Session
	observer observability.Observer
}

// Option configures a Server.
type Option func(*Server)

// WithObserver sets the observer that receives request events.
func WithObserver(o observability.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// New creates a Server running turns on runner against sess.
func New(runner Runner, sess session.Session, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		session:  sess,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the RPC handler, accepting HTTP/1.1 and h2c.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(RunTurnProcedure, connect.NewUnaryHandler(RunTurnProcedure, s.runTurn))
	mux.Handle(ClearProcedure, connect.NewUnaryHandler(ClearProcedure, s.clear))
	mux.Handle(HistoryProcedure, connect.NewUnaryHandler(HistoryProcedure, s.history))
	return h2c.NewHandler(mux, &http2.Server{})
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

func (s *Server) runTurn(ctx context.Context, req *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	start := time.Now()

	text := strings.TrimSpace(req.Msg.GetFields()["text"].GetStringValue())
	if text == "" {
		err := connect.NewError(connect.CodeInvalidArgument, errors.New("text is required"))
		s.observe(ctx, RunTurnProcedure, start, err)
		return nil, err
	}

	result, err := s.runner.Run(ctx, s.session, text)
	switch {
	case err == nil, errors.Is(err, kernel.ErrRoundCapExceeded):
	case errors.Is(err, kernel.ErrTurnCanceled):
		err = connect.NewError(connect.CodeCanceled, err)
		s.observe(ctx, RunTurnProcedure, start, err)
		return nil, err
	case errors.Is(err, kernel.ErrBackend):
		err = connect.NewError(connect.CodeUnavailable, err)
		s.observe(ctx, RunTurnProcedure, start, err)
		return nil, err
	default:
		err = connect.NewError(connect.CodeInternal, err)
		s.observe(ctx, RunTurnProcedure, start, err)
		return nil, err
	}

	msg, err := toStruct(replyFromResult(result))
	s.observe(ctx, RunTurnProcedure, start, err)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) clear(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	start := time.Now()
	s.runner.Clear(s.session)
	s.observe(ctx, ClearProcedure, start, nil)
	return connect.NewResponse(&structpb.Struct{}), nil
}

func (s *Server) history(ctx context.Context, _ *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error) {
	start := time.Now()
	msg, err := toStruct(historyReply{SessionID: s.session.ID(), Turns: s.session.History()})
	s.observe(ctx, HistoryProcedure, start, err)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (s *Server) observe(ctx context.Context, procedure string, start time.Time, err error) {
	data := map[string]any{
		"procedure": procedure,
		"duration":  time.Since(start).String(),
		"code":      "ok",
	}
	level := observability.LevelInfo
	if err != nil {
		data["code"] = connect.CodeOf(err).String()
		data["error"] = err.Error()
		level = observability.LevelWarning
	}
	observability.Emit(ctx, s.observer, observability.Event{
		Type:      EventRequest,
		Level:     level,
		Source:    "server.Server",
		SessionID: s.session.ID(),
		Data:      data,
	})
}

// TurnReply is the RunTurn response.
type TurnReply struct {
	Response  string        `json:"response"`
	Status    kernel.Status `json:"status"`
	Rounds    int           `json:"rounds"`
	ToolCalls []CallReply   `json:"tool_calls,omitempty"`
}

// CallReply summarizes one executed tool call.
type CallReply struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Arguments string            `json:"arguments"`
	Round     int               `json:"round"`
	Failure   *protocol.Failure `json:"failure,omitempty"`
}

type historyReply struct {
	SessionID string          `json:"session_id"`
	Turns     []protocol.Turn `json:"turns"`
}

func replyFromResult(r *kernel.Result) TurnReply {
	reply := TurnReply{
		Response: r.Response,
		Status:   r.Status,
		Rounds:   r.Rounds,
	}
	for _, c := range r.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, CallReply{
			ID:        c.ID,
			Name:      c.Name,
			Arguments: c.Arguments,
			Round:     c.Round,
			Failure:   c.Outcome.Failure,
		})
	}
	return reply
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reply: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to encode reply: %w", err)
	}
	return structpb.NewStruct(m)
}

// fromStruct decodes a Struct into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode reply: %w", err)
	}
	return nil
}
