package server

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/terminus/core/protocol"
)

// Client calls a terminus server.
type Client struct {
	runTurn *connect.Client[structpb.Struct, structpb.Struct]
	clear   *connect.Client[structpb.Struct, structpb.Struct]
	history *connect.Client[structpb.Struct, structpb.Struct]
}

// NewClient creates a Client for the server at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		runTurn: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+RunTurnProcedure, opts...),
		clear:   connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+ClearProcedure, opts...),
		history: connect.NewClient[structpb.Struct, structpb.Struct](httpClient, baseURL+HistoryProcedure, opts...),
	}
}

// RunTurn sends one user request and returns the turn's outcome.
func (c *Client) RunTurn(ctx context.Context, text string) (*TurnReply, error) {
	msg, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return nil, err
	}
	res, err := c.runTurn.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	var reply TurnReply
	if err := fromStruct(res.Msg, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Clear empties the server session's history.
func (c *Client) Clear(ctx context.Context) error {
	_, err := c.clear.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	return err
}

// History returns the server session's id and turns.
func (c *Client) History(ctx context.Context) (string, []protocol.Turn, error) {
	res, err := c.history.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return "", nil, err
	}
	var reply historyReply
	if err := fromStruct(res.Msg, &reply); err != nil {
		return "", nil, err
	}
	return reply.SessionID, reply.Turns, nil
}
