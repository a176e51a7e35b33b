package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	statemcp "github.com/aretw0/statekit/pkg/adapters/mcp"
	"github.com/aretw0/statekit/pkg/docstore"
	"github.com/aretw0/statekit/pkg/store"
)

type rpcResponse struct {
	Result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Contents []struct {
			URI  string `json:"uri"`
			Text string `json:"text"`
		} `json:"contents"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(t *testing.T, opts ...statemcp.Option) (*statemcp.Server, *store.Store[docstore.Document]) {
	t.Helper()
	s, err := docstore.New(docstore.Document{"title": "draft"})
	require.NoError(t, err)
	srv := statemcp.NewServer(s, opts...)
	t.Cleanup(srv.Close)
	return srv, s
}

func call(t *testing.T, srv *statemcp.Server, method string, params any) rpcResponse {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	msg := srv.MCPServer().HandleMessage(context.Background(), raw)
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(data, &resp), string(data))
	require.Nil(t, resp.Error, string(data))
	return resp
}

func toolNames(resp rpcResponse) []string {
	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestTools_List(t *testing.T) {
	srv, _ := newServer(t)
	resp := call(t, srv, "tools/list", map[string]any{})
	assert.ElementsMatch(t, []string{"get_state", "set", "delete", "append", "merge"}, toolNames(resp))
}

func TestTools_Available(t *testing.T) {
	srv, _ := newServer(t, statemcp.WithAvailable("set"))
	resp := call(t, srv, "tools/list", map[string]any{})
	assert.ElementsMatch(t, []string{"get_state", "set"}, toolNames(resp))
}

func TestTools_Dispatch(t *testing.T) {
	srv, s := newServer(t)

	resp := call(t, srv, "tools/call", map[string]any{
		"name":      "set",
		"arguments": map[string]any{"payload": `{"path":"meta.owner","value":"ada"}`},
	})
	require.False(t, resp.Result.IsError)
	require.Len(t, resp.Result.Content, 1)
	assert.JSONEq(t, `{"title":"draft","meta":{"owner":"ada"}}`, resp.Result.Content[0].Text)
	assert.Equal(t, "ada", s.Get()["meta"].(map[string]any)["owner"])
}

func TestTools_DispatchErrors(t *testing.T) {
	srv, _ := newServer(t)

	tests := []struct {
		name    string
		tool    string
		payload string
		want    string
	}{
		{"malformed json", "set", `{"path":`, "invalid payload"},
		{"payload decode", "merge", `{"path":"x","value":3}`, "rejected its payload"},
		{"handler failure", "delete", `{"path":"missing"}`, `action "delete" failed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, srv, "tools/call", map[string]any{
				"name":      tt.tool,
				"arguments": map[string]any{"payload": tt.payload},
			})
			assert.True(t, resp.Result.IsError)
			require.Len(t, resp.Result.Content, 1)
			assert.Contains(t, resp.Result.Content[0].Text, tt.want)
		})
	}
}

func TestGetState_ToolAndResource(t *testing.T) {
	srv, _ := newServer(t)

	resp := call(t, srv, "tools/call", map[string]any{"name": statemcp.GetStateTool})
	require.Len(t, resp.Result.Content, 1)
	assert.JSONEq(t, `{"title":"draft"}`, resp.Result.Content[0].Text)

	resp = call(t, srv, "resources/read", map[string]any{"uri": statemcp.StateURI})
	require.Len(t, resp.Result.Contents, 1)
	assert.Equal(t, statemcp.StateURI, resp.Result.Contents[0].URI)
	assert.JSONEq(t, `{"title":"draft"}`, resp.Result.Contents[0].Text)
}

func TestServer_DetachesOnClose(t *testing.T) {
	s, err := docstore.New(nil)
	require.NoError(t, err)
	before := s.SubscriberCount()

	srv := statemcp.NewServer(s)
	assert.Equal(t, before+1, s.SubscriberCount())
	srv.Close()
	assert.Equal(t, before, s.SubscriberCount())
}
