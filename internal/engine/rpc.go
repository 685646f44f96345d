package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// request is a JSON-RPC 2.0 call addressed to a handle. Handle -1 is the
// global object.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Handle  int         `json:"handle"`
	Params  interface{} `json:"params"`
}

type response struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the engine.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"-"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("engine %s failed: %s (code %d)", e.Method, e.Message, e.Code)
}

// handleResult is the common {"qReturn": {"qHandle": n}} result shape.
type handleResult struct {
	Return struct {
		Handle int    `json:"qHandle"`
		Type   string `json:"qType"`
	} `json:"qReturn"`
}

// session is one websocket connection to the engine. Calls are sequential.
type session struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	nextID int
}

func (s *session) close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}

// call sends one request and waits for the response with the same id.
// Notifications and responses to other ids are skipped.
func (s *session) call(ctx context.Context, handle int, method string, params interface{}, out interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
		_ = s.conn.SetReadDeadline(deadline)
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := s.conn.WriteJSON(request{JSONRPC: "2.0", ID: id, Method: method, Handle: handle, Params: params}); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var resp response
		if err := s.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("failed to read %s response: %w", method, err)
		}
		if resp.ID == nil || *resp.ID != id {
			continue
		}
		if resp.Error != nil {
			resp.Error.Method = method
			return resp.Error
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	}
}

func (s *session) callHandle(ctx context.Context, handle int, method string, params interface{}) (int, error) {
	var res handleResult
	if err := s.call(ctx, handle, method, params, &res); err != nil {
		return 0, err
	}
	if res.Return.Handle == 0 && res.Return.Type == "" {
		return 0, fmt.Errorf("engine %s returned no handle", method)
	}
	return res.Return.Handle, nil
}
