package engine

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"reportharness/pkg/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// FieldSelection narrows Field to Values.
type FieldSelection struct {
	Field  string
	Values []string
}

// CountQuery asks for the number of selected and optional values of Field
// in App after applying Static in order and then toggling Values on Field.
type CountQuery struct {
	App    string
	Static []FieldSelection
	Field  string
	Values []string
}

// Client opens one engine session per query. Each session uses its own
// identity so concurrent queries never share selection state.
type Client struct {
	endpoint string
	dialer   *websocket.Dialer
	timeout  time.Duration
	log      logging.Logger
}

// NewClient creates a Client for the engine published at host:port.
func NewClient(host string, port int, timeout time.Duration, log logging.Logger) *Client {
	return &Client{
		endpoint: "ws://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/app/engineData",
		dialer:   &websocket.Dialer{HandshakeTimeout: timeout, Proxy: http.ProxyFromEnvironment},
		timeout:  timeout,
		log:      log,
	}
}

// NewClientForURL creates a Client for an explicit websocket endpoint.
func NewClientForURL(endpoint string, timeout time.Duration, log logging.Logger) *Client {
	c := NewClient("", 0, timeout, log)
	c.endpoint = endpoint
	return c
}

func (c *Client) open(ctx context.Context) (*session, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid engine endpoint %q: %w", c.endpoint, err)
	}
	u = u.JoinPath("identity", uuid.NewString())

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine at %s: %w", c.endpoint, err)
	}
	return &session{conn: conn}, nil
}

// Count runs q against the engine and returns qSelected+qOptional of the
// list object over q.Field.
func (c *Client) Count(ctx context.Context, q CountQuery) (int, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	s, err := c.open(ctx)
	if err != nil {
		return 0, err
	}
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.close()

	c.log.Debug("Opening %s for a count over %s", q.App, q.Field)
	doc, err := s.callHandle(ctx, -1, "OpenDoc", map[string]interface{}{"qDocName": q.App})
	if err != nil {
		return 0, err
	}

	for _, sel := range q.Static {
		if err := c.toggle(ctx, s, doc, sel.Field, sel.Values); err != nil {
			return 0, err
		}
	}
	if err := c.toggle(ctx, s, doc, q.Field, q.Values); err != nil {
		return 0, err
	}

	list, err := s.callHandle(ctx, doc, "CreateSessionObject", map[string]interface{}{
		"qProp": map[string]interface{}{
			"qInfo": map[string]interface{}{"qType": "ListObject"},
			"qListObjectDef": map[string]interface{}{
				"qDef":              map[string]interface{}{"qFieldDefs": []string{q.Field}},
				"qInitialDataFetch": []interface{}{},
			},
		},
	})
	if err != nil {
		return 0, err
	}

	var layout struct {
		Layout struct {
			ListObject struct {
				DimensionInfo struct {
					StateCounts struct {
						Selected int `json:"qSelected"`
						Optional int `json:"qOptional"`
					} `json:"qStateCounts"`
				} `json:"qDimensionInfo"`
			} `json:"qListObject"`
		} `json:"qLayout"`
	}
	if err := s.call(ctx, list, "GetLayout", nil, &layout); err != nil {
		return 0, err
	}

	counts := layout.Layout.ListObject.DimensionInfo.StateCounts
	return counts.Selected + counts.Optional, nil
}

// toggle selects every value of field, one ToggleSelect per value.
func (c *Client) toggle(ctx context.Context, s *session, doc int, field string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	handle, err := s.callHandle(ctx, doc, "GetField", map[string]interface{}{"qFieldName": field})
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := s.call(ctx, handle, "ToggleSelect", map[string]interface{}{"qMatch": v, "qSoftLock": false}, nil); err != nil {
			return err
		}
	}
	return nil
}
