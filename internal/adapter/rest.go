package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// RESTAdapter drives the REST server under /api/users.
type RESTAdapter struct {
	baseURL string
	client  *http.Client
}

func NewRESTAdapter(baseURL string, timeout time.Duration) *RESTAdapter {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000

	return &RESTAdapter{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

func (a *RESTAdapter) Protocol() string { return "REST" }

func (a *RESTAdapter) Execute(ctx context.Context, operation string, p Params) (*Response, error) {
	method, path, body, err := a.buildRequest(operation, p)
	if err != nil {
		return nil, err
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, nerr := http.NewRequestWithContext(ctx, method, a.baseURL+path, rd)
	if nerr != nil {
		return nil, OpError(KindUnknown, "build request: %v", nerr)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, derr := a.client.Do(req)
	if derr != nil {
		return nil, classifyHTTPError(derr)
	}
	defer resp.Body.Close()

	data, rerr := io.ReadAll(resp.Body)
	if rerr != nil {
		return nil, OpError(KindTransport, "read body: %v", rerr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyHTTPStatus(resp.StatusCode)
	}
	return &Response{Body: data, Size: len(data)}, nil
}

func (a *RESTAdapter) buildRequest(operation string, p Params) (method, path string, body []byte, err error) {
	switch operation {
	case OpGetUser:
		return http.MethodGet, fmt.Sprintf("/api/users/%d", p.UserID), nil, nil
	case OpListUsers:
		return http.MethodGet, fmt.Sprintf("/api/users?page=%d&size=%d", p.Page, p.Size), nil, nil
	case OpCreateUser:
		body, _ = json.Marshal(newUserBody(p))
		return http.MethodPost, "/api/users", body, nil
	case OpGetUserOrders:
		return http.MethodGet, fmt.Sprintf("/api/users/%d/orders", p.UserID), nil, nil
	case OpSearchUsers:
		return http.MethodGet, "/api/users/search?query=" + url.QueryEscape(p.Query) +
			fmt.Sprintf("&limit=%d", p.Limit), nil, nil
	case OpBulkCreateUsers:
		users := make([]map[string]string, 0, p.BulkCount)
		for i := 0; i < p.BulkCount; i++ {
			users = append(users, newUserBody(p))
		}
		body, _ = json.Marshal(users)
		return http.MethodPost, "/api/users/bulk", body, nil
	default:
		return "", "", nil, OpError(KindUnknown, "unsupported operation %q", operation)
	}
}

func (a *RESTAdapter) PayloadSize(resp *Response) int {
	if resp == nil {
		return 0
	}
	return len(resp.Body)
}

// Check probes getUser once. A NotFound still proves the server is up.
func (a *RESTAdapter) Check(ctx context.Context) error {
	_, err := a.Execute(ctx, OpGetUser, Params{UserID: 1})
	var oe *OperationError
	if errors.As(err, &oe) && oe.Kind == KindNotFound {
		return nil
	}
	return err
}

func (a *RESTAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// newUserBody generates a unique user payload so repeated createUser
// calls do not collide on username/email uniqueness constraints.
func newUserBody(p Params) map[string]string {
	username := p.Username
	email := p.Email
	if username == "" {
		id := uuid.NewString()[:8]
		username = "bench_" + id
		email = "bench_" + id + "@apibench.local"
	}
	first := p.FirstName
	if first == "" {
		first = "Bench"
	}
	last := p.LastName
	if last == "" {
		last = "User"
	}
	return map[string]string{
		"username":  username,
		"email":     email,
		"firstName": first,
		"lastName":  last,
	}
}

func classifyHTTPStatus(code int) *OperationError {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return OpError(KindUnauthorized, "HTTP %d", code)
	case code == http.StatusNotFound:
		return OpError(KindNotFound, "HTTP %d", code)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return OpError(KindTimeout, "HTTP %d", code)
	case code >= 500:
		return OpError(KindTransport, "HTTP %d", code)
	default:
		return OpError(KindUnknown, "HTTP %d", code)
	}
}

func classifyHTTPError(err error) *OperationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return OpError(KindTimeout, "request timeout")
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return OpError(KindTimeout, "request timeout")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return OpError(KindTimeout, "request timeout")
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return OpError(KindTransport, "%v", err)
	}
	if errors.As(err, &ue) {
		return OpError(KindTransport, "%v", ue.Err)
	}
	return OpError(KindUnknown, "%v", err)
}
