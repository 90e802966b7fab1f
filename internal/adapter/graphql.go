package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// GraphQLAdapter posts queries and mutations to a single /graphql
// endpoint. Every operation maps to one document with variables; the
// response body length is the payload size, matching how the REST
// adapter measures its JSON bodies.
type GraphQLAdapter struct {
	endpoint string
	client   *http.Client
}

func NewGraphQLAdapter(endpoint string, timeout time.Duration) *GraphQLAdapter {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000

	return &GraphQLAdapter{
		endpoint: endpoint,
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
	}
}

func (a *GraphQLAdapter) Protocol() string { return "GraphQL" }

const (
	docGetUser = `query($id: ID!) { user(id: $id) { id username email firstName lastName isActive } }`

	docListUsers = `query($page: Int, $size: Int) { listUsers(page: $page, size: $size) {
  users { id username email } totalElements totalPages currentPage } }`

	docUserOrders = `query($userId: ID!) { userOrders(userId: $userId) {
  id totalAmount status items { productName quantity unitPrice } } }`

	docSearchUsers = `query($query: String!, $limit: Int) { searchUsers(query: $query, limit: $limit) {
  id username email } }`

	docCreateUser = `mutation($input: CreateUserInput!) { createUser(input: $input) {
  id username email firstName lastName } }`

	docBulkCreate = `mutation($inputs: [CreateUserInput!]!) { bulkCreateUsers(inputs: $inputs) {
  id username email } }`
)

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (a *GraphQLAdapter) Execute(ctx context.Context, operation string, p Params) (*Response, error) {
	greq, err := a.buildDocument(operation, p)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(greq)
	req, nerr := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if nerr != nil {
		return nil, OpError(KindUnknown, "build request: %v", nerr)
	}
	req.Header.Set("Content-Type", "application/json")

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

	// GraphQL transports errors in-band over HTTP 200.
	var parsed graphqlResponse
	if jerr := json.Unmarshal(data, &parsed); jerr != nil {
		return nil, OpError(KindUnknown, "malformed graphql response: %v", jerr)
	}
	if len(parsed.Errors) > 0 {
		return nil, classifyGraphQLError(parsed.Errors[0].Message)
	}
	return &Response{Body: data, Size: len(data)}, nil
}

func (a *GraphQLAdapter) buildDocument(operation string, p Params) (*graphqlRequest, error) {
	switch operation {
	case OpGetUser:
		return &graphqlRequest{Query: docGetUser, Variables: map[string]any{"id": p.UserID}}, nil
	case OpListUsers:
		return &graphqlRequest{Query: docListUsers, Variables: map[string]any{"page": p.Page, "size": p.Size}}, nil
	case OpCreateUser:
		return &graphqlRequest{Query: docCreateUser, Variables: map[string]any{"input": newUserBody(p)}}, nil
	case OpGetUserOrders:
		return &graphqlRequest{Query: docUserOrders, Variables: map[string]any{"userId": p.UserID}}, nil
	case OpSearchUsers:
		return &graphqlRequest{Query: docSearchUsers, Variables: map[string]any{"query": p.Query, "limit": p.Limit}}, nil
	case OpBulkCreateUsers:
		inputs := make([]map[string]string, 0, p.BulkCount)
		for i := 0; i < p.BulkCount; i++ {
			inputs = append(inputs, newUserBody(p))
		}
		return &graphqlRequest{Query: docBulkCreate, Variables: map[string]any{"inputs": inputs}}, nil
	default:
		return nil, OpError(KindUnknown, "unsupported operation %q", operation)
	}
}

func (a *GraphQLAdapter) PayloadSize(resp *Response) int {
	if resp == nil {
		return 0
	}
	return len(resp.Body)
}

func (a *GraphQLAdapter) Check(ctx context.Context) error {
	err := a.checkExecute(ctx)
	var oe *OperationError
	if errors.As(err, &oe) && oe.Kind == KindNotFound {
		return nil
	}
	return err
}

func (a *GraphQLAdapter) checkExecute(ctx context.Context) error {
	_, err := a.Execute(ctx, OpGetUser, Params{UserID: 1})
	return err
}

func (a *GraphQLAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func classifyGraphQLError(msg string) *OperationError {
	switch {
	case containsFold(msg, "not found"):
		return OpError(KindNotFound, "%s", msg)
	case containsFold(msg, "unauthorized"), containsFold(msg, "forbidden"):
		return OpError(KindUnauthorized, "%s", msg)
	default:
		return OpError(KindUnknown, "%s", msg)
	}
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), sub)
}
