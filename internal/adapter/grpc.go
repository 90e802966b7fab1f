package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const grpcServicePath = "/apitest.UserService/"

// jsonCodec lets us call UserService without committing generated
// stubs: messages travel as JSON under the "json" content-subtype and
// payload size is the encoded message length, the same measure the
// original client took from ByteSize().
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// GRPCAdapter drives apitest.UserService over a single shared client
// connection. grpc-go multiplexes concurrent calls over it, so the
// adapter is safe at any worker count.
type GRPCAdapter struct {
	target  string
	timeout time.Duration
	conn    *grpc.ClientConn
}

func NewGRPCAdapter(target string, timeout time.Duration) (*GRPCAdapter, error) {
	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype("json"),
			grpc.MaxCallRecvMsgSize(50*1024*1024),
			grpc.MaxCallSendMsgSize(50*1024*1024),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc client for %s: %w", target, err)
	}
	return &GRPCAdapter{target: target, timeout: timeout, conn: conn}, nil
}

func (a *GRPCAdapter) Protocol() string { return "gRPC" }

type grpcUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `json:"is_active"`
}

type grpcOrder struct {
	ID          int64   `json:"id"`
	TotalAmount float64 `json:"total_amount"`
	Status      string  `json:"status"`
	Items       []struct {
		ProductName string  `json:"product_name"`
		Quantity    int32   `json:"quantity"`
		UnitPrice   float64 `json:"unit_price"`
	} `json:"items"`
}

type getUserRequest struct {
	UserID int64 `json:"user_id"`
}

type userResponse struct {
	User *grpcUser `json:"user"`
}

type listUsersRequest struct {
	Page int32 `json:"page"`
	Size int32 `json:"size"`
}

type listUsersResponse struct {
	Users         []grpcUser `json:"users"`
	TotalElements int64      `json:"total_elements"`
	TotalPages    int32      `json:"total_pages"`
	CurrentPage   int32      `json:"current_page"`
}

type createUserRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type getUserOrdersRequest struct {
	UserID int64 `json:"user_id"`
}

type getUserOrdersResponse struct {
	Orders []grpcOrder `json:"orders"`
}

type searchUsersRequest struct {
	Query string `json:"query"`
	Limit int32  `json:"limit"`
}

type searchUsersResponse struct {
	Users []grpcUser `json:"users"`
}

type bulkCreateUsersRequest struct {
	Users []createUserRequest `json:"users"`
}

type bulkCreateUsersResponse struct {
	Users []grpcUser `json:"users"`
}

func (a *GRPCAdapter) Execute(ctx context.Context, operation string, p Params) (*Response, error) {
	method, req, reply, err := a.buildCall(operation, p)
	if err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	if ierr := a.conn.Invoke(ctx, method, req, reply); ierr != nil {
		return nil, classifyGRPCError(ierr)
	}

	// Re-encode the reply to measure the wire payload.
	body, merr := json.Marshal(reply)
	if merr != nil {
		return nil, OpError(KindUnknown, "encode reply: %v", merr)
	}
	return &Response{Body: body, Size: len(body)}, nil
}

func (a *GRPCAdapter) buildCall(operation string, p Params) (method string, req, reply any, err error) {
	switch operation {
	case OpGetUser:
		return grpcServicePath + "GetUser", &getUserRequest{UserID: p.UserID}, &userResponse{}, nil
	case OpListUsers:
		return grpcServicePath + "ListUsers", &listUsersRequest{Page: int32(p.Page), Size: int32(p.Size)}, &listUsersResponse{}, nil
	case OpCreateUser:
		return grpcServicePath + "CreateUser", newCreateUserRequest(p), &userResponse{}, nil
	case OpGetUserOrders:
		return grpcServicePath + "GetUserOrders", &getUserOrdersRequest{UserID: p.UserID}, &getUserOrdersResponse{}, nil
	case OpSearchUsers:
		return grpcServicePath + "SearchUsers", &searchUsersRequest{Query: p.Query, Limit: int32(p.Limit)}, &searchUsersResponse{}, nil
	case OpBulkCreateUsers:
		bulk := &bulkCreateUsersRequest{}
		for i := 0; i < p.BulkCount; i++ {
			bulk.Users = append(bulk.Users, *newCreateUserRequest(p))
		}
		return grpcServicePath + "BulkCreateUsers", bulk, &bulkCreateUsersResponse{}, nil
	default:
		return "", nil, nil, OpError(KindUnknown, "unsupported operation %q", operation)
	}
}

func newCreateUserRequest(p Params) *createUserRequest {
	u := newUserBody(p)
	return &createUserRequest{
		Username:  u["username"],
		Email:     u["email"],
		FirstName: u["firstName"],
		LastName:  u["lastName"],
	}
}

func (a *GRPCAdapter) PayloadSize(resp *Response) int {
	if resp == nil {
		return 0
	}
	return len(resp.Body)
}

// Check probes GetUser once; NotFound still means the server answered.
func (a *GRPCAdapter) Check(ctx context.Context) error {
	_, err := a.Execute(ctx, OpGetUser, Params{UserID: 1})
	var oe *OperationError
	if errors.As(err, &oe) && oe.Kind == KindNotFound {
		return nil
	}
	return err
}

func (a *GRPCAdapter) Close() error {
	return a.conn.Close()
}

func classifyGRPCError(err error) *OperationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return OpError(KindTimeout, "request timeout")
	}
	st, ok := status.FromError(err)
	if !ok {
		return OpError(KindUnknown, "%v", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return OpError(KindNotFound, "%s", st.Message())
	case codes.Unauthenticated, codes.PermissionDenied:
		return OpError(KindUnauthorized, "%s", st.Message())
	case codes.DeadlineExceeded:
		return OpError(KindTimeout, "%s", st.Message())
	case codes.Unavailable, codes.Canceled:
		return OpError(KindTransport, "%s", st.Message())
	default:
		return OpError(KindUnknown, "%s: %s", st.Code(), st.Message())
	}
}
