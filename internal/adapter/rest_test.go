package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("id") {
		case "401":
			w.WriteHeader(http.StatusUnauthorized)
		case "404":
			w.WriteHeader(http.StatusNotFound)
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":1,"username":"user1","email":"user1@example.com"}`))
		}
	})
	mux.HandleFunc("POST /api/users", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotEmpty(t, body["username"])
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":10001}`))
	})
	mux.HandleFunc("GET /api/users/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user", r.URL.Query().Get("query"))
		w.Write([]byte(`[]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRESTAdapter_Success(t *testing.T) {
	srv := restServer(t)
	ad := NewRESTAdapter(srv.URL, 5*time.Second)
	defer ad.Close()

	resp, err := ad.Execute(context.Background(), OpGetUser, Params{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, len(resp.Body), resp.Size)
	assert.Equal(t, resp.Size, ad.PayloadSize(resp))
	assert.Greater(t, resp.Size, 0)
}

func TestRESTAdapter_ErrorKinds(t *testing.T) {
	srv := restServer(t)
	ad := NewRESTAdapter(srv.URL, 5*time.Second)
	defer ad.Close()

	tests := []struct {
		userID int64
		kind   ErrorKind
	}{
		{401, KindUnauthorized},
		{404, KindNotFound},
		{500, KindTransport},
	}
	for _, tt := range tests {
		_, err := ad.Execute(context.Background(), OpGetUser, Params{UserID: tt.userID})
		require.Error(t, err)
		var oe *OperationError
		require.ErrorAs(t, err, &oe)
		assert.Equal(t, tt.kind, oe.Kind, "user %d", tt.userID)
	}
}

func TestRESTAdapter_Timeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer slow.Close()

	ad := NewRESTAdapter(slow.URL, 5*time.Second)
	defer ad.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ad.Execute(ctx, OpGetUser, Params{UserID: 1})
	require.Error(t, err)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindTimeout, oe.Kind)
}

func TestRESTAdapter_Unreachable(t *testing.T) {
	ad := NewRESTAdapter("http://127.0.0.1:1", time.Second)
	defer ad.Close()

	_, err := ad.Execute(context.Background(), OpGetUser, Params{UserID: 1})
	require.Error(t, err)
	var oe *OperationError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindTransport, oe.Kind)
}

func TestRESTAdapter_CheckTreatsNotFoundAsUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ad := NewRESTAdapter(srv.URL, time.Second)
	defer ad.Close()

	assert.NoError(t, ad.Check(context.Background()))
}

func TestRESTAdapter_CreateAndSearch(t *testing.T) {
	srv := restServer(t)
	ad := NewRESTAdapter(srv.URL, 5*time.Second)
	defer ad.Close()

	_, err := ad.Execute(context.Background(), OpCreateUser, Params{})
	require.NoError(t, err)

	_, err = ad.Execute(context.Background(), OpSearchUsers, Params{Query: "user", Limit: 10})
	require.NoError(t, err)
}
