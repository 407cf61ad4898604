package api

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/rcourtman/netpulse/internal/ioruntime"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, req *Request) *Response {
	return &Response{StatusCode: 200, Body: []byte(`{}`)}
}

// TestMatchBindsPathParams verifies the routing scenario from the hand-rolled
// HTTP dispatcher: "/api/hosts/:id" binds ":id" against a concrete segment,
// a differently-shaped path does not match, and a no-param route matches the
// bare collection path.
func TestMatchBindsPathParams(t *testing.T) {
	s := NewServer(nil, "")
	s.Handle("GET", "/api/hosts/:id", false, noopHandler)
	s.Handle("GET", "/api/hosts", false, noopHandler)

	route, params, ok := s.match("GET", "/api/hosts/42")
	require.True(t, ok)
	require.Equal(t, "/api/hosts/:id", route.Pattern)
	require.Equal(t, "42", params["id"])

	_, _, ok = s.match("GET", "/api/hostsXX")
	require.False(t, ok)

	route, params, ok = s.match("GET", "/api/hosts")
	require.True(t, ok)
	require.Equal(t, "/api/hosts", route.Pattern)
	require.Empty(t, params)
}

func TestDispatchReturns404ForUnmatchedRoute(t *testing.T) {
	s := NewServer(nil, "")
	resp := s.dispatch(context.Background(), &Request{Method: "GET", Path: "/nope", Query: map[string]string{}})
	require.Equal(t, 404, resp.StatusCode)
}

func TestDispatchRequiresAuthWhenApiKeySet(t *testing.T) {
	s := NewServer(nil, "secret")
	s.Handle("GET", "/api/hosts", true, noopHandler)

	resp := s.dispatch(context.Background(), &Request{Method: "GET", Path: "/api/hosts", Query: map[string]string{}, Headers: map[string]string{}})
	require.Equal(t, 401, resp.StatusCode)

	resp = s.dispatch(context.Background(), &Request{Method: "GET", Path: "/api/hosts", Query: map[string]string{}, Headers: map[string]string{"x-api-key": "secret"}})
	require.Equal(t, 200, resp.StatusCode)
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	s := NewServer(nil, "")
	s.Handle("GET", "/boom", false, func(ctx context.Context, req *Request) *Response {
		panic("kaboom")
	})
	resp := s.dispatch(context.Background(), &Request{Method: "GET", Path: "/boom", Query: map[string]string{}})
	require.Equal(t, 500, resp.StatusCode)
}

func TestDispatchOptionsShortCircuits(t *testing.T) {
	s := NewServer(nil, "")
	resp := s.dispatch(context.Background(), &Request{Method: "OPTIONS", Path: "/anything", Query: map[string]string{}})
	require.Equal(t, 204, resp.StatusCode)
}

// TestServeRoundTrip exercises the full pipeline over a real TCP connection:
// accept, parse, dispatch, write.
func TestServeRoundTrip(t *testing.T) {
	rt := ioruntime.New(2)
	defer rt.Stop()

	s := NewServer(rt, "")
	s.Handle("GET", "/api/hosts/:id", false, func(ctx context.Context, req *Request) *Response {
		return &Response{StatusCode: 200, Headers: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{"id":"` + req.PathParams["id"] + `"}`)}
	})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go s.Serve(listener)

	conn, err := net.Dial("tcp", listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET /api/hosts/42 HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "200")
}
