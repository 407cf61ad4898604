// Package api implements the hand-rolled HTTP/1.1 pipeline described in
// spec §4.11: own listener, own header/body parsing, one connection per
// request, JSON request/response bodies.
package api

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/rcourtman/netpulse/internal/ioruntime"
)

// Request is a parsed HTTP/1.1 request.
type Request struct {
	Method      string
	Path        string
	Query       map[string]string
	Headers     map[string]string // lowercase keys
	Body        []byte
	PathParams  map[string]string
}

// Response is what a handler populates; the server serializes it back to
// the wire exactly as spec §4.11 step 7 describes.
type Response struct {
	StatusCode int
	StatusText string
	Headers    map[string]string
	Body       []byte
}

// Handler processes one matched request.
type Handler func(ctx context.Context, req *Request) *Response

// Route is one entry in the route table.
type Route struct {
	Method      string
	Pattern     string
	RequireAuth bool
	Handler     Handler
}

// Server owns the route table, the listener accept loop (via the I/O
// Runtime), and authentication.
type Server struct {
	rt             *ioruntime.Runtime
	routes         []Route
	apiKey         string
	allowedOrigins []string
}

func NewServer(rt *ioruntime.Runtime, apiKey string) *Server {
	return &Server{rt: rt, apiKey: apiKey, allowedOrigins: []string{"*"}}
}

// SetAllowedOrigins replaces the wildcard Origin allow-list checked on every
// response; the zero value ("*") allows any origin.
func (s *Server) SetAllowedOrigins(patterns []string) {
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	s.allowedOrigins = patterns
}

// originAllowed reports whether origin matches any configured wildcard
// pattern (e.g. "*.example.com"); an empty origin (same-origin or non-browser
// client) is always allowed.
func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, pattern := range s.allowedOrigins {
		if wildcard.Match(pattern, origin) {
			return true
		}
	}
	return false
}

// Handle registers a route. Routes are matched in registration order; the
// first match wins.
func (s *Server) Handle(method, pattern string, requireAuth bool, h Handler) {
	s.routes = append(s.routes, Route{Method: method, Pattern: pattern, RequireAuth: requireAuth, Handler: h})
}

// Serve accepts connections on listener and dispatches each to a worker
// via the runtime's AcceptLoop, per spec §9's listed suspension point
// "HTTP read-until-delimiter and read-body".
func (s *Server) Serve(listener net.Listener) {
	s.rt.AcceptLoop(listener, s.handleConn)
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := parseRequest(bufio.NewReader(conn))
	if err != nil {
		writeResponse(conn, &Response{StatusCode: 400, StatusText: "Bad Request", Body: jsonError("malformed request", 400)})
		return
	}

	resp := s.dispatch(context.Background(), req)
	applyCORSHeaders(resp, req.Headers["origin"], s.originAllowed(req.Headers["origin"]))
	writeResponse(conn, resp)
}

func applyCORSHeaders(resp *Response, origin string, allowed bool) {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	switch {
	case origin != "" && allowed:
		resp.Headers["Access-Control-Allow-Origin"] = origin
		resp.Headers["Vary"] = "Origin"
	case origin == "":
		resp.Headers["Access-Control-Allow-Origin"] = "*"
	}
	resp.Headers["Access-Control-Allow-Methods"] = "GET, POST, PUT, DELETE, OPTIONS"
	resp.Headers["Access-Control-Allow-Headers"] = "Content-Type, Authorization, X-API-Key"
}

func (s *Server) dispatch(ctx context.Context, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = &Response{StatusCode: 500, StatusText: "Internal Server Error", Body: jsonError("Internal server error", 500)}
		}
	}()

	if req.Method == "OPTIONS" {
		return &Response{StatusCode: 204, StatusText: "No Content", Headers: map[string]string{}}
	}

	route, params, ok := s.match(req.Method, req.Path)
	if !ok {
		return &Response{StatusCode: 404, StatusText: "Not Found", Body: jsonError("not found", 404)}
	}
	req.PathParams = params

	if route.RequireAuth && s.apiKey != "" && !authorized(req, s.apiKey) {
		return &Response{StatusCode: 401, StatusText: "Unauthorized", Body: jsonError("unauthorized", 401)}
	}

	return route.Handler(ctx, req)
}

// match finds the first registered route whose method and pattern match
// req, binding :name segments into pathParams (spec §9 S5: patterns and
// paths must have the same number of non-empty segments).
func (s *Server) match(method, path string) (Route, map[string]string, bool) {
	pathSegs := segments(path)
	for _, r := range s.routes {
		if r.Method != method {
			continue
		}
		patternSegs := segments(r.Pattern)
		if len(patternSegs) != len(pathSegs) {
			continue
		}
		params := map[string]string{}
		matched := true
		for i, ps := range patternSegs {
			if strings.HasPrefix(ps, ":") {
				params[ps[1:]] = pathSegs[i]
				continue
			}
			if ps != pathSegs[i] {
				matched = false
				break
			}
		}
		if matched {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

func segments(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func authorized(req *Request, apiKey string) bool {
	if key, ok := req.Headers["x-api-key"]; ok && key == apiKey {
		return true
	}
	if auth, ok := req.Headers["authorization"]; ok && strings.HasPrefix(auth, "Bearer ") {
		if strings.TrimPrefix(auth, "Bearer ") == apiKey {
			return true
		}
	}
	if req.Query["api_key"] == apiKey {
		return true
	}
	return false
}

func jsonError(msg string, status int) []byte {
	return []byte(fmt.Sprintf(`{"error":%q,"status":%d}`, msg, status))
}

func writeResponse(conn net.Conn, resp *Response) {
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Content-Length"] = strconv.Itoa(len(resp.Body))
	resp.Headers["Connection"] = "close"

	var b strings.Builder
	statusText := resp.StatusText
	if statusText == "" {
		statusText = statusTextFor(resp.StatusCode)
	}
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", resp.StatusCode, statusText)

	keys := make([]string, 0, len(resp.Headers))
	for k := range resp.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, resp.Headers[k])
	}
	b.WriteString("\r\n")

	conn.Write([]byte(b.String()))
	if len(resp.Body) > 0 {
		conn.Write(resp.Body)
	}
}

func statusTextFor(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "OK"
	}
}
