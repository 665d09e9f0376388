// Package mcp serves templates, cache entries and usage to MCP clients over
// newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/pario-ai/promptlab/pkg/budget"
	"github.com/pario-ai/promptlab/pkg/cache"
	"github.com/pario-ai/promptlab/pkg/prompts"
	"github.com/pario-ai/promptlab/pkg/tracker"
)

// Server answers MCP requests from the stores it was given. Tracker and
// enforcer may be nil.
type Server struct {
	prompts  prompts.Store
	cache    cache.Store
	tracker  tracker.Tracker
	enforcer *budget.Enforcer
	log      zerolog.Logger
	version  string
}

// New creates a Server.
func New(p prompts.Store, c cache.Store, t tracker.Tracker, e *budget.Enforcer, log zerolog.Logger, version string) *Server {
	return &Server{
		prompts:  p,
		cache:    c,
		tracker:  t,
		enforcer: e,
		log:      log,
		version:  version,
	}
}

// Run reads requests from r one per line and writes responses to w until r
// is exhausted or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			s.write(w, Response{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: CodeParseError, Message: "parse error"},
			})
			continue
		}

		if resp := s.dispatch(ctx, &req); resp != nil {
			s.write(w, *resp)
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	s.log.Debug().Str("method", req.Method).Msg("mcp request")
	// Notifications carry no id and never get a response.
	if len(req.ID) == 0 {
		return nil
	}
	switch req.Method {
	case "initialize":
		return reply(req, InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "promptlab", Version: s.version},
			Capabilities:    map[string]any{"tools": map[string]any{}},
		})
	case "tools/list":
		return reply(req, ToolsListResult{Tools: toolDefinitions()})
	case "tools/call":
		var params ToolCallParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error:   &RPCError{Code: CodeInvalidParams, Message: "invalid params"},
			}
		}
		return reply(req, s.callTool(ctx, params))
	default:
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func (s *Server) callTool(ctx context.Context, params ToolCallParams) ToolCallResult {
	for _, t := range tools {
		if t.def.Name != params.Name {
			continue
		}
		res, err := t.handle(ctx, s, params.Arguments)
		if err != nil {
			s.log.Debug().Err(err).Str("tool", params.Name).Msg("mcp tool failed")
			return errorResult(err.Error())
		}
		return textResult(res)
	}
	return errorResult("unknown tool: " + params.Name)
}

func reply(req *Request, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) write(w io.Writer, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error().Err(err).Msg("mcp marshal failed")
		return
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.log.Error().Err(err).Msg("mcp write failed")
	}
}
