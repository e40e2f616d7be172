package mcp

import (
	"context"
	"encoding/json"
	"errors"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pywiz/internal/audit"
	"github.com/ppiankov/pywiz/internal/budget"
	"github.com/ppiankov/pywiz/internal/lang"
	"github.com/ppiankov/pywiz/internal/server"
	"github.com/ppiankov/pywiz/internal/tracer"
)

// --- Input/Output types ---

// TraceInput defines parameters for the pywiz_trace tool.
type TraceInput struct {
	Code     string `json:"code" jsonschema:"program source"`
	Filename string `json:"filename,omitempty" jsonschema:"label for the source, default <user_code>"`
}

// TraceOutput is the trace document or the reason there is none.
type TraceOutput struct {
	RequestID string         `json:"request_id,omitempty"`
	Outcome   string         `json:"outcome"`
	Document  map[string]any `json:"document,omitempty"`
	Error     *ErrorInfo     `json:"error,omitempty"`
}

// ErrorInfo describes a compile error or a stopped trace.
type ErrorInfo struct {
	Message   string `json:"message"`
	Line      int    `json:"line,omitempty"`
	Col       int    `json:"col,omitempty"`
	Dimension string `json:"dimension,omitempty"`
}

// StateInput defines parameters for the pywiz_state tool.
type StateInput struct {
	Code string `json:"code" jsonschema:"program source"`
	Step int    `json:"step" jsonschema:"1-based event step to stop at; 0 or past the end means the last step"`
}

// StateOutput is the program state after one step.
type StateOutput struct {
	Step   int            `json:"step"`
	Steps  int            `json:"steps"`
	Event  map[string]any `json:"event,omitempty"`
	Stdout string         `json:"stdout"`
	Stack  []FrameItem    `json:"stack"`
	Error  *ErrorInfo     `json:"error,omitempty"`
}

// FrameItem describes one frame on the reconstructed stack.
type FrameItem struct {
	FID    int            `json:"fid"`
	Func   string         `json:"func"`
	Line   int            `json:"line"`
	Depth  int            `json:"depth"`
	Locals map[string]any `json:"locals"`
}

// SummaryInput defines parameters for the pywiz_summary tool.
type SummaryInput struct {
	Code string `json:"code" jsonschema:"program source"`
}

// SummaryOutput counts the events of a trace.
type SummaryOutput struct {
	Outcome     string     `json:"outcome"`
	Events      int        `json:"events"`
	Calls       int        `json:"calls"`
	Lines       int        `json:"lines"`
	Returns     int        `json:"returns"`
	Exceptions  int        `json:"exceptions"`
	Frames      int        `json:"frames"`
	MaxDepth    int        `json:"max_depth"`
	OutputBytes int        `json:"output_bytes"`
	Error       *ErrorInfo `json:"error,omitempty"`
}

// --- Handlers ---

// run traces code. A nil run means the program did not compile; info is
// set whenever the trace is incomplete.
func (s *Server) run(ctx context.Context, filename, code string) (*server.Run, *ErrorInfo, error) {
	run, err := s.traces.RunTrace(ctx, server.Request{Transport: "mcp", Filename: filename, Code: code})
	if err == nil {
		return run, nil, nil
	}

	var ce *lang.CompileError
	var ee *budget.ExceededError
	switch {
	case errors.As(err, &ce):
		return nil, &ErrorInfo{Message: ce.Error(), Line: ce.Line, Col: ce.Col}, nil
	case errors.As(err, &ee):
		return run, &ErrorInfo{Message: ee.Error(), Dimension: ee.Result.Dimension}, nil
	}
	return nil, nil, err
}

func (s *Server) handleTrace(ctx context.Context, req *mcpsdk.CallToolRequest, input TraceInput) (*mcpsdk.CallToolResult, TraceOutput, error) {
	run, info, err := s.run(ctx, input.Filename, input.Code)
	if err != nil {
		return nil, TraceOutput{}, err
	}
	if run == nil {
		return &mcpsdk.CallToolResult{IsError: true}, TraceOutput{Outcome: audit.OutcomeCompileError, Error: info}, nil
	}

	doc, err := documentMap(run.Result)
	if err != nil {
		return nil, TraceOutput{}, err
	}
	out := TraceOutput{
		RequestID: run.RequestID,
		Outcome:   run.Outcome,
		Document:  doc,
		Error:     info,
	}
	if info != nil {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleState(ctx context.Context, req *mcpsdk.CallToolRequest, input StateInput) (*mcpsdk.CallToolResult, StateOutput, error) {
	run, info, err := s.run(ctx, "", input.Code)
	if err != nil {
		return nil, StateOutput{}, err
	}
	if run == nil {
		return &mcpsdk.CallToolResult{IsError: true}, StateOutput{Stack: []FrameItem{}, Error: info}, nil
	}

	events := run.Result.Trace
	idx := len(events) - 1
	if input.Step > 0 && input.Step <= len(events) {
		idx = input.Step - 1
	}
	st := tracer.ReconstructState(events, idx)

	out := StateOutput{
		Steps:  len(events),
		Stdout: st.Stdout,
		Stack:  []FrameItem{},
		Error:  info,
	}
	if st.Last != nil {
		out.Step = st.Last.Step
		out.Event = st.Last.Map()
	}
	for _, f := range st.Stack() {
		out.Stack = append(out.Stack, FrameItem{
			FID:    f.FID,
			Func:   f.Func,
			Line:   f.Line,
			Depth:  f.Depth,
			Locals: f.Locals.Map(),
		})
	}
	return nil, out, nil
}

func (s *Server) handleSummary(ctx context.Context, req *mcpsdk.CallToolRequest, input SummaryInput) (*mcpsdk.CallToolResult, SummaryOutput, error) {
	run, info, err := s.run(ctx, "", input.Code)
	if err != nil {
		return nil, SummaryOutput{}, err
	}
	if run == nil {
		return &mcpsdk.CallToolResult{IsError: true}, SummaryOutput{Outcome: audit.OutcomeCompileError, Error: info}, nil
	}

	sum := tracer.Summarize(run.Result)
	return nil, SummaryOutput{
		Outcome:     run.Outcome,
		Events:      sum.Events,
		Calls:       sum.Calls,
		Lines:       sum.Lines,
		Returns:     sum.Returns,
		Exceptions:  sum.Exceptions,
		Frames:      sum.Frames,
		MaxDepth:    sum.MaxDepth,
		OutputBytes: sum.OutputBytes,
		Error:       info,
	}, nil
}

// documentMap renders a result as the plain map MCP structured content needs.
func documentMap(res tracer.Result) (map[string]any, error) {
	data, err := res.JSON("")
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
