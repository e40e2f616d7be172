package tracer

import (
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ppiankov/pywiz/internal/interp"
)

// DefaultFilename labels traced source in results.
const DefaultFilename = "<user_code>"

// Result is the transport document: {filename, code, trace}.
type Result struct {
	Filename string  `json:"filename"`
	Code     string  `json:"code"`
	Trace    []Event `json:"trace"`

	// Uncaught is the exception that ended the program, if any.
	Uncaught *interp.Exception `json:"-"`
}

// Serialize packages a finished event log. The log is copied, so later
// changes to events do not reach the result.
func Serialize(label, code string, events []Event) Result {
	trace := make([]Event, len(events))
	copy(trace, events)
	return Result{Filename: label, Code: code, Trace: trace}
}

// JSON renders the document. A non-empty indent pretty-prints it.
func (r Result) JSON(indent string) ([]byte, error) {
	return encodeIndent(r, indent)
}

// ToStruct converts the document into a protobuf Struct whose trace is a
// list of event maps.
func (r Result) ToStruct() (*structpb.Struct, error) {
	trace := make([]any, len(r.Trace))
	for i, e := range r.Trace {
		trace[i] = e.Map()
	}
	s, err := structpb.NewStruct(map[string]any{
		"filename": r.Filename,
		"code":     r.Code,
		"trace":    trace,
	})
	if err != nil {
		return nil, fmt.Errorf("convert trace to struct: %w", err)
	}
	return s, nil
}

// FromStruct rebuilds a document from its protobuf form. Object key order
// is not preserved by Struct.
func FromStruct(s *structpb.Struct) (Result, error) {
	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return Result{}, err
	}
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return Result{}, fmt.Errorf("decode trace struct: %w", err)
	}
	return r, nil
}

// ReadResult decodes a JSON document.
func ReadResult(rd io.Reader) (Result, error) {
	var r Result
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return Result{}, fmt.Errorf("decode trace: %w", err)
	}
	return r, nil
}
