package assistant

import "context"

// ToolAction is the tagged set of tool invocations the assistant can
// request. Tool names coming off the wire are parsed into this enum
// once, at the backend boundary; the core never string-matches.
type ToolAction int

const (
	ToolActionUnknown ToolAction = iota
	ToolActionEscalate
)

// toolNameEscalate is the function name the assistant is configured
// with for handing a conversation to a human.
const toolNameEscalate = "connect_to_an_agent"

// ParseToolAction maps a wire-level tool name to its action.
func ParseToolAction(name string) ToolAction {
	switch name {
	case toolNameEscalate:
		return ToolActionEscalate
	default:
		return ToolActionUnknown
	}
}

// String returns the wire name of the action.
func (a ToolAction) String() string {
	switch a {
	case ToolActionEscalate:
		return toolNameEscalate
	default:
		return "unknown"
	}
}

// ToolRequest is a tool invocation surfaced mid-run.
type ToolRequest struct {
	Action ToolAction
	CallID string
}

// ToolOutcome is the acknowledgment the core sends back through the
// bridge so the run can continue.
type ToolOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ToolHandler processes a tool request synchronously. The bridge will
// not produce further output for the turn until the outcome has been
// submitted.
type ToolHandler func(ToolRequest) ToolOutcome

// Bridge is the opaque AI completion capability. It accepts a user turn
// for a thread and eventually yields a terminal reply or an error,
// surfacing tool requests to the handler along the way.
type Bridge interface {
	CreateThread(ctx context.Context) (string, error)
	SubmitTurn(ctx context.Context, threadID, question string, onTool ToolHandler) (string, error)
}
