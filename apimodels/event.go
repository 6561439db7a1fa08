package apimodels

// Event kinds emitted in streaming delivery mode. The set is closed: the
// assembler matches over these tags exhaustively rather than sniffing
// message text.
const (
	EventStatus        = "status"
	EventThought       = "thought"
	EventAgentStart    = "agent_start"
	EventAgentComplete = "agent_complete"
	EventError         = "error"
	EventFinal         = "final"
)

// Event is one message on the streaming channel. Only the "final" event
// carries Output; every earlier event is advisory and safely ignorable
// by a consumer that only wants the end result.
type Event struct {
	Type    string           `json:"type"`
	RunID   string           `json:"run_id,omitempty"`
	Agent   string           `json:"agent,omitempty"`
	Message string           `json:"message,omitempty"`
	Output  *ConsensusOutput `json:"output,omitempty"`
}
