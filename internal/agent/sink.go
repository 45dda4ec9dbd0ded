package agent

import "github.com/tjfontaine/robin-backend/internal/tools"

// Sink observes a run as it happens. The non-streaming path uses Discard and
// reads the Outcome; the streaming path forwards each call to the client.
// Calls arrive from the goroutine running the loop, in order.
type Sink interface {
	// Started is called at the beginning of every attempt, including the
	// default-model retry.
	Started(model string)
	Text(delta string)
	Thought(delta string)
	ToolStarted(id int, name string)
	ToolFinished(id int, name string, result tools.Result)
}

// Discard ignores every event.
type Discard struct{}

func (Discard) Started(string)                         {}
func (Discard) Text(string)                            {}
func (Discard) Thought(string)                         {}
func (Discard) ToolStarted(int, string)                {}
func (Discard) ToolFinished(int, string, tools.Result) {}
