package domain

const StatusComplete = "complete"

// StreamEvent is one frame of relay progress sent to the client.
type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ContentEvent(text string) StreamEvent { return StreamEvent{Content: text} }

func CompleteEvent() StreamEvent { return StreamEvent{Status: StatusComplete} }

func ErrorEvent(err error) StreamEvent { return StreamEvent{Error: err.Error()} }

// Terminal reports whether the event ends a stream.
func (e StreamEvent) Terminal() bool {
	return e.Status == StatusComplete || e.Error != ""
}
