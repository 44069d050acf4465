package analysisdto

// StatusDone is the only frame status that ends a live update stream.
const StatusDone = "done"

// ProgressFrame is one JSON frame of the live update channel.
// All fields are optional; status values other than "done" mean the job is still running.
type ProgressFrame struct {
	Progress *float64 `json:"progress,omitempty"`
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message,omitempty"`
}

func (f ProgressFrame) Done() bool { return f.Status == StatusDone }
