package analysisdto

// SubmitResponse is returned by the submission endpoint.
type SubmitResponse struct {
	SessionID string `json:"session_id"`
}

// ResultPayload is returned by the result endpoint once the job is finished.
// The server answers {"status":"working"} while results are not written yet.
type ResultPayload struct {
	Moves  []string `json:"moves,omitempty"`
	PGN    *string  `json:"pgn,omitempty"`
	Status string   `json:"status,omitempty"`
}

// Ready reports whether the payload carries a result rather than a not-ready marker.
func (r *ResultPayload) Ready() bool {
	if r == nil {
		return false
	}
	if r.PGN != nil || r.Moves != nil {
		return true
	}
	return r.Status == "" || r.Status == StatusDone
}
