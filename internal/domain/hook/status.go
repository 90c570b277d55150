package hook

// Status is the outcome of calling one handler
type Status string

const (
	// StatusOK means the handler ran and contributed a value (or, in an
	// alter chain, ran without error)
	StatusOK Status = "ok"
	// StatusAbsent means the handler had nothing to contribute: no bound
	// method, or a nil result
	StatusAbsent Status = "absent"
	// StatusFailed means construction or the call itself failed
	StatusFailed Status = "failed"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
