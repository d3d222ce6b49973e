package sync

// DocError is a per-document failure recorded during a pass.
type DocError struct {
	ID  string
	Err error
}

// Report summarizes one sync session.
type Report struct {
	Pushed  int
	Pulled  int
	Skipped int // dirty local documents protected from pull overwrite
	Errors  []DocError
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// AddError records a per-document failure.
func (r *Report) AddError(id string, err error) {
	r.Errors = append(r.Errors, DocError{ID: id, Err: err})
}

// Clean reports whether every document in the session succeeded.
func (r *Report) Clean() bool {
	return len(r.Errors) == 0
}
