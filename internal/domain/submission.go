package domain

// SubmissionPath discriminates how an approve+deposit pair reached the chain.
type SubmissionPath string

const (
	// SubmissionPathBatch means both calls went out as one atomic call-set.
	// The submission reference is a batch identifier, not a transaction hash.
	SubmissionPathBatch SubmissionPath = "BATCH"

	// SubmissionPathSequential means the calls went out one by one. The
	// submission reference is the deposit call's final transaction hash.
	SubmissionPathSequential SubmissionPath = "SEQUENTIAL"
)

// SubmissionResult is the outcome of a successful on-chain submission.
// Exactly one of BatchID and TxHash is set, according to Path; confirmation
// handling branches on Path rather than inspecting the reference string.
type SubmissionResult struct {
	Path    SubmissionPath
	BatchID string // set when Path == SubmissionPathBatch
	TxHash  string // set when Path == SubmissionPathSequential
}

// TxRef returns the provisional reference recorded on the movement at
// creation time: the batch identifier or the final transaction hash.
func (r SubmissionResult) TxRef() string {
	if r.Path == SubmissionPathBatch {
		return r.BatchID
	}
	return r.TxHash
}
