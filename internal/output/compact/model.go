package compact

// TransferStatus is what the status line shows. Values are sticky: a line
// that only reports speed keeps the last known percent and sizes.
type TransferStatus struct {
	Attempt       int
	Progress      int
	HasProgress   bool
	Throughput    float64
	HasThroughput bool
	Downloaded    string
	Total         string
	Remaining     string
}

func (s TransferStatus) Known() bool {
	return s.HasProgress || s.HasThroughput || s.Total != ""
}
