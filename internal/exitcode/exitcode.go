package exitcode

const (
	Success        = 0
	RuntimeFailure = 1
	InvalidUsage   = 2
	InvalidConfig  = 3
	// LaunchFailure means the child binary stayed missing or unspawnable
	// through every launch retry.
	LaunchFailure = 4
	Interrupted   = 130
)
