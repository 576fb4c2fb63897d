package branches

// Event is a domain occurrence the core hands back as a value. The core never
// publishes anywhere itself; callers drain the events into their audit or
// messaging channels after the operation commits.
type Event interface {
	EventName() string
}

// BranchCreatedEvent records a successful copy-on-write branch creation.
type BranchCreatedEvent struct {
	Branch           Branch
	SourceBranchID   string
	SourceBranchName string
	ActorID          string
	CopiedKeys       int
}

// EventName identifies the event for audit channels.
func (BranchCreatedEvent) EventName() string {
	return "branch.created"
}

// BranchMergedEvent records a committed merge into a target branch.
type BranchMergedEvent struct {
	SourceBranchID   string
	SourceBranchName string
	TargetBranchID   string
	TargetBranchName string
	SpaceID          string
	ActorID          string
	MergedKeys       int
}

// EventName identifies the event for audit channels.
func (BranchMergedEvent) EventName() string {
	return "branch.merged"
}

// BranchDeletedEvent records a branch deletion.
type BranchDeletedEvent struct {
	BranchID   string
	BranchName string
	SpaceID    string
	ActorID    string
}

// EventName identifies the event for audit channels.
func (BranchDeletedEvent) EventName() string {
	return "branch.deleted"
}
