package model

const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusActive   = "active"
	StatusFailed   = "failed"
	StatusDeleting = "deleting"
	StatusDeleted  = "deleted"
)
