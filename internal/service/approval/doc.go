// Package approval implements the campaign approval state machine.
//
// A campaign is submitted as pending and moves exactly once, to approved
// or rejected. Approval and the fan-out into queue items commit together,
// so an approved campaign always has its items and a failed enqueue
// leaves the campaign pending.
//
// Repository implementations live in repository/postgres/.
package approval
