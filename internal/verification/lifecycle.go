package verification

import "github.com/Rellinxe27/tacheSure-platform2-sub000/pkg/workflows"

// stepMachine holds the review transitions. Approved steps only leave
// approved through expiry, which the service applies on evaluation.
var stepMachine = workflows.NewStateMachine(map[StepStatus][]StepStatus{
	StatusPending:   {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
	StatusRejected:  {StatusPending},
	StatusApproved:  {},
})

// CanTransition reports whether a step may move from one status to another
func CanTransition(from, to StepStatus) bool {
	return stepMachine.CanTransition(from, to)
}
