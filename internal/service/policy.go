package service

import "github.com/noah-isme/gema-results-api/internal/models"

// Actor identifies the authenticated caller of a workflow.
type Actor struct {
	ID   string
	Role string
}

// QuorumPolicy decides which mark statuses count toward quorum and get published.
//
// With CountApproved unset only Submitted marks are eligible, so a mark approved before
// its siblings arrive stops counting and can leave its group below quorum. Setting it
// makes Approved marks count, get stamped by the schedule gate and publish with the group.
type QuorumPolicy struct {
	CountApproved bool
}

// EligibleStatuses returns the statuses a group's marks are evaluated and published from.
func (p QuorumPolicy) EligibleStatuses() []models.MarkStatus {
	if p.CountApproved {
		return []models.MarkStatus{models.MarkStatusSubmitted, models.MarkStatusApproved}
	}
	return []models.MarkStatus{models.MarkStatusSubmitted}
}

// IsEligible reports whether a mark in the given status takes part in publication.
func (p QuorumPolicy) IsEligible(status models.MarkStatus) bool {
	for _, eligible := range p.EligibleStatuses() {
		if eligible == status {
			return true
		}
	}
	return false
}
