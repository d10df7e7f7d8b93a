package service

import (
	"time"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

// reviewEdges lists every legal status change. Anything absent is illegal,
// including same-state requests and any move out of a terminal state.
var reviewEdges = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.ApplicationStatusPending:            {models.ApplicationStatusUnderReview, models.ApplicationStatusRejected},
	models.ApplicationStatusUnderReview:        {models.ApplicationStatusInterviewScheduled, models.ApplicationStatusRejected},
	models.ApplicationStatusInterviewScheduled: {models.ApplicationStatusApproved, models.ApplicationStatusRejected},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range reviewEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from current in one step.
func NextStatuses(current models.ApplicationStatus) []models.ApplicationStatus {
	next := reviewEdges[current]
	out := make([]models.ApplicationStatus, len(next))
	copy(out, next)
	return out
}

// TransitionRequest is the input to a single review step.
type TransitionRequest struct {
	Current    models.ApplicationStatus
	Requested  models.ApplicationStatus
	ActorID    string
	Notes      *string
	PriorNotes *string
}

// TransitionResult holds the fields a successful step writes.
type TransitionResult struct {
	From       models.ApplicationStatus
	To         models.ApplicationStatus
	ReviewerID string
	ReviewedAt time.Time
	Notes      *string
}

// ReviewWorkflow applies the review lifecycle rules.
type ReviewWorkflow struct {
	now func() time.Time
}

// NewReviewWorkflow constructs a workflow using the wall clock.
func NewReviewWorkflow() *ReviewWorkflow {
	return &ReviewWorkflow{now: time.Now}
}

// Transition validates the requested edge and stamps the reviewer. Supplied
// notes replace prior notes; absent notes keep them.
func (w *ReviewWorkflow) Transition(req TransitionRequest) (*TransitionResult, error) {
	if !CanTransition(req.Current, req.Requested) {
		return nil, appErrors.IllegalTransition(string(req.Current), string(req.Requested))
	}
	notes := req.PriorNotes
	if req.Notes != nil {
		notes = req.Notes
	}
	return &TransitionResult{
		From:       req.Current,
		To:         req.Requested,
		ReviewerID: req.ActorID,
		ReviewedAt: w.now().UTC(),
		Notes:      notes,
	}, nil
}
