// Package policy decides which actors may perform which trainer application
// actions. Roles are consumed from verified claims; the package never
// authenticates credentials.
package policy

import (
	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

// Action is the closed set of guarded operations.
type Action string

const (
	ActionSubmit             Action = "submit"
	ActionList               Action = "list"
	ActionViewDetail         Action = "view_detail"
	ActionTransitionStatus   Action = "transition_status"
	ActionViewHistory        Action = "view_history"
	ActionExport             Action = "export"
	ActionViewSummary        Action = "view_summary"
	ActionDownloadAttachment Action = "download_attachment"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

// Actor is the resolved caller. A nil *Actor is anonymous.
type Actor struct {
	ID       string
	Email    string
	FullName string
	Roles    []models.UserRole
}

// ActorFromClaims converts verified token claims into an actor.
func ActorFromClaims(claims *models.JWTClaims) *Actor {
	if claims == nil || claims.UserID == "" {
		return nil
	}
	roles := make([]models.UserRole, len(claims.Roles))
	copy(roles, claims.Roles)
	return &Actor{ID: claims.UserID, Email: claims.Email, FullName: claims.FullName, Roles: roles}
}

var staffActions = []Action{
	ActionList,
	ActionViewDetail,
	ActionTransitionStatus,
	ActionViewHistory,
	ActionExport,
	ActionViewSummary,
	ActionDownloadAttachment,
}

// capabilities maps every role to the actions it may perform. Roles absent
// from the table hold no capability beyond the anonymous ones.
var capabilities = map[models.UserRole]map[Action]struct{}{
	models.RoleAdmin:       setOf(staffActions...),
	models.RoleCoordinator: setOf(staffActions...),
	models.RoleTrainer:     {},
	models.RoleParticipant: {},
}

var anonymousActions = setOf(ActionSubmit)

// hiddenOnDeny lists record-scoped actions whose denial must look like a missing record.
var hiddenOnDeny = setOf(ActionViewDetail, ActionViewHistory, ActionTransitionStatus, ActionDownloadAttachment)

func setOf(actions ...Action) map[Action]struct{} {
	set := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Guard evaluates the capability table.
type Guard struct{}

// NewGuard constructs a Guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Authorize returns Allow when any role held by actor grants action.
func (g *Guard) Authorize(actor *Actor, action Action) Decision {
	if _, ok := anonymousActions[action]; ok {
		return Allow
	}
	if actor == nil {
		return Deny
	}
	for _, role := range actor.Roles {
		if _, ok := capabilities[role][action]; ok {
			return Allow
		}
	}
	return Deny
}

// Check authorizes and converts a denial into the error returned to callers.
func (g *Guard) Check(actor *Actor, action Action) error {
	if g.Authorize(actor, action) == Allow {
		return nil
	}
	return DenyError(action)
}

// DenyError is the caller-facing error for a denied action. Record-scoped
// actions answer exactly like a missing record.
func DenyError(action Action) error {
	if _, ok := hiddenOnDeny[action]; ok {
		return appErrors.Clone(appErrors.ErrNotFound, NotFoundMessage)
	}
	return appErrors.Clone(appErrors.ErrForbidden, "insufficient role for this operation")
}

// NotFoundMessage is shared with the service so that denied and missing
// records produce byte-identical responses.
const NotFoundMessage = "trainer application not found"
