package domain

import "strings"

type Role string

const (
	RoleCashier    Role = "cashier"
	RoleDesigner   Role = "designer"
	RoleOperator   Role = "operator"
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleOwner      Role = "owner"
	RoleCEO        Role = "ceo"
)

// Actor is the user on whose behalf a command runs
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Action names a privileged command checked through an AuthorizeFunc
type Action string

const (
	ActionSetBalance         Action = "set_balance"
	ActionWriteOffReceivable Action = "write_off_receivable"
	ActionDeleteAdvance      Action = "delete_advance"
	ActionDeleteExpense      Action = "delete_expense"
)

// AuthorizeFunc decides whether actor may perform action
type AuthorizeFunc func(actor Actor, action Action) bool

var defaultPolicy = map[Action][]Role{
	ActionSetBalance:         {RoleAdmin, RoleOwner},
	ActionWriteOffReceivable: {RoleOwner},
	ActionDeleteAdvance:      {RoleAdmin, RoleOwner},
	ActionDeleteExpense:      {RoleAdmin, RoleOwner},
}

// DefaultAuthorizer grants privileged actions by role. Actions it does not
// know are allowed.
func DefaultAuthorizer(actor Actor, action Action) bool {
	roles, ok := defaultPolicy[action]
	if !ok {
		return true
	}
	role := Role(strings.ToLower(string(actor.Role)))
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// ValidateActor rejects commands without an identified actor
func ValidateActor(actor Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return ErrActorRequired
	}
	return nil
}
