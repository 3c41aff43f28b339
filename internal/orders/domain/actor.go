package domain

import "errors"

var ErrForbidden = errors.New("actor may not act on this order")

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// Actor is whoever triggers a command: a buyer, a venue operator bound to one
// venue, or a platform admin.
type Actor struct {
	ID      string
	Role    Role
	VenueID string
}

// CanView reports whether the actor may read the order.
func (a Actor) CanView(o Order) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleOperator:
		return a.VenueID != "" && a.VenueID == o.VenueID
	case RoleBuyer:
		return a.ID != "" && a.ID == o.BuyerID
	default:
		return false
	}
}

// CanOperate reports whether the actor may drive fulfillment of the order.
func (a Actor) CanOperate(o Order) bool {
	return a.Role != RoleBuyer && a.CanView(o)
}
