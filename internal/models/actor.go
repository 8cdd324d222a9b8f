package models

// Actor roles as resolved by the auth middleware.
const (
	RoleShipper     = "shipper"
	RoleTransporter = "transporter"
	RoleOperator    = "operator"
)

// Actor is the resolved identity every core operation receives.
// Superuser is an explicit capability flag: operator actors may
// negotiate without the bidder-approval window.
type Actor struct {
	UserID        string
	Role          string
	TransporterID string
	ShipperID     string
	Superuser     bool
}
