package model

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"
	RoleRider    Role = "rider"
)

// Actor identifies who performs an operation. Authentication happens
// upstream; the actor is trusted as given.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func (a Actor) String() string {
	if a.ID == "" {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.ID
}

type NotificationType string

const (
	NotificationOrder   NotificationType = "order"
	NotificationProduct NotificationType = "product"
)

type Notification struct {
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	ActionURL string           `json:"action_url,omitempty"`
}
