package domain

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// User is the identity a booking belongs to. Accounts are managed by the
// identity service; this service only reads them.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Role      Role
}
