package domain

// Roles carried in the gateway-issued JWT.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
