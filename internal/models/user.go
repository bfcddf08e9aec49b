package models

// Roles
const (
	RoleAdmin         = "ADMIN"
	RoleMerchantAdmin = "MERCHANT_ADMIN"
	RoleStaff         = "STAFF"
)

// User is the platform identity a bearer token resolves to.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Role       string `json:"role"`
	MerchantID string `json:"merchantId,omitempty"`
}
