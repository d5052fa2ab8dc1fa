package user

import (
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/medichat/internal/core/datamodel/user"
	"github.com/frahmantamala/medichat/internal/policy"
)

var ErrNotFound = errors.New("user not found")

// User is the account without its password hash.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile is the current user as the decision point sees them.
type Profile struct {
	User
	Attributes  policy.Attributes `json:"attributes"`
	Permissions []string          `json:"permissions"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// StoredAttributes are the attributes kept on the users row, used when the
// decision point cannot be reached.
func StoredAttributes(u *userDatamodel.User) policy.Attributes {
	return policy.Attributes{
		Department:     u.Department,
		Clearance:      u.Clearance,
		Specialization: u.Specialization,
		Role:           policy.Role(u.Role),
		Blocked:        u.IsBlocked,
	}
}
