package dto

import (
	"time"

	"github.com/baechuer/natours-auth/internal/domain"
)

// UserView is the public shape of an account. It never carries the
// password hash or reset fields.
type UserView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type UserData struct {
	User UserView `json:"user"`
}

func NewUserView(u domain.User) UserView {
	return UserView{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func NewUserData(u domain.User) UserData {
	return UserData{User: NewUserView(u)}
}
