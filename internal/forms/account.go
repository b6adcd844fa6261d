package forms

import (
	"net/http"
	"strings"
)

type RegisterForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,email,max=254"`
	Password1 string `form:"password1" validate:"required,min=8,notnumeric"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

func RegisterFromRequest(r *http.Request) RegisterForm {
	return RegisterForm{
		Username:  strings.TrimSpace(r.FormValue("username")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Password1: r.FormValue("password1"),
		Password2: r.FormValue("password2"),
	}
}

type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Next     string `form:"next" validate:"-"`
}

func LoginFromRequest(r *http.Request) LoginForm {
	return LoginForm{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
		Next:     r.FormValue("next"),
	}
}

type ChangePasswordForm struct {
	OldPassword  string `form:"old_password" validate:"required"`
	NewPassword1 string `form:"new_password1" validate:"required,min=8,notnumeric"`
	NewPassword2 string `form:"new_password2" validate:"required,eqfield=NewPassword1"`
}

func ChangePasswordFromRequest(r *http.Request) ChangePasswordForm {
	return ChangePasswordForm{
		OldPassword:  r.FormValue("old_password"),
		NewPassword1: r.FormValue("new_password1"),
		NewPassword2: r.FormValue("new_password2"),
	}
}

// UserForm edits the profile fields of an account.
type UserForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"omitempty,email,max=254"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
}

func UserFromRequest(r *http.Request) UserForm {
	return UserForm{
		Username:  strings.TrimSpace(r.FormValue("username")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
	}
}
