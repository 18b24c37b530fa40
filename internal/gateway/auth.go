package gateway

import (
	"context"
	"net/http"

	"vitrin/internal/models"
)

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type userRecord struct {
	ID       flexID `json:"id"`
	MongoID  flexID `json:"_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  userRecord `json:"user"`
}

func (r authResponse) toResult() models.AuthResult {
	u := models.User{
		ID:       string(r.User.ID),
		Username: r.User.Username,
		Role:     models.Role(r.User.Role),
	}
	if u.ID == "" {
		u.ID = string(r.User.MongoID)
	}
	if role, ok := models.ParseRole(r.User.Role); ok {
		u.Role = role
	}
	return models.AuthResult{Token: r.Token, User: u}
}

// wireRole maps a role to the API's vocabulary, which calls shoppers "user".
func wireRole(r models.Role) string {
	if r == models.RoleShopper {
		return "user"
	}
	return string(r)
}

// SignUp calls POST /auth/v1/signup.
func (c *Client) SignUp(ctx context.Context, username, password string, role models.Role) (models.AuthResult, error) {
	var out authResponse
	req := authRequest{Username: username, Password: password, Role: wireRole(role)}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", false, req, &out, "Signup failed"); err != nil {
		return models.AuthResult{}, err
	}
	return out.toResult(), nil
}

// SignIn calls POST /auth/v1/signin.
func (c *Client) SignIn(ctx context.Context, username, password string) (models.AuthResult, error) {
	var out authResponse
	req := authRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signin", false, req, &out, "Login failed"); err != nil {
		return models.AuthResult{}, err
	}
	return out.toResult(), nil
}

// Logout calls POST /auth/v1/logout with the stored token. The response body is ignored.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", true, nil, nil, "Logout failed")
}
