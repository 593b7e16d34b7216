package models

// Identity is the session user as asserted by the identity provider. It is never persisted.
type Identity struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}
