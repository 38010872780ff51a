package model

// Identity is the caller identity embedded into access tokens.
//
// Email and Role are optional: an empty value means the claim is absent.
// Use EmailAddress and RoleName instead of comparing fields with "".
type Identity struct {
	ID    string
	Email string
	Role  string
}

// EmailAddress returns the email claim and whether it is present.
func (i Identity) EmailAddress() (string, bool) {
	return i.Email, i.Email != ""
}

// RoleName returns the role claim and whether it is present.
func (i Identity) RoleName() (string, bool) {
	return i.Role, i.Role != ""
}
