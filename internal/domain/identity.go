package domain

// Identity is an authenticated principal issued by the session layer.
type Identity struct {
	ID    string
	Email string
}

// Credential is the stored secret paired with an Identity.
type Credential struct {
	Identity
	PasswordHash string
}
