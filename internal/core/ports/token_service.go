package ports

// TokenService mints and verifies bearer session tokens.
type TokenService interface {
	Issue(subject string) (string, error)
	// ValidateAndExtractSubject accepts an optional "Bearer " prefix and fails
	// with domain.ErrInvalidToken or domain.ErrExpiredToken.
	ValidateAndExtractSubject(token string) (string, error)
}
