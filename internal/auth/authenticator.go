package auth

import (
	"context"

	"github.com/mmynk/utilipay/internal/models"
)

// Authenticator defines the interface for authentication implementations.
// Services depend on this rather than on bcrypt directly.
type Authenticator interface {
	// Register creates a new customer with the given email, name and credential.
	Register(ctx context.Context, email, name, credential string) (*models.User, error)

	// Authenticate verifies the customer's credentials and returns the user.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}
