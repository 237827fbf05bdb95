package auth

import (
	"fmt"

	"github.com/pquerna/otp/totp"
)

const (
	defaultTOTPIssuer = "Protocol Registry"
)

// GenerateTOTPKey generates a new TOTP secret and its otpauth:// provisioning URL
func GenerateTOTPKey(issuer, login string) (secret, url string, err error) {
	if issuer == "" {
		issuer = defaultTOTPIssuer
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: login,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	return key.Secret(), key.URL(), nil
}

// ValidateTOTP validates a TOTP code against a secret
func ValidateTOTP(secret, code string) bool {
	if secret == "" || code == "" {
		return false
	}
	return totp.Validate(code, secret)
}
