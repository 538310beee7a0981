package utils

import (
	"testing"

	"github.com/ivalora/gadget-rms/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	password := "secret123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("Hash should not match plaintext password")
	}

	if !CheckPasswordHash(password, hash) {
		t.Error("Password should match hash")
	}
	if CheckPasswordHash("wrongpassword", hash) {
		t.Error("Wrong password should not match hash")
	}
}

func TestJWT(t *testing.T) {
	secret := "test-secret-key-12345"
	user := &models.UserAuth{
		ID:    "uuid-1234",
		Email: "owner@ivalora.id",
		Role:  models.RoleOwner,
	}

	accessToken, refreshToken, err := GenerateTokens(user, secret)
	if err != nil {
		t.Fatalf("Failed to generate tokens: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Fatal("Tokens should not be empty")
	}

	claims, err := ValidateAccessToken(accessToken, secret)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims["id"] != user.ID {
		t.Errorf("Expected user ID %s, got %v", user.ID, claims["id"])
	}
	if claims["role"] != "owner" {
		t.Errorf("Expected role owner, got %v", claims["role"])
	}

	if _, err := ValidateToken(accessToken, "wrong-key"); err == nil {
		t.Error("Validation should fail with wrong key")
	}
	if _, err := ValidateAccessToken(refreshToken, secret); err == nil {
		t.Error("Refresh token must not pass as access token")
	}
}
