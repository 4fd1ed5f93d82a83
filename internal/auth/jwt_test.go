package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "admin-portal")
	token, err := manager.Generate("admin-portal", RoleAdminPortal)
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-portal", claims.Subject)
	assert.Equal(t, string(RoleAdminPortal), claims.Role)
	assert.Equal(t, "admin-portal", claims.Issuer)
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "issuer")
	_, err := manager.Generate("", RoleOperator)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTManager("", time.Hour, "issuer").Generate("ops", RoleOperator)
	assert.Error(t, err)
}

func TestJWTValidateRejects(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "admin-portal")

	_, err := manager.Validate("")
	assert.ErrorIs(t, err, ErrMissingToken)

	other, err := NewJWTManager("other-secret", time.Hour, "admin-portal").Generate("x", RoleAdminPortal)
	require.NoError(t, err)
	_, err = manager.Validate(other)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	wrongIssuer, err := NewJWTManager("secret", time.Hour, "someone-else").Generate("x", RoleAdminPortal)
	require.NoError(t, err)
	_, err = manager.Validate(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	expiredManager := NewJWTManager("secret", time.Minute, "admin-portal")
	expiredManager.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredManager.Generate("x", RoleAdminPortal)
	require.NoError(t, err)
	_, err = manager.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Role: "admin-portal"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = manager.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken, "alg none")
}

func TestAuthorize(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "admin-portal")
	operator, err := manager.Generate("ops", RoleOperator)
	require.NoError(t, err)

	_, err = manager.Authorize(operator, RoleOperator, RoleAdminPortal)
	assert.NoError(t, err)

	_, err = manager.Authorize(operator, RoleAdminPortal)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(" Admin-Portal ", RoleAdminPortal))
	assert.False(t, HasRole("admin", RoleAdminPortal, RoleOperator))
	assert.False(t, HasRole("operator"))
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	assert.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer token")
	require.NoError(t, err)
	assert.Equal(t, "token", token)
}
