package auth

import (
	"chat-sync/errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestIssuer_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	issuer := NewIssuer("secret", time.Hour)

	token, err := issuer.Generate("alice")
	req.NoError(err)

	participant, err := issuer.Validate(token)
	req.NoError(err)
	req.Equal("alice", participant.String())
}

func TestIssuer_Rejects_Invalid_Participant(t *testing.T) {
	req := require.New(t)
	issuer := NewIssuer("secret", time.Hour)

	_, err := issuer.Generate("alice_bob")

	req.ErrorIs(err, errors.ErrInvalidIdentity)
}

func TestIssuer_Rejects_Bad_Tokens(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)
	expired, err := NewIssuer("secret", -time.Minute).Generate("alice")
	require.NoError(t, err)
	foreign, err := NewIssuer("other", time.Hour).Generate("alice")
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{ParticipantID: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Expired", expired},
		{"Wrong secret", foreign},
		{"No signature", unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Validate(tt.token)
			require.ErrorIs(t, err, errors.ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := NewIssuer("secret", time.Hour)
	token, err := issuer.Generate("alice")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/me", Middleware(issuer), func(c *gin.Context) {
		participant, ok := ParticipantFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, participant.String())
	})

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"Bearer header", "/me", "Bearer " + token, http.StatusOK, "alice"},
		{"Query parameter", "/me?token=" + token, "", http.StatusOK, "alice"},
		{"Missing token", "/me", "", http.StatusUnauthorized, ""},
		{"Wrong scheme", "/me", "Basic " + token, http.StatusUnauthorized, ""},
		{"Invalid token", "/me?token=nope", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			request := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}
			recorder := httptest.NewRecorder()

			router.ServeHTTP(recorder, request)

			req.Equal(tt.status, recorder.Code)
			if tt.body != "" {
				req.Equal(tt.body, recorder.Body.String())
			}
		})
	}
}

func TestValidateTokenRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     TokenRequest
		wantErr bool
	}{
		{"Valid request", TokenRequest{"alice", time.Hour}, false},
		{"Missing participant", TokenRequest{"", time.Hour}, true},
		{"Separator in participant", TokenRequest{"alice_bob", time.Hour}, true},
		{"Duration too short", TokenRequest{"alice", time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTokenRequest(tt.req)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
