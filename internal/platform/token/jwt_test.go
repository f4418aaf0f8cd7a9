package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Token Service Test Suite
// =============================================================================

type TokenServiceSuite struct {
	suite.Suite
	service *Service
}

func TestTokenServiceSuite(t *testing.T) {
	suite.Run(t, new(TokenServiceSuite))
}

func (s *TokenServiceSuite) SetupTest() {
	s.service = NewService("test-signing-key", "dtro-service", "dtro-api")
}

func (s *TokenServiceSuite) TestRoundTrip() {
	s.Run("a signed token validates and carries the app id", func() {
		token, err := s.service.GenerateAccessToken("app-123", time.Hour)
		s.Require().NoError(err)

		claims, err := s.service.ValidateToken(token)
		s.Require().NoError(err)
		s.Equal("app-123", claims.AppID)
	})

	s.Run("an expired token is rejected", func() {
		token, err := s.service.GenerateAccessToken("app-123", -time.Minute)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(token)
		s.ErrorContains(err, "token has expired")
	})

	s.Run("a token signed with another key is rejected", func() {
		other := NewService("different-key", "dtro-service", "dtro-api")
		token, err := other.GenerateAccessToken("app-123", time.Hour)
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(token)
		s.ErrorContains(err, "invalid token")
	})

	s.Run("garbage is rejected", func() {
		_, err := s.service.ValidateToken("not-a-token")
		s.Error(err)
	})
}
