package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/wfunc/wager-engine/internal/errors"
)

// JWTTestSuite JWT工具测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", time.Hour, 7*24*time.Hour)
}

// 测试令牌有效期
func (suite *JWTTestSuite) TestGetTokenExpiry() {
	suite.Equal(time.Hour, suite.manager.GetTokenExpiry(TokenTypeAccess))
	suite.Equal(7*24*time.Hour, suite.manager.GetTokenExpiry(TokenTypeRefresh))
}

// 测试生成并验证访问令牌
func (suite *JWTTestSuite) TestAccessTokenRoundTrip() {
	token, err := suite.manager.GenerateAccessToken("alice", RolePlayer)
	suite.Require().NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateAccessToken(token)
	suite.Require().NoError(err)
	suite.Equal("alice", claims.PlayerID())
	suite.Equal(RolePlayer, claims.Role)
	suite.Equal(issuer, claims.Issuer)
}

// 测试空玩家ID
func (suite *JWTTestSuite) TestEmptyPlayerID() {
	_, err := suite.manager.GenerateAccessToken("", RolePlayer)
	suite.True(errors.Is(err, errors.ErrInvalidParam))
}

// 测试无效令牌
func (suite *JWTTestSuite) TestValidateInvalidToken() {
	for _, token := range []string{"", "invalid", "a.b.c"} {
		_, err := suite.manager.ValidateToken(token)
		suite.True(errors.Is(err, errors.ErrTokenInvalid), token)
	}
}

// 测试错误的签名密钥
func (suite *JWTTestSuite) TestWrongSecret() {
	other := NewJWTManager("another-secret", time.Hour, time.Hour)
	token, err := other.GenerateAccessToken("alice", RolePlayer)
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.True(errors.Is(err, errors.ErrTokenInvalid))
}

// 测试过期令牌
func (suite *JWTTestSuite) TestExpiredToken() {
	expired := NewJWTManager("test-secret-key", -time.Minute, time.Hour)
	token, err := expired.GenerateAccessToken("alice", RolePlayer)
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.True(errors.Is(err, errors.ErrTokenExpired))
}

// 测试拒绝非HS256算法
func (suite *JWTTestSuite) TestRejectsOtherAlgorithms() {
	claims := &JWTClaims{
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret-key"))
	suite.Require().NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.True(errors.Is(err, errors.ErrTokenInvalid))
}

// 测试刷新令牌
func (suite *JWTTestSuite) TestRefreshAccessToken() {
	refresh, err := suite.manager.GenerateRefreshToken("bob")
	suite.Require().NoError(err)

	// 刷新令牌不能当访问令牌用
	_, err = suite.manager.ValidateAccessToken(refresh)
	suite.True(errors.Is(err, errors.ErrTokenInvalid))

	access, err := suite.manager.RefreshAccessToken(refresh, RolePlayer)
	suite.Require().NoError(err)
	claims, err := suite.manager.ValidateAccessToken(access)
	suite.Require().NoError(err)
	suite.Equal("bob", claims.PlayerID())

	// 访问令牌不能用来刷新
	_, err = suite.manager.RefreshAccessToken(access, RolePlayer)
	suite.True(errors.Is(err, errors.ErrTokenInvalid))
}

func TestJWTSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
