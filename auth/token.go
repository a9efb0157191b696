package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMissing 请求未携带 token
	ErrTokenMissing = errors.New("token is missing")
	// ErrTokenExpired token 已过期，单独报告
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid 其余所有失败：格式错误、签名不符、用户不存在
	ErrTokenInvalid = errors.New("token is invalid")
)

// KeyStore 按用户名查询密钥对
type KeyStore interface {
	GetKeypair(ctx context.Context, username string) (privatePEM, publicPEM string, err error)
}

// SignToken 用私钥签发 RS256 token，claims 为 sub / iat / exp
func SignToken(privatePEM, username string, ttl time.Duration, now time.Time) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privatePEM))
	if err != nil {
		return "", fmt.Errorf("解析私钥失败: %w", err)
	}

	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

// VerifyToken 用公钥校验 token，返回已验证的 claims
func VerifyToken(tokenString, publicPEM string) (*jwt.RegisteredClaims, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicPEM))
	if err != nil {
		return nil, fmt.Errorf("%w: 解析公钥失败: %v", ErrTokenInvalid, err)
	}

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: 缺少 sub", ErrTokenInvalid)
	}
	return claims, nil
}

// UnverifiedSubject 不验签读取 sub，仅用于定位公钥
func UnverifiedSubject(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrTokenMissing
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: 缺少 sub", ErrTokenInvalid)
	}
	return claims.Subject, nil
}

// TokenService 基于用户密钥对签发、校验 token
type TokenService struct {
	keys       KeyStore
	ttl        time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewTokenService 创建 token 服务
func NewTokenService(keys KeyStore, ttl, sessionTTL time.Duration) *TokenService {
	return &TokenService{
		keys:       keys,
		ttl:        ttl,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// TTL 普通 token 有效期
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue 签发普通 token
func (s *TokenService) Issue(ctx context.Context, username string) (string, error) {
	return s.IssueWithTTL(ctx, username, s.ttl)
}

// IssueSession 为浏览器会话兜底签发短期 token
func (s *TokenService) IssueSession(ctx context.Context, username string) (string, error) {
	return s.IssueWithTTL(ctx, username, s.sessionTTL)
}

// IssueWithTTL 按指定有效期签发 token
func (s *TokenService) IssueWithTTL(ctx context.Context, username string, ttl time.Duration) (string, error) {
	privatePEM, _, err := s.keys.GetKeypair(ctx, username)
	if err != nil {
		return "", fmt.Errorf("获取用户密钥失败: %w", err)
	}
	return SignToken(privatePEM, username, ttl, s.now())
}

// Verify 校验 token 并返回用户名
// 先不验签读出 sub，再取该用户的公钥验签。用户不存在与签名错误一样返回 ErrTokenInvalid
func (s *TokenService) Verify(ctx context.Context, tokenString string) (string, error) {
	subject, err := UnverifiedSubject(tokenString)
	if err != nil {
		return "", err
	}

	_, publicPEM, err := s.keys.GetKeypair(ctx, subject)
	if err != nil {
		log.Printf("[AUTH] 查询用户 %s 公钥失败: %v", subject, err)
		return "", ErrTokenInvalid
	}

	claims, err := VerifyToken(tokenString, publicPEM)
	if err != nil {
		if !errors.Is(err, ErrTokenExpired) {
			log.Printf("[AUTH] 用户 %s token 校验失败: %v", subject, err)
		}
		return "", err
	}
	if claims.Subject != subject {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
