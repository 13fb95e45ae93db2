package server

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/DCGM/semant-demo/config"
)

type subjectKey struct{}

// SubjectFrom 返回已认证请求的 sub 声明，未认证时为空串
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// TokenVerifier 校验 Authorization: Bearer 令牌，支持 HS256 与 RS256
type TokenVerifier struct {
	secret []byte
	rsaKey *rsa.PublicKey
	opts   []jwt.ParserOption
	logger *zap.Logger
}

// NewTokenVerifier 未配置 secret 与 public_key 时返回 (nil, nil)，表示不启用认证
func NewTokenVerifier(cfg config.JWTConfig, logger *zap.Logger) (*TokenVerifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := &TokenVerifier{
		secret: []byte(cfg.Secret),
		logger: logger.With(zap.String("component", "jwt_auth")),
	}
	methods := make([]string, 0, 2)
	if cfg.Secret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.PublicKey != "" {
		key, err := parseRSAPublicKey(cfg.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("jwt public key: %w", err)
		}
		v.rsaKey = key
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}

	v.opts = []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		v.opts = append(v.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.opts = append(v.opts, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

func parseRSAPublicKey(data string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(data))
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("expected RSA public key, got %T", pub)
	}
	return key, nil
}

func (v *TokenVerifier) key(t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		return v.rsaKey, nil
	}
	return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
}

// Verify 解析并校验令牌，返回其 sub 声明
func (v *TokenVerifier) Verify(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(raw, &claims, v.key, v.opts...); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// wrap 缺少或无效令牌时返回 401
func (v *TokenVerifier) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token", nil, nil)
			return
		}
		sub, err := v.Verify(strings.TrimSpace(raw))
		if err != nil {
			v.logger.Debug("token rejected", zap.String("path", r.URL.Path), zap.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			WriteError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token", nil, nil)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, sub)))
	}
}
