package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims 会话token载荷
// 顾客token与管理员token共用这套claims，但由不同的密钥签发，互不相认
type SessionClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// 默认会话有效期
const DefaultSessionTTL = 24 * time.Hour

// GenerateSessionToken 签发会话token
func GenerateSessionToken(userID int64, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken 解析会话token并返回其中的用户ID
// token为空、格式错误、签名不符、已过期都返回错误，由调用方决定如何处理
func ParseSessionToken(tokenString, secret string) (int64, error) {
	if tokenString == "" {
		return 0, fmt.Errorf("empty token")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	if !token.Valid || claims.UserID <= 0 {
		return 0, fmt.Errorf("invalid session token")
	}

	return claims.UserID, nil
}
