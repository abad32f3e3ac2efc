package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"house-ai/pkg/auth"
)

// IdentityKey JWT 中承载用户 ID 的 claim
const IdentityKey = "sub"

// JWTAuth 可选的 Bearer 身份：有效 token 的 sub 覆盖请求体 user_id，无效或缺失按匿名处理
type JWTAuth struct {
	mw *jwt.HertzJWTMiddleware
}

// NewJWTAuth 创建 JWT 中间件；key 不能为空
func NewJWTAuth(key []byte, timeout time.Duration) (*JWTAuth, error) {
	if len(key) == 0 {
		return nil, errors.New("jwt key 为空")
	}
	if timeout <= 0 {
		timeout = 24 * time.Hour
	}
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:         "house-ai",
		Key:           key,
		Timeout:       timeout,
		IdentityKey:   IdentityKey,
		TokenLookup:   "header: Authorization",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if id, ok := data.(string); ok {
				return jwt.MapClaims{IdentityKey: id}
			}
			return jwt.MapClaims{}
		},
	})
	if err != nil {
		return nil, err
	}
	return &JWTAuth{mw: mw}, nil
}

// Identity 解析 Authorization 头并把 sub 写入 ctx
func (j *JWTAuth) Identity() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if id := j.userID(ctx, c); id != "" {
			ctx = auth.WithUserID(ctx, id)
		}
		c.Next(ctx)
	}
}

func (j *JWTAuth) userID(ctx context.Context, c *app.RequestContext) string {
	if len(c.Request.Header.Peek("Authorization")) == 0 {
		return ""
	}
	claims, err := j.mw.GetClaimsFromJWT(ctx, c)
	if err != nil {
		return ""
	}
	if exp, ok := claims["exp"].(float64); ok && int64(exp) < j.mw.TimeFunc().Unix() {
		return ""
	}
	id, _ := claims[IdentityKey].(string)
	return id
}

// Issue 为 userID 签发 token（CLI 与测试使用）
func (j *JWTAuth) Issue(userID string) (string, time.Time, error) {
	return j.mw.TokenGenerator(userID)
}
