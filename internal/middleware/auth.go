package middleware

import (
	"github.com/kataras/iris/v12"

	"github.com/aa547887/GameSpace-sub003/internal/auth"
	"github.com/aa547887/GameSpace-sub003/internal/config"
)

// RequireLogin 校验 Authorization 头里的 JWT，并把用户信息放进请求上下文。
// cache 可为 nil；带缓存时先查 Redis 再走解析，减轻热点接口的验签开销。
func RequireLogin(jwtCfg *config.JWTConfig, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}

		if cache != nil {
			if claims, hit, err := cache.Get(ctx.Request().Context(), token); err == nil && hit {
				ctx.Values().Set("user_id", claims.UserID)
				ctx.Values().Set("username", claims.Username)
				ctx.Next()
				return
			}
		}

		claims, err := auth.ParseToken(jwtCfg, token)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
			return
		}
		if cache != nil {
			_ = cache.Set(ctx.Request().Context(), token, claims)
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	}
}
