package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/volunteerhub/volunteer-hub-api/internal/api/handler/v1/response"
	"github.com/volunteerhub/volunteer-hub-api/internal/pkg/jwthelper"
)

// ContextKeyUserID is where VerifyJWT stores the authenticated user's id.
const ContextKeyUserID = "user_id"

type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		signingKey: []byte(signingKey),
	}
}

func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if header == "" {
			response.RenderErr(ctx, response.ErrUnauthorized(errors.New("missing Authorization header")))
			ctx.Abort()

			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found {
			response.RenderErr(ctx, response.ErrUnauthorized(errors.New("malformed Authorization header")))
			ctx.Abort()

			return
		}

		claims, err := jwthelper.ParseToken(a.signingKey, tokenString)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthorized(err))
			ctx.Abort()

			return
		}

		if claims.UserAgent != ctx.Request.UserAgent() {
			response.RenderErr(ctx, response.ErrUnauthorized(errors.New("token was issued to a different client")))
			ctx.Abort()

			return
		}

		ctx.Set(ContextKeyUserID, claims.UserID)
		ctx.Next()
	}
}

// GetUserID reads the authenticated user's id set by VerifyJWT.
func GetUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}

	userID, ok := value.(uint)
	if !ok {
		return 0, false
	}

	return userID, true
}
