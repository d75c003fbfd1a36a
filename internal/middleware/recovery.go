package middleware

import (
	"elearn_backend/internal/util"
	"elearn_backend/pkg/logger"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery 捕获 panic 返回 500，非 release 模式附带调用栈
func Recovery(mode string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Log.Error("Panic recovered",
					zap.Any("panic", r),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", stack))

				resp := util.Response{Success: false, Message: fmt.Sprint(r)}
				if mode != gin.ReleaseMode {
					resp.Error = gin.H{"stack": string(stack)}
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()
		c.Next()
	}
}
