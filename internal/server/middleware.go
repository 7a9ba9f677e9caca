package server

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignupRateLimit throttles signup attempts per client IP. Degrades open
// when redis is unavailable: signup must not depend on the limiter.
func (s *Server) SignupRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.signupLimiter.Allow(
			c.Request.Context(),
			"gatehouse:signup:"+c.ClientIP(),
			s.cfg.SignupRateLimit,
			s.cfg.SignupBurst,
		)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
