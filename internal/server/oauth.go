package server

import (
	"github.com/gin-gonic/gin"

	identitydomain "github.com/voundbrand/gatehouse/internal/identity/domain"
	provisioningdomain "github.com/voundbrand/gatehouse/internal/provisioning/domain"
)

// OAuthRequest carries a verified identity assertion from the upstream
// exchange. Token verification happens before this service is called; by
// the time a request lands here the claims are facts.
type OAuthRequest struct {
	Subject     string `json:"subject"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	OrgName     string `json:"org_name"`
	PlanTier    string `json:"plan_tier"`
}

// OAuthCallback handles the web OAuth flow.
func (s *Server) OAuthCallback(c *gin.Context) {
	s.handleOAuth(c, identitydomain.FlowOAuthWeb)
}

// OAuthNative handles the native-app OAuth flow. Same semantics as the web
// flow; the split keeps per-flow metrics and future divergence cheap.
func (s *Server) OAuthNative(c *gin.Context) {
	s.handleOAuth(c, identitydomain.FlowOAuthNative)
}

func (s *Server) handleOAuth(c *gin.Context, flow identitydomain.Flow) {
	provider := c.Param("provider")

	var req OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	// The provider-subject pair is stable across retries of the same OAuth
	// exchange, so it doubles as the idempotency key.
	key := provider + ":" + req.Subject

	result, err := s.provisionsvc.Provision(c.Request.Context(), key, flow, provisioningdomain.Request{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		OrgName:     req.OrgName,
		PlanTier:    req.PlanTier,
		Assertion: &identitydomain.Assertion{
			Provider:    provider,
			Subject:     req.Subject,
			Email:       req.Email,
			DisplayName: req.DisplayName,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(signupStatus(result), toSignupResponse(result))
}
