package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	identitydomain "github.com/voundbrand/gatehouse/internal/identity/domain"
	provisioningdomain "github.com/voundbrand/gatehouse/internal/provisioning/domain"
)

type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	OrgName     string `json:"org_name"`
	PlanTier    string `json:"plan_tier"`
}

type SignupResponse struct {
	AccountID    string `json:"account_id"`
	OrgID        string `json:"org_id"`
	IsNewAccount bool   `json:"is_new_account"`
	APIKey       string `json:"api_key,omitempty"`
}

// Signup handles the password flow. The idempotency key is derived from the
// normalized email, so a client retry of the same signup always maps to the
// same attempt.
func (s *Server) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	key := passwordIdempotencyKey(req.Email)

	result, err := s.provisionsvc.Provision(c.Request.Context(), key, identitydomain.FlowPassword, provisioningdomain.Request{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		OrgName:     req.OrgName,
		PlanTier:    req.PlanTier,
		// Password signups land in the product with nothing else set up,
		// so they get the starter project.
		ProvisionStarterResources: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(signupStatus(result), toSignupResponse(result))
}

func passwordIdempotencyKey(email string) string {
	normalized, err := identitydomain.NormalizeEmail(email)
	if err != nil {
		// Validation rejects the request; the key just has to be stable.
		normalized = strings.ToLower(strings.TrimSpace(email))
	}
	return "password:" + normalized
}

func signupStatus(result *provisioningdomain.Result) int {
	if result.IsNewAccount {
		return http.StatusCreated
	}
	return http.StatusOK
}

func toSignupResponse(result *provisioningdomain.Result) SignupResponse {
	resp := SignupResponse{
		IsNewAccount: result.IsNewAccount,
		APIKey:       result.RawAPIKey,
	}
	if result.AccountID != 0 {
		resp.AccountID = result.AccountID.String()
	}
	if result.OrgID != 0 {
		resp.OrgID = result.OrgID.String()
	}
	return resp
}
