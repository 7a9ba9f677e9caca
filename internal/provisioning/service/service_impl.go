package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"

	accountdomain "github.com/voundbrand/gatehouse/internal/account/domain"
	apikeydomain "github.com/voundbrand/gatehouse/internal/apikey/domain"
	auditdomain "github.com/voundbrand/gatehouse/internal/audit/domain"
	"github.com/voundbrand/gatehouse/internal/config"
	identitydomain "github.com/voundbrand/gatehouse/internal/identity/domain"
	orgdomain "github.com/voundbrand/gatehouse/internal/organization/domain"
	"github.com/voundbrand/gatehouse/internal/password"
	"github.com/voundbrand/gatehouse/internal/provisioning/domain"
	quotadomain "github.com/voundbrand/gatehouse/internal/quota/domain"
	taskdomain "github.com/voundbrand/gatehouse/internal/task/domain"
	dbpkg "github.com/voundbrand/gatehouse/pkg/db"
	"github.com/voundbrand/gatehouse/pkg/telemetry"
)

const (
	minPasswordLength = 8

	// maxCreateRetries bounds re-runs of the creation transaction when a
	// concurrent commit steals the allocated slug between the existence
	// probe and the insert.
	maxCreateRetries = 3

	actionSignup = "account.signup"

	bootstrapKeyName    = "bootstrap"
	starterResourceName = "Getting Started"
	starterResourceKind = "project"
)

// Throwaway inboxes that have no business opening a tenant.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"yopmail.com":       {},
	"discard.email":     {},
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	leaseTTL time.Duration

	resolver identitydomain.Resolver
	accounts accountdomain.Repository
	orgs     orgdomain.Repository
	orgsvc   orgdomain.Service
	quotas   quotadomain.Initializer
	attempts domain.Repository
	queue    taskdomain.Queue
	audit    auditdomain.Service
	metrics  *telemetry.Metrics
}

// New creates the provisioning orchestrator.
func New(
	db *gorm.DB,
	log *zap.Logger,
	genID *snowflake.Node,
	cfg config.Config,
	resolver identitydomain.Resolver,
	accounts accountdomain.Repository,
	orgs orgdomain.Repository,
	orgsvc orgdomain.Service,
	quotas quotadomain.Initializer,
	attempts domain.Repository,
	queue taskdomain.Queue,
	audit auditdomain.Service,
	metrics *telemetry.Metrics,
) domain.Service {
	return &service{
		db:       db,
		log:      log.Named("provisioning.service"),
		genID:    genID,
		leaseTTL: cfg.AttemptLeaseTTL,
		resolver: resolver,
		accounts: accounts,
		orgs:     orgs,
		orgsvc:   orgsvc,
		quotas:   quotas,
		attempts: attempts,
		queue:    queue,
		audit:    audit,
		metrics:  metrics,
	}
}

func (s *service) Provision(ctx context.Context, idempotencyKey string, flow identitydomain.Flow, req domain.Request) (*domain.Result, error) {
	ctx, span := otel.Tracer("gatehouse/provisioning").Start(ctx, "provisioning.Provision")
	defer span.End()
	span.SetAttributes(attribute.String("signup.flow", string(flow)))

	start := time.Now()
	result, err := s.provision(ctx, idempotencyKey, flow, req)
	s.metrics.ObserveProvision(string(flow), outcomeLabel(err), time.Since(start))
	return result, err
}

func (s *service) provision(ctx context.Context, idempotencyKey string, flow identitydomain.Flow, req domain.Request) (*domain.Result, error) {
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, &domain.ValidationError{Field: "idempotency_key", Reason: "must not be empty"}
	}
	if err := validate(flow, req); err != nil {
		return nil, err
	}

	attempt, replay, err := s.acquire(ctx, idempotencyKey, flow)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	cred := identitydomain.Credential{Email: req.Email, Assertion: req.Assertion}
	resolution, err := s.resolver.Resolve(ctx, flow, cred)
	if err != nil {
		if errors.Is(err, identitydomain.ErrAccountExists) {
			s.failAttempt(ctx, attempt, "email already registered")
			return nil, domain.ErrAlreadyExists
		}
		if errors.Is(err, identitydomain.ErrInvalidEmail) {
			s.failAttempt(ctx, attempt, "invalid email")
			return nil, &domain.ValidationError{Field: "email", Reason: "not a valid address"}
		}
		s.failAttempt(ctx, attempt, err.Error())
		return nil, err
	}

	if resolution.Existing {
		return s.completeExisting(ctx, attempt, flow, resolution, req.Assertion)
	}

	req.Email = resolution.NormalizedEmail
	return s.createTenant(ctx, attempt, flow, req)
}

// acquire loads or creates the attempt row for the key and arms its lease.
// Returns a non-nil result when the key already succeeded (replay).
func (s *service) acquire(ctx context.Context, key string, flow identitydomain.Flow) (*domain.Attempt, *domain.Result, error) {
	for i := 0; i < 2; i++ {
		existing, err := s.attempts.FindByKey(ctx, key)
		if errors.Is(err, domain.ErrAttemptNotFound) {
			attempt := &domain.Attempt{
				ID:             s.genID.Generate(),
				IdempotencyKey: key,
				Flow:           string(flow),
				Status:         domain.AttemptInFlight,
				LeaseToken:     uuid.NewString(),
				LeaseExpiresAt: time.Now().UTC().Add(s.leaseTTL),
			}
			if createErr := s.attempts.Create(ctx, attempt); createErr != nil {
				if dbpkg.IsDuplicateKeyErr(createErr) {
					// Another request inserted the key first; re-read
					// and decide against the committed row.
					continue
				}
				return nil, nil, createErr
			}
			return attempt, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}

		switch existing.Status {
		case domain.AttemptSucceeded:
			return nil, replayResult(existing), nil

		case domain.AttemptFailed:
			// Terminal failure: the same key may retry from scratch.
			return s.takeOver(ctx, existing)

		case domain.AttemptInFlight:
			if time.Now().UTC().Before(existing.LeaseExpiresAt) {
				return nil, nil, domain.ErrConflict
			}
			// Holder died mid-flight. The tenant graph either committed
			// atomically or not at all, so taking over is safe.
			return s.takeOver(ctx, existing)
		}

		return nil, nil, domain.ErrConflict
	}
	return nil, nil, domain.ErrConflict
}

func (s *service) takeOver(ctx context.Context, existing *domain.Attempt) (*domain.Attempt, *domain.Result, error) {
	token := uuid.NewString()
	expires := time.Now().UTC().Add(s.leaseTTL)
	won, err := s.attempts.TakeOver(ctx, existing.ID, existing.LeaseToken, token, expires)
	if err != nil {
		return nil, nil, err
	}
	if !won {
		return nil, nil, domain.ErrConflict
	}
	taken := *existing
	taken.Status = domain.AttemptInFlight
	taken.LeaseToken = token
	taken.LeaseExpiresAt = expires
	return &taken, nil, nil
}

// completeExisting handles the OAuth login-or-link path: no tenant graph is
// created, at most an identity binding is added.
func (s *service) completeExisting(ctx context.Context, attempt *domain.Attempt, flow identitydomain.Flow, resolution *identitydomain.Resolution, assertion *identitydomain.Assertion) (*domain.Result, error) {
	account, err := s.accounts.FindByID(ctx, resolution.AccountID)
	if err != nil {
		s.failAttempt(ctx, attempt, err.Error())
		return nil, err
	}

	var orgID snowflake.ID
	if account.DefaultOrgID != nil {
		orgID = *account.DefaultOrgID
	}

	// LinkIdentity is only ever set on OAuth flows, so the assertion is
	// always present here.
	if resolution.LinkIdentity {
		identity := &accountdomain.ExternalIdentity{
			ID:        s.genID.Generate(),
			AccountID: account.ID,
			Provider:  assertion.Provider,
			Subject:   assertion.Subject,
			Email:     resolution.NormalizedEmail,
		}
		if err := s.accounts.CreateIdentity(ctx, identity); err != nil && !dbpkg.IsDuplicateKeyErr(err) {
			s.failAttempt(ctx, attempt, err.Error())
			return nil, err
		}
	}

	if markErr := s.attempts.MarkSucceeded(ctx, attempt.ID, attempt.LeaseToken, account.ID, orgID, false); markErr != nil {
		return nil, markErr
	}

	s.recordAudit(ctx, flow, account.ID, orgID, "succeeded", map[string]any{
		"existing": true,
		"linked":   resolution.LinkIdentity,
	})

	return &domain.Result{AccountID: account.ID, OrgID: orgID, IsNewAccount: false}, nil
}

// createTenant runs the fixed creation sequence in one transaction. The
// attempt is marked succeeded inside the same transaction so a replay after
// commit always sees the recorded result.
func (s *service) createTenant(ctx context.Context, attempt *domain.Attempt, flow identitydomain.Flow, req domain.Request) (*domain.Result, error) {
	var result *domain.Result
	var lastErr error

	for retry := 0; retry < maxCreateRetries; retry++ {
		result, lastErr = s.runCreateTx(ctx, attempt, flow, req)
		if lastErr == nil {
			break
		}
		var step *stepError
		if errors.As(lastErr, &step) && step.step == stepOrganization && dbpkg.IsDuplicateKeyErr(step.err) {
			// Slug stolen by a concurrent commit between the existence
			// probe and the insert. Re-running re-probes and picks the
			// next counter.
			s.log.Warn("slug collision on insert, retrying",
				zap.String("org_name", req.OrgName),
				zap.Int("retry", retry+1))
			continue
		}
		break
	}

	if lastErr != nil {
		var step *stepError
		if errors.As(lastErr, &step) {
			if step.step == stepAccount && dbpkg.IsDuplicateKeyErr(step.err) {
				// Concurrent signup with the same email under a
				// different idempotency key.
				s.failAttempt(ctx, attempt, "email already registered")
				return nil, domain.ErrAlreadyExists
			}
			lastErr = step.err
		}
		s.failAttempt(ctx, attempt, lastErr.Error())
		s.recordAudit(ctx, flow, 0, 0, "failed", map[string]any{"reason": lastErr.Error()})
		return nil, lastErr
	}

	s.enqueueFollowups(ctx, result, req)
	s.recordAudit(ctx, flow, result.AccountID, result.OrgID, "succeeded", map[string]any{
		"existing": false,
		"tier":     req.PlanTier,
	})

	return result, nil
}

type createStep string

const (
	stepAccount      createStep = "account"
	stepOrganization createStep = "organization"
	stepRole         createStep = "role"
	stepMembership   createStep = "membership"
	stepQuota        createStep = "quota"
	stepFlowExtras   createStep = "flow_extras"
	stepAttempt      createStep = "attempt"
)

type stepError struct {
	step createStep
	err  error
}

func (e *stepError) Error() string { return string(e.step) + ": " + e.err.Error() }
func (e *stepError) Unwrap() error { return e.err }

func (s *service) runCreateTx(ctx context.Context, attempt *domain.Attempt, flow identitydomain.Flow, req domain.Request) (*domain.Result, error) {
	tier := req.PlanTier
	if tier == "" {
		tier = quotadomain.TierFree
	}
	if _, err := s.quotas.LimitsFor(tier); err != nil {
		return nil, err
	}

	result := &domain.Result{IsNewAccount: true}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		accounts := s.accounts.WithTx(tx)
		orgs := s.orgs.WithTx(tx)

		account := &accountdomain.Account{
			ID:          s.genID.Generate(),
			Email:       req.Email,
			DisplayName: req.DisplayName,
			Metadata:    map[string]any{},
		}
		if flow == identitydomain.FlowPassword {
			hash, err := password.Hash(req.Password)
			if err != nil {
				return &stepError{step: stepAccount, err: err}
			}
			account.PasswordHash = &hash
		}
		if err := accounts.Create(ctx, account); err != nil {
			return &stepError{step: stepAccount, err: err}
		}

		orgName := strings.TrimSpace(req.OrgName)
		if orgName == "" {
			orgName = defaultOrgName(req.DisplayName)
		}
		slugValue, err := s.orgsvc.AllocateSlug(ctx, orgs, orgName)
		if err != nil {
			return &stepError{step: stepOrganization, err: err}
		}
		org := &orgdomain.Organization{
			ID:       s.genID.Generate(),
			Name:     orgName,
			Slug:     slugValue,
			PlanTier: tier,
			Metadata: map[string]any{},
		}
		if err := orgs.CreateOrganization(ctx, org); err != nil {
			return &stepError{step: stepOrganization, err: err}
		}

		role, err := s.orgsvc.GetOrCreateRole(ctx, orgs, orgdomain.RoleOwner)
		if err != nil {
			return &stepError{step: stepRole, err: err}
		}
		membership := &orgdomain.Membership{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			AccountID: account.ID,
			RoleID:    role.ID,
		}
		if err := orgs.AddMembership(ctx, membership); err != nil {
			return &stepError{step: stepMembership, err: err}
		}

		if err := s.quotas.Initialize(ctx, tx, tier, org.ID, account.ID); err != nil {
			return &stepError{step: stepQuota, err: err}
		}

		if flow == identitydomain.FlowPassword {
			key, raw := apikeydomain.Issue(s.genID, org.ID, bootstrapKeyName, []string{"org:admin"})
			if err := tx.WithContext(ctx).Create(key).Error; err != nil {
				return &stepError{step: stepFlowExtras, err: err}
			}
			result.RawAPIKey = raw
		}
		if flow.IsOAuth() {
			identity := &accountdomain.ExternalIdentity{
				ID:        s.genID.Generate(),
				AccountID: account.ID,
				Provider:  req.Assertion.Provider,
				Subject:   req.Assertion.Subject,
				Email:     req.Email,
			}
			if err := accounts.CreateIdentity(ctx, identity); err != nil {
				return &stepError{step: stepFlowExtras, err: err}
			}
		}
		if req.ProvisionStarterResources {
			resource := &orgdomain.StarterResource{
				ID:    s.genID.Generate(),
				OrgID: org.ID,
				Name:  starterResourceName,
				Kind:  starterResourceKind,
			}
			if err := orgs.CreateStarterResource(ctx, resource); err != nil {
				return &stepError{step: stepFlowExtras, err: err}
			}
		}

		if err := accounts.UpdateFields(ctx, account.ID, map[string]any{"default_org_id": org.ID}); err != nil {
			return &stepError{step: stepAccount, err: err}
		}

		attemptsTx := s.attempts.WithTx(tx)
		if err := attemptsTx.MarkSucceeded(ctx, attempt.ID, attempt.LeaseToken, account.ID, org.ID, true); err != nil {
			return &stepError{step: stepAttempt, err: err}
		}

		result.AccountID = account.ID
		result.OrgID = org.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// enqueueFollowups schedules the asynchronous side effects. Best effort: the
// tenant is already committed, a lost enqueue is repaired by reconciliation.
func (s *service) enqueueFollowups(ctx context.Context, result *domain.Result, req domain.Request) {
	orgID := result.OrgID
	accountID := result.AccountID

	jobs := []taskdomain.EnqueueRequest{
		{
			Kind:      taskdomain.KindWelcomeEmail,
			DedupeKey: orgID.String() + ":" + taskdomain.KindWelcomeEmail,
			Payload:   map[string]any{"email": req.Email, "display_name": req.DisplayName},
			OrgID:     &orgID,
			AccountID: &accountID,
		},
		{
			Kind:      taskdomain.KindSalesAlert,
			DedupeKey: orgID.String() + ":" + taskdomain.KindSalesAlert,
			Payload:   map[string]any{"email": req.Email, "org_name": req.OrgName, "tier": req.PlanTier},
			OrgID:     &orgID,
			AccountID: &accountID,
		},
		{
			Kind:      taskdomain.KindBillingCustomer,
			DedupeKey: orgID.String() + ":" + taskdomain.KindBillingCustomer,
			Payload:   map[string]any{"email": req.Email},
			OrgID:     &orgID,
			AccountID: &accountID,
		},
	}

	for _, job := range jobs {
		if _, err := s.queue.Enqueue(ctx, job); err != nil {
			s.log.Error("enqueue followup failed",
				zap.String("kind", job.Kind),
				zap.String("org_id", orgID.String()),
				zap.Error(err))
		}
	}
}

func (s *service) recordAudit(ctx context.Context, flow identitydomain.Flow, accountID, orgID snowflake.ID, outcome string, meta map[string]any) {
	rec := auditdomain.Record{
		ActorType:  auditdomain.ActorTypeAccount,
		Action:     actionSignup,
		TargetType: "organization",
		Outcome:    outcome,
		Metadata:   meta,
	}
	if meta == nil {
		rec.Metadata = map[string]any{}
	}
	rec.Metadata["method"] = string(flow)
	if accountID != 0 {
		actor := accountID.String()
		rec.ActorID = &actor
	}
	if orgID != 0 {
		rec.OrgID = &orgID
		target := orgID.String()
		rec.TargetID = &target
	}
	if err := s.audit.Record(ctx, rec); err != nil {
		s.log.Warn("audit record failed", zap.String("action", actionSignup), zap.Error(err))
	}
}

func (s *service) failAttempt(ctx context.Context, attempt *domain.Attempt, reason string) {
	if err := s.attempts.MarkFailed(ctx, attempt.ID, attempt.LeaseToken, reason); err != nil {
		s.log.Error("mark attempt failed",
			zap.String("idempotency_key", attempt.IdempotencyKey),
			zap.Error(err))
	}
}

func validate(flow identitydomain.Flow, req domain.Request) error {
	switch flow {
	case identitydomain.FlowPassword:
		email, err := identitydomain.NormalizeEmail(req.Email)
		if err != nil {
			return &domain.ValidationError{Field: "email", Reason: "not a valid address"}
		}
		if _, blocked := disposableDomains[emailDomain(email)]; blocked {
			return &domain.ValidationError{Field: "email", Reason: "disposable email domains are not accepted"}
		}
		if len(req.Password) < minPasswordLength {
			return &domain.ValidationError{Field: "password", Reason: "must be at least 8 characters"}
		}
	case identitydomain.FlowOAuthWeb, identitydomain.FlowOAuthNative:
		if req.Assertion == nil {
			return &domain.ValidationError{Field: "assertion", Reason: "oauth flows require an identity assertion"}
		}
		if strings.TrimSpace(req.Assertion.Provider) == "" || strings.TrimSpace(req.Assertion.Subject) == "" {
			return &domain.ValidationError{Field: "assertion", Reason: "provider and subject must be set"}
		}
		if _, err := identitydomain.NormalizeEmail(req.Assertion.Email); err != nil {
			return &domain.ValidationError{Field: "email", Reason: "not a valid address"}
		}
	default:
		return &domain.ValidationError{Field: "flow", Reason: "unknown signup flow"}
	}
	return nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}

func defaultOrgName(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return "Workspace"
	}
	if strings.HasSuffix(strings.ToLower(name), "s") {
		return name + "' Workspace"
	}
	return name + "'s Workspace"
}

func replayResult(attempt *domain.Attempt) *domain.Result {
	result := &domain.Result{IsNewAccount: attempt.IsNewAccount}
	if attempt.AccountID != nil {
		result.AccountID = *attempt.AccountID
	}
	if attempt.OrgID != nil {
		result.OrgID = *attempt.OrgID
	}
	return result
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "already_exists"
	default:
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return "invalid"
		}
		return "failed"
	}
}
