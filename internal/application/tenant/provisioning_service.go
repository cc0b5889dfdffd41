package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/noro/control-plane/internal/domain/shared"
	"github.com/noro/control-plane/internal/domain/tenant"
	"github.com/noro/control-plane/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// SchemaProvisioner creates the tenant's storage namespace.
// This decouples ProvisioningService from the concrete postgres provisioner.
type SchemaProvisioner interface {
	CreateSchema(ctx context.Context, schemaName string) error
}

// ProvisioningService drives the two-phase tenant provisioning flow:
// persist the tenant row as the source of truth, then create the schema.
// A schema failure marks the row failed instead of leaving it creating.
type ProvisioningService struct {
	tenantRepo     tenant.Repository
	membershipRepo tenant.MembershipRepository
	provisioner    SchemaProvisioner
	eventBus       shared.EventPublisher
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewProvisioningService creates a new ProvisioningService. Metrics may be nil.
func NewProvisioningService(
	tenantRepo tenant.Repository,
	membershipRepo tenant.MembershipRepository,
	provisioner SchemaProvisioner,
	eventBus shared.EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		tenantRepo:     tenantRepo,
		membershipRepo: membershipRepo,
		provisioner:    provisioner,
		eventBus:       eventBus,
		metrics:        m,
		logger:         logger.Named("provisioning"),
	}
}

// ProvisionRequest is the input for creating a tenant
type ProvisionRequest struct {
	Name         string      `json:"name" binding:"required"`
	Slug         string      `json:"slug" binding:"omitempty,slug"`
	Plan         tenant.Plan `json:"plan"`
	BillingEmail string      `json:"billing_email"`
	OwnerUserID  uuid.UUID   `json:"owner_user_id" binding:"required"`
}

// Provision creates a tenant and its storage schema. The returned tenant
// is active on success and failed when schema creation did not complete.
func (s *ProvisioningService) Provision(ctx context.Context, req ProvisionRequest) (*tenant.Tenant, error) {
	slug := req.Slug
	if slug == "" {
		derived, err := tenant.DeriveSlug(req.Name)
		if err != nil {
			return nil, err
		}
		slug = derived
	}

	t, err := tenant.NewTenant(req.Name, slug, req.Plan, req.BillingEmail)
	if err != nil {
		return nil, err
	}
	if req.OwnerUserID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner user id is required")
	}

	// The row goes in first: concurrent requests for the same slug are
	// serialized by the unique index, and a later crash leaves a visible
	// creating row instead of an orphan schema.
	if err := s.tenantRepo.Create(ctx, t); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainError("SLUG_EXISTS", "A tenant with this slug already exists")
		}
		return nil, err
	}

	if err := s.provisioner.CreateSchema(ctx, t.SchemaName); err != nil {
		s.logger.Error("schema creation failed",
			zap.String("tenant_id", t.ID.String()),
			zap.String("schema", t.SchemaName),
			zap.Error(err),
		)
		if failErr := t.MarkFailed(err.Error()); failErr == nil {
			if saveErr := s.tenantRepo.Save(ctx, t); saveErr != nil {
				s.logger.Error("failed to persist failed tenant status", zap.Error(saveErr))
			}
		}
		s.publishEvents(ctx, t)
		s.countProvisioning("failed")
		return nil, shared.NewDomainError("PROVISIONING_FAILED", "Tenant schema could not be created")
	}

	if err := t.Activate(); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, t); err != nil {
		return nil, err
	}

	owner, err := tenant.NewMembership(req.OwnerUserID, t.ID, tenant.RoleOwner)
	if err != nil {
		return nil, err
	}
	if err := s.membershipRepo.Upsert(ctx, owner); err != nil {
		// The tenant is usable; the owner can be attached again by a retry
		s.logger.Error("failed to create owner membership",
			zap.String("tenant_id", t.ID.String()),
			zap.Error(err),
		)
	}

	s.publishEvents(ctx, t)
	s.countProvisioning("active")
	s.logger.Info("tenant provisioned",
		zap.String("tenant_id", t.ID.String()),
		zap.String("slug", t.Slug),
		zap.String("schema", t.SchemaName),
	)
	return t, nil
}

// Get returns a tenant by id
func (s *ProvisioningService) Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.tenantRepo.FindByID(ctx, id)
}

// List returns tenants, optionally filtered by status
func (s *ProvisioningService) List(ctx context.Context, status *tenant.Status, filter shared.Filter) ([]tenant.Tenant, int64, error) {
	return s.tenantRepo.FindAll(ctx, status, filter)
}

// Suspend suspends an active tenant
func (s *ProvisioningService) Suspend(ctx context.Context, id uuid.UUID, reason string) (*tenant.Tenant, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.Suspend(reason)
	})
}

// Unsuspend reactivates a suspended tenant
func (s *ProvisioningService) Unsuspend(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.Activate()
	})
}

// Cancel terminates a tenant
func (s *ProvisioningService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*tenant.Tenant, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.Cancel(reason)
	})
}

// UpdateSettings replaces the tenant settings blob
func (s *ProvisioningService) UpdateSettings(ctx context.Context, id uuid.UUID, settings string) (*tenant.Tenant, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.UpdateSettings(settings)
	})
}

// UpdateBillingEmail changes the billing contact
func (s *ProvisioningService) UpdateBillingEmail(ctx context.Context, id uuid.UUID, email string) (*tenant.Tenant, error) {
	return s.mutate(ctx, id, func(t *tenant.Tenant) error {
		return t.SetBillingEmail(email)
	})
}

func (s *ProvisioningService) mutate(ctx context.Context, id uuid.UUID, fn func(*tenant.Tenant) error) (*tenant.Tenant, error) {
	t, err := s.tenantRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.tenantRepo.Save(ctx, t); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, t)
	return t, nil
}

// publishEvents flushes aggregate events to the bus, fire-and-forget
func (s *ProvisioningService) publishEvents(ctx context.Context, t *tenant.Tenant) {
	events := t.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish tenant events", zap.Error(err))
	}
	t.ClearDomainEvents()
}

func (s *ProvisioningService) countProvisioning(outcome string) {
	if s.metrics != nil {
		s.metrics.ProvisioningTotal.WithLabelValues(outcome).Inc()
	}
}
