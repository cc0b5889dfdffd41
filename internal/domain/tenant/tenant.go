package tenant

import (
	"strings"

	"github.com/noro/control-plane/internal/domain/shared"
)

// Status represents the provisioning/lifecycle status of a tenant
type Status string

const (
	StatusCreating  Status = "creating"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Plan represents the subscription plan of a tenant
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// DefaultPlan is assigned when no plan is requested
const DefaultPlan = PlanStarter

// Tenant represents a customer organization with its own storage namespace.
// It is the aggregate root for provisioning and lifecycle operations; the
// tenant row is the single source of truth for provisioning status.
type Tenant struct {
	shared.BaseAggregateRoot
	Name         string
	Slug         string
	SchemaName   string
	Plan         Plan
	Status       Status
	BillingEmail string
	Settings     string
	StatusReason string
}

// NewTenant creates a tenant in the creating state. The row must be
// persisted before any external provisioning side effect so partial
// failures stay observable.
func NewTenant(name, slug string, plan Plan, billingEmail string) (*Tenant, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if plan == "" {
		plan = DefaultPlan
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}

	t := &Tenant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		Slug:              slug,
		SchemaName:        SchemaNameForSlug(slug),
		Plan:              plan,
		Status:            StatusCreating,
		BillingEmail:      billingEmail,
		Settings:          "{}",
	}
	return t, nil
}

// SchemaNameForSlug derives the storage namespace identifier for a slug.
// The result is stored on the tenant row at creation time; call sites must
// read it from there instead of re-deriving it.
func SchemaNameForSlug(slug string) string {
	return "tenant_" + strings.ReplaceAll(slug, "-", "_")
}

// Activate marks the tenant usable after successful schema creation
func (t *Tenant) Activate() error {
	switch t.Status {
	case StatusCreating, StatusSuspended:
	case StatusActive:
		return shared.NewDomainError("ALREADY_ACTIVE", "Tenant is already active")
	default:
		return shared.NewDomainError("INVALID_STATE", "Tenant cannot be activated from status "+string(t.Status))
	}

	old := t.Status
	t.Status = StatusActive
	t.StatusReason = ""
	t.Touch()

	if old == StatusCreating {
		t.AddDomainEvent(NewTenantCreatedEvent(t))
	} else {
		t.AddDomainEvent(NewTenantStatusChangedEvent(t, old))
	}
	return nil
}

// MarkFailed records a provisioning failure. Failed tenants never recover
// automatically; a new provisioning attempt needs a fresh tenant row.
func (t *Tenant) MarkFailed(reason string) error {
	if t.Status != StatusCreating {
		return shared.NewDomainError("INVALID_STATE", "Only tenants being provisioned can fail")
	}
	old := t.Status
	t.Status = StatusFailed
	t.StatusReason = reason
	t.Touch()
	t.AddDomainEvent(NewTenantStatusChangedEvent(t, old))
	return nil
}

// Suspend suspends an active tenant (payment failure, policy violation)
func (t *Tenant) Suspend(reason string) error {
	if t.Status != StatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active tenants can be suspended")
	}
	t.Status = StatusSuspended
	t.StatusReason = reason
	t.Touch()
	t.AddDomainEvent(NewTenantSuspendedEvent(t, reason))
	return nil
}

// Cancel terminates the tenant. Terminal; cancelled tenants keep their
// schema for retention but are never served again.
func (t *Tenant) Cancel(reason string) error {
	switch t.Status {
	case StatusActive, StatusSuspended:
	default:
		return shared.NewDomainError("INVALID_STATE", "Only active or suspended tenants can be cancelled")
	}
	old := t.Status
	t.Status = StatusCancelled
	t.StatusReason = reason
	t.Touch()
	t.AddDomainEvent(NewTenantCancelledEvent(t, old))
	return nil
}

// UpdateSettings replaces the settings JSON blob
func (t *Tenant) UpdateSettings(settings string) error {
	if settings == "" {
		settings = "{}"
	}
	if len(settings) > 64*1024 {
		return shared.NewDomainError("INVALID_SETTINGS", "Settings payload too large")
	}
	t.Settings = settings
	t.Touch()
	return nil
}

// SetBillingEmail updates the billing contact address
func (t *Tenant) SetBillingEmail(email string) error {
	if email != "" && len(email) > 200 {
		return shared.NewDomainError("INVALID_EMAIL", "Billing email cannot exceed 200 characters")
	}
	t.BillingEmail = email
	t.Touch()
	return nil
}

// IsActive returns true if the tenant is active
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// IsSuspended returns true if the tenant is suspended
func (t *Tenant) IsSuspended() bool {
	return t.Status == StatusSuspended
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Tenant name cannot exceed 200 characters")
	}
	return nil
}

func validatePlan(plan Plan) error {
	switch plan {
	case PlanStarter, PlanPro, PlanEnterprise:
		return nil
	default:
		return shared.NewDomainError("INVALID_PLAN", "Invalid tenant plan")
	}
}
