package provisioning

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// schemaNamePattern guards the identifier interpolated into DDL. Schema
// names are derived from validated slugs, so this is a second line of
// defense, not the primary validation.
var schemaNamePattern = regexp.MustCompile(`^tenant_[a-z0-9_]{1,70}$`)

// SchemaProvisioner creates per-tenant database schemas
type SchemaProvisioner interface {
	// CreateSchema creates the tenant's schema. Idempotent: an existing
	// schema is not an error.
	CreateSchema(ctx context.Context, schemaName string) error
}

// PostgresSchemaProvisioner provisions schemas with CREATE SCHEMA IF NOT
// EXISTS, bounded by a timeout
type PostgresSchemaProvisioner struct {
	db      *gorm.DB
	timeout time.Duration
	logger  *zap.Logger
}

// NewPostgresSchemaProvisioner creates a new PostgresSchemaProvisioner
func NewPostgresSchemaProvisioner(db *gorm.DB, timeout time.Duration, logger *zap.Logger) *PostgresSchemaProvisioner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresSchemaProvisioner{db: db, timeout: timeout, logger: logger.Named("provisioner")}
}

// CreateSchema creates the schema if it does not exist. Identifiers cannot
// be bound as statement parameters, so the name is validated against a
// strict pattern before interpolation.
func (p *PostgresSchemaProvisioner) CreateSchema(ctx context.Context, schemaName string) error {
	if !schemaNamePattern.MatchString(schemaName) {
		return fmt.Errorf("invalid schema name %q", schemaName)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	stmt := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %q`, schemaName)
	if err := p.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		p.logger.Error("schema creation failed",
			zap.String("schema", schemaName),
			zap.Error(err),
		)
		return fmt.Errorf("create schema %s: %w", schemaName, err)
	}

	p.logger.Info("schema ready",
		zap.String("schema", schemaName),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
