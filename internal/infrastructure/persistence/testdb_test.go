package persistence

import (
	"testing"

	"github.com/noro/control-plane/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database with all control-plane
// tables migrated
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.TenantModel{},
		&models.MembershipModel{},
		&models.InvoiceModel{},
		&models.LedgerAccountModel{},
		&models.LedgerEntryModel{},
		&models.TicketModel{},
		&models.MessageModel{},
		&models.JobModel{},
		&models.AuditEventModel{},
	)
	require.NoError(t, err)

	return db
}
