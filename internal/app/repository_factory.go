package app

import (
	"fmt"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/catalog"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/persistence"
)

// RepositoryFactory creates repositories based on the database driver.
type RepositoryFactory struct {
	conn   database.Connection
	driver database.Driver
	cipher *crypto.FieldCipher
}

// NewRepositoryFactory creates a new repository factory. cipher seals
// payment details at rest and may be nil.
func NewRepositoryFactory(conn database.Connection, cipher *crypto.FieldCipher) *RepositoryFactory {
	return &RepositoryFactory{
		conn:   conn,
		driver: conn.Driver(),
		cipher: cipher,
	}
}

// SubscriptionRepository creates a subscription repository for the configured driver.
func (f *RepositoryFactory) SubscriptionRepository() (domain.SubscriptionRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return persistence.NewPostgresSubscriptionRepository(f.conn), nil
	case database.DriverSQLite:
		return persistence.NewSQLiteSubscriptionRepository(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

// PaymentRepository creates a payment repository for the configured driver.
func (f *RepositoryFactory) PaymentRepository() (domain.PaymentRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return persistence.NewPostgresPaymentRepository(f.conn, f.cipher), nil
	case database.DriverSQLite:
		return persistence.NewSQLitePaymentRepository(f.conn, f.cipher), nil
	default:
		return nil, f.unsupported()
	}
}

// HistoryRepository creates a history repository for the configured driver.
func (f *RepositoryFactory) HistoryRepository() (domain.HistoryRepository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return persistence.NewPostgresHistoryRepository(f.conn), nil
	case database.DriverSQLite:
		return persistence.NewSQLiteHistoryRepository(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

// UserDirectory creates a user reader for the configured driver.
func (f *RepositoryFactory) UserDirectory() (domain.UserDirectory, error) {
	switch f.driver {
	case database.DriverPostgres:
		return catalog.NewPostgresUserDirectory(f.conn), nil
	case database.DriverSQLite:
		return catalog.NewSQLiteUserDirectory(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

// PlanCatalog creates an uncached plan reader for the configured driver.
func (f *RepositoryFactory) PlanCatalog() (domain.PlanCatalog, error) {
	switch f.driver {
	case database.DriverPostgres:
		return catalog.NewPostgresPlanCatalog(f.conn), nil
	case database.DriverSQLite:
		return catalog.NewSQLitePlanCatalog(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

// ContentCatalog creates a content reader for the configured driver.
func (f *RepositoryFactory) ContentCatalog() (domain.ContentCatalog, error) {
	switch f.driver {
	case database.DriverPostgres:
		return catalog.NewPostgresContentCatalog(f.conn), nil
	case database.DriverSQLite:
		return catalog.NewSQLiteContentCatalog(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

// OutboxRepository creates an outbox repository for the configured driver.
func (f *RepositoryFactory) OutboxRepository() (outbox.Repository, error) {
	switch f.driver {
	case database.DriverPostgres:
		return outbox.NewPostgresRepository(f.conn), nil
	case database.DriverSQLite:
		return outbox.NewSQLiteRepository(f.conn), nil
	default:
		return nil, f.unsupported()
	}
}

func (f *RepositoryFactory) unsupported() error {
	return fmt.Errorf("unsupported driver: %s", f.driver)
}
