package membership

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrRecordNotFound = errors.New("membership record not found")

// GormStore is the Postgres-backed ledger store.
type GormStore struct {
	DB      *gorm.DB
	Catalog *Catalog
}

func NewGormStore(db *gorm.DB, catalog *Catalog) *GormStore {
	return &GormStore{DB: db, Catalog: catalog}
}

// WithCustomer runs fn inside one transaction holding a row lock on the
// customer's record, so concurrent applications for the same customer
// serialize while different customers proceed in parallel.
func (s *GormStore) WithCustomer(ctx context.Context, customerID uint64, fn func(Txn) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTxn{tx: tx, customerID: customerID, baseTier: s.Catalog.TierFor(0)})
	})
}

type gormTxn struct {
	tx         *gorm.DB
	customerID uint64
	baseTier   Tier
}

func (t *gormTxn) Record() (*Record, error) {
	var rec Record
	err := t.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("customer_id = ?", t.customerID).
		First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// First order for this customer. A racing transaction creating the same
	// row fails on the primary key and surfaces to the caller for retry.
	now := time.Now()
	rec = Record{
		CustomerID: t.customerID,
		TierKey:    t.baseTier.Key,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := t.tx.Create(&rec).Error; err != nil {
		return nil, errors.Wrap(err, "create membership record")
	}
	return &rec, nil
}

func (t *gormTxn) OrderProcessed(orderID string) (bool, error) {
	var n int64
	err := t.tx.Model(&ProcessedOrder{}).
		Where("customer_id = ? AND order_id = ?", t.customerID, orderID).
		Count(&n).Error
	return n > 0, err
}

func (t *gormTxn) SaveRecord(rec *Record) error {
	return t.tx.Save(rec).Error
}

func (t *gormTxn) AddProcessedOrder(po *ProcessedOrder) error {
	return t.tx.Create(po).Error
}

func (t *gormTxn) AddTierTransition(tt *TierTransition) error {
	return t.tx.Create(tt).Error
}

// GetRecord loads one customer's ledger record for read-only use.
func (s *GormStore) GetRecord(ctx context.Context, customerID uint64) (*Record, error) {
	var rec Record
	err := s.DB.WithContext(ctx).Where("customer_id = ?", customerID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadTiers reads the tier table and builds the catalog.
func LoadTiers(ctx context.Context, db *gorm.DB) (*Catalog, error) {
	var tiers []Tier
	if err := db.WithContext(ctx).Order("required_spent asc").Find(&tiers).Error; err != nil {
		return nil, errors.Wrap(err, "load tiers")
	}
	return NewCatalog(tiers)
}

// SeedDefaultTiers inserts the default catalog when the tiers table is empty.
func SeedDefaultTiers(ctx context.Context, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Model(&Tier{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	return db.WithContext(ctx).Create(DefaultTiers()).Error
}
