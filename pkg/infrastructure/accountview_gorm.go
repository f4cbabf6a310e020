package infrastructure

import (
	"context"
	"errors"

	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
	"gorm.io/gorm"
)

// AccountViewRecord is the GORM schema for the account read model, mirroring
// application.AccountView one-for-one so Upsert/Get need no field mapping.
type AccountViewRecord struct {
	AccountID string `gorm:"primaryKey;size:255"`
	Owner     string `gorm:"size:255"`
	Currency  string `gorm:"size:8"`
	Balance   int64
	Closed    bool
	Version   int64
}

func (AccountViewRecord) TableName() string { return "account_views" }

// GormAccountViewStore implements application.AccountViewStore over GORM,
// the SQL-backed counterpart to application.InMemoryAccountViewStore.
type GormAccountViewStore struct {
	db *gorm.DB
}

func NewGormAccountViewStore(db *gorm.DB) *GormAccountViewStore {
	return &GormAccountViewStore{db: db}
}

func (s *GormAccountViewStore) Get(ctx context.Context, accountID string) (application.AccountView, error) {
	var record AccountViewRecord
	err := s.db.WithContext(ctx).First(&record, "account_id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return application.AccountView{}, domain.NewAggregateNotFoundError("account_view", accountID)
	}
	if err != nil {
		return application.AccountView{}, domain.NewEventStoreError("load account view "+accountID, err)
	}
	return application.AccountView{
		AccountID: record.AccountID,
		Owner:     record.Owner,
		Currency:  record.Currency,
		Balance:   record.Balance,
		Closed:    record.Closed,
		Version:   record.Version,
	}, nil
}

func (s *GormAccountViewStore) Upsert(ctx context.Context, view application.AccountView) error {
	record := AccountViewRecord{
		AccountID: view.AccountID,
		Owner:     view.Owner,
		Currency:  view.Currency,
		Balance:   view.Balance,
		Closed:    view.Closed,
		Version:   view.Version,
	}
	err := s.db.WithContext(ctx).Save(&record).Error
	if err != nil {
		return domain.NewEventStoreError("upsert account view "+view.AccountID, err)
	}
	return nil
}
