// Package store persists ledger entries and trades with gorm.
package store

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fd1az/dex-trader/business/ledger/domain"
	marketDomain "github.com/fd1az/dex-trader/business/market/domain"
	"github.com/fd1az/dex-trader/internal/apperror"
	"github.com/fd1az/dex-trader/internal/logger"
)

// OrderRecord is the ledger_orders row, one per ledger entry. An identity
// placed twice has two rows. Big integers are stored as decimal strings.
type OrderRecord struct {
	Seq              uint64 `gorm:"primaryKey;autoIncrement:false"`
	Market           string `gorm:"index:idx_ledger_identity;size:64"`
	PriceLevel       string `gorm:"index:idx_ledger_identity;size:80"`
	OrderKey         uint64 `gorm:"index:idx_ledger_identity"`
	Side             uint8
	Status           uint8 `gorm:"index"`
	QuantityEstimate string
	FilledQuantity   string
	RawSize          string
	FilledRaw        string
	TxHash           string `gorm:"size:66"`
	PlacedAt         int64
	UpdatedAt        int64
}

func (OrderRecord) TableName() string { return "ledger_orders" }

// TradeRecord is the ledger_trades row.
type TradeRecord struct {
	ID        uint64 `gorm:"primaryKey"`
	Market    string `gorm:"index;size:64"`
	Side      uint8
	AmountIn  string
	AmountOut string
	Price     string
	TxHash    string `gorm:"size:66"`
	Timestamp int64
	CreatedAt time.Time
}

func (TradeRecord) TableName() string { return "ledger_trades" }

// Store implements app.LedgerStore.
type Store struct {
	db     *gorm.DB
	logger logger.LoggerInterface
}

// Open connects with driver "sqlite" or "postgres" and migrates the schema.
func Open(driver, dsn string, log logger.LoggerInterface) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "sqlite", "":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContextf("unsupported store driver %q", driver))
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, apperror.New(apperror.CodeStoreReadFailed, apperror.WithCause(err), apperror.WithContextf("open %s", driver))
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log logger.LoggerInterface) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := db.AutoMigrate(&OrderRecord{}, &TradeRecord{}); err != nil {
		return nil, apperror.New(apperror.CodeStoreWriteFailed, apperror.WithCause(err), apperror.WithContext("migrate"))
	}
	return &Store{db: db, logger: log}, nil
}

// Load returns every ledger entry in first-seen order and every trade in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.Order, []domain.Trade, error) {
	var orderRows []OrderRecord
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&orderRows).Error; err != nil {
		return nil, nil, apperror.New(apperror.CodeStoreReadFailed, apperror.WithCause(err), apperror.WithContext("orders"))
	}
	var tradeRows []TradeRecord
	if err := s.db.WithContext(ctx).Order("id asc").Find(&tradeRows).Error; err != nil {
		return nil, nil, apperror.New(apperror.CodeStoreReadFailed, apperror.WithCause(err), apperror.WithContext("trades"))
	}

	orders := make([]domain.Order, 0, len(orderRows))
	for _, r := range orderRows {
		orders = append(orders, r.toDomain())
	}
	trades := make([]domain.Trade, 0, len(tradeRows))
	for _, r := range tradeRows {
		trades = append(trades, r.toDomain())
	}

	s.logger.Debug(ctx, "ledger loaded", "orders", len(orders), "trades", len(trades))
	return orders, trades, nil
}

// SaveBatch upserts ledger entries by Seq and appends trades in one transaction.
func (s *Store) SaveBatch(ctx context.Context, orders []domain.Order, trades []domain.Trade) error {
	if len(orders) == 0 && len(trades) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(orders) > 0 {
			rows := make([]OrderRecord, len(orders))
			for i := range orders {
				rows[i] = orderRecord(&orders[i])
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "seq"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"side", "status", "quantity_estimate", "filled_quantity",
					"raw_size", "filled_raw", "tx_hash", "placed_at", "updated_at",
				}),
			}).Create(&rows).Error
			if err != nil {
				return err
			}
		}

		if len(trades) > 0 {
			rows := make([]TradeRecord, len(trades))
			for i, t := range trades {
				rows[i] = tradeRecord(t)
			}
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperror.New(apperror.CodeStoreWriteFailed,
			apperror.WithCause(err),
			apperror.WithContextf("%d orders, %d trades", len(orders), len(trades)))
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orderRecord(o *domain.Order) OrderRecord {
	return OrderRecord{
		Seq:              o.Seq,
		Market:           string(o.Market),
		PriceLevel:       intString(o.PriceLevel),
		OrderKey:         o.OrderKey,
		Side:             uint8(o.Side),
		Status:           uint8(o.Status),
		QuantityEstimate: o.QuantityEstimate.String(),
		FilledQuantity:   o.FilledQuantity.String(),
		RawSize:          intString(o.RawSize),
		FilledRaw:        intString(o.FilledRaw),
		TxHash:           o.TxHash.Hex(),
		PlacedAt:         o.PlacedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

func (r OrderRecord) toDomain() domain.Order {
	return domain.Order{
		Seq:              r.Seq,
		PriceLevel:       parseInt(r.PriceLevel),
		OrderKey:         r.OrderKey,
		QuantityEstimate: parseDecimal(r.QuantityEstimate),
		Side:             domain.Side(r.Side),
		Market:           marketDomain.Key(r.Market),
		TxHash:           common.HexToHash(r.TxHash),
		PlacedAt:         r.PlacedAt,
		FilledQuantity:   parseDecimal(r.FilledQuantity),
		RawSize:          parseInt(r.RawSize),
		FilledRaw:        parseInt(r.FilledRaw),
		Status:           domain.Status(r.Status),
		UpdatedAt:        r.UpdatedAt,
	}
}

func tradeRecord(t domain.Trade) TradeRecord {
	return TradeRecord{
		Market:    string(t.Market),
		Side:      uint8(t.Side),
		AmountIn:  intString(t.AmountIn),
		AmountOut: intString(t.AmountOut),
		Price:     intString(t.Price),
		TxHash:    t.TxHash.Hex(),
		Timestamp: t.Timestamp,
	}
}

func (r TradeRecord) toDomain() domain.Trade {
	return domain.Trade{
		AmountIn:  parseInt(r.AmountIn),
		AmountOut: parseInt(r.AmountOut),
		Side:      domain.Side(r.Side),
		Price:     parseInt(r.Price),
		Market:    marketDomain.Key(r.Market),
		TxHash:    common.HexToHash(r.TxHash),
		Timestamp: r.Timestamp,
	}
}

func intString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func parseInt(s string) *big.Int {
	x, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return x
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
