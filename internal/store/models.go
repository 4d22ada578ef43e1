package store

import (
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/shopspring/decimal"
)

type walletModel struct {
	ID        uint            `gorm:"column:id;primaryKey"`
	UserID    string          `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null"`
	Currency  string          `gorm:"column:currency;type:varchar(3);not null"`
	Version   int64           `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (walletModel) TableName() string { return "wallets" }

type transactionModel struct {
	ID           uint            `gorm:"column:id;primaryKey"`
	UserID       string          `gorm:"column:user_id;type:varchar(64);index:idx_wallet_tx_user;not null"`
	Type         string          `gorm:"column:type;type:varchar(4);not null"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null"`
	Symbol       string          `gorm:"column:symbol;type:varchar(20);not null"`
	Quantity     int64           `gorm:"column:quantity;not null"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null"`
	BalanceAfter decimal.Decimal `gorm:"column:balance_after;type:decimal(20,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (transactionModel) TableName() string { return "wallet_transactions" }

type holdingModel struct {
	ID        uint            `gorm:"column:id;primaryKey"`
	UserID    string          `gorm:"column:user_id;type:varchar(64);uniqueIndex:idx_holdings_user_symbol;not null"`
	Symbol    string          `gorm:"column:symbol;type:varchar(20);uniqueIndex:idx_holdings_user_symbol;not null"`
	Quantity  int64           `gorm:"column:quantity;not null"`
	AvgCost   decimal.Decimal `gorm:"column:avg_cost;type:decimal(20,4);not null"`
	LastPrice decimal.Decimal `gorm:"column:last_price;type:decimal(20,2);not null"`
	Version   int64           `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time       `gorm:"column:created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at"`
}

func (holdingModel) TableName() string { return "holdings" }

type orderModel struct {
	ID          uint            `gorm:"column:id;primaryKey"`
	OrderID     string          `gorm:"column:order_id;type:varchar(36);uniqueIndex;not null"`
	UserID      string          `gorm:"column:user_id;type:varchar(64);index:idx_orders_user;not null"`
	Symbol      string          `gorm:"column:symbol;type:varchar(20);not null"`
	Quantity    int64           `gorm:"column:quantity;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null"`
	TotalAmount decimal.Decimal `gorm:"column:total_amount;type:decimal(20,2);not null"`
	Mode        string          `gorm:"column:mode;type:varchar(4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

func (orderModel) TableName() string { return "orders" }

func toWallet(m *walletModel) *domain.Wallet {
	return &domain.Wallet{
		UserID:    m.UserID,
		Balance:   m.Balance,
		Currency:  m.Currency,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toTransaction(m *transactionModel) domain.Transaction {
	return domain.Transaction{
		Type:         domain.Mode(m.Type),
		Amount:       m.Amount,
		Symbol:       m.Symbol,
		Quantity:     m.Quantity,
		Price:        m.Price,
		BalanceAfter: m.BalanceAfter,
		Timestamp:    m.CreatedAt,
	}
}

func toHolding(m *holdingModel) *domain.Holding {
	return &domain.Holding{
		UserID:    m.UserID,
		Symbol:    m.Symbol,
		Quantity:  m.Quantity,
		AvgCost:   m.AvgCost,
		LastPrice: m.LastPrice,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toOrder(m *orderModel) *domain.Order {
	return &domain.Order{
		OrderID:   m.OrderID,
		UserID:    m.UserID,
		Symbol:    m.Symbol,
		Quantity:  m.Quantity,
		Price:     m.Price,
		Mode:      domain.Mode(m.Mode),
		CreatedAt: m.CreatedAt,
	}
}
