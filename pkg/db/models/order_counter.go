package models

import "time"

// OrderCounter is a single-row table backing atomic order number allocation.
// The next number is claimed with an UPDATE inside the order transaction, so
// concurrent checkouts serialize on the row lock instead of racing a
// read-max-then-insert.
type OrderCounter struct {
	ID        int       `gorm:"column:id;primaryKey"`
	Prefix    string    `gorm:"column:prefix;not null;default:'KK'"`
	NextValue int64     `gorm:"column:next_value;not null;default:1"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderCounter) TableName() string { return "order_counters" }
