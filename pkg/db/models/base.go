package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert so rows are portable between
// Postgres and the SQLite test database.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (c *Category) BeforeCreate(*gorm.DB) error           { assignID(&c.ID); return nil }
func (s *Sale) BeforeCreate(*gorm.DB) error               { assignID(&s.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error            { assignID(&p.ID); return nil }
func (d *Discount) BeforeCreate(*gorm.DB) error           { assignID(&d.ID); return nil }
func (r *DiscountRedemption) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (s *Staff) BeforeCreate(*gorm.DB) error              { assignID(&s.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error              { assignID(&o.ID); return nil }
func (l *OrderLineItem) BeforeCreate(*gorm.DB) error      { assignID(&l.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error        { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error          { assignID(&d.ID); return nil }

// All lists every persisted model, used by tests that build a schema with AutoMigrate.
func All() []any {
	return []any{
		&Category{},
		&SkuCounter{},
		&Sale{},
		&Product{},
		&Discount{},
		&DiscountRedemption{},
		&Staff{},
		&Order{},
		&OrderLineItem{},
		&Setting{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

func (Category) TableName() string           { return "categories" }
func (SkuCounter) TableName() string         { return "sku_counters" }
func (Sale) TableName() string               { return "sales" }
func (Product) TableName() string            { return "products" }
func (Discount) TableName() string           { return "discounts" }
func (DiscountRedemption) TableName() string { return "discount_redemptions" }
func (Staff) TableName() string              { return "staff" }
func (Order) TableName() string              { return "orders" }
func (OrderLineItem) TableName() string      { return "order_line_items" }
func (Setting) TableName() string            { return "settings" }
func (OutboxEvent) TableName() string        { return "outbox_events" }
func (OutboxDLQ) TableName() string          { return "outbox_dlq" }
