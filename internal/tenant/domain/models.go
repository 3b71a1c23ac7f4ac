// Package domain contains persistence models for tenant municipalities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TenantStatus represents lifecycle states for a tenant subscription.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusTrial     TenantStatus = "TRIAL"
	TenantStatusSuspended TenantStatus = "SUSPENDED"
	TenantStatusCancelled TenantStatus = "CANCELLED"
)

// Tenant captures a municipality account and its subscription terms.
// The metrics engine only ever reads these rows.
type Tenant struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"not null" json:"name"`
	Slug         string            `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	Status       TenantStatus      `gorm:"type:text;not null;index" json:"status"`
	Plan         string            `gorm:"type:text" json:"plan,omitempty"`
	MonthlyPrice *int64            `gorm:"" json:"monthly_price,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }
