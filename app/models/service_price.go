package models

import "time"

// ServicePrice is one cost catalog entry. ServiceName is stored lowercase
// and looked up case-insensitively. A TokenCost of zero is a valid price
// (free/promotional service) and is distinct from the service not existing;
// IsActive controls whether the service is offered at all.
type ServicePrice struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ServiceName string    `gorm:"type:varchar(100);not null;uniqueIndex:ux_service_prices_name" json:"service_name"`
	TokenCost   int64     `gorm:"not null;default:0" json:"token_cost"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
