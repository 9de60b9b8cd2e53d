package domain

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role of an authenticated caller.
type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

// ParseRole defaults unknown or empty roles to USER.
func ParseRole(s string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleSuperAdmin:
		return r
	default:
		return RoleUser
	}
}

// Principal is the caller forwarded by the gateway.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the principal may act on any user's records.
func (p *Principal) IsAdmin() bool {
	return p != nil && (p.Role == RoleAdmin || p.Role == RoleSuperAdmin)
}

// Owns reports whether the principal may act on records of userID.
func (p *Principal) Owns(userID uuid.UUID) bool {
	return p != nil && (p.IsAdmin() || p.UserID == userID)
}

// Plan is a subscription plan owned by the catalog.
type Plan struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
	Features     []string        `json:"features"`
	IsActive     bool            `json:"is_active"`
}

// CycleEnd returns the end of a cycle of this plan starting at start.
func (p *Plan) CycleEnd(start time.Time) time.Time {
	return start.AddDate(0, 0, p.DurationDays)
}

// SubscriptionType gates content.
type SubscriptionType string

const (
	SubscriptionTypeFree    SubscriptionType = "FREE"
	SubscriptionTypePremium SubscriptionType = "PREMIUM"
)

// Content is a watchable item owned by the catalog.
type Content struct {
	ID               uuid.UUID        `json:"id"`
	Title            string           `json:"title"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	ViewCount        int64            `json:"view_count"`
}

// IsPremium reports whether access needs an active subscription.
func (c *Content) IsPremium() bool {
	return c.SubscriptionType == SubscriptionTypePremium
}

// User is the owner summary shown on admin reads.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	IsActive bool      `json:"is_active"`
}

// UserDirectory answers identity questions owned by the user service.
// Get returns nil when the user does not exist.
type UserDirectory interface {
	ExistsAndActive(ctx context.Context, userID uuid.UUID) (bool, error)
	Exists(ctx context.Context, userID uuid.UUID) (bool, error)
	Get(ctx context.Context, userID uuid.UUID) (*User, error)
}

// PlanCatalog reads plans. Get returns nil when the plan does not exist.
type PlanCatalog interface {
	Get(ctx context.Context, planID uuid.UUID) (*Plan, error)
	ListActive(ctx context.Context) ([]Plan, error)
}

// ContentCatalog reads content and counts views. Get returns nil when the
// content does not exist.
type ContentCatalog interface {
	Get(ctx context.Context, contentID uuid.UUID) (*Content, error)
	IncrementViewCount(ctx context.Context, contentID uuid.UUID) error
}
