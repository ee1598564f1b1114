package paymentlink

import (
	"context"
	"fmt"
	"time"

	"github.com/payops/payops/internal/shared/id"
)

// Link is a single-use, time-boxed payment-update link bound to a client and
// a schedule. Only the token hash is stored.
type Link struct {
	id             string
	organizationID string
	clientID       string
	scheduleID     string
	tokenHash      string
	expiresAt      time.Time
	usedAt         *time.Time
	revokedAt      *time.Time
	createdAt      time.Time
}

func NewLink(organizationID, clientID, scheduleID, tokenHash string, ttl time.Duration, now time.Time) (*Link, error) {
	if clientID == "" || tokenHash == "" {
		return nil, fmt.Errorf("client and token are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("link ttl must be positive")
	}
	return &Link{
		id:             id.New(id.PrefixPaymentLink),
		organizationID: organizationID,
		clientID:       clientID,
		scheduleID:     scheduleID,
		tokenHash:      tokenHash,
		expiresAt:      now.Add(ttl),
		createdAt:      now,
	}, nil
}

func ReconstructLink(linkID, organizationID, clientID, scheduleID, tokenHash string, expiresAt time.Time, usedAt, revokedAt *time.Time, createdAt time.Time) *Link {
	return &Link{
		id:             linkID,
		organizationID: organizationID,
		clientID:       clientID,
		scheduleID:     scheduleID,
		tokenHash:      tokenHash,
		expiresAt:      expiresAt,
		usedAt:         usedAt,
		revokedAt:      revokedAt,
		createdAt:      createdAt,
	}
}

// ID returns the payment link ID.
func (l *Link) ID() string {
	return l.id
}

// OrganizationID returns the organization ID.
func (l *Link) OrganizationID() string {
	return l.organizationID
}

// ClientID returns the client ID.
func (l *Link) ClientID() string {
	return l.clientID
}

// ScheduleID returns the schedule ID.
func (l *Link) ScheduleID() string {
	return l.scheduleID
}

// TokenHash returns the token hash.
func (l *Link) TokenHash() string {
	return l.tokenHash
}

// ExpiresAt returns when the payment link stops being usable.
func (l *Link) ExpiresAt() time.Time {
	return l.expiresAt
}

// UsedAt returns when the payment link was used, or nil.
func (l *Link) UsedAt() *time.Time {
	return l.usedAt
}

// RevokedAt returns when the payment link was revoked, or nil.
func (l *Link) RevokedAt() *time.Time {
	return l.revokedAt
}

// CreatedAt returns when the payment link was created.
func (l *Link) CreatedAt() time.Time {
	return l.createdAt
}

func (l *Link) IsUsable(now time.Time) bool {
	return l.usedAt == nil && l.revokedAt == nil && now.Before(l.expiresAt)
}

// Consume marks the link used. A link works once.
func (l *Link) Consume(now time.Time) error {
	if !l.IsUsable(now) {
		return fmt.Errorf("payment link %s is no longer usable", l.id)
	}
	l.usedAt = &now
	return nil
}

type Repository interface {
	Create(ctx context.Context, link *Link) error
	// RevokeActive revokes every usable link of the client and schedule.
	RevokeActive(ctx context.Context, clientID, scheduleID string, now time.Time) (int64, error)
	FindByTokenHash(ctx context.Context, tokenHash string) (*Link, error)
	MarkUsed(ctx context.Context, link *Link) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
