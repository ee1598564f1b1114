package usecases

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/payops/payops/internal/domain/paymentlink"
	"github.com/payops/payops/internal/domain/shared/services"
	"github.com/payops/payops/internal/shared/biztime"
	"github.com/payops/payops/internal/shared/db"
	apperrors "github.com/payops/payops/internal/shared/errors"
	"github.com/payops/payops/internal/shared/logger"
)

const (
	DefaultPaymentLinkTTL  = 24 * time.Hour
	paymentLinkTokenPrefix = "pl"
)

// PaymentLinkIssuer stores links in the database. Issuing a link revokes
// every usable link of the same client and schedule.
type PaymentLinkIssuer struct {
	linkRepo paymentlink.Repository
	tokens   services.TokenGenerator
	baseURL  string
	ttl      time.Duration
	clock    biztime.Clock
	logger   logger.Interface
}

func NewPaymentLinkIssuer(
	linkRepo paymentlink.Repository,
	tokens services.TokenGenerator,
	baseURL string,
	ttl time.Duration,
	clock biztime.Clock,
	logger logger.Interface,
) *PaymentLinkIssuer {
	if ttl <= 0 {
		ttl = DefaultPaymentLinkTTL
	}
	return &PaymentLinkIssuer{
		linkRepo: linkRepo,
		tokens:   tokens,
		baseURL:  strings.TrimRight(baseURL, "/"),
		ttl:      ttl,
		clock:    clock,
		logger:   logger,
	}
}

func (i *PaymentLinkIssuer) Issue(ctx context.Context, organizationID, clientID, scheduleID string) (*IssuedLink, error) {
	if i.baseURL == "" {
		return nil, apperrors.NewConfigurationError("payment link base url is not configured")
	}
	now := i.clock.Now()
	revoked, err := i.linkRepo.RevokeActive(ctx, clientID, scheduleID, now)
	if err != nil {
		return nil, err
	}

	token, hash, err := i.tokens.Generate(paymentLinkTokenPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment link token: %w", err)
	}
	link, err := paymentlink.NewLink(organizationID, clientID, scheduleID, hash, i.ttl, now)
	if err != nil {
		return nil, err
	}
	if err := i.linkRepo.Create(ctx, link); err != nil {
		return nil, err
	}

	i.logger.Infow("payment link issued",
		"link_id", link.ID(),
		"client_id", clientID,
		"schedule_id", scheduleID,
		"revoked", revoked,
		"expires_at", link.ExpiresAt(),
	)
	return &IssuedLink{
		LinkID:    link.ID(),
		Token:     token,
		URL:       i.baseURL + "/" + url.PathEscape(token),
		ExpiresAt: link.ExpiresAt(),
	}, nil
}

type RedeemPaymentLinkCommand struct {
	Token string
}

type RedeemPaymentLinkResult struct {
	OrganizationID string `json:"organization_id"`
	ClientID       string `json:"client_id"`
	ScheduleID     string `json:"schedule_id"`
}

// RedeemPaymentLinkUseCase consumes a link once. Expired, revoked and used
// links are rejected alike.
type RedeemPaymentLinkUseCase struct {
	linkRepo paymentlink.Repository
	tokens   services.TokenGenerator
	txMgr    db.Transactor
	clock    biztime.Clock
	logger   logger.Interface
}

func NewRedeemPaymentLinkUseCase(
	linkRepo paymentlink.Repository,
	tokens services.TokenGenerator,
	txMgr db.Transactor,
	clock biztime.Clock,
	logger logger.Interface,
) *RedeemPaymentLinkUseCase {
	return &RedeemPaymentLinkUseCase{
		linkRepo: linkRepo,
		tokens:   tokens,
		txMgr:    txMgr,
		clock:    clock,
		logger:   logger,
	}
}

func (uc *RedeemPaymentLinkUseCase) Execute(ctx context.Context, cmd RedeemPaymentLinkCommand) (*RedeemPaymentLinkResult, error) {
	if !strings.HasPrefix(cmd.Token, paymentLinkTokenPrefix+"_") {
		return nil, apperrors.NewValidationError("invalid payment link token")
	}

	var result *RedeemPaymentLinkResult
	err := uc.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		link, err := uc.linkRepo.FindByTokenHash(ctx, uc.tokens.Hash(cmd.Token))
		if err != nil {
			return err
		}
		if err := link.Consume(uc.clock.Now()); err != nil {
			return apperrors.NewConflictError("payment link is expired or already used")
		}
		if err := uc.linkRepo.MarkUsed(ctx, link); err != nil {
			return err
		}
		result = &RedeemPaymentLinkResult{
			OrganizationID: link.OrganizationID(),
			ClientID:       link.ClientID(),
			ScheduleID:     link.ScheduleID(),
		}
		return nil
	})
	if err != nil {
		uc.logger.Warnw("payment link redemption refused", "error", err)
		return nil, err
	}
	uc.logger.Infow("payment link redeemed", "client_id", result.ClientID, "schedule_id", result.ScheduleID)
	return result, nil
}

// PurgePaymentLinksUseCase deletes links that expired before the retention
// window.
type PurgePaymentLinksUseCase struct {
	linkRepo  paymentlink.Repository
	retention time.Duration
	clock     biztime.Clock
	logger    logger.Interface
}

func NewPurgePaymentLinksUseCase(linkRepo paymentlink.Repository, retention time.Duration, clock biztime.Clock, logger logger.Interface) *PurgePaymentLinksUseCase {
	return &PurgePaymentLinksUseCase{
		linkRepo:  linkRepo,
		retention: retention,
		clock:     clock,
		logger:    logger,
	}
}

func (uc *PurgePaymentLinksUseCase) Execute(ctx context.Context) (int64, error) {
	n, err := uc.linkRepo.DeleteExpired(ctx, uc.clock.Now().Add(-uc.retention))
	if err != nil {
		uc.logger.Errorw("failed to purge payment links", "error", err)
		return 0, err
	}
	if n > 0 {
		uc.logger.Infow("expired payment links purged", "count", n)
	}
	return n, nil
}
