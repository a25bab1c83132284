package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	gateway "github.com/mselim/campaign-gateway/internal/gateways"
	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/mselim/campaign-gateway/pkg/prom"
)

var (
	ErrSessionRevoked = errors.New("telegram session was revoked mid-batch")
)

const notFoundMessage = "No Telegram account found for this phone number"

type CampaignRepository interface {
	GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error)
	Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
	IncrementCounters(ctx context.Context, id int64, sent, delivered, failed int64) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContactRepository interface {
	ListPending(ctx context.Context, campaignID int64, limit int) ([]*model.Contact, error)
	Claim(ctx context.Context, id int64) (bool, error)
	Release(ctx context.Context, id int64) error
	Finalize(ctx context.Context, id int64, status model.ContactStatus, errMsg string, sentAt *time.Time) error
	CountPending(ctx context.Context, campaignID int64) (int64, error)
}

type MessageGateway interface {
	ResolvePhone(ctx context.Context, sessionKey, phoneNumber string) (string, error)
	SendMessage(ctx context.Context, sessionKey, peerID, text string) (*gateway.SendResult, error)
}

// Limiter paces outgoing sends. Wait blocks until a send slot is free.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Executor struct {
	campaigns CampaignRepository
	contacts  ContactRepository
	bridge    MessageGateway
	limiter   Limiter
}

func New(campaigns CampaignRepository, contacts ContactRepository, bridge MessageGateway, limiter Limiter) *Executor {
	return &Executor{
		campaigns: campaigns,
		contacts:  contacts,
		bridge:    bridge,
		limiter:   limiter,
	}
}

// RunBatch sends up to batchSize pending contacts for the campaign.
// Each contact is claimed before sending so concurrent batches never
// pick the same row. The campaign status is re-read between contacts,
// a pause lands at the next contact boundary.
func (e *Executor) RunBatch(ctx context.Context, campaign *model.Campaign, session *model.Session, batchSize int) (*model.BatchResult, error) {
	if !session.IsAuthenticated() {
		return nil, errors.New("session is not authenticated")
	}

	pending, err := e.contacts.ListPending(ctx, campaign.ID, batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	result := &model.BatchResult{}
	for _, contact := range pending {
		status, err := e.campaigns.GetStatus(ctx, campaign.ID)
		if err != nil {
			return result, fmt.Errorf("read campaign status: %w", err)
		}
		if status != model.CampaignStatusRunning {
			logger.Info("Batch stopped, campaign no longer running", "campaign_id", campaign.ID, "status", string(status))
			break
		}

		claimed, err := e.contacts.Claim(ctx, contact.ID)
		if err != nil {
			return result, fmt.Errorf("claim contact: %w", err)
		}
		if !claimed {
			// Another batch got there first.
			continue
		}

		if err := e.sendOne(ctx, campaign, session, contact, result); err != nil {
			return result, err
		}

		waitStart := time.Now()
		if err := e.limiter.Wait(ctx); err != nil {
			return result, err
		}
		prom.ObserveRateLimitWait(time.Since(waitStart).Seconds())
	}

	remaining, err := e.contacts.CountPending(ctx, campaign.ID)
	if err != nil {
		return result, fmt.Errorf("count pending: %w", err)
	}
	result.Remaining = remaining

	if remaining == 0 {
		completed, err := e.campaigns.Transition(ctx, campaign.ID,
			[]model.CampaignStatus{model.CampaignStatusRunning},
			model.CampaignStatusCompleted)
		if err != nil {
			return result, fmt.Errorf("complete campaign: %w", err)
		}
		if completed {
			logger.Info("Campaign completed", "campaign_id", campaign.ID)
		}
	}

	prom.ObserveBatch()

	return result, nil
}

func (e *Executor) sendOne(ctx context.Context, campaign *model.Campaign, session *model.Session, contact *model.Contact, result *model.BatchResult) error {
	start := time.Now()

	peerID, err := e.bridge.ResolvePhone(ctx, session.SessionKey, contact.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrPeerNotFound):
			return e.finalize(ctx, campaign.ID, contact.ID, model.ContactStatusNotFound, notFoundMessage, nil, result)
		case errors.Is(err, gateway.ErrUnauthorized):
			// The whole batch is doomed, put the contact back for a later run.
			if rerr := e.contacts.Release(ctx, contact.ID); rerr != nil {
				logger.Error("Failed to release contact", "contact_id", contact.ID, "error", rerr)
			}
			return ErrSessionRevoked
		default:
			return e.finalize(ctx, campaign.ID, contact.ID, model.ContactStatusFailed, err.Error(), nil, result)
		}
	}

	text := RenderTemplate(campaign.MessageTemplate, contact)

	sent, err := e.bridge.SendMessage(ctx, session.SessionKey, peerID, text)
	if err != nil {
		if errors.Is(err, gateway.ErrUnauthorized) {
			if rerr := e.contacts.Release(ctx, contact.ID); rerr != nil {
				logger.Error("Failed to release contact", "contact_id", contact.ID, "error", rerr)
			}
			return ErrSessionRevoked
		}
		return e.finalize(ctx, campaign.ID, contact.ID, model.ContactStatusFailed, err.Error(), nil, result)
	}

	status := model.ContactStatusSent
	if sent.Delivered {
		status = model.ContactStatusDelivered
	}
	now := time.Now()

	prom.ObserveContactSend(string(status), time.Since(start).Seconds())

	return e.finalize(ctx, campaign.ID, contact.ID, status, "", &now, result)
}

// finalize records the contact outcome and bumps the campaign counters
// in the same transaction.
func (e *Executor) finalize(ctx context.Context, campaignID, contactID int64, status model.ContactStatus, errMsg string, sentAt *time.Time, result *model.BatchResult) error {
	var sent, delivered, failed int64
	switch status {
	case model.ContactStatusSent:
		sent = 1
		result.Sent++
	case model.ContactStatusDelivered:
		sent = 1
		delivered = 1
		result.Sent++
	case model.ContactStatusFailed, model.ContactStatusNotFound:
		failed = 1
		result.Failed++
		prom.ObserveContactSend(string(status), 0)
	}

	err := e.campaigns.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := e.contacts.Finalize(ctx, contactID, status, errMsg, sentAt); err != nil {
			return fmt.Errorf("finalize contact: %w", err)
		}
		return e.campaigns.IncrementCounters(ctx, campaignID, sent, delivered, failed)
	})
	if err != nil {
		return err
	}

	if errMsg != "" {
		logger.Debug("Contact finalized", "contact_id", contactID, "status", string(status), "error", errMsg)
	}

	return nil
}
