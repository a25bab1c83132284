package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/pkg/logger"
)

var (
	ErrCampaignNotStartable = errors.New("campaign cannot be started from its current status")
	ErrCampaignNotPausable  = errors.New("only running campaigns can be paused")
	ErrCampaignRunning      = errors.New("running campaigns cannot be deleted, pause first")
	ErrNoContacts           = errors.New("campaign has no pending contacts")
)

type CampaignRepository interface {
	Create(ctx context.Context, c *model.Campaign) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error)
	List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error)
	Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
	Delete(ctx context.Context, id int64) error
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ContactCounter interface {
	CountPending(ctx context.Context, campaignID int64) (int64, error)
	CountByStatus(ctx context.Context, campaignID int64) (map[model.ContactStatus]int64, error)
	DeleteByCampaign(ctx context.Context, campaignID int64) error
}

type SessionProvider interface {
	ActiveSession(ctx context.Context) (*model.Session, error)
}

// BatchRunner executes one batch of sends for a running campaign.
type BatchRunner interface {
	RunBatch(ctx context.Context, campaign *model.Campaign, session *model.Session, batchSize int) (*model.BatchResult, error)
}

type CampaignService struct {
	campaigns CampaignRepository
	contacts  ContactCounter
	auth      SessionProvider
	runner    BatchRunner
	batchSize int
}

func NewCampaignService(campaigns CampaignRepository, contacts ContactCounter, auth SessionProvider, runner BatchRunner, batchSize int) *CampaignService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &CampaignService{
		campaigns: campaigns,
		contacts:  contacts,
		auth:      auth,
		runner:    runner,
		batchSize: batchSize,
	}
}

func (s *CampaignService) Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Name:            p.Name,
		Description:     p.Description,
		MessageTemplate: p.MessageTemplate,
		Status:          model.CampaignStatusDraft,
		ScheduledAt:     p.ScheduledAt,
	}
	if p.ScheduledAt != nil {
		if p.ScheduledAt.Before(time.Now()) {
			return nil, errors.New("scheduled_at must be in the future")
		}
		c.Status = model.CampaignStatusScheduled
	}

	created, err := s.campaigns.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	logger.Info("Campaign created", "campaign_id", created.ID, "name", created.Name, "status", string(created.Status))

	return created, nil
}

func (s *CampaignService) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

func (s *CampaignService) List(ctx context.Context, f model.CampaignFilter) ([]*model.Campaign, int64, error) {
	return s.campaigns.List(ctx, f)
}

// Start moves the campaign to running and executes one send batch
// synchronously. Further batches are picked up by the runner daemon.
func (s *CampaignService) Start(ctx context.Context, id int64, batchSize int) (*model.BatchResult, error) {
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	session, err := s.auth.ActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	pending, err := s.contacts.CountPending(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count pending: %w", err)
	}
	if pending == 0 {
		return nil, ErrNoContacts
	}

	ok, err := s.campaigns.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusDraft, model.CampaignStatusScheduled, model.CampaignStatusPaused},
		model.CampaignStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("transition campaign: %w", err)
	}
	if !ok {
		// Already running is fine, the batch below just joins in.
		status, serr := s.campaigns.GetStatus(ctx, id)
		if serr != nil {
			return nil, serr
		}
		if status != model.CampaignStatusRunning {
			return nil, ErrCampaignNotStartable
		}
	}

	logger.Info("Campaign started", "campaign_id", id, "batch_size", batchSize, "pending", pending)

	result, err := s.runner.RunBatch(ctx, campaign, session, batchSize)
	if err != nil && result == nil {
		// An engine fault with no partial progress marks the campaign failed.
		if _, terr := s.campaigns.Transition(ctx, id,
			[]model.CampaignStatus{model.CampaignStatusRunning},
			model.CampaignStatusFailed); terr != nil {
			logger.Error("Failed to mark campaign failed", "campaign_id", id, "error", terr)
		}
		return nil, err
	}

	return result, err
}

// Pause stops batch execution at the next contact boundary.
func (s *CampaignService) Pause(ctx context.Context, id int64) (*model.Campaign, error) {
	ok, err := s.campaigns.Transition(ctx, id,
		[]model.CampaignStatus{model.CampaignStatusRunning},
		model.CampaignStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("transition campaign: %w", err)
	}
	if !ok {
		if _, gerr := s.campaigns.Get(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrCampaignNotPausable
	}

	logger.Info("Campaign paused", "campaign_id", id)

	return s.campaigns.Get(ctx, id)
}

// Delete removes the campaign and its contacts atomically.
func (s *CampaignService) Delete(ctx context.Context, id int64) error {
	status, err := s.campaigns.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	if status == model.CampaignStatusRunning {
		return ErrCampaignRunning
	}

	err = s.campaigns.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.contacts.DeleteByCampaign(ctx, id); err != nil {
			return fmt.Errorf("delete contacts: %w", err)
		}
		return s.campaigns.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	logger.Info("Campaign deleted", "campaign_id", id)

	return nil
}

// Stats returns the campaign with live per-status contact counts.
func (s *CampaignService) Stats(ctx context.Context, id int64) (*model.Campaign, map[model.ContactStatus]int64, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.contacts.CountByStatus(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("count by status: %w", err)
	}
	return campaign, counts, nil
}
