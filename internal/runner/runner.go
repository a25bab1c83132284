package runner

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/mselim/campaign-gateway/internal/executor"
	"github.com/mselim/campaign-gateway/internal/model"
	"github.com/mselim/campaign-gateway/internal/queue"
	"github.com/mselim/campaign-gateway/pkg/logger"
	"github.com/mselim/campaign-gateway/pkg/redis"
	"github.com/mselim/campaign-gateway/pkg/worker"
)

const DrainTimeout = 10 * time.Minute
const ShutdownTimeout = time.Minute

type CampaignStore interface {
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	GetStatus(ctx context.Context, id int64) (model.CampaignStatus, error)
	DueScheduled(ctx context.Context, before time.Time, limit int) ([]*model.Campaign, error)
	Running(ctx context.Context, limit int) ([]*model.Campaign, error)
	Transition(ctx context.Context, id int64, from []model.CampaignStatus, to model.CampaignStatus) (bool, error)
}

type ContactStore interface {
	CountPending(ctx context.Context, campaignID int64) (int64, error)
}

type SessionProvider interface {
	ActiveSession(ctx context.Context) (*model.Session, error)
}

type BatchRunner interface {
	RunBatch(ctx context.Context, campaign *model.Campaign, session *model.Session, batchSize int) (*model.BatchResult, error)
}

type Config struct {
	PollInterval time.Duration
	ClaimTTL     time.Duration
	BatchSize    int
	Workers      int
}

// Runner promotes scheduled campaigns and drains running ones in the
// background. Each drain job is claimed through redis so only one
// runner instance works a campaign at a time.
type Runner struct {
	campaigns CampaignStore
	contacts  ContactStore
	auth      SessionProvider
	engine    BatchRunner
	queue     *queue.Queue
	adapter   redis.RedisAdapter
	worker    *worker.WorkerManager
	config    Config
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func New(campaigns CampaignStore, contacts ContactStore, auth SessionProvider, engine BatchRunner, q *queue.Queue, adapter redis.RedisAdapter, config Config) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.ClaimTTL <= 0 {
		config.ClaimTTL = 2 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		campaigns: campaigns,
		contacts:  contacts,
		auth:      auth,
		engine:    engine,
		queue:     q,
		adapter:   adapter,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
		worker:    worker.NewWorkerManager(1024, config.Workers, nil),
	}
}

func (r *Runner) Start() error {
	logger.Info("Starting campaign runner...")

	r.worker.SetWorker(r.workerHandler)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.worker.Start(); err != nil {
			logger.Error("Worker manager stopped", "error", err)
		}
	}()

	if err := r.queue.Consume(r.messageHandler); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	r.wg.Add(1)
	go r.scheduleLoop()

	logger.Info("Campaign runner started", "workers", r.config.Workers, "poll_interval", r.config.PollInterval)
	return nil
}

func (r *Runner) Stop() {
	logger.Info("Shutting down campaign runner...")

	r.cancel()

	if err := r.queue.Stop(ShutdownTimeout); err != nil {
		logger.Error("Error stopping queue", "error", err)
	}

	r.worker.Exit()
	r.wg.Wait()

	logger.Info("Campaign runner stopped")
}

// scheduleLoop promotes due scheduled campaigns and re-enqueues running
// campaigns that still have pending contacts.
func (r *Runner) scheduleLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.promoteScheduled()
			r.rescanRunning()
		}
	}
}

func (r *Runner) promoteScheduled() {
	due, err := r.campaigns.DueScheduled(r.ctx, time.Now(), 100)
	if err != nil {
		logger.Warn("Failed to list due campaigns", "error", err)
		return
	}

	for _, campaign := range due {
		ok, err := r.campaigns.Transition(r.ctx, campaign.ID,
			[]model.CampaignStatus{model.CampaignStatusScheduled},
			model.CampaignStatusRunning)
		if err != nil {
			logger.Error("Failed to promote scheduled campaign", "campaign_id", campaign.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		logger.Info("Scheduled campaign promoted", "campaign_id", campaign.ID, "name", campaign.Name)
		r.enqueue(campaign.ID)
	}
}

func (r *Runner) rescanRunning() {
	running, err := r.campaigns.Running(r.ctx, 100)
	if err != nil {
		logger.Warn("Failed to list running campaigns", "error", err)
		return
	}

	for _, campaign := range running {
		pending, err := r.contacts.CountPending(r.ctx, campaign.ID)
		if err != nil || pending == 0 {
			continue
		}
		r.enqueue(campaign.ID)
	}
}

// enqueue publishes a drain job unless another runner already claimed
// the campaign.
func (r *Runner) enqueue(campaignID int64) {
	claimKey := "campaign:claim:" + strconv.FormatInt(campaignID, 10)
	acquired, err := r.adapter.SetNX(claimKey, []byte("1"), r.config.ClaimTTL)
	if err != nil {
		logger.Warn("Claim check failed", "campaign_id", campaignID, "error", err)
		return
	}
	if !acquired {
		return
	}

	if _, err := r.queue.PublishRun(r.ctx, campaignID); err != nil {
		logger.Error("Failed to enqueue drain job", "campaign_id", campaignID, "error", err)
		_ = r.adapter.Del(claimKey)
	}
}

type drainJob struct {
	campaignID int64
	resultChan chan error
	ctx        context.Context
}

func (r *Runner) messageHandler(ctx context.Context, msg *queue.Message) error {
	job, err := msg.RunJob()
	if err != nil {
		// Undecodable jobs will never succeed, ack them away.
		logger.Error("Dropping malformed run job", "message_id", msg.ID, "error", err)
		return nil
	}

	resultChan := make(chan error, 1)
	jobCtx, cancel := context.WithTimeout(ctx, DrainTimeout)
	defer cancel()

	r.worker.Enqueue(&drainJob{
		campaignID: job.CampaignID,
		resultChan: resultChan,
		ctx:        jobCtx,
	})

	select {
	case err := <-resultChan:
		return err
	case <-jobCtx.Done():
		return fmt.Errorf("timeout draining campaign %d: %w", job.CampaignID, jobCtx.Err())
	}
}

func (r *Runner) workerHandler(workerIndex int, job interface{}) {
	drain, ok := job.(*drainJob)
	if !ok {
		logger.Error("Invalid job type in worker", "worker", workerIndex)
		return
	}

	select {
	case <-drain.ctx.Done():
		return
	default:
	}

	err := r.drain(drain.ctx, drain.campaignID)

	claimKey := "campaign:claim:" + strconv.FormatInt(drain.campaignID, 10)
	_ = r.adapter.Del(claimKey)

	select {
	case drain.resultChan <- err:
	case <-drain.ctx.Done():
		logger.Warn("Context cancelled while sending drain result", "worker", workerIndex)
	}
}

// drain runs batches until the campaign has no pending contacts or is
// no longer running.
func (r *Runner) drain(ctx context.Context, campaignID int64) error {
	campaign, err := r.campaigns.Get(ctx, campaignID)
	if err != nil {
		return err
	}

	session, err := r.auth.ActiveSession(ctx)
	if err != nil {
		logger.Warn("Drain skipped, session not authenticated", "campaign_id", campaignID)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		status, err := r.campaigns.GetStatus(ctx, campaignID)
		if err != nil {
			return err
		}
		if status != model.CampaignStatusRunning {
			return nil
		}

		result, err := r.engine.RunBatch(ctx, campaign, session, r.config.BatchSize)
		if err != nil {
			if errors.Is(err, executor.ErrSessionRevoked) {
				logger.Error("Drain aborted, session revoked", "campaign_id", campaignID)
				return nil
			}
			return err
		}

		logger.Info("Batch drained", "campaign_id", campaignID, "sent", result.Sent, "failed", result.Failed, "remaining", result.Remaining)

		if result.Remaining == 0 {
			return nil
		}
	}
}
