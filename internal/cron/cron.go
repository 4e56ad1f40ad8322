package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/interfaces"
	cron_config "github.com/customeros/mailsync/internal/cron/config"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
)

// CONSTANTS
const (
	// GroupMailsync is the group for mail synchronization jobs
	GroupMailsync = "mailsync"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupMailsync: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg          *config.Config
	log          logger.Logger
	cron         *cronv3.Cron
	k8s          kubernetes.Interface
	stopCh       chan struct{}
	jobIDs       map[string]cronv3.EntryID
	repositories *repository.Repositories
	controller   interfaces.ControllerService
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, repos *repository.Repositories, controller interfaces.ControllerService) *CronManager {
	return &CronManager{
		cfg:          cfg,
		log:          log,
		k8s:          k8s,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		repositories: repos,
		controller:   controller,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	// If k8s client is nil or we're in local development, start in local mode
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	// Create the leader election lock
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "mailsync-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	// Channel to track leader election errors
	errCh := make(chan error, 1)

	// Start leader election
	go func() {
		// Try leader election
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		// Start leader election
		ctx := context.Background()
		le.Run(ctx)
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
		// Leader election seems to be working, continue normally
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	// Load cron config from environment variables
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Periodic mail sync job
	if cronConfig.CronSchedulePeriodicSync != "" {
		id, err := c.AddFunc(cronConfig.CronSchedulePeriodicSync, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMailsync].Lock()
			defer jobLocks.locks[GroupMailsync].Unlock()
			cm.performPeriodicMailSync()
		})
		if err != nil {
			cm.log.Fatalf("Could not add periodic sync cron job: %v", err)
		}
		cm.jobIDs["periodic_sync"] = id
		cm.log.Infof("Registered periodic sync job with schedule: %s", cronConfig.CronSchedulePeriodicSync)
	}

	// Pending command drain job
	if cronConfig.CronSchedulePendingCommands != "" {
		id, err := c.AddFunc(cronConfig.CronSchedulePendingCommands, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.processPendingCommands()
		})
		if err != nil {
			cm.log.Fatalf("Could not add pending command cron job: %v", err)
		}
		cm.jobIDs["pending_commands"] = id
		cm.log.Infof("Registered pending command job with schedule: %s", cronConfig.CronSchedulePendingCommands)
	}

	// Outbox drain job
	if cronConfig.CronScheduleSendPending != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleSendPending, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.sendPendingMessages()
		})
		if err != nil {
			cm.log.Fatalf("Could not add outbox drain cron job: %v", err)
		}
		cm.jobIDs["send_pending"] = id
		cm.log.Infof("Registered outbox drain job with schedule: %s", cronConfig.CronScheduleSendPending)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	// Create a new cron with seconds field enabled and panic recovery
	cronOptions := []cronv3.Option{
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger), // Skip if still running
			cronv3.Recover(cronv3.DefaultLogger),            // Default recovery as backup
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) performPeriodicMailSync() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.performPeriodicMailSync")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.repositories.AccountRepository.ListAccounts(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for periodic sync: %v", err)
		return
	}

	synced := 0
	for _, account := range accounts {
		if cm.controller.PerformPeriodicMailSync(ctx, account) {
			synced++
		}
	}
	cm.log.Infof("Periodic mail sync completed for %d/%d accounts", synced, len(accounts))
}

func (cm *CronManager) processPendingCommands() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.processPendingCommands")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.repositories.AccountRepository.ListAccounts(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for pending command drain: %v", err)
		return
	}

	for _, account := range accounts {
		cm.controller.ProcessPendingCommands(account)
	}
}

func (cm *CronManager) sendPendingMessages() {
	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.sendPendingMessages")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.repositories.AccountRepository.ListAccounts(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list accounts for outbox drain: %v", err)
		return
	}

	for _, account := range accounts {
		cm.controller.SendPendingMessages(account, nil)
	}
}
