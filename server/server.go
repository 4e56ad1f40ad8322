package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/mailsync/api"
	"github.com/customeros/mailsync/config"
	"github.com/customeros/mailsync/internal/cron"
	"github.com/customeros/mailsync/internal/listeners"
	"github.com/customeros/mailsync/internal/logger"
	"github.com/customeros/mailsync/internal/repository"
	"github.com/customeros/mailsync/internal/tracing"
	"github.com/customeros/mailsync/services"
	"github.com/customeros/mailsync/services/events"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	// Initialize logger
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	// Initialize tracing
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	// Initialize repositories
	repos := repository.InitRepositories(db)

	// Initialize services
	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	// Cron manager with optional leader election
	cronManager := cron.NewCronManager(cfg, appLogger, kubernetesClient(appLogger), repos, svcs.ControllerService)

	// Initialize Gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cronManager,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// kubernetesClient builds an in-cluster client when running in k8s,
// nil otherwise. Without it the cron manager runs in local mode.
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	k8sConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("No in-cluster kubernetes config, cron runs in local mode: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(k8sConfig)
	if err != nil {
		log.Warnf("Failed to build kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) Initialize(ctx context.Context) error {
	// Register event listeners on their queues
	log.Println("Registering event listeners...")

	subscriber := s.services.EventsService.Subscriber
	subscriber.RegisterListener(listeners.NewCheckMailListener(s.log, s.repositories, s.services.ControllerService))
	subscriber.RegisterListener(listeners.NewSyncFolderListener(s.log, s.repositories, s.services.ControllerService))
	subscriber.RegisterListener(listeners.NewSendPendingMailListener(s.log, s.repositories, s.services.ControllerService))

	for _, queueName := range []string{events.QueueCheckMail, events.QueueSyncFolder, events.QueueSendPendingMail} {
		if err := subscriber.ListenQueue(queueName); err != nil {
			return fmt.Errorf("failed to listen on queue %s: %w", queueName, err)
		}
	}

	// Setup API routes
	api.RegisterRoutes(ctx, s.router, s.services, s.repositories, s.config.AppConfig.APIKey)

	return nil
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		// Create a new span for the panic
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		// Mark span as failed
		ext.Error.Set(span, true)

		// Log panic details
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		log.Printf("❌ Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	// Create root context for the application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize server components
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	// Start the mail controller
	log.Println("Starting mail controller...")
	if err := s.services.ControllerService.Start(); err != nil {
		return err
	}
	log.Println("✅ Mail controller started successfully")

	// Start the cron manager with panic recovery
	s.wrapGoroutine("cron_manager", func() {
		podName := os.Getenv("POD_NAME")
		namespace := os.Getenv("POD_NAMESPACE")
		if err := s.cronManager.Start(podName, namespace); err != nil {
			log.Printf("❌ Cron manager error: %v", err)
		}
	})
	log.Println("✅ Cron manager started successfully")

	// Start HTTP server in a goroutine with panic recovery
	go s.wrapGoroutine("http_server", func() {
		log.Println("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	})
	log.Println("✅ HTTP server started successfully")
	log.Println("MailSync is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	// Set up signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Wait for termination signal
	<-stop
	log.Println("Shutting down...")

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	// Shut down HTTP server
	log.Println("Shutting down HTTP server...")
	if s.tracerCloser != nil {
		s.tracerCloser.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ HTTP server shutdown error: %v", err)
	} else {
		log.Println("✅ HTTP server shut down successfully")
	}

	// Stop the cron manager
	log.Println("Stopping cron manager...")
	s.cronManager.Stop()

	// Stop the mail controller with timeout and panic recovery
	log.Println("Stopping mail controller...")
	stopDone := make(chan struct{})
	go s.wrapGoroutine("controller_shutdown", func() {
		defer close(stopDone)
		if err := s.services.ControllerService.Stop(shutdownCtx); err != nil {
			log.Printf("❌ Mail controller shutdown error: %v", err)
		} else {
			log.Println("✅ Mail controller stopped successfully")
		}
	})

	// Wait for the controller to stop with timeout
	select {
	case <-stopDone:
		log.Println("Mail controller stopped gracefully")
	case <-time.After(10 * time.Second):
		log.Println("⚠️ Mail controller stop timed out, forcing exit")
	}

	// Release IMAP connections and the event bus
	s.services.BackendService.Stop()
	if err := s.services.EventsService.Close(); err != nil {
		log.Printf("❌ Events service shutdown error: %v", err)
	}

	return nil
}
