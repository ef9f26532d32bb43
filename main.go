package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-service/internal/config"
	"social-service/internal/db"
	"social-service/internal/events"
	"social-service/internal/handlers"
	"social-service/internal/middleware"
	"social-service/internal/observability"
	"social-service/internal/push"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
	"social-service/internal/routes"
	"social-service/internal/storage"
	"social-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	messagesDB, err := db.ConnectPostgres(cfg.PostgresDSN, cfg.PostgresMaxOpenConns)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer messagesDB.Close()

	groupsDB, err := db.ConnectMySQL(cfg.MySQLDSN, cfg.MySQLMaxOpenConns)
	if err != nil {
		log.Fatalf("failed to connect to mysql: %v", err)
	}
	defer groupsDB.Close()

	postsDB, err := db.Gorm(groupsDB)
	if err != nil {
		log.Fatalf("failed to open gorm: %v", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))
	bus := events.NewBus(publisher, cfg.ServiceName, cfg.Environment)

	groupRepo := repositories.NewGroupRepo(groupsDB)
	messageRepo := repositories.NewMessageRepo(messagesDB)
	postRepo := repositories.NewPostRepo(postsDB)
	pushRepo := repositories.NewPushRepo(messagesDB)

	// both stay untyped nil when not configured
	var sender push.Sender
	if cfg.Push.Enabled() {
		sender = push.NewWebPushSender(cfg.Push)
	} else {
		log.Printf("push disabled: missing VAPID keys")
	}
	var uploader storage.Uploader
	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3Uploader(ctx, cfg.Storage)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		uploader = s3
	} else {
		log.Printf("object storage disabled: empty bucket")
	}

	hub := ws.NewHub(bus)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.RequestID(),
		middleware.Identity(),
		middleware.AccessLog(),
		observability.HTTPMetricsMiddleware(),
	)

	routes.Setup(router, routes.Handlers{
		Group:        handlers.NewGroupHandler(groupRepo, messageRepo, hub, bus, cfg.DefaultProfilePicture),
		Message:      handlers.NewMessageHandler(groupRepo, messageRepo, hub, bus, cfg.MessagePageSize),
		Post:         handlers.NewPostHandler(postRepo, hub, bus, cfg.DefaultProfilePicture),
		Notification: handlers.NewNotificationHandler(pushRepo, sender, cfg.Push.Icon, cfg.Push.Concurrency),
		Media:        handlers.NewMediaHandler(uploader, cfg.Storage.MaxUploadBytes),
		GroupWS:      ws.NewGroupWebSocketHandler(hub, groupRepo),
		FeedWS:       ws.NewFeedWebSocketHandler(hub),
		Bus:          bus,
		EnableDebug:  cfg.EnableDebug,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("social-service listening port=%s env=%s", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := bus.Close(); err != nil {
		log.Printf("event bus close: %v", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Printf("tracer shutdown: %v", err)
	}
}
