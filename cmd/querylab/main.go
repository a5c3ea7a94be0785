package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/davicafu/querylab/internal/config"
	memberApp "github.com/davicafu/querylab/internal/member/application"
	memberDomain "github.com/davicafu/querylab/internal/member/domain"
	memberEvents "github.com/davicafu/querylab/internal/member/infra/inbound/events"
	memberHttp "github.com/davicafu/querylab/internal/member/infra/inbound/http"
	memberClickhouse "github.com/davicafu/querylab/internal/member/infra/outbound/analytics/clickhouse"
	memberCache "github.com/davicafu/querylab/internal/member/infra/outbound/cache"
	infraEvents "github.com/davicafu/querylab/internal/shared/infra/events"
	sharedBus "github.com/davicafu/querylab/internal/shared/infra/platform/bus"
	sharedCache "github.com/davicafu/querylab/internal/shared/infra/platform/cache"
	infraRelayer "github.com/davicafu/querylab/internal/shared/infra/relayer"
	"github.com/davicafu/querylab/pkg/logger"
)

// ---------------- Main ----------------
func main() {
	configPath := flag.String("config", os.Getenv("QUERYLAB_CONFIG"), "ruta al fichero YAML de configuración")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------- DB ----------------
	store, err := openStorage(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.close()

	// ---------------- Cache ----------------
	var cacheInstance sharedCache.Cache
	if cfg.Cache.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("⚠️ Redis no disponible, cache en memoria", zap.Error(err))
		} else {
			defer rdb.Close()
			cacheInstance = memberCache.NewRedisCache(rdb, cfg.Cache.TTL)
			log.Info("✅ Redis conectado, cache habilitado")
		}
	}
	if cacheInstance == nil {
		inMemory := memberCache.NewInMemoryCache(cfg.Cache.TTL, cfg.Cache.TTL)
		defer inMemory.Stop()
		cacheInstance = inMemory
	}

	// ---------------- Analytics ----------------
	// Sin ClickHouse la interfaz queda a nil: TeamAgeStats responde ErrAnalyticsUnavailable.
	var analytics memberDomain.MemberAnalyticsRepository
	if cfg.Analytics.ClickHouseAddr != "" {
		chRepo, err := memberClickhouse.NewMemberAnalyticsRepo(cfg.Analytics.ClickHouseAddr, cfg.Analytics.ClickHouseDB)
		if err != nil {
			log.Warn("⚠️ ClickHouse no disponible, analítica desactivada", zap.Error(err))
		} else if err := chRepo.InitSchema(ctx); err != nil {
			log.Warn("⚠️ No se pudo crear el esquema de ClickHouse", zap.Error(err))
		} else {
			analytics = chRepo
			log.Info("📊 ClickHouse conectado")
		}
	}

	// --------------- Servicios --------------
	memberService := memberApp.NewMemberService(store.members, store.teams, cacheInstance, log)
	teamService := memberApp.NewTeamService(store.teams, analytics, cacheInstance, log)

	// ---------------- Events ---------------
	consumer := memberEvents.NewMemberConsumer(analytics, log)
	var publisher sharedBus.EventBus

	if cfg.Events.UseKafka {
		log.Info("🚀 Usando Kafka como bus de eventos")

		// Sin topic fijo: cada evento lleva el suyo.
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.Events.KafkaBrokers...),
			Balancer: &kafka.Hash{},
		}
		defer writer.Close()

		publisher = infraEvents.NewKafkaPublisher(writer, "", infraEvents.BreakerSettings{
			MaxFailures: cfg.Events.Breaker.MaxFailures,
			OpenTimeout: cfg.Events.Breaker.OpenTimeout,
		}, log)

		for _, topic := range []string{memberDomain.MemberTopic, memberDomain.TeamTopic} {
			reader := kafka.NewReader(kafka.ReaderConfig{
				Brokers:  cfg.Events.KafkaBrokers,
				Topic:    topic,
				GroupID:  cfg.Events.ConsumerGroup,
				MinBytes: 10e3, // 10KB
				MaxBytes: 10e6, // 10MB
			})
			defer reader.Close()
			infraEvents.NewConsumerAdapter(reader, consumer, log).Start(ctx)
		}
	} else {
		log.Info("⚡️ Usando bus de eventos en memoria (canales de Go)")

		bus := infraEvents.NewInMemoryEventBus(memberDomain.MemberTopic)
		publisher = bus

		log.Info("🎧 Iniciando listener en memoria para eventos de miembros")
		infraEvents.BackgroundConsumerChan(ctx, bus.Subscribe(100), consumer, log)
	}

	// ------------ Outbox Worker ------------
	worker := infraRelayer.NewOutboxWorker(store.outbox, publisher, memberDomain.NewEventRegistry(), cfg.Outbox.Period, cfg.Outbox.Limit, log)
	go worker.Start(ctx)

	// ---------------- HTTP ----------------
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logger.GinMiddleware(log), gin.Recovery())
	memberHttp.RegisterRoutes(router, memberHttp.NewMemberHandler(memberService, teamService, log))

	addr := ":" + strconv.Itoa(cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("🚀 Server running", zap.String("url", "http://localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Apagando servidor")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
