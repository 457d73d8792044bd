package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anon_messenger/internal/config"
	channelRepo "anon_messenger/internal/repository/channel"
	"anon_messenger/internal/service/catalog"
	"anon_messenger/internal/service/channel"
	"anon_messenger/internal/service/identity"
	"anon_messenger/internal/service/ratelimit"
	redisSvc "anon_messenger/internal/service/redis"
	"anon_messenger/internal/service/relay"
	"anon_messenger/internal/service/server"
	"anon_messenger/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const channelTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log.Init(cfg.Debug)
	defer log.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	st := redisSvc.NewRedis(rdb)
	if err := st.Ping(context.Background()); err != nil {
		log.Fatal("redis unreachable", zap.Error(err))
	}

	mongoClient, err := initMongo(cfg.Mongo.URI)
	if err != nil {
		log.Fatal("mongo unreachable", zap.Error(err))
	}
	db := mongoClient.Database(cfg.Mongo.Database)

	repo := channelRepo.NewChannelRepo(db)
	if err := repo.EnsureIndexes(context.Background(), channelTTL); err != nil {
		log.Fatal("create channel indexes failed", zap.Error(err))
	}

	identityService := identity.NewService(st,
		cfg.Identity.IdleTTL, cfg.Identity.HardCap, cfg.Identity.MetricTTL)
	regLimiter := ratelimit.NewLimiter(st, "anon:rate:",
		cfg.Limits.RegistrationWindow, cfg.Limits.RegistrationThreshold)
	msgLimiter := ratelimit.NewLimiter(st, "msg:rate:",
		cfg.Limits.MessageWindow, cfg.Limits.MessageThreshold)

	channelService := channel.NewService(st, repo, channelTTL)
	catalogService := catalog.NewService(
		cfg.Catalog.SpotifyClientID,
		cfg.Catalog.SpotifyClientSecret,
		cfg.Catalog.YouTubeAPIKey)

	hub := relay.NewHub()
	router := relay.NewRouter(hub, identityService, msgLimiter, channelService,
		cfg.Limits.MaxContentBytes)

	srv := server.NewHttpServer(cfg, identityService, regLimiter, hub, router,
		channelService, catalogService, st)

	go func() {
		if err := srv.Run(); err != nil {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
