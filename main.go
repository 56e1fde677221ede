package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"guildchat-backend/internal/channels"
	"guildchat-backend/internal/config"
	"guildchat-backend/internal/credentials"
	"guildchat-backend/internal/database"
	"guildchat-backend/internal/fileHandlers"
	"guildchat-backend/internal/handlers"
	"guildchat-backend/internal/hub"
	"guildchat-backend/internal/identity"
	"guildchat-backend/internal/jwt"
	"guildchat-backend/internal/keyValue"
	"guildchat-backend/internal/membership"
	"guildchat-backend/internal/messages"
	"guildchat-backend/internal/models"
	"guildchat-backend/internal/snowflake"
	"guildchat-backend/internal/voice"
)

func setupLogger(cfg *models.ConfigFile) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	if cfg.LogToFile {
		zapConfig.OutputPaths = []string{"app.log", "stdout"}
	}
	zapConfig.Development = cfg.IsDevelopment()

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func setupRedis(cfg *models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	err := rdb.Ping(context.Background()).Err()
	if err != nil {
		return nil, err
	}

	return rdb, nil
}

func main() {
	configPath := flag.String("c", "config.json", "path of the config file")
	flag.Parse()

	fmt.Println("Reading config file...")
	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer func() {
		_ = sugar.Sync()
	}()

	db, err := database.Setup(cfg, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if !cfg.SelfContained {
		sugar.Infof("Connecting to redis at %s...", cfg.RedisAddress)
		redisClient, err = setupRedis(cfg)
		if err != nil {
			sugar.Fatal(err)
		}
		defer redisClient.Close()
	}

	err = keyValue.Setup(sugar, redisClient, cfg.SelfContained)
	if err != nil {
		sugar.Fatal(err)
	}
	defer keyValue.Stop()

	err = snowflake.Setup(cfg.SnowflakeWorkerID)
	if err != nil {
		sugar.Fatal(err)
	}

	jwt.Setup(cfg)
	fileHandlers.Setup(sugar, cfg.UploadDir, cfg.MaxAvatarBytes)

	voiceConfig, err := voice.LoadConfigFromEnv()
	if err != nil {
		sugar.Fatal(err)
	}
	if !voiceConfig.Configured() {
		sugar.Warn("LIVEKIT_API_KEY or LIVEKIT_API_SECRET is not set, voice tokens are unavailable")
	}

	users, err := identity.New(db, sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	servers := membership.New(db, sugar)
	channelRegistry := channels.New(db, sugar, servers)

	services := handlers.Services{
		Users:       users,
		Credentials: credentials.New(users, sugar, cfg.OIDC),
		Membership:  servers,
		Channels:    channelRegistry,
		Messages:    messages.New(db, sugar, channelRegistry, servers, users, cfg.EnforceMessageMembership),
		Voice:       voice.New(voiceConfig, sugar, channelRegistry, servers),
	}

	hub.Setup(sugar, redisClient, cfg.SelfContained, handlers.SubscriptionGate(), cfg.AllowedOrigins)

	err = handlers.Setup(cfg, sugar, db, services)
	if err != nil {
		sugar.Fatal(err)
	}
}
