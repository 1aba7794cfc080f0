package database

import (
	"context"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// InitMongo 连接 MongoDB 并返回配置的数据库
func InitMongo(cfg *config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	logger.Log.Info("MongoDB connection established", zap.String("database", cfg.Database))
	return client, client.Database(cfg.Database), nil
}
