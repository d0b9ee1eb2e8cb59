package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"coursepay_backend/internals/configs"
)

var DB *gorm.DB

func ConnectDB() {
	log.Println("🔌 Connecting to PostgreSQL...")

	// Behind PgBouncer keep PreferSimpleProtocol=true and point host/port at the bouncer.
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=coursepay&options=-c statement_timeout=3000",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
			configs.GetEnv("DB_SSLMODE", "require"),
		)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("❌ DB connect failed: %v", err)
	}
	DB = db
	log.Println("✅ DB connected.")
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(configs.GetEnvInt("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(configs.GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries() {
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := Ping(); err != nil {
			log.Printf("warm-up ping err: %v", err)
		}
	}()
}

// AutoMigrate creates/updates the tables owned by this service.
func AutoMigrate(db *gorm.DB, models ...interface{}) {
	if !configs.GetEnvBool("DB_AUTO_MIGRATE", true) {
		log.Println("[INFO] DB_AUTO_MIGRATE=false, skipping migrations")
		return
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("❌ auto-migrate failed: %v", err)
	}
	log.Printf("✅ auto-migrated %d tables", len(models))
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("db not initialised")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// =======================
// MONGO (optional transaction store)
// =======================

// ConnectMongo dials MONGO_URI and returns the MONGO_DB database.
func ConnectMongo(ctx context.Context) (*mongo.Client, *mongo.Database, error) {
	uri := configs.GetEnv("MONGO_URI", "mongodb://localhost:27017")
	name := configs.GetEnv("MONGO_DB", "coursepay")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Printf("✅ Mongo connected db=%s", name)
	return client, client.Database(name), nil
}
