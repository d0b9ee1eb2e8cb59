package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"coursepay_backend/internals/configs"
	database "coursepay_backend/internals/databases"
	enrollmentModel "coursepay_backend/internals/features/courses/enrollments/model"
	enrollmentService "coursepay_backend/internals/features/courses/enrollments/service"
	"coursepay_backend/internals/features/notifications/mailer"
	zoyktechModel "coursepay_backend/internals/features/payment/zoyktech/model"
	"coursepay_backend/internals/features/payment/zoyktech/repository"
	zoyktechService "coursepay_backend/internals/features/payment/zoyktech/service"
)

const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// Services is everything main and zoykctl need, wired once.
type Services struct {
	ZoyktechConfig configs.ZoyktechConfig
	SweepConfig    configs.SweepConfig

	Store       repository.TransactionStore
	Events      repository.EventStore
	Enrollments *enrollmentService.EnrollmentService
	Dispatcher  *mailer.Dispatcher
	Reconciler  *zoyktechService.Reconciler
	Initiator   *zoyktechService.Initiator
	Sweeper     *zoyktechService.Sweeper

	mongoClient *mongo.Client
}

// Models lists the tables this service migrates.
func Models() []interface{} {
	return []interface{}{
		&zoyktechModel.Transaction{},
		&zoyktechModel.CallbackEvent{},
		&enrollmentModel.CourseEnrollment{},
	}
}

// Build wires stores, collaborators and the zoyktech services on top of db.
func Build(ctx context.Context, db *gorm.DB) (*Services, error) {
	s := &Services{
		ZoyktechConfig: configs.LoadZoyktechConfig(),
		SweepConfig:    configs.LoadSweepConfig(),
		Enrollments:    enrollmentService.NewEnrollmentService(db),
		Dispatcher:     mailer.NewDispatcher(mailer.New(configs.LoadSMTPConfig()), configs.GetEnvDuration("SMTP_TIMEOUT", 15*time.Second)),
	}

	driver := strings.ToLower(configs.GetEnv("TRANSACTION_STORE", StorePostgres))
	switch driver {
	case StorePostgres, "gorm":
		s.Store = repository.NewGormTransactionRepository(db)
		s.Events = repository.NewGormEventRepository(db)
	case StoreMongo:
		client, mdb, err := database.ConnectMongo(ctx)
		if err != nil {
			return nil, err
		}
		store := repository.NewMongoTransactionRepository(mdb)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("mongo indexes: %w", err)
		}
		s.mongoClient = client
		s.Store = store
		s.Events = repository.NewMongoEventRepository(mdb)
	case StoreMemory:
		log.Println("[WARN] TRANSACTION_STORE=memory, transactions are lost on restart")
		s.Store = repository.NewMemoryTransactionRepository()
		s.Events = repository.NewMemoryEventRepository()
	default:
		return nil, fmt.Errorf("unknown TRANSACTION_STORE %q", driver)
	}
	log.Printf("[INFO] transaction store: %s", driver)

	zc := s.ZoyktechConfig
	if zc.SecretKey == "" {
		log.Println("[WARN] ZOYKTECH_SECRET_KEY is empty, signed callbacks cannot verify")
	}
	if !zc.RequireSignature {
		if zc.IsLive() {
			log.Println("[WARN] ⚠️ ZOYKTECH_REQUIRE_SIGNATURE=false in live mode: unsigned callbacks can complete payments")
		} else {
			log.Printf("[INFO] unsigned callbacks accepted (%s)", zc.Environment)
		}
	}

	s.Reconciler = zoyktechService.NewReconciler(zoyktechService.ReconcilerDeps{
		Store:            s.Store,
		Events:           s.Events,
		Normalizer:       zoyktechService.NewStatusNormalizer(zc.StatusOneCompletes),
		Secret:           zc.SecretKey,
		RequireSignature: zc.RequireSignature,
		Enrollment:       s.Enrollments,
		Notifier:         s.Dispatcher,
	})

	var (
		gateway zoyktechService.PaymentGateway
		checker zoyktechService.StatusChecker
	)
	if zc.IsConfigured() {
		client := zoyktechService.NewZoyktechClient(zc)
		gateway, checker = client, client
		log.Printf("[INFO] zoyktech %s gateway at %s", zc.Environment, zc.BaseURL())
	} else {
		log.Println("[WARN] ZOYKTECH_MERCHANT_ID/PUBLIC_ID/SECRET_KEY incomplete, initiation and status checks disabled")
	}
	s.Initiator = zoyktechService.NewInitiator(s.Store, gateway, zc)

	sc := s.SweepConfig
	s.Sweeper = zoyktechService.NewSweeper(s.Store, checker, s.Reconciler, sc.StaleAfter, sc.ExpireAfter, sc.BatchSize)

	return s, nil
}

// Close drains pending mail and disconnects Mongo when used.
func (s *Services) Close(ctx context.Context) {
	if err := s.Dispatcher.Wait(ctx); err != nil {
		log.Printf("[WARN] %v", err)
	}
	if s.mongoClient != nil {
		if err := s.mongoClient.Disconnect(ctx); err != nil {
			log.Printf("[WARN] mongo disconnect: %v", err)
		}
	}
}
