package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/gorm"

	"coursepay_backend/internals/features/payment/zoyktech/model"
)

type EventFilter struct {
	ProviderOrderID string
	Outcome         *model.CallbackEventOutcome
	Offset          int
	Limit           int
}

// EventStore is the callback audit log.
type EventStore interface {
	Record(ctx context.Context, ev *model.CallbackEvent) error
	List(ctx context.Context, f EventFilter) ([]model.CallbackEvent, int64, error)
}

/* =======================================================================
   GORM
======================================================================= */

type GormEventRepository struct {
	DB *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{DB: db}
}

func (r *GormEventRepository) Record(ctx context.Context, ev *model.CallbackEvent) error {
	return r.DB.WithContext(ctx).Create(ev).Error
}

func (r *GormEventRepository) List(ctx context.Context, f EventFilter) ([]model.CallbackEvent, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.CallbackEvent{})
	if f.ProviderOrderID != "" {
		q = q.Where("callback_event_provider_order_id = ?", f.ProviderOrderID)
	}
	if f.Outcome != nil {
		q = q.Where("callback_event_outcome = ?", *f.Outcome)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.CallbackEvent
	err := q.Order("callback_event_received_at DESC").
		Offset(f.Offset).
		Limit(normalizeLimit(f.Limit)).
		Find(&rows).Error
	return rows, total, err
}

/* =======================================================================
   MONGO
======================================================================= */

const callbackEventsCollection = "zoyktech_callback_events"

type MongoEventRepository struct {
	coll *mongo.Collection
}

func NewMongoEventRepository(db *mongo.Database) *MongoEventRepository {
	return &MongoEventRepository{coll: db.Collection(callbackEventsCollection)}
}

type callbackEventDocument struct {
	ID               string     `bson:"_id"`
	ProviderOrderID  *string    `bson:"provider_order_id,omitempty"`
	Source           string     `bson:"source"`
	Headers          string     `bson:"headers,omitempty"`
	Payload          string     `bson:"payload"`
	Signature        *string    `bson:"signature,omitempty"`
	NormalizedStatus *string    `bson:"normalized_status,omitempty"`
	Outcome          string     `bson:"outcome"`
	Error            *string    `bson:"error,omitempty"`
	ReceivedAt       time.Time  `bson:"received_at"`
	ProcessedAt      *time.Time `bson:"processed_at,omitempty"`
}

func (r *MongoEventRepository) Record(ctx context.Context, ev *model.CallbackEvent) error {
	if ev.CallbackEventID == uuid.Nil {
		ev.CallbackEventID = uuid.New()
	}
	if ev.CallbackEventReceivedAt.IsZero() {
		ev.CallbackEventReceivedAt = time.Now().UTC()
	}
	doc := callbackEventDocument{
		ID:              ev.CallbackEventID.String(),
		ProviderOrderID: ev.CallbackEventProviderOrderID,
		Source:          string(ev.CallbackEventSource),
		Headers:         string(ev.CallbackEventHeaders),
		Payload:         string(ev.CallbackEventPayload),
		Signature:       ev.CallbackEventSignature,
		Outcome:         string(ev.CallbackEventOutcome),
		Error:           ev.CallbackEventError,
		ReceivedAt:      ev.CallbackEventReceivedAt,
		ProcessedAt:     ev.CallbackEventProcessedAt,
	}
	if ev.CallbackEventNormalizedStatus != nil {
		s := string(*ev.CallbackEventNormalizedStatus)
		doc.NormalizedStatus = &s
	}
	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

func (r *MongoEventRepository) List(ctx context.Context, f EventFilter) ([]model.CallbackEvent, int64, error) {
	filter := bson.M{}
	if f.ProviderOrderID != "" {
		filter["provider_order_id"] = f.ProviderOrderID
	}
	if f.Outcome != nil {
		filter["outcome"] = string(*f.Outcome)
	}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(normalizeLimit(f.Limit))))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)

	var docs []callbackEventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]model.CallbackEvent, 0, len(docs))
	for _, d := range docs {
		id, _ := uuid.Parse(d.ID)
		ev := model.CallbackEvent{
			CallbackEventID:              id,
			CallbackEventProviderOrderID: d.ProviderOrderID,
			CallbackEventSource:          model.CallbackEventSource(d.Source),
			CallbackEventHeaders:         []byte(d.Headers),
			CallbackEventPayload:         []byte(d.Payload),
			CallbackEventSignature:       d.Signature,
			CallbackEventOutcome:         model.CallbackEventOutcome(d.Outcome),
			CallbackEventError:           d.Error,
			CallbackEventReceivedAt:      d.ReceivedAt,
			CallbackEventProcessedAt:     d.ProcessedAt,
		}
		if d.NormalizedStatus != nil {
			st := model.TransactionStatus(*d.NormalizedStatus)
			ev.CallbackEventNormalizedStatus = &st
		}
		out = append(out, ev)
	}
	return out, total, nil
}

/* =======================================================================
   MEMORY
======================================================================= */

type MemoryEventRepository struct {
	mu   sync.Mutex
	rows []model.CallbackEvent
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{}
}

func (r *MemoryEventRepository) Record(_ context.Context, ev *model.CallbackEvent) error {
	if ev.CallbackEventID == uuid.Nil {
		ev.CallbackEventID = uuid.New()
	}
	if ev.CallbackEventReceivedAt.IsZero() {
		ev.CallbackEventReceivedAt = time.Now()
	}
	r.mu.Lock()
	r.rows = append(r.rows, *ev)
	r.mu.Unlock()
	return nil
}

func (r *MemoryEventRepository) List(_ context.Context, f EventFilter) ([]model.CallbackEvent, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]model.CallbackEvent, 0, len(r.rows))
	for _, ev := range r.rows {
		if f.ProviderOrderID != "" && (ev.CallbackEventProviderOrderID == nil || *ev.CallbackEventProviderOrderID != f.ProviderOrderID) {
			continue
		}
		if f.Outcome != nil && ev.CallbackEventOutcome != *f.Outcome {
			continue
		}
		matched = append(matched, ev)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CallbackEventReceivedAt.After(matched[j].CallbackEventReceivedAt)
	})
	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return []model.CallbackEvent{}, total, nil
	}
	end := f.Offset + normalizeLimit(f.Limit)
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], total, nil
}
