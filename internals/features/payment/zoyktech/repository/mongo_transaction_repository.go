package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/datatypes"

	"coursepay_backend/internals/features/payment/zoyktech/model"
	helper "coursepay_backend/internals/helpers"
)

const transactionsCollection = "zoyktech_transactions"

// transactionDocument is the bson shape; decimal and JSON columns are
// stored as strings.
type transactionDocument struct {
	ID              string    `bson:"_id"`
	LocalOrderID    string    `bson:"local_order_id"`
	CourseID        string    `bson:"course_id"`
	UserID          string    `bson:"user_id"`
	ProviderOrderID string    `bson:"provider_order_id"`
	ProviderRef     *string   `bson:"provider_ref,omitempty"`
	ProviderID      int       `bson:"provider_id"`
	Amount          string    `bson:"amount"`
	Currency        string    `bson:"currency"`
	PayerContact    string    `bson:"payer_contact"`
	PayerEmail      *string   `bson:"payer_email,omitempty"`
	PayerName       *string   `bson:"payer_name,omitempty"`
	CourseTitle     *string   `bson:"course_title,omitempty"`
	Status          string    `bson:"status"`
	RawRequest      *string   `bson:"raw_request,omitempty"`
	RawResponse     *string   `bson:"raw_response,omitempty"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func toDocument(tx *model.Transaction) transactionDocument {
	return transactionDocument{
		ID:              tx.TransactionID.String(),
		LocalOrderID:    tx.TransactionLocalOrderID,
		CourseID:        tx.TransactionCourseID,
		UserID:          tx.TransactionUserID,
		ProviderOrderID: tx.TransactionProviderOrderID,
		ProviderRef:     tx.TransactionProviderRef,
		ProviderID:      tx.TransactionProviderID,
		Amount:          tx.TransactionAmount.StringFixed(2),
		Currency:        tx.TransactionCurrency,
		PayerContact:    tx.TransactionPayerContact,
		PayerEmail:      tx.TransactionPayerEmail,
		PayerName:       tx.TransactionPayerName,
		CourseTitle:     tx.TransactionCourseTitle,
		Status:          string(tx.TransactionStatus),
		RawRequest:      jsonPtr(tx.TransactionRawRequest),
		RawResponse:     jsonPtr(tx.TransactionRawResponse),
		CreatedAt:       tx.TransactionCreatedAt,
		UpdatedAt:       tx.TransactionUpdatedAt,
	}
}

func (d transactionDocument) toModel() (*model.Transaction, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("bad transaction _id %q: %w", d.ID, err)
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", d.Amount, err)
	}
	tx := &model.Transaction{
		TransactionID:              id,
		TransactionLocalOrderID:    d.LocalOrderID,
		TransactionCourseID:        d.CourseID,
		TransactionUserID:          d.UserID,
		TransactionProviderOrderID: d.ProviderOrderID,
		TransactionProviderRef:     d.ProviderRef,
		TransactionProviderID:      d.ProviderID,
		TransactionAmount:          amount,
		TransactionCurrency:        d.Currency,
		TransactionPayerContact:    d.PayerContact,
		TransactionPayerEmail:      d.PayerEmail,
		TransactionPayerName:       d.PayerName,
		TransactionCourseTitle:     d.CourseTitle,
		TransactionStatus:          model.TransactionStatus(d.Status),
		TransactionCreatedAt:       d.CreatedAt,
		TransactionUpdatedAt:       d.UpdatedAt,
	}
	if d.RawRequest != nil {
		tx.TransactionRawRequest = datatypes.JSON(*d.RawRequest)
	}
	if d.RawResponse != nil {
		tx.TransactionRawResponse = datatypes.JSON(*d.RawResponse)
	}
	return tx, nil
}

func jsonPtr(j datatypes.JSON) *string {
	if len(j) == 0 {
		return nil
	}
	s := string(j)
	return &s
}

type MongoTransactionRepository struct {
	coll *mongo.Collection
}

func NewMongoTransactionRepository(db *mongo.Database) *MongoTransactionRepository {
	return &MongoTransactionRepository{coll: db.Collection(transactionsCollection)}
}

// EnsureIndexes creates the unique provider_order_id index the CAS relies on.
func (r *MongoTransactionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "provider_order_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: 1}}},
	})
	return err
}

func (r *MongoTransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	if tx.TransactionStatus == "" {
		tx.TransactionStatus = model.TransactionStatusPending
	}
	if !tx.TransactionStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, tx.TransactionStatus)
	}
	if tx.TransactionID == uuid.Nil {
		tx.TransactionID = uuid.New()
	}
	if tx.TransactionCurrency == "" {
		tx.TransactionCurrency = "ZMW"
	}
	now := time.Now().UTC()
	if tx.TransactionCreatedAt.IsZero() {
		tx.TransactionCreatedAt = now
	}
	if tx.TransactionUpdatedAt.IsZero() {
		tx.TransactionUpdatedAt = now
	}

	if _, err := r.coll.InsertOne(ctx, toDocument(tx)); err != nil {
		if helper.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateOrderID, tx.TransactionProviderOrderID)
		}
		return err
	}
	return nil
}

func (r *MongoTransactionRepository) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*model.Transaction, error) {
	var doc transactionDocument
	err := r.coll.FindOne(ctx, bson.M{"provider_order_id": providerOrderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return doc.toModel()
}

func transitionFilter(providerOrderID string) bson.M {
	terminal := make([]string, 0, len(model.TerminalStatuses))
	for _, s := range model.TerminalStatuses {
		terminal = append(terminal, string(s))
	}
	return bson.M{
		"provider_order_id": providerOrderID,
		"status":            bson.M{"$nin": terminal},
	}
}

// transitionUpdate is a pipeline update so provider_ref can keep its
// existing value ($ifNull) in the same atomic write.
func transitionUpdate(to model.TransactionStatus, providerRef *string, now time.Time) mongo.Pipeline {
	set := bson.D{
		{Key: "status", Value: string(to)},
		{Key: "updated_at", Value: now},
	}
	if to == model.TransactionStatusCompleted && providerRef != nil && *providerRef != "" {
		set = append(set, bson.E{Key: "provider_ref", Value: bson.M{"$ifNull": bson.A{"$provider_ref", *providerRef}}})
	}
	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

func (r *MongoTransactionRepository) ApplyTransition(ctx context.Context, providerOrderID string, to model.TransactionStatus, providerRef *string) (TransitionResult, error) {
	if !to.IsValid() {
		return TransitionResult{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	var before transactionDocument
	err := r.coll.FindOneAndUpdate(ctx, transitionFilter(providerOrderID), transitionUpdate(to, providerRef, time.Now().UTC()), opts).Decode(&before)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return TransitionResult{}, err
		}
		// not found, or already terminal
		cur, ferr := r.FindByProviderOrderID(ctx, providerOrderID)
		if ferr != nil {
			return TransitionResult{}, ferr
		}
		return alreadyFinal(cur), nil
	}

	after, err := r.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return TransitionResult{}, err
	}
	return TransitionResult{
		Outcome:     OutcomeTransitioned,
		From:        model.TransactionStatus(before.Status),
		To:          to,
		Transaction: after,
	}, nil
}

func (r *MongoTransactionRepository) AttachRawResponse(ctx context.Context, providerOrderID string, raw datatypes.JSON) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"provider_order_id": providerOrderID, "raw_response": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"raw_response": string(raw)}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByProviderOrderID(ctx, providerOrderID); err != nil {
			return err
		}
	}
	return nil
}

func (r *MongoTransactionRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error) {
	nonTerminal := make([]string, 0, len(model.NonTerminalStatuses))
	for _, s := range model.NonTerminalStatuses {
		nonTerminal = append(nonTerminal, string(s))
	}
	filter := bson.M{
		"status":     bson.M{"$in": nonTerminal},
		"updated_at": bson.M{"$lte": updatedBefore},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: 1}}).
		SetLimit(int64(normalizeLimit(limit)))
	return r.find(ctx, filter, opts)
}

func listFilterDocument(f ListFilter) bson.M {
	filter := bson.M{}
	if f.Status != nil {
		filter["status"] = string(*f.Status)
	}
	if f.CourseID != "" {
		filter["course_id"] = f.CourseID
	}
	if f.UserID != "" {
		filter["user_id"] = f.UserID
	}
	return filter
}

func (r *MongoTransactionRepository) List(ctx context.Context, f ListFilter) ([]model.Transaction, int64, error) {
	filter := listFilterDocument(f)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(normalizeLimit(f.Limit)))
	rows, err := r.find(ctx, filter, opts)
	return rows, total, err
}

func statsPipeline(f StatsFilter) mongo.Pipeline {
	match := bson.M{}
	if f.CourseID != "" {
		match["course_id"] = f.CourseID
	}
	if f.Since != nil {
		match["created_at"] = bson.M{"$gte": *f.Since}
	}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"status": "$status", "currency": "$currency"},
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": bson.M{"$toDecimal": "$amount"}},
		}}},
	}
}

func (r *MongoTransactionRepository) Stats(ctx context.Context, f StatsFilter) ([]StatusStat, error) {
	cur, err := r.coll.Aggregate(ctx, statsPipeline(f))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var groups []struct {
		ID struct {
			Status   string `bson:"status"`
			Currency string `bson:"currency"`
		} `bson:"_id"`
		Count int64                `bson:"count"`
		Total primitive.Decimal128 `bson:"total"`
	}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, err
	}

	out := make([]StatusStat, 0, len(groups))
	for _, g := range groups {
		total, err := decimal.NewFromString(g.Total.String())
		if err != nil {
			return nil, fmt.Errorf("stats total for %s: %w", g.ID.Status, err)
		}
		out = append(out, StatusStat{
			Status:   model.TransactionStatus(g.ID.Status),
			Currency: g.ID.Currency,
			Count:    g.Count,
			Total:    total,
		})
	}
	sortStats(out)
	return out, nil
}

func (r *MongoTransactionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]model.Transaction, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []transactionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]model.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}
