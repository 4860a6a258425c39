package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/virtushot/photoshoot-api/internal/core/domain"
	"github.com/virtushot/photoshoot-api/internal/core/ports"
)

const accountsCollection = "accounts"

// AccountRepository stores accounts with their pending reservation holds embedded,
// so every balance change is a single-document atomic update.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountsCollection)}
}

type holdDocument struct {
	ID        string    `bson:"id"`
	Amount    int       `bson:"amount"`
	CreatedAt time.Time `bson:"created_at"`
}

type accountDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	Name         string             `bson:"name"`
	PasswordHash string             `bson:"password_hash"`
	APIKeyHash   string             `bson:"api_key_hash"`
	APIKeyPrefix string             `bson:"api_key_prefix"`
	Role         string             `bson:"role"`
	Status       string             `bson:"status"`
	Credits      int                `bson:"credits"`
	CreditLimit  int                `bson:"credit_limit"`
	Holds        []holdDocument     `bson:"holds"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d *accountDocument) toDomain() *domain.Account {
	return &domain.Account{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		APIKeyHash:   d.APIKeyHash,
		APIKeyPrefix: d.APIKeyPrefix,
		Role:         domain.Role(d.Role),
		Status:       domain.AccountStatus(d.Status),
		Credits:      d.Credits,
		CreditLimit:  d.CreditLimit,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

// accountProjection leaves holds out of ordinary reads.
var accountProjection = bson.M{"holds": 0}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := accountDocument{
		Email:        domain.NormalizeEmail(account.Email),
		Name:         account.Name,
		PasswordHash: account.PasswordHash,
		APIKeyHash:   account.APIKeyHash,
		APIKeyPrefix: account.APIKeyPrefix,
		Role:         string(account.Role),
		Status:       string(account.Status),
		Credits:      account.Credits,
		CreditLimit:  account.CreditLimit,
		Holds:        []holdDocument{},
		CreatedAt:    account.CreatedAt.UTC(),
		UpdatedAt:    account.UpdatedAt.UTC(),
	}

	out, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	doc.ID = out.InsertedID.(primitive.ObjectID)
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByAPIKeyHash(ctx context.Context, hash string) (*domain.Account, error) {
	if hash == "" {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"api_key_hash": hash})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(accountProjection)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

// Update applies a partial $set. Credits are never part of it.
func (r *AccountRepository) Update(ctx context.Context, id string, u domain.AccountUpdate) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.CreditLimit != nil {
		set["credit_limit"] = *u.CreditLimit
	}
	if u.Status != nil {
		set["status"] = string(*u.Status)
	}
	if u.Role != nil {
		set["role"] = string(*u.Role)
	}
	if u.APIKeyHash != nil {
		set["api_key_hash"] = *u.APIKeyHash
	}
	if u.APIKeyPrefix != nil {
		set["api_key_prefix"] = *u.APIKeyPrefix
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(accountProjection)

	var doc accountDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns accounts newest first with the total count for the filter.
func (r *AccountRepository) List(ctx context.Context, filter ports.ListAccountsFilter) ([]*domain.Account, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Role != "" {
		query["role"] = string(filter.Role)
	}

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(accountProjection)
	if filter.Limit > 0 {
		page := max(filter.Page, 1)
		opts.SetSkip(int64((page - 1) * filter.Limit)).SetLimit(int64(filter.Limit))
	}

	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}
	defer cur.Close(ctx)

	var docs []accountDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode accounts: %w", err)
	}

	out := make([]*domain.Account, len(docs))
	for i := range docs {
		out[i] = docs[i].toDomain()
	}
	return out, total, nil
}

// Overview aggregates client counts and outstanding credits in one pass.
func (r *AccountRepository) Overview(ctx context.Context) (*domain.Overview, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"role": string(domain.RoleClient)}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"clients": bson.M{"$sum": 1},
			"active": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$status", string(domain.StatusActive)}}, 1, 0},
			}},
			"credits": bson.M{"$sum": "$credits"},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate overview: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Clients int64 `bson:"clients"`
		Active  int64 `bson:"active"`
		Credits int64 `bson:"credits"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode overview: %w", err)
	}

	o := &domain.Overview{}
	if len(rows) > 0 {
		o.Clients = rows[0].Clients
		o.ActiveClients = rows[0].Active
		o.CreditsOutstanding = rows[0].Credits
	}
	return o, nil
}

type balanceDocument struct {
	Credits int `bson:"credits"`
}

var balanceAfter = options.FindOneAndUpdate().
	SetReturnDocument(options.After).
	SetProjection(bson.M{"credits": 1})

// ReserveCredits is a conditional decrement: the filter only matches an active
// account holding enough credits, so concurrent callers can never overspend.
func (r *AccountRepository) ReserveCredits(ctx context.Context, res domain.Reservation) (int, error) {
	oid, err := primitive.ObjectIDFromHex(res.AccountID)
	if err != nil {
		return 0, domain.ErrAccountNotFound
	}

	filter := bson.M{
		"_id":     oid,
		"status":  string(domain.StatusActive),
		"credits": bson.M{"$gte": res.Amount},
	}
	update := bson.M{
		"$inc": bson.M{"credits": -res.Amount},
		"$push": bson.M{"holds": holdDocument{
			ID:        res.ID,
			Amount:    res.Amount,
			CreatedAt: res.CreatedAt.UTC(),
		}},
	}

	opCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc balanceDocument
	err = r.coll.FindOneAndUpdate(opCtx, filter, update, balanceAfter).Decode(&doc)
	if err == nil {
		return doc.Credits, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("reserve credits: %w", err)
	}

	// Nothing matched: find out why.
	current, err := r.FindByID(ctx, res.AccountID)
	if err != nil {
		return 0, err
	}
	if !current.IsActive() {
		return 0, domain.ErrAccountRevoked
	}
	return 0, &domain.InsufficientCreditsError{Required: res.Amount, Available: current.Credits}
}

// SettleReservation pulls the hold; the filter only matches while it is still
// held, which makes settlement happen at most once.
func (r *AccountRepository) SettleReservation(ctx context.Context, res domain.Reservation, refund bool) (int, error) {
	oid, err := primitive.ObjectIDFromHex(res.AccountID)
	if err != nil {
		return 0, domain.ErrReservationSettled
	}

	filter := bson.M{
		"_id":   oid,
		"holds": bson.M{"$elemMatch": bson.M{"id": res.ID, "amount": res.Amount}},
	}
	update := bson.M{"$pull": bson.M{"holds": bson.M{"id": res.ID}}}
	if refund {
		update["$inc"] = bson.M{"credits": res.Amount}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc balanceDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, balanceAfter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrReservationSettled
		}
		return 0, fmt.Errorf("settle reservation: %w", err)
	}
	return doc.Credits, nil
}

func (r *AccountRepository) AddCredits(ctx context.Context, id string, amount int) (int, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, domain.ErrAccountNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{"credits": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var doc balanceDocument
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, balanceAfter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrAccountNotFound
		}
		return 0, fmt.Errorf("add credits: %w", err)
	}
	return doc.Credits, nil
}

func (r *AccountRepository) ListStaleReservations(ctx context.Context, before time.Time) ([]ports.StaleReservation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{"holds.created_at": bson.M{"$lt": before.UTC()}}
	cur, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"holds": 1}))
	if err != nil {
		return nil, fmt.Errorf("find stale reservations: %w", err)
	}
	defer cur.Close(ctx)

	var stale []ports.StaleReservation
	for cur.Next(ctx) {
		var doc accountDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode account holds: %w", err)
		}
		for _, h := range doc.Holds {
			if !h.CreatedAt.Before(before) {
				continue
			}
			stale = append(stale, ports.StaleReservation{
				AccountID: doc.ID.Hex(),
				Reservation: domain.Reservation{
					ID:        h.ID,
					AccountID: doc.ID.Hex(),
					Amount:    h.Amount,
					CreatedAt: h.CreatedAt.UTC(),
				},
			})
		}
	}
	return stale, cur.Err()
}

// EnsureIndexes creates the indexes the lookups above rely on.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "api_key_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "holds.created_at", Value: 1}}},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexes)
	return err
}
