package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"edu-consult/internal/domain"
)

const (
	mongoEmailIndex = "email_unique"
	mongoPhoneIndex = "phone_unique"
)

// MongoUserRepository implementa UserRepository sobre una colección de MongoDB.
type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(coll *mongo.Collection) *MongoUserRepository {
	return &MongoUserRepository{coll: coll}
}

// EnsureIndexes crea los índices únicos de email y teléfono.
func (r *MongoUserRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(mongoEmailIndex),
		},
		{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName(mongoPhoneIndex),
		},
	})
	return err
}

func (r *MongoUserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.coll.InsertOne(ctx, user)
	return mapMongoError(err)
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var u domain.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *MongoUserRepository) Save(ctx context.Context, user domain.User) error {
	set := bson.M{
		"fullName":  user.FullName,
		"email":     user.Email,
		"password":  user.PasswordHash,
		"role":      user.Role,
		"updatedAt": user.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if strings.TrimSpace(user.PhoneNumber) == "" {
		update["$unset"] = bson.M{"phoneNumber": ""}
	} else {
		set["phoneNumber"] = user.PhoneNumber
	}
	res, err := r.coll.UpdateByID(ctx, user.ID, update)
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password":  passwordHash,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetResetCode(ctx context.Context, id, code string, expiresAt time.Time) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"resetCode":        code,
		"resetCodeExpires": expiresAt,
		"updatedAt":        time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) ConsumeResetCode(ctx context.Context, email, code string, now time.Time, passwordHash string) error {
	res, err := r.coll.UpdateOne(ctx, resetCodeFilter(email, code, now), bson.M{
		"$set":   bson.M{"password": passwordHash, "updatedAt": now},
		"$unset": bson.M{"resetCode": "", "resetCodeExpires": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func resetCodeFilter(email, code string, now time.Time) bson.M {
	return bson.M{
		"email":            email,
		"resetCode":        code,
		"resetCodeExpires": bson.M{"$gt": now},
	}
}

func mapMongoError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), mongoPhoneIndex) {
			return &DuplicateError{Field: FieldPhone}
		}
		return &DuplicateError{Field: FieldEmail}
	}
	return err
}
