package store

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/casdoc/casdoc/internal/document"
)

// Mongo keeps one collection row per document: _id is the key, cas is an
// int64 bumped on every write, the document body lives under "doc" and
// expiry rides on a TTL index over "expiresAt". Conditional writes are
// filter-based so the compare and the swap happen in one server-side
// operation.
type Mongo struct {
	col *mongo.Collection
}

type mongoEnvelope struct {
	Key       string     `bson:"_id"`
	CAS       int64      `bson:"cas"`
	Doc       bson.M     `bson:"doc"`
	ExpiresAt *time.Time `bson:"expiresAt,omitempty"`
}

// NewMongo wraps the collection and ensures the TTL index exists.
func NewMongo(ctx context.Context, col *mongo.Collection) (*Mongo, error) {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, errors.Wrap(err, "mongo ttl index")
	}
	return &Mongo{col: col}, nil
}

func mongoCAS(n int64) CAS { return CAS(strconv.FormatInt(n, 10)) }

func parseMongoCAS(c CAS) (int64, bool) {
	n, err := strconv.ParseInt(string(c), 10, 64)
	return n, err == nil
}

func (m *Mongo) Get(ctx context.Context, key string) (document.Document, CAS, error) {
	var env mongoEnvelope
	err := m.col.FindOne(ctx, bson.M{"_id": key}).Decode(&env)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", ErrNotFound
		}
		return nil, "", errors.Wrap(err, "mongo find")
	}
	doc, ok := fromBSONValue(env.Doc).(document.Document)
	if !ok {
		return nil, "", errors.Wrap(document.ErrInvalidValue, "mongo body is not a mapping")
	}
	return doc, mongoCAS(env.CAS), nil
}

func (m *Mongo) Put(ctx context.Context, key string, doc document.Document, opts PutOptions) (CAS, error) {
	if err := checkPut(key, doc); err != nil {
		return "", err
	}

	set := bson.M{"doc": bson.M(doc)}
	update := bson.M{"$set": set, "$inc": bson.M{"cas": int64(1)}}
	if opts.TTL > 0 {
		set["expiresAt"] = time.Now().UTC().Add(opts.TTL)
	} else {
		update["$unset"] = bson.M{"expiresAt": ""}
	}

	if opts.IfAbsent {
		env := mongoEnvelope{Key: key, CAS: 1, Doc: bson.M(doc)}
		if opts.TTL > 0 {
			exp := time.Now().UTC().Add(opts.TTL)
			env.ExpiresAt = &exp
		}
		if _, err := m.col.InsertOne(ctx, env); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return "", ErrKeyExists
			}
			return "", errors.Wrap(err, "mongo insert")
		}
		return mongoCAS(1), nil
	}

	filter := bson.M{"_id": key}
	fo := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if opts.IfCAS != nil {
		expected, ok := parseMongoCAS(*opts.IfCAS)
		if !ok {
			return "", ErrCASMismatch
		}
		filter["cas"] = expected
	} else {
		fo = fo.SetUpsert(true)
	}

	var updated mongoEnvelope
	err := m.col.FindOneAndUpdate(ctx, filter, update, fo).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrCASMismatch
		}
		return "", errors.Wrap(err, "mongo update")
	}
	return mongoCAS(updated.CAS), nil
}

func (m *Mongo) Remove(ctx context.Context, key string, ifCAS *CAS) error {
	filter := bson.M{"_id": key}
	if ifCAS != nil {
		expected, ok := parseMongoCAS(*ifCAS)
		if !ok {
			return ErrCASMismatch
		}
		filter["cas"] = expected
	}
	res, err := m.col.DeleteOne(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "mongo delete")
	}
	if res.DeletedCount > 0 {
		return nil
	}
	if ifCAS == nil {
		return ErrNotFound
	}
	// distinguish a stale token from a missing document
	n, err := m.col.CountDocuments(ctx, bson.M{"_id": key})
	if err != nil {
		return errors.Wrap(err, "mongo count")
	}
	if n > 0 {
		return ErrCASMismatch
	}
	return ErrNotFound
}

// fromBSONValue normalizes driver-decoded values into the document model.
func fromBSONValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(document.Document, len(t))
		for k, e := range t {
			out[k] = fromBSONValue(e)
		}
		return out
	case bson.D:
		out := make(document.Document, len(t))
		for _, e := range t {
			out[e.Key] = fromBSONValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = fromBSONValue(e)
		}
		return out
	case primitive.DateTime:
		return int64(t)
	case int32:
		return int64(t)
	default:
		return v
	}
}
