package readers

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/database"
	"github.com/BartekS5/mapflow/pkg/models"
	"github.com/BartekS5/mapflow/pkg/utils"
)

// Mongo reads one collection per entity. Keys:
//
//	<r>_uri              connection URI, may be encrypted
//	<r>_database
//	<r>_<e>_collection   default <entity>
//	<r>_<e>_filter       extended JSON filter, default all documents
//	<r>_<e>_fetch_size   cursor batch size
//
// Without source_fields the keys of the first document become the fields.
type Mongo struct {
	rc     config.Resolver
	client *mongo.Client
	db     *mongo.Database
	cursor *mongo.Cursor
}

func (m *Mongo) Initialize(ctx context.Context, rc config.Resolver) error {
	m.rc = rc
	uri, err := rc.Decoded("", "uri")
	if err != nil {
		return err
	}
	if uri == "" {
		return config.Errorf(rc.Key("uri"), "required key is missing")
	}
	name, err := rc.Require("", "database")
	if err != nil {
		return err
	}
	m.client, err = database.ConnectMongo(ctx, uri)
	if err != nil {
		return err
	}
	m.db = m.client.Database(name)
	return nil
}

func (m *Mongo) InitializeEntity(ctx context.Context, e *models.SourceEntity) error {
	m.closeCursor(ctx)
	coll := m.db.Collection(m.rc.String(e.Name(), "collection", e.Name()))

	filter := bson.D{}
	if f := m.rc.String(e.Name(), "filter", ""); f != "" {
		if err := bson.UnmarshalExtJSON([]byte(f), false, &filter); err != nil {
			return config.Errorf(m.rc.Key(e.Name(), "filter"), "invalid filter: %v", err)
		}
	}

	if e.Width() == 0 {
		var first bson.D
		err := coll.FindOne(ctx, filter).Decode(&first)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			return fmt.Errorf("collection %s is empty and no source_fields are set", coll.Name())
		case err != nil:
			return err
		}
		names := make([]string, len(first))
		for i, el := range first {
			names[i] = el.Key
		}
		if err := e.OverwriteFields(names); err != nil {
			return err
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetBatchSize(int32(m.rc.Number(e.Name(), "fetch_size", 100)))
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return err
	}
	m.cursor = cursor
	return nil
}

func (m *Mongo) Read(ctx context.Context, s *etl.Session) error {
	fields := s.Entity().Fields()
	return fill(ctx, s, func() ([]*string, error) {
		if !m.cursor.Next(ctx) {
			return nil, m.cursor.Err()
		}
		var doc bson.M
		if err := m.cursor.Decode(&doc); err != nil {
			return nil, err
		}
		values := make([]*string, len(fields))
		for i, f := range fields {
			values[i] = utils.Stringify(doc[f])
		}
		return values, nil
	})
}

func (m *Mongo) Close(ctx context.Context) error {
	m.closeCursor(ctx)
	if m.client == nil {
		return nil
	}
	return database.DisconnectMongo(m.client)
}

func (m *Mongo) closeCursor(ctx context.Context) {
	if m.cursor != nil {
		_ = m.cursor.Close(ctx)
		m.cursor = nil
	}
}
