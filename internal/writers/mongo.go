package writers

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/pkg/database"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
	"github.com/BartekS5/mapflow/pkg/utils"
)

// Mongo upserts documents into the destination collection of each
// entity. Documents are matched by the filter fields or the unique id
// field; without either they are inserted. Keys:
//
//	<w>_uri                 connection URI, may be encrypted
//	<w>_database
//	<w>_<e>_field_types     field:type|... with int, float, bool, datetime
type Mongo struct {
	mapped
	client *mongo.Client
	db     *mongo.Database
	types  map[string]map[string]string
}

func (m *Mongo) Initialize(ctx context.Context, rc config.Resolver) error {
	m.init(rc)
	m.types = map[string]map[string]string{}
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

func (m *Mongo) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	if _, err := m.load(e); err != nil {
		return err
	}
	pairs, err := m.rc.Pairs(e.Name(), "field_types", ":", "|")
	if err != nil {
		return err
	}
	types := map[string]string{}
	for _, p := range pairs {
		types[p[0]] = p[1]
	}
	m.types[e.Name()] = types
	return nil
}

func (m *Mongo) WriteHeader(context.Context, *models.SourceEntity) error { return nil }

func (m *Mongo) WriteBatch(ctx context.Context, b *etl.BatchData, e *models.SourceEntity) error {
	wm, err := m.mapping(e)
	if err != nil {
		return err
	}
	writes, err := documentModels(wm, b.Records(), m.types[e.Name()])
	if err != nil || len(writes) == 0 {
		return err
	}
	coll := m.db.Collection(wm.DestEntity())
	res, err := coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return err
	}
	logger.Debugf("Mongo BulkWrite %s: insert %d, match %d, mod %d, upsert %d",
		coll.Name(), res.InsertedCount, res.MatchedCount, res.ModifiedCount, res.UpsertedCount)
	return nil
}

// documentModels builds one write model per record. Records are upserted
// when filter fields or a unique id field select them, inserted otherwise.
func documentModels(wm *mapping.WriterMapping, records [][]string, types map[string]string) ([]mongo.WriteModel, error) {
	keyed := len(wm.FilterFields()) > 0 || wm.UniqueIDField() != ""
	writes := make([]mongo.WriteModel, 0, len(records))
	for _, rec := range records {
		var doc, filter bson.D
		if wm.HasMapping() {
			row, err := wm.Resolve(rec)
			if err != nil {
				return nil, err
			}
			doc = row.Document()
			if keyed {
				if filter, err = row.FilterMap(); err != nil {
					return nil, err
				}
			}
		} else {
			doc = wm.DocumentWithoutMapping(rec)
			if keyed {
				var err error
				if filter, err = wm.FilterMapWithoutMapping(rec); err != nil {
					return nil, err
				}
			}
		}

		doc, err := typed(doc, types)
		if err != nil {
			return nil, err
		}
		if !keyed {
			writes = append(writes, mongo.NewInsertOneModel().SetDocument(doc))
			continue
		}
		if filter, err = typed(filter, types); err != nil {
			return nil, err
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(bson.D{{Key: "$set", Value: doc}}).
			SetUpsert(true))
	}
	return writes, nil
}

func typed(d bson.D, types map[string]string) (bson.D, error) {
	if len(types) == 0 {
		return d, nil
	}
	out := make(bson.D, len(d))
	for i, el := range d {
		out[i] = el
		typ, ok := types[el.Key]
		if !ok {
			continue
		}
		s, _ := el.Value.(string)
		v, err := utils.Convert(s, typ)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", el.Key, err)
		}
		out[i].Value = v
	}
	return out, nil
}

func (m *Mongo) Close(context.Context) error {
	if m.client == nil {
		return nil
	}
	return database.DisconnectMongo(m.client)
}
