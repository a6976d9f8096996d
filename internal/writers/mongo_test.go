package writers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/mapping"
)

func loadMapping(t *testing.T, store *config.Store, w string) *mapping.WriterMapping {
	t.Helper()
	wm, err := mapping.Load(store.Resolver(w), personEntity())
	require.NoError(t, err)
	return wm
}

func TestDocumentModels_Upsert(t *testing.T) {
	wm := loadMapping(t, personConfig("mg", map[string]string{"mg_person_dest_unique_id_field": "id"}), "mg")

	writes, err := documentModels(wm, people, map[string]string{"id": "int"})
	require.NoError(t, err)
	require.Len(t, writes, 2)

	up, ok := writes[1].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "id", Value: 2}}, up.Filter)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "id", Value: 2},
		{Key: "label", Value: "Bob (XX)"},
	}}}, up.Update)
	require.NotNil(t, up.Upsert)
	assert.True(t, *up.Upsert)
}

func TestDocumentModels_Insert(t *testing.T) {
	wm := loadMapping(t, personConfig("mg", nil), "mg")
	writes, err := documentModels(wm, people[:1], nil)
	require.NoError(t, err)
	ins, ok := writes[0].(*mongo.InsertOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "id", Value: "1"}, {Key: "label", Value: "Ann (CH)"}}, ins.Document)

	raw := loadMapping(t, config.NewStore(nil, nil), "mg")
	writes, err = documentModels(raw, [][]string{{"7", "Cem", ""}}, map[string]string{"id": "int", "country": "string"})
	require.NoError(t, err)
	ins = writes[0].(*mongo.InsertOneModel)
	assert.Equal(t, bson.D{
		{Key: "id", Value: 7},
		{Key: "name", Value: "Cem"},
		{Key: "country", Value: ""},
	}, ins.Document)
}

func TestDocumentModels_BadType(t *testing.T) {
	wm := loadMapping(t, personConfig("mg", nil), "mg")
	_, err := documentModels(wm, people, map[string]string{"id": "bool"})
	assert.ErrorContains(t, err, "field id")
}

func TestDocumentModels_UpsertWithoutMapping(t *testing.T) {
	wm := loadMapping(t, config.NewStore(map[string]string{"mg_person_dest_filter_fields": "id,country"}, nil), "mg")
	require.False(t, wm.HasMapping())

	writes, err := documentModels(wm, people[:1], map[string]string{"id": "int"})
	require.NoError(t, err)
	require.Len(t, writes, 1)

	up, ok := writes[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	assert.Equal(t, bson.D{{Key: "id", Value: 1}, {Key: "country", Value: "CH"}}, up.Filter)
	assert.Equal(t, bson.D{{Key: "$set", Value: bson.D{
		{Key: "id", Value: 1},
		{Key: "name", Value: "Ann"},
		{Key: "country", Value: "CH"},
	}}}, up.Update)
}
