package readers

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

type collector struct {
	batches [][][]string
	more    []bool
}

func (c *collector) Parallel() bool { return false }

func (c *collector) ProcessBatch(_ context.Context, b *etl.BatchData, _ *models.SourceEntity, more bool) error {
	c.batches = append(c.batches, b.Records())
	c.more = append(c.more, more)
	return nil
}

func (c *collector) NoDataIsComing(context.Context) error { return nil }

func readAll(t *testing.T, r etl.Reader, store *config.Store, name, entity string) (*collector, *models.SourceEntity) {
	t.Helper()
	ctx := context.Background()
	rc := store.Resolver(name)
	require.NoError(t, r.Initialize(ctx, rc))
	t.Cleanup(func() { _ = r.Close(ctx) })

	e := models.NewSourceEntity(entity, nil)
	e.MarkLast()
	require.NoError(t, r.InitializeEntity(ctx, e))

	c := &collector{}
	n := etl.NewNormalizer(rc, entity, nil)
	s := etl.NewSession(name, e, n, nil, c, store.Delimiter(), store.BatchSize())
	require.NoError(t, r.Read(ctx, s))
	return c, e
}

func TestCSV_Read(t *testing.T) {
	dir := t.TempDir()
	content := "# export\nid;name;country\n1;Ann;Switzerland\n2;\"Bob; Jr\";null\n3;Cem;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "person.csv"), []byte(content), 0644))

	store := config.NewStore(map[string]string{
		"in_dir":         dir,
		"in_header_size": "2",
		"batch_size":     "2",
	}, nil)
	c, e := readAll(t, &CSV{}, store, "in", "person")

	assert.Equal(t, []string{"id", "name", "country"}, e.Fields())
	require.Len(t, c.batches, 2)
	assert.Equal(t, [][]string{{"1", "Ann", "Switzerland"}, {"2", "Bob; Jr", ""}}, c.batches[0])
	assert.Equal(t, [][]string{{"3", "Cem", ""}}, c.batches[1])
	assert.Equal(t, []bool{true, false}, c.more)
}

func TestCSV_MissingFile(t *testing.T) {
	store := config.NewStore(map[string]string{"in_dir": t.TempDir()}, nil)
	r := &CSV{}
	require.NoError(t, r.Initialize(context.Background(), store.Resolver("in")))
	err := r.InitializeEntity(context.Background(), models.NewSourceEntity("nope", nil))
	assert.Error(t, err)
}

func TestSQL_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "src.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE person (id INTEGER, name TEXT, note TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO person VALUES (1, 'Ann', NULL), (2, ' Bob ', 'x')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store := config.NewStore(map[string]string{
		"db_driver":       "sqlite",
		"db_dsn":          path,
		"db_person_query": "SELECT id, name, note FROM person ORDER BY id",
	}, nil)
	c, e := readAll(t, &SQL{}, store, "db", "person")

	assert.Equal(t, []string{"id", "name", "note"}, e.Fields())
	require.Len(t, c.batches, 1)
	assert.Equal(t, [][]string{{"1", "Ann", ""}, {"2", "Bob", "x"}}, c.batches[0])
}

func TestSQL_MissingDSN(t *testing.T) {
	store := config.NewStore(map[string]string{"db_driver": "sqlite"}, nil)
	err := (&SQL{}).Initialize(context.Background(), store.Resolver("db"))
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestNull_Read(t *testing.T) {
	c, e := readAll(t, Null{}, config.NewStore(nil, nil), "none", "job")
	assert.Equal(t, []string{"value"}, e.Fields())
	require.Len(t, c.batches, 1)
	assert.Empty(t, c.batches[0])
}
