package writers

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/models"
)

func personEntity() *models.SourceEntity {
	return models.NewSourceEntity("person", []string{"id", "name", "country"})
}

// personConfig maps person to id and label for writer w, plus extra keys.
func personConfig(w string, extra map[string]string) *config.Store {
	values := map[string]string{
		w + "_person_mapping_field_001": "id:*",
		w + "_person_mapping_field_002": "label:{name} ({country})",
	}
	for k, v := range extra {
		values[k] = v
	}
	return config.NewStore(values, nil)
}

func batchOf(t *testing.T, e *models.SourceEntity, records ...[]string) *etl.BatchData {
	t.Helper()
	b := etl.NewBatch(e, ";")
	for _, r := range records {
		require.NoError(t, b.Add(r))
	}
	return b
}

var people = [][]string{{"1", "Ann", "CH"}, {"2", "Bob", "XX"}}

// open runs Initialize and InitializeEntity for the person entity.
func open(t *testing.T, w etl.Writer, store *config.Store, name string) *models.SourceEntity {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.Initialize(ctx, store.Resolver(name)))
	e := personEntity()
	require.NoError(t, w.InitializeEntity(ctx, e))
	return e
}

func TestRegisteredWriters(t *testing.T) {
	assert.Subset(t, etl.WriterTypes(), []string{"code", "console", "csv", "http", "mail", "mongo", "sql"})
	assert.Contains(t, CodeNames(), "log")
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	e := open(t, c, personConfig("out", nil), "out")
	ctx := context.Background()

	require.NoError(t, c.WriteHeader(ctx, e))
	require.NoError(t, c.WriteBatch(ctx, batchOf(t, e, people...), e))
	require.NoError(t, c.WriteBatch(ctx, batchOf(t, e), e))
	require.NoError(t, c.Close(ctx))

	assert.Equal(t, "[Entity: person]\nid;label\n1;Ann (CH)\n2;Bob (XX)\n", out.String())
}

func TestConsole_WithoutMapping(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	store := config.NewStore(map[string]string{"value_enclosure": `"`}, nil)
	e := open(t, c, store, "out")
	ctx := context.Background()

	require.NoError(t, c.WriteHeader(ctx, e))
	require.NoError(t, c.WriteBatch(ctx, batchOf(t, e, []string{"1", `A "B"`, "CH"}), e))

	assert.Equal(t, "[Entity: person]\n\"id\";\"name\";\"country\"\n\"1\";\"A \"\"B\"\"\";\"CH\"\n", out.String())
}

func TestConsole_UninitializedEntity(t *testing.T) {
	c := NewConsole(&bytes.Buffer{})
	require.NoError(t, c.Initialize(context.Background(), config.NewStore(nil, nil).Resolver("out")))
	e := personEntity()
	assert.Error(t, c.WriteBatch(context.Background(), batchOf(t, e), e))
}

func TestCSV(t *testing.T) {
	dir := t.TempDir()
	store := personConfig("file", map[string]string{"file_dir": filepath.Join(dir, "export")})
	w := &CSV{}
	e := open(t, w, store, "file")
	ctx := context.Background()

	require.NoError(t, w.WriteHeader(ctx, e))
	require.NoError(t, w.WriteBatch(ctx, batchOf(t, e, people[0]), e))
	require.NoError(t, w.WriteBatch(ctx, batchOf(t, e, people[1]), e))
	require.NoError(t, w.Close(ctx))

	data, err := os.ReadFile(filepath.Join(dir, "export", "person.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id;label\n1;Ann (CH)\n2;Bob (XX)\n", string(data))
}

func TestCSV_Append(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.txt")
	require.NoError(t, os.WriteFile(path, []byte("0;Zed (DE)\n"), 0644))
	store := personConfig("file", map[string]string{
		"file_person_file": path,
		"file_append":      "yes",
	})
	w := &CSV{}
	e := open(t, w, store, "file")
	ctx := context.Background()

	require.NoError(t, w.WriteBatch(ctx, batchOf(t, e, people...), e))
	require.NoError(t, w.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0;Zed (DE)\n1;Ann (CH)\n2;Bob (XX)\n", string(data))
}

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func mailConfig() *config.Store {
	return personConfig("report", map[string]string{
		"report_smtp_host": "mail.local",
		"report_smtp_port": "2525",
		"report_from":      "etl@example.com",
		"report_to":        "a@example.com, b@example.com",
		"report_subject":   "people",
	})
}

func recordingMail(got *[]sentMail) *Mail {
	return &Mail{send: func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		*got = append(*got, sentMail{addr, from, to, string(msg)})
		return nil
	}}
}

func TestMail(t *testing.T) {
	var got []sentMail
	m := recordingMail(&got)
	e := open(t, m, mailConfig(), "report")
	ctx := context.Background()
	d := etl.NewDispatcher(config.ModeParallel, []etl.NamedWriter{{Name: "report", Writer: m}}, []string{"person"}, false)
	assert.False(t, d.Parallel())

	require.NoError(t, m.WriteHeader(ctx, e))
	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, people[0]), e, true))
	assert.Empty(t, got)
	require.NoError(t, d.ProcessBatch(ctx, batchOf(t, e, people[1]), e, false))
	require.NoError(t, d.NoDataIsComing(ctx))
	require.NoError(t, m.Close(ctx))

	require.Len(t, got, 1)
	assert.Equal(t, "mail.local:2525", got[0].addr)
	assert.Equal(t, "etl@example.com", got[0].from)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got[0].to)
	assert.Contains(t, got[0].msg, "Subject: people\r\n")
	assert.Contains(t, got[0].msg, "\r\n\r\n[Entity: person]\r\nid;label\r\n1;Ann (CH)\r\n2;Bob (XX)\r\n")
	assert.True(t, m.Exclusive())
}

func TestMail_FailedRunSendsNothing(t *testing.T) {
	var got []sentMail
	m := recordingMail(&got)
	e := open(t, m, mailConfig(), "report")
	ctx := context.Background()

	require.NoError(t, m.WriteHeader(ctx, e))
	require.NoError(t, m.WriteBatch(ctx, batchOf(t, e, people...), e))
	require.NoError(t, m.Close(ctx))
	assert.Empty(t, got)
}

func TestMail_SendFailure(t *testing.T) {
	m := &Mail{send: func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}}
	e := open(t, m, mailConfig(), "report")
	ctx := context.Background()
	d := etl.NewDispatcher(config.ModeSerial, []etl.NamedWriter{{Name: "report", Writer: m}}, []string{"person"}, false)

	err := d.ProcessBatch(ctx, batchOf(t, e, people...), e, false)
	var werr *etl.WriterError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "report", werr.Writer)
	assert.ErrorContains(t, err, "connection refused")
}

func TestMail_Configuration(t *testing.T) {
	tests := map[string]map[string]string{
		"no host":       {"report_from": "x@example.com", "report_to": "y@example.com"},
		"no sender":     {"report_smtp_host": "h", "report_to": "y@example.com"},
		"no recipients": {"report_smtp_host": "h", "report_from": "x@example.com"},
	}
	for name, values := range tests {
		t.Run(name, func(t *testing.T) {
			err := (&Mail{}).Initialize(context.Background(), config.NewStore(values, nil).Resolver("report"))
			assert.ErrorIs(t, err, config.ErrConfiguration)
		})
	}
}

type recordingCode struct {
	prefix   string
	records  int
	finished bool
}

func (r *recordingCode) Initialize(_ context.Context, rc config.Resolver) error {
	r.prefix = rc.String("", "label", "")
	return nil
}

func (r *recordingCode) Execute(_ context.Context, b *etl.BatchData, _ *models.SourceEntity) error {
	r.records += b.Len()
	return nil
}

func (r *recordingCode) Finish(context.Context) error {
	r.finished = true
	return nil
}

func TestCodeWriter(t *testing.T) {
	rec := &recordingCode{}
	RegisterCode("recording", func() Code { return rec })

	store := config.NewStore(map[string]string{
		"custom_implementation": "recording",
		"custom_label":          "people",
	}, nil)
	w := &CodeWriter{}
	e := open(t, w, store, "custom")
	ctx := context.Background()

	require.NoError(t, w.WriteHeader(ctx, e))
	require.NoError(t, w.WriteBatch(ctx, batchOf(t, e, people...), e))
	require.NoError(t, w.WriteBatch(ctx, batchOf(t, e, people[0]), e))
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, "people", rec.prefix)
	assert.Equal(t, 3, rec.records)
	assert.True(t, rec.finished)
}

func TestCodeWriter_Log(t *testing.T) {
	store := config.NewStore(map[string]string{"custom_implementation": "log"}, nil)
	w := &CodeWriter{}
	e := open(t, w, store, "custom")
	require.NoError(t, w.WriteBatch(context.Background(), batchOf(t, e, people...), e))
	assert.NoError(t, w.Close(context.Background()))
}

func TestCodeWriter_UnknownImplementation(t *testing.T) {
	store := config.NewStore(map[string]string{"custom_implementation": "nope"}, nil)
	err := (&CodeWriter{}).Initialize(context.Background(), store.Resolver("custom"))
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.NoError(t, (&CodeWriter{}).Close(context.Background()))
}
