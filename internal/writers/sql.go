package writers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/internal/mapping"
	"github.com/BartekS5/mapflow/pkg/database"
	"github.com/BartekS5/mapflow/pkg/logger"
	"github.com/BartekS5/mapflow/pkg/models"
)

// SQL inserts records into the destination table of each entity. With a
// dest_unique_id_field existing rows are updated instead, with or without
// a declared mapping. Keys:
//
//	<w>_driver   sqlserver, postgres, mysql or sqlite
//	<w>_dsn      connection string, may be encrypted
//
// Each batch is written in one transaction.
type SQL struct {
	mapped
	db *sql.DB
}

func (s *SQL) Initialize(ctx context.Context, rc config.Resolver) error {
	s.init(rc)
	driver, err := rc.Require("", "driver")
	if err != nil {
		return err
	}
	dsn, err := rc.Decoded("", "dsn")
	if err != nil {
		return err
	}
	if dsn == "" {
		return config.Errorf(rc.Key("dsn"), "required key is missing")
	}
	s.db, err = database.ConnectSQL(ctx, driver, dsn)
	return err
}

func (s *SQL) InitializeEntity(_ context.Context, e *models.SourceEntity) error {
	_, err := s.load(e)
	return err
}

func (s *SQL) WriteHeader(context.Context, *models.SourceEntity) error { return nil }

func (s *SQL) WriteBatch(ctx context.Context, b *etl.BatchData, e *models.SourceEntity) (err error) {
	wm, err := s.mapping(e)
	if err != nil {
		return err
	}
	records := b.Records()
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var inserted, updated int
	for _, rec := range records {
		ins, err := s.write(ctx, tx, wm, rec)
		if err != nil {
			return err
		}
		if ins {
			inserted++
		} else {
			updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Debugf("writer %s, table %s: %d inserted, %d updated", s.rc.Name(), wm.DestEntity(), inserted, updated)
	return nil
}

// statement holds the SQL fragments of one record.
type statement struct {
	columns string
	values  string
	set     string
	where   string
}

func render(wm *mapping.WriterMapping, rec []string) (statement, error) {
	if !wm.HasMapping() {
		st := statement{
			columns: wm.InsertColumnsWithoutMapping(),
			values:  wm.InsertValuesWithoutMapping(rec),
			set:     wm.UpdateSetWithoutMapping(rec),
		}
		if id := wm.UniqueIDField(); id != "" {
			where, err := wm.WhereWithoutMapping(rec, id)
			if err != nil {
				return st, err
			}
			st.where = where
		}
		return st, nil
	}

	row, err := wm.Resolve(rec)
	if err != nil {
		return statement{}, err
	}
	st := statement{columns: wm.InsertColumns(), values: row.InsertValues(), set: row.UpdateSet()}
	if wm.UniqueIDField() != "" {
		if st.where, err = row.WhereUpdate(); err != nil {
			return st, err
		}
	}
	return st, nil
}

// write stores one record and reports whether it was inserted. With a
// unique id field an existing row is updated instead.
func (s *SQL) write(ctx context.Context, tx *sql.Tx, wm *mapping.WriterMapping, rec []string) (bool, error) {
	table := wm.DestEntity()
	st, err := render(wm, rec)
	if err != nil {
		return false, err
	}
	if st.where != "" {
		var one int
		err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE %s", table, st.where)).Scan(&one)
		switch {
		case err == nil:
			_, err = tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, st.set, st.where))
			return false, err
		case !errors.Is(err, sql.ErrNoRows):
			return false, fmt.Errorf("error checking row existence: %w", err)
		}
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, st.columns, st.values))
	return true, err
}

func (s *SQL) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
