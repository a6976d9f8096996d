package readers

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/BartekS5/mapflow/internal/config"
	"github.com/BartekS5/mapflow/internal/etl"
	"github.com/BartekS5/mapflow/pkg/database"
	"github.com/BartekS5/mapflow/pkg/models"
	"github.com/BartekS5/mapflow/pkg/utils"
)

// SQL reads the result of one query per entity. Keys:
//
//	<r>_driver        sqlserver, postgres, mysql or sqlite
//	<r>_dsn           connection string, may be encrypted
//	<r>_<e>_query     default SELECT * FROM <entity>
//
// The result columns become the entity's source fields.
type SQL struct {
	rc   config.Resolver
	db   *sql.DB
	rows *sql.Rows
}

func (s *SQL) Initialize(ctx context.Context, rc config.Resolver) error {
	s.rc = rc
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

func (s *SQL) InitializeEntity(ctx context.Context, e *models.SourceEntity) error {
	s.closeRows()
	query := s.rc.String(e.Name(), "query", "SELECT * FROM "+e.Name())
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query for %s: %w", e.Name(), err)
	}
	s.rows = rows
	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	return e.OverwriteFields(cols)
}

func (s *SQL) Read(ctx context.Context, sess *etl.Session) error {
	width := sess.Entity().Width()
	return fill(ctx, sess, func() ([]*string, error) {
		if !s.rows.Next() {
			return nil, s.rows.Err()
		}
		cols := make([]interface{}, width)
		ptrs := make([]interface{}, width)
		for i := range cols {
			ptrs[i] = &cols[i]
		}
		if err := s.rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		values := make([]*string, width)
		for i, v := range cols {
			values[i] = utils.Stringify(v)
		}
		return values, nil
	})
}

func (s *SQL) Close(context.Context) error {
	s.closeRows()
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQL) closeRows() {
	if s.rows != nil {
		s.rows.Close()
		s.rows = nil
	}
}
