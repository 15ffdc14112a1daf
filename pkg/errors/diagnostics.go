package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Diagnostics flattens an error for structured logs. The Postgres fields are
// filled from whichever driver error sits in the chain.
type Diagnostics struct {
	Message    string
	Code       Code
	Chain      []string
	SQLState   string
	Constraint string
	Table      string
	Column     string
	Detail     string
}

func Diagnose(err error) Diagnostics {
	if err == nil {
		return Diagnostics{}
	}
	d := Diagnostics{Message: err.Error()}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgErr):
		d.SQLState, d.Constraint, d.Table, d.Column = pgErr.Code, pgErr.ConstraintName, pgErr.TableName, pgErr.ColumnName
		d.Detail = pgErr.Detail
	case stdErrors.As(err, &pqErr):
		d.SQLState, d.Constraint, d.Table, d.Column = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column
		d.Detail = pqErr.Detail
	}
	return d
}

// Fields returns the non-empty diagnostics as log fields.
func (d Diagnostics) Fields() map[string]any {
	fields := map[string]any{"error": d.Message}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	for k, v := range map[string]string{
		"pg_code":       d.SQLState,
		"pg_constraint": d.Constraint,
		"pg_table":      d.Table,
		"pg_column":     d.Column,
		"pg_detail":     d.Detail,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
