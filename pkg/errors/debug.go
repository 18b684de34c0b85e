package errors

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const maxChainDepth = 10

// PGDetail is what the Postgres server reported, whichever driver surfaced it.
type PGDetail struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// ErrorDump is the log-only view of an error chain. It is never sent to callers.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Retryable  bool
	Timeout    bool
	Chain      []string
	PG         *PGDetail
}

// Dump flattens err for structured logs.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{
		TopMessage: err.Error(),
		Code:       As(err).codeOr(""),
		Retryable:  Retryable(err),
		Timeout:    isTimeout(err),
		PG:         postgresDetail(err),
	}
	for e := err; e != nil && len(d.Chain) < maxChainDepth; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

func postgresDetail(err error) *PGDetail {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		return &PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	}
	return nil
}

// Fields renders the dump as logger fields, leaving out empty Postgres
// attributes.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  string(d.Code),
		"error_chain": d.Chain,
		"retryable":   d.Retryable,
	}
	if d.Timeout {
		fields["timeout"] = true
	}
	if d.PG == nil {
		return fields
	}
	for _, kv := range [][2]string{
		{"pg_code", d.PG.Code},
		{"pg_constraint", d.PG.Constraint},
		{"pg_table", d.PG.Table},
		{"pg_column", d.PG.Column},
		{"pg_detail", d.PG.Detail},
		{"pg_message", d.PG.Message},
	} {
		if kv[1] != "" {
			fields[kv[0]] = kv[1]
		}
	}
	return fields
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
