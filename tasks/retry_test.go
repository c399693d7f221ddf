package tasks

import (
	"database/sql"
	"database/sql/driver"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/arifa/core"
)

func TestIsKnownTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "pq error", err: &pq.Error{Code: "40001", Message: "serialization failure"}, want: true},
		{name: "wrapped pq error", err: errors.Wrap(&pq.Error{Code: "57P01"}, "updating schedules"), want: true},
		{name: "bad conn", err: driver.ErrBadConn, want: true},
		{name: "conn done", err: sql.ErrConnDone, want: true},
		{name: "tx done", err: errors.Wrap(sql.ErrTxDone, "committing"), want: true},
		{name: "validation error", err: core.NewValidationError(errors.New("bad input")), want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "no rows", err: sql.ErrNoRows, want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isKnownTransient(tt.err))
		})
	}
}
