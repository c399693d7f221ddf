package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/arifa/core"
	"github.com/trezcool/arifa/core/schedule"
)

type courseUpdateRepository struct {
	db      core.DBExecutor
	replica core.DBExecutor
}

var _ schedule.CourseUpdateRepository = (*courseUpdateRepository)(nil)

func NewCourseUpdateRepository(db *sqlx.DB, replica *sqlx.DB) *courseUpdateRepository {
	repo := &courseUpdateRepository{db: db}
	if replica != nil {
		repo.replica = replica
	}
	return repo
}

func (repo courseUpdateRepository) readExec() core.DBExecutor {
	if repo.replica != nil {
		return repo.replica
	}
	return repo.db
}

func (repo courseUpdateRepository) WeekSummary(ctx context.Context, courseID string, weekNum int) (string, error) {
	var summary string
	exec := repo.readExec()
	err := exec.GetContext(ctx, &summary,
		exec.Rebind(`SELECT summary FROM course_update WHERE course_id = ? AND week_num = ?`),
		courseID, weekNum)
	if err == sql.ErrNoRows {
		return "", schedule.ErrCourseUpdateNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "getting course week summary")
	}
	return summary, nil
}
