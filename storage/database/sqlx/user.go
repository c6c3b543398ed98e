package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edutrack/backend/core"
	"github.com/edutrack/backend/core/user"
)

const userColumns = "u.id, u.name, u.username, u.email, u.password_hash, u.role, u.created_at, u.updated_at, u.last_login"

var userOrderings = map[string]string{
	"id":         "u.id",
	"name":       "u.name",
	"username":   "u.username",
	"email":      "u.email",
	"role":       "u.role",
	"created_at": "u.created_at",
	"last_login": "u.last_login",
}

type userRow struct {
	ID           int64       `db:"id"`
	Name         string      `db:"name"`
	Username     string      `db:"username"`
	Email        null.String `db:"email"`
	PasswordHash null.Bytes  `db:"password_hash"`
	Role         string      `db:"role"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	LastLogin    null.Time   `db:"last_login"`
}

type studentRow struct {
	userRow
	Grade    string     `db:"grade"`
	ParentID null.Int64 `db:"parent_id"`
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUniqueness(ctx context.Context, username, email string, excludedIDs ...int64) error {
	var rows []userRow
	q := `SELECT ` + userColumns + ` FROM users u
		WHERE (u.username = $1 OR (u.email IS NOT NULL AND u.email = $2))
		AND NOT (u.id = ANY($3))`
	if excludedIDs == nil {
		excludedIDs = []int64{}
	}
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, username, email, pq.Array(excludedIDs)); err != nil {
		return errors.Wrap(err, "selecting users")
	}
	for _, row := range rows {
		if row.Username == username {
			return user.ErrUsernameExists
		}
	}
	if len(rows) > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := boilUser(usr)
	q := `INSERT INTO users (name, username, email, password_hash, role, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := conn(ctx, repo.db).GetContext(
		ctx, &row.ID, q,
		row.Name, row.Username, row.Email, row.PasswordHash, row.Role, row.CreatedAt, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		return user.User{}, mapUserConstraint(err)
	}
	return unboilUser(row), nil
}

func (repo *userRepository) CreateProfile(ctx context.Context, userID int64, profile user.Profile) error {
	var err error
	db := conn(ctx, repo.db)
	switch p := profile.(type) {
	case user.AdminProfile:
		_, err = db.ExecContext(ctx, "INSERT INTO admins (id) VALUES ($1)", userID)
	case user.TeacherProfile:
		_, err = db.ExecContext(ctx, "INSERT INTO teachers (id) VALUES ($1)", userID)
	case user.ParentProfile:
		_, err = db.ExecContext(ctx, "INSERT INTO parents (id) VALUES ($1)", userID)
	case user.StudentProfile:
		_, err = db.ExecContext(ctx, "INSERT INTO students (id, grade, parent_id) VALUES ($1, $2, $3)", userID, p.Grade, p.ParentID)
	default:
		return user.ErrInvalidRole
	}
	return errors.Wrap(err, "inserting profile")
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where string
		arg   interface{}
	)
	switch {
	case filter.ID != 0:
		where, arg = "u.id = $1", filter.ID
	case filter.Username != "":
		where, arg = "u.username = $1", filter.Username
	case filter.Email != "":
		where, arg = "u.email = $1", filter.Email
	case filter.UsernameOrEmail != "":
		where, arg = "(u.username = $1 OR u.email = $1)", filter.UsernameOrEmail
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := conn(ctx, repo.db).GetContext(ctx, &row, "SELECT "+userColumns+" FROM users u WHERE "+where+" LIMIT 1", arg)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return unboilUser(row), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter != nil {
		if filter.Search != "" {
			args = append(args, "%"+filter.Search+"%")
			n := len(args)
			conds = append(conds, fmt.Sprintf("(u.name ILIKE $%d OR u.username ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, len(filter.Roles))
			for i, r := range filter.Roles {
				roles[i] = string(r)
			}
			args = append(args, pq.Array(roles))
			conds = append(conds, fmt.Sprintf("u.role = ANY($%d)", len(args)))
		}
	}

	q := "SELECT " + userColumns + " FROM users u"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	orderBy := core.OrderingClause(ordering, userOrderings)
	if orderBy == "" {
		orderBy = "u.id ASC"
	}
	q += " ORDER BY " + orderBy

	var rows []userRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = unboilUser(row)
	}
	return users, nil
}

// UpdateUser saves every mutable column; the role is never updated.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := boilUser(usr)
	q := `UPDATE users u SET name = $2, username = $3, email = $4, password_hash = $5, updated_at = $6, last_login = $7
		WHERE u.id = $1 RETURNING ` + userColumns
	var updated userRow
	err := conn(ctx, repo.db).GetContext(
		ctx, &updated, q,
		row.ID, row.Name, row.Username, row.Email, row.PasswordHash, row.UpdatedAt, row.LastLogin,
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, mapUserConstraint(err)
	}
	return unboilUser(updated), nil
}

const studentQuery = "SELECT " + userColumns + ", s.grade, s.parent_id FROM users u JOIN students s ON s.id = u.id"

func (repo *userRepository) GetStudent(ctx context.Context, id int64) (user.Student, error) {
	var row studentRow
	if err := conn(ctx, repo.db).GetContext(ctx, &row, studentQuery+" WHERE u.id = $1", id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.Student{}, user.ErrStudentNotFound
		}
		return user.Student{}, errors.Wrap(err, "selecting student")
	}
	return unboilStudent(row), nil
}

func (repo *userRepository) QueryStudents(ctx context.Context, filter user.StudentFilter) ([]user.Student, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ParentID != 0 {
		args = append(args, filter.ParentID)
		conds = append(conds, fmt.Sprintf("s.parent_id = $%d", len(args)))
	}
	if filter.Grade != "" {
		args = append(args, filter.Grade)
		conds = append(conds, fmt.Sprintf("s.grade = $%d", len(args)))
	}
	q := studentQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY u.id ASC"

	var rows []studentRow
	if err := conn(ctx, repo.db).SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]user.Student, len(rows))
	for i, row := range rows {
		students[i] = unboilStudent(row)
	}
	return students, nil
}

func (repo *userRepository) SetStudentParent(ctx context.Context, studentID, parentID int64) error {
	res, err := conn(ctx, repo.db).ExecContext(ctx, "UPDATE students SET parent_id = $2 WHERE id = $1", studentID, parentID)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	if n == 0 {
		return user.ErrStudentNotFound
	}
	return nil
}

// mapUserConstraint maps unique violations raised by a concurrent insert to the uniqueness errors.
func mapUserConstraint(err error) error {
	constraint, ok := uniqueViolationOn(err)
	if !ok {
		return errors.Wrap(err, "saving user")
	}
	if strings.Contains(constraint, "email") {
		return user.ErrEmailExists
	}
	return user.ErrUsernameExists
}

func boilUser(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        null.NewString(usr.Email, usr.Email != ""),
		PasswordHash: null.NewBytes(usr.PasswordHash, len(usr.PasswordHash) > 0),
		Role:         string(usr.Role),
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func unboilUser(row userRow) user.User {
	usr := user.User{
		ID:        row.ID,
		Name:      row.Name,
		Username:  row.Username,
		Email:     row.Email.String,
		Role:      user.Role(row.Role),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.PasswordHash.Valid {
		usr.PasswordHash = row.PasswordHash.Bytes
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func unboilStudent(row studentRow) user.Student {
	return user.Student{User: unboilUser(row.userRow), Grade: row.Grade, ParentID: row.ParentID}
}
