package boiledrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/tazama/core"
	"github.com/trezcool/tazama/core/user"
)

const userColumns = `"id", "name", "username", "email", "is_active", "roles", "password_hash", "created_at", "updated_at", "last_login"`

var userOrderingColumns = map[string]bool{
	"name":       true,
	"username":   true,
	"email":      true,
	"is_active":  true,
	"created_at": true,
	"last_login": true,
}

type userRow struct {
	ID           string            `boil:"id"`
	Name         null.String       `boil:"name"`
	Username     null.String       `boil:"username"`
	Email        null.String       `boil:"email"`
	IsActive     null.Bool         `boil:"is_active"`
	Roles        types.StringArray `boil:"roles"`
	PasswordHash null.Bytes        `boil:"password_hash"`
	CreatedAt    null.Time         `boil:"created_at"`
	UpdatedAt    null.Time         `boil:"updated_at"`
	LastLogin    null.Time         `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func (repo userRepository) boil(usr user.User) *userRow {
	return &userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        types.StringArray(usr.Roles),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) unboil(row *userRow) user.User {
	if row == nil {
		return user.User{}
	}
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Username:     row.Username.String,
		Email:        row.Email.String,
		IsActive:     row.IsActive.Ptr(),
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) unboilSlice(rows []*userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.unboil(row))
	}
	return users
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	w := new(where)
	w.add(`"username" = ? OR "email" = ?`, null.NewString(username, username != ""), null.NewString(email, email != ""))
	if len(excludedUsers) > 0 {
		ids := make(types.StringArray, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		w.add(`NOT ("id" = ANY(?::uuid[]))`, ids)
	}

	var row userRow
	err := queries.Raw(`SELECT `+userColumns+` FROM "user"`+w.String()+` LIMIT 1`, w.args...).Bind(ctx, getExec(repo.exec, exec), &row)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}

	switch {
	case username != "" && row.Username.String == username:
		return user.ErrUsernameExists
	case email != "" && row.Email.String == email:
		return user.ErrEmailExists
	}
	return user.ErrUserExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := repo.boil(usr)
	_, err := queries.Raw(
		`INSERT INTO "user" (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	).ExecContext(ctx, getExec(repo.exec, exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(r), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	w := new(where)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add(`"name" ILIKE ? OR "username" ILIKE ? OR "email" ILIKE ?`, val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			patterns := make(types.StringArray, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				patterns = append(patterns, role+"%")
			}
			w.add(`EXISTS (SELECT 1 FROM UNNEST("roles") user_role WHERE user_role ILIKE ANY(?))`, patterns)
		}
		if filter.IsActive != nil {
			w.add(`"is_active" = ?`, *filter.IsActive)
		}
	}

	var rows []*userRow
	q := `SELECT ` + userColumns + ` FROM "user"` + w.String() + orderBy(ordering, userOrderingColumns, `"created_at" ASC`)
	if err := queries.Raw(q, w.args...).Bind(ctx, getExec(repo.exec, exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	w := new(where)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		w.add(`"id" = ?`, filter.ID)
	case filter.Username != "":
		w.add(`"username" = ?`, filter.Username)
	case filter.Email != "":
		w.add(`"email" = ?`, filter.Email)
	case filter.UsernameOrEmail != "":
		w.add(`"username" = ? OR "email" = ?`, filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := queries.Raw(`SELECT `+userColumns+` FROM "user"`+w.String()+` LIMIT 1`, w.args...).Bind(ctx, getExec(repo.exec, exec), &row)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return repo.unboil(&row), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	r := repo.boil(usr)
	res, err := queries.Raw(
		`UPDATE "user" SET "name" = $2, "username" = $3, "email" = $4, "is_active" = $5, "roles" = $6,
			"password_hash" = $7, "updated_at" = $8, "last_login" = $9
		WHERE "id" = $1`,
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.UpdatedAt, r.LastLogin,
	).ExecContext(ctx, getExec(repo.exec, exec))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.unboil(r), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error) {
	res, err := queries.Raw(`DELETE FROM "user" WHERE "id" = ANY($1::uuid[])`, types.StringArray(ids)).
		ExecContext(ctx, getExec(repo.exec, exec))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	cnt, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(cnt), nil
}
