package store

import (
	"context"
	"strings"

	"github.com/biorecords/biorecords/pkg/observations"
)

const resourceUser = "user"

// Users stores observers and reporters.
type Users struct{ s *Store }

const userColumns = `id, username, name, nickname, aliases, role, phone, email, created_at`

func scanUser(r rowScanner) (*observations.User, error) {
	var u observations.User
	var created string
	if err := r.Scan(&u.ID, &u.Username, &u.Name, &u.Nickname, &u.Aliases, &u.Role, &u.Phone, &u.Email, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}

// Create inserts u and sets its id.
func (r *Users) Create(ctx context.Context, u *observations.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		return r.create(ctx, t, u)
	})
}

func (r *Users) create(ctx context.Context, t *tx, u *observations.User) error {
	u.CreatedAt = r.s.now()
	args := []any{u.Username, u.Name, u.Nickname, u.Aliases, u.Role, u.Phone, u.Email, formatTime(u.CreatedAt)}
	query := `INSERT INTO users (username, name, nickname, aliases, role, phone, email, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if u.ID != 0 {
		query = `INSERT INTO users (id, username, name, nickname, aliases, role, phone, email, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		args = append([]any{u.ID}, args...)
	}
	res, err := t.ExecContext(ctx, query, args...)
	if err != nil {
		return mapErr("create", resourceUser, u.Username, err)
	}
	if u.ID == 0 {
		if u.ID, err = res.LastInsertId(); err != nil {
			return mapErr("create", resourceUser, u.Username, err)
		}
	}
	t.changed(resourceUser, ActionCreated, u.ID)
	return nil
}

// Update replaces the stored user.
func (r *Users) Update(ctx context.Context, u *observations.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	return r.s.inTx(ctx, func(t *tx) error {
		res, err := t.ExecContext(ctx, `UPDATE users SET username = ?, name = ?, nickname = ?, aliases = ?, role = ?, phone = ?, email = ? WHERE id = ?`,
			u.Username, u.Name, u.Nickname, u.Aliases, u.Role, u.Phone, u.Email, u.ID)
		if err := affected(res, err); err != nil {
			return mapErr("update", resourceUser, u.ID, err)
		}
		t.changed(resourceUser, ActionUpdated, u.ID)
		return nil
	})
}

// Get returns a user by id.
func (r *Users) Get(ctx context.Context, id int64) (*observations.User, error) {
	u, err := scanUser(r.s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, mapErr("fetch", resourceUser, id, err)
	}
	return u, nil
}

// Exists reports whether a user id exists.
func (r *Users) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.s.db, `SELECT 1 FROM users WHERE id = ?`, id)
}

// List returns users ordered by username. The query matches any part of
// username, name or nickname.
func (r *Users) List(ctx context.Context, opts ListOptions) ([]*observations.User, int, error) {
	var w where
	if q := strings.TrimSpace(opts.Query); q != "" {
		w.add(`(username`+likeClause+` OR name`+likeClause+` OR nickname`+likeClause+` OR aliases`+likeClause+`)`, like(q), like(q), like(q), like(q))
	}
	total, err := countRows(ctx, r.s.db, `SELECT COUNT(*) FROM users`+w.String(), w.args)
	if err != nil {
		return nil, 0, mapErr("list", resourceUser, nil, err)
	}
	order := orderBy(opts.Ordering, map[string]string{"username": "username", "name": "name", "id": "id"}, "username")
	users, err := queryAll(ctx, r.s.db, `SELECT `+userColumns+` FROM users`+w.String()+order+` LIMIT ? OFFSET ?`,
		append(w.args, opts.limit(), opts.offset()), scanUser)
	if err != nil {
		return nil, 0, mapErr("list", resourceUser, nil, err)
	}
	return users, total, nil
}

// Resolve finds the user whose username, name, nickname or alias equals
// name, ignoring case.
func (r *Users) Resolve(ctx context.Context, name string) (*observations.User, error) {
	users, err := queryAll(ctx, r.s.db, `SELECT `+userColumns+` FROM users ORDER BY id`, nil, scanUser)
	if err != nil {
		return nil, mapErr("list", resourceUser, nil, err)
	}
	for _, u := range users {
		if u.Matches(name) {
			return u, nil
		}
	}
	return nil, mapErr("fetch", resourceUser, name, errNoRows)
}

// Delete removes a user.
func (r *Users) Delete(ctx context.Context, id int64) error {
	return r.s.deleteByID(ctx, resourceUser, `DELETE FROM users WHERE id = ?`, id)
}
