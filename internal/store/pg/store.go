// Package pg is the Postgres store. Workflow transitions run inside a
// single transaction that locks the record row, so the status change,
// the approval record and the audit entry commit together or not at all.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"pressdesk.org/internal/audit"
	"pressdesk.org/internal/auth"
	"pressdesk.org/internal/obs"
	"pressdesk.org/internal/workflow"
)

type Store struct {
	db *sql.DB
}

var (
	_ auth.Store     = (*Store)(nil)
	_ workflow.Store = (*Store)(nil)
	_ audit.Log      = (*Store)(nil)
)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// uniqueViolation reports whether err is a Postgres 23505.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// appendEntry inserts one audit row on the given executor (the pool for
// standalone events, an open tx for coupled mutations) and fills the
// assigned id back into the entry.
func appendEntry(ctx context.Context, q execer, entry *audit.Entry) error {
	details, err := audit.MarshalDetails(entry.Details)
	if err != nil {
		return err
	}
	err = q.QueryRowContext(ctx, `
		insert into audit_logs(action, user_id, record_id, details)
		values ($1,$2,$3,$4)
		returning id, created_at
	`, entry.Action, entry.UserID, entry.RecordID, details).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return err
	}
	obs.ObserveAudit(entry.Action)
	return nil
}

func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	return appendEntry(ctx, s.db, entry)
}

func (s *Store) ListAfter(ctx context.Context, afterID int64, limit int) ([]audit.Entry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, action, user_id, record_id, details, created_at
		from audit_logs
		where id > $1
		order by id asc
		limit $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var raw []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.UserID, &e.RecordID, &raw, &e.CreatedAt); err != nil {
			return nil, err
		}
		if e.Details, err = audit.UnmarshalDetails(raw); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- auth.Store -----------------------------------------------------------

func (s *Store) Users(context.Context) auth.UserStore             { return userStore{s} }
func (s *Store) Roles(context.Context) auth.RoleStore             { return roleStore{s} }
func (s *Store) Permissions(context.Context) auth.PermissionStore { return permissionStore{s} }

type userStore struct{ s *Store }

func (u userStore) Create(ctx context.Context, user *auth.User, entry *audit.Entry) error {
	tx, err := u.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into users(username, email, password_hash, full_name, role_id)
		values ($1,$2,$3,$4,$5)
		returning id, created_at
	`, user.Username, user.Email, user.PasswordHash, user.FullName, user.RoleID).
		Scan(&user.ID, &user.CreatedAt)
	if uniqueViolation(err) {
		return auth.ErrConflict
	}
	if err != nil {
		return err
	}

	if entry != nil {
		entry.UserID = audit.Ref(user.ID)
		entry.RecordID = audit.Ref(user.ID)
		if err := appendEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const userColumns = `id, username, email, password_hash, full_name, role_id, created_at`

func scanUser(row *sql.Row) (*auth.User, error) {
	var u auth.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.RoleID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (u userStore) Find(ctx context.Context, id int64) (*auth.User, error) {
	return scanUser(u.s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (u userStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	return scanUser(u.s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username))
}

func (u userStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := u.s.db.QueryContext(ctx,
		`select `+userColumns+` from users order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.User
	for rows.Next() {
		var user auth.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
			&user.FullName, &user.RoleID, &user.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &user)
	}
	return res, rows.Err()
}

type roleStore struct{ s *Store }

func scanRole(row *sql.Row) (*auth.Role, error) {
	var r auth.Role
	err := row.Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (r roleStore) Find(ctx context.Context, id int64) (*auth.Role, error) {
	return scanRole(r.s.db.QueryRowContext(ctx, `select id, name from roles where id=$1`, id))
}

func (r roleStore) FindByName(ctx context.Context, name string) (*auth.Role, error) {
	return scanRole(r.s.db.QueryRowContext(ctx, `select id, name from roles where name=$1`, name))
}

func (r roleStore) List(ctx context.Context) ([]*auth.Role, error) {
	rows, err := r.s.db.QueryContext(ctx, `select id, name from roles order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*auth.Role
	for rows.Next() {
		var role auth.Role
		if err := rows.Scan(&role.ID, &role.Name); err != nil {
			return nil, err
		}
		res = append(res, &role)
	}
	return res, rows.Err()
}

type permissionStore struct{ s *Store }

func (p permissionStore) Ensure(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := p.s.db.ExecContext(ctx, `
			insert into permissions(name) values ($1) on conflict (name) do nothing
		`, name); err != nil {
			return err
		}
	}
	return nil
}

func (p permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := p.s.db.QueryContext(ctx, `select id, name from permissions order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []auth.Permission
	for rows.Next() {
		var perm auth.Permission
		if err := rows.Scan(&perm.ID, &perm.Name); err != nil {
			return nil, err
		}
		res = append(res, perm)
	}
	return res, rows.Err()
}

func (p permissionStore) Grants(ctx context.Context) ([]auth.RoleGrant, error) {
	rows, err := p.s.db.QueryContext(ctx, `
		select rp.role_id, pe.name
		from role_permissions rp
		join permissions pe on pe.id = rp.permission_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []auth.RoleGrant
	for rows.Next() {
		var g auth.RoleGrant
		if err := rows.Scan(&g.RoleID, &g.Permission); err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (p permissionStore) SetForRole(ctx context.Context, roleID int64, names []string) error {
	tx, err := p.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions(role_id, permission_id)
			select $1, id from permissions where name=$2
		`, roleID, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- workflow.Store -------------------------------------------------------

func (s *Store) Contents(context.Context) workflow.ContentStore         { return contentStore{s} }
func (s *Store) Categories(context.Context) workflow.CategoryStore      { return categoryStore{s} }
func (s *Store) Cooperations(context.Context) workflow.CooperationStore { return coopStore{s} }

type contentStore struct{ s *Store }

const contentColumns = `id, title, excerpt, body, category_id, author_id, status, created_at, updated_at`

func scanContent(row *sql.Row) (*workflow.Content, error) {
	var c workflow.Content
	err := row.Scan(&c.ID, &c.Title, &c.Excerpt, &c.Body, &c.CategoryID,
		&c.AuthorID, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (c contentStore) Create(ctx context.Context, item *workflow.Content, entry *audit.Entry) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	item.Status = workflow.ContentDraft
	err = tx.QueryRowContext(ctx, `
		insert into contents(title, excerpt, body, category_id, author_id, status)
		values ($1,$2,$3,$4,$5,$6)
		returning id, created_at, updated_at
	`, item.Title, item.Excerpt, item.Body, item.CategoryID, item.AuthorID, item.Status).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return err
	}

	if entry != nil {
		entry.RecordID = audit.Ref(item.ID)
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["record_id"] = item.ID
		if err := appendEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c contentStore) Update(ctx context.Context, item *workflow.Content, entry *audit.Entry) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// The status predicate makes the draft-only rule part of the write
	// itself; a submit committed after the caller's read cannot be
	// overwritten here.
	err = tx.QueryRowContext(ctx, `
		update contents
		set title=$2, excerpt=$3, body=$4, category_id=$5, updated_at=now()
		where id=$1 and status=$6
		returning status, created_at, updated_at
	`, item.ID, item.Title, item.Excerpt, item.Body, item.CategoryID, workflow.ContentDraft).
		Scan(&item.Status, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from contents where id=$1)`, item.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return workflow.ErrInvalidTransition
		}
		return workflow.ErrNotFound
	}
	if err != nil {
		return err
	}

	if entry != nil {
		entry.RecordID = audit.Ref(item.ID)
		if err := appendEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c contentStore) Find(ctx context.Context, id int64) (*workflow.Content, error) {
	return scanContent(c.s.db.QueryRowContext(ctx,
		`select `+contentColumns+` from contents where id=$1`, id))
}

func (c contentStore) List(ctx context.Context) ([]*workflow.Content, error) {
	rows, err := c.s.db.QueryContext(ctx,
		`select `+contentColumns+` from contents order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*workflow.Content
	for rows.Next() {
		var item workflow.Content
		if err := rows.Scan(&item.ID, &item.Title, &item.Excerpt, &item.Body, &item.CategoryID,
			&item.AuthorID, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &item)
	}
	return res, rows.Err()
}

func (c contentStore) Transition(ctx context.Context, id int64, actor workflow.Actor, action workflow.Action, notes string) (*workflow.Content, error) {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock the record; racing transitions queue here and re-evaluate
	// against the committed state.
	item, err := scanContent(tx.QueryRowContext(ctx,
		`select `+contentColumns+` from contents where id=$1 for update`, id))
	if err != nil {
		return nil, err
	}

	var stages int
	if err := tx.QueryRowContext(ctx, `
		select count(*) from approval_records where content_id=$1 and action='approve'
	`, id).Scan(&stages); err != nil {
		return nil, err
	}

	decision, err := workflow.DecideContent(item, stages, actor, action, notes)
	if err != nil {
		return nil, err
	}

	item.Status = decision.Next
	if err := tx.QueryRowContext(ctx, `
		update contents set status=$2, updated_at=now() where id=$1 returning updated_at
	`, id, item.Status).Scan(&item.UpdatedAt); err != nil {
		return nil, err
	}

	if a := decision.Approval; a != nil {
		if err := tx.QueryRowContext(ctx, `
			insert into approval_records(content_id, approver_id, approver_role, action, notes)
			values ($1,$2,$3,$4,$5)
			returning id, created_at
		`, a.ContentID, a.ApproverID, a.ApproverRole, a.Action, a.Notes).
			Scan(&a.ID, &a.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := appendEntry(ctx, tx, workflow.ContentAuditEntry(decision.AuditAction, actor, item, notes)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return item, nil
}

func (c contentStore) History(ctx context.Context, contentID int64) ([]workflow.ApprovalRecord, error) {
	var exists bool
	if err := c.s.db.QueryRowContext(ctx,
		`select exists(select 1 from contents where id=$1)`, contentID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, workflow.ErrNotFound
	}

	rows, err := c.s.db.QueryContext(ctx, `
		select id, content_id, approver_id, approver_role, action, notes, created_at
		from approval_records
		where content_id=$1
		order by id asc
	`, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []workflow.ApprovalRecord
	for rows.Next() {
		var rec workflow.ApprovalRecord
		if err := rows.Scan(&rec.ID, &rec.ContentID, &rec.ApproverID, &rec.ApproverRole,
			&rec.Action, &rec.Notes, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type categoryStore struct{ s *Store }

func (c categoryStore) Create(ctx context.Context, cat *workflow.Category, entry *audit.Entry) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		insert into categories(name, description, icon, color) values ($1,$2,$3,$4)
		returning id, created_at
	`, cat.Name, cat.Description, cat.Icon, cat.Color).Scan(&cat.ID, &cat.CreatedAt)
	if err != nil {
		return err
	}

	if entry != nil {
		entry.RecordID = audit.Ref(cat.ID)
		if err := appendEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c categoryStore) List(ctx context.Context) ([]*workflow.Category, error) {
	rows, err := c.s.db.QueryContext(ctx,
		`select id, name, description, icon, color, created_at from categories order by id asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*workflow.Category
	for rows.Next() {
		var cat workflow.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Description, &cat.Icon, &cat.Color, &cat.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &cat)
	}
	return res, rows.Err()
}

type coopStore struct{ s *Store }

const coopColumns = `id, requester_id, institution, contact_name, email, phone, purpose, event_date, document_name, document_mime, status, created_at`

func scanCoop(row *sql.Row) (*workflow.Cooperation, error) {
	var c workflow.Cooperation
	err := row.Scan(&c.ID, &c.RequesterID, &c.Institution, &c.ContactName,
		&c.Email, &c.Phone, &c.Purpose, &c.EventDate,
		&c.DocumentName, &c.DocumentMime, &c.Status, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (c coopStore) Create(ctx context.Context, coop *workflow.Cooperation, entry *audit.Entry) error {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	coop.Status = workflow.CoopSubmitted
	err = tx.QueryRowContext(ctx, `
		insert into cooperations(requester_id, institution, contact_name, email, phone, purpose, event_date, document_name, document_mime, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		returning id, created_at
	`, coop.RequesterID, coop.Institution, coop.ContactName, coop.Email, coop.Phone,
		coop.Purpose, coop.EventDate, coop.DocumentName, coop.DocumentMime, coop.Status).
		Scan(&coop.ID, &coop.CreatedAt)
	if err != nil {
		return err
	}

	if entry != nil {
		entry.RecordID = audit.Ref(coop.ID)
		if entry.Details == nil {
			entry.Details = map[string]any{}
		}
		entry.Details["record_id"] = coop.ID
		if err := appendEntry(ctx, tx, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c coopStore) Find(ctx context.Context, id int64) (*workflow.Cooperation, error) {
	return scanCoop(c.s.db.QueryRowContext(ctx,
		`select `+coopColumns+` from cooperations where id=$1`, id))
}

func (c coopStore) Transition(ctx context.Context, id int64, actor workflow.Actor, action workflow.Action) (*workflow.Cooperation, error) {
	tx, err := c.s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	coop, err := scanCoop(tx.QueryRowContext(ctx,
		`select `+coopColumns+` from cooperations where id=$1 for update`, id))
	if err != nil {
		return nil, err
	}

	decision, err := workflow.DecideCooperation(coop, action)
	if err != nil {
		return nil, err
	}

	coop.Status = decision.Next
	if _, err := tx.ExecContext(ctx,
		`update cooperations set status=$2 where id=$1`, id, coop.Status); err != nil {
		return nil, err
	}
	if err := appendEntry(ctx, tx, workflow.CooperationAuditEntry(decision.AuditAction, actor, coop)); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return coop, nil
}
