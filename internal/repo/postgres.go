package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const Schema = `
create table if not exists users (
	id            text primary key,
	name          text not null,
	email         text not null,
	password_hash bytea not null,
	bio           text not null default '',
	role          text not null default 'user'
);
create unique index if not exists users_email_idx on users (lower(email));

create table if not exists tokens (
	token      text primary key,
	user_id    text not null references users(id) on delete cascade,
	expires_at timestamptz not null
);

create table if not exists categories (
	id    text primary key,
	label text not null
);
create unique index if not exists categories_label_idx on categories (lower(label));

create table if not exists posts (
	id          text primary key,
	title       text not null,
	description text not null,
	user_id     text references users(id) on delete set null,
	category_id text references categories(id) on delete set null,
	images      text[] not null default '{}',
	created_at  timestamptz not null
);
create index if not exists posts_created_idx on posts (created_at desc);

create table if not exists comments (
	id         text primary key,
	post_id    text not null references posts(id) on delete cascade,
	user_id    text references users(id) on delete set null,
	content    text not null,
	created_at timestamptz not null
);
create index if not exists comments_post_idx on comments (post_id, created_at desc);

create table if not exists likes (
	target_id   text not null,
	target_type text not null,
	user_id     text not null,
	created_at  timestamptz not null default now(),
	primary key (target_id, user_id)
);

create table if not exists reports (
	post_id    text not null references posts(id) on delete cascade,
	user_id    text not null,
	reason     text not null,
	created_at timestamptz not null default now(),
	primary key (post_id, user_id)
);
`

type PostgresRepo struct {
	db    *sql.DB
	// decodes text[] columns through database/sql
	types *pgtype.Map
}

func NewPostgres(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &PostgresRepo{db: db, types: pgtype.NewMap()}, nil
}

// Migrate creates the tables that do not exist yet.
func (p *PostgresRepo) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *PostgresRepo) Close() error { return p.db.Close() }

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrConflict
		case "23503":
			return ErrNotFound
		}
	}
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, name, email, bio, role`

func scanUser(s scanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &u.Bio, &u.Role); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (p *PostgresRepo) CreateUser(ctx context.Context, u *UserRecord) error {
	const q = `insert into users (id, name, email, password_hash, bio, role) values ($1, $2, $3, $4, $5, $6)`
	_, err := p.db.ExecContext(ctx, q, u.ID, u.Name, u.Email, u.PasswordHash, u.Bio, u.Role)
	return mapErr(err)
}

func (p *PostgresRepo) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	const q = `select ` + userColumns + `, password_hash from users where lower(email) = lower($1)`
	var u UserRecord
	err := p.db.QueryRowContext(ctx, q, email).Scan(&u.ID, &u.Name, &u.Email, &u.Bio, &u.Role, &u.PasswordHash)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (p *PostgresRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	const q = `select ` + userColumns + ` from users where id = $1`
	return scanUser(p.db.QueryRowContext(ctx, q, id))
}

func (p *PostgresRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	const q = `select ` + userColumns + ` from users order by name`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) UpdateUser(ctx context.Context, id string, name, bio *string) (*model.User, error) {
	const q = `update users set name = coalesce($2, name), bio = coalesce($3, bio) where id = $1
		returning ` + userColumns
	return scanUser(p.db.QueryRowContext(ctx, q, id, name, bio))
}

func (p *PostgresRepo) SaveToken(ctx context.Context, token, userID string, expires time.Time) error {
	const q = `insert into tokens (token, user_id, expires_at) values ($1, $2, $3)`
	_, err := p.db.ExecContext(ctx, q, token, userID, expires)
	return mapErr(err)
}

func (p *PostgresRepo) UserByToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	const q = `select u.id, u.name, u.email, u.bio, u.role from tokens t join users u on u.id = t.user_id
		where t.token = $1 and t.expires_at > $2`
	return scanUser(p.db.QueryRowContext(ctx, q, token, now))
}

func (p *PostgresRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := p.db.QueryContext(ctx, `select id, label from categories order by label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Label); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) CategoryByLabel(ctx context.Context, label string) (*model.Category, error) {
	var c model.Category
	err := p.db.QueryRowContext(ctx, `select id, label from categories where lower(label) = lower($1)`, label).Scan(&c.ID, &c.Label)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (p *PostgresRepo) CreateCategory(ctx context.Context, c model.Category) error {
	_, err := p.db.ExecContext(ctx, `insert into categories (id, label) values ($1, $2)`, c.ID, c.Label)
	return mapErr(err)
}

func (p *PostgresRepo) RenameCategory(ctx context.Context, id, label string) (*model.Category, error) {
	var c model.Category
	err := p.db.QueryRowContext(ctx, `update categories set label = $2 where id = $1 returning id, label`, id, label).Scan(&c.ID, &c.Label)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (p *PostgresRepo) DeleteCategory(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `delete from categories where id = $1`, id)
	return affected(res, err)
}

func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const postSelect = `
	select p.id, p.title, p.description, p.images, p.created_at,
		u.id, u.name, c.id, c.label,
		coalesce((select array_agg(l.user_id order by l.created_at) from likes l where l.target_id = p.id), '{}'),
		(select count(*) from comments cm where cm.post_id = p.id)
	from posts p
	left join users u on u.id = p.user_id
	left join categories c on c.id = p.category_id`

func (p *PostgresRepo) scanPost(s scanner) (*model.Post, error) {
	var (
		post                      model.Post
		userID, userName          sql.NullString
		categoryID, categoryLabel sql.NullString
		comments                  int
	)
	err := s.Scan(
		&post.ID, &post.Title, &post.Description, p.types.SQLScanner(&post.Images), &post.CreatedAt,
		&userID, &userName, &categoryID, &categoryLabel,
		p.types.SQLScanner(&post.Likes), &comments,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if userID.Valid {
		post.User = &model.UserRef{ID: userID.String, Name: userName.String}
	}
	if categoryID.Valid {
		post.Category = &model.CategoryRef{ID: categoryID.String, Label: categoryLabel.String}
	}
	if post.Likes == nil {
		post.Likes = []string{}
	}
	post.Comments = model.CommentCount(comments)
	return &post, nil
}

func (p *PostgresRepo) CreatePost(ctx context.Context, rec PostRecord) (*model.Post, error) {
	const q = `insert into posts (id, title, description, user_id, category_id, images, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)`
	images := rec.Images
	if images == nil {
		images = []string{}
	}
	_, err := p.db.ExecContext(ctx, q, rec.ID, rec.Title, rec.Description, nullable(rec.UserID), nullable(rec.CategoryID), images, rec.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p.GetPost(ctx, rec.ID)
}

func (p *PostgresRepo) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return p.scanPost(p.db.QueryRowContext(ctx, postSelect+` where p.id = $1`, id))
}

func (p *PostgresRepo) ListPosts(ctx context.Context, categoryID string, offset, limit int) ([]model.Post, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := postSelect + ` where ($1::text is null or p.category_id = $1) order by p.created_at desc, p.id desc offset $2 limit $3`

	rows, err := p.db.QueryContext(ctx, q, nullable(categoryID), max(offset, 0), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Post{}
	for rows.Next() {
		post, err := p.scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *post)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) UpdatePost(ctx context.Context, id string, title, description *string) (*model.Post, error) {
	const q = `update posts set title = coalesce($2, title), description = coalesce($3, description) where id = $1`
	res, err := p.db.ExecContext(ctx, q, id, title, description)
	if err := affected(res, err); err != nil {
		return nil, err
	}
	return p.GetPost(ctx, id)
}

// DeletePost removes the post. Comments and reports go by cascade; likes
// have no foreign key and are removed here.
func (p *PostgresRepo) DeletePost(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const dropLikes = `delete from likes where target_id = $1
		or target_id in (select id from comments where post_id = $1)`
	if _, err := tx.ExecContext(ctx, dropLikes, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from posts where id = $1`, id)
	if err := affected(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

const commentSelect = `
	select cm.id, cm.post_id, cm.content, cm.created_at, u.id, u.name,
		coalesce((select array_agg(l.user_id order by l.created_at) from likes l where l.target_id = cm.id), '{}')
	from comments cm
	left join users u on u.id = cm.user_id`

func (p *PostgresRepo) scanComment(s scanner) (*model.Comment, error) {
	var (
		c                model.Comment
		userID, userName sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Post, &c.Content, &c.CreatedAt, &userID, &userName, p.types.SQLScanner(&c.Likes)); err != nil {
		return nil, mapErr(err)
	}
	if userID.Valid {
		c.User = &model.UserRef{ID: userID.String, Name: userName.String}
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	return &c, nil
}

func (p *PostgresRepo) CreateComment(ctx context.Context, c CommentRecord) (*model.Comment, error) {
	const q = `insert into comments (id, post_id, user_id, content, created_at) values ($1, $2, $3, $4, $5)`
	if _, err := p.db.ExecContext(ctx, q, c.ID, c.PostID, nullable(c.UserID), c.Content, c.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return p.GetComment(ctx, c.ID)
}

func (p *PostgresRepo) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	return p.scanComment(p.db.QueryRowContext(ctx, commentSelect+` where cm.id = $1`, id))
}

func (p *PostgresRepo) ListComments(ctx context.Context, postID string, by model.CommentSort) ([]model.Comment, error) {
	if _, err := p.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	order := ` order by cm.created_at desc, cm.id desc`
	if by == model.CommentsLikes {
		order = ` order by (select count(*) from likes l where l.target_id = cm.id) desc, cm.created_at desc, cm.id desc`
	}
	rows, err := p.db.QueryContext(ctx, commentSelect+` where cm.post_id = $1`+order, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		c, err := p.scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (p *PostgresRepo) DeleteComment(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from likes where target_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `delete from comments where id = $1`, id)
	if err := affected(res, err); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresRepo) ToggleLike(ctx context.Context, userID string, target model.Target) (bool, int, error) {
	var exists string
	switch target.Type {
	case model.TargetPost:
		exists = `select id from posts where id = $1`
	case model.TargetComment:
		exists = `select id from comments where id = $1`
	default:
		return false, 0, ErrNotFound
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	if err := tx.QueryRowContext(ctx, exists, target.ID).Scan(&id); err != nil {
		return false, 0, mapErr(err)
	}

	res, err := tx.ExecContext(ctx, `delete from likes where target_id = $1 and user_id = $2`, target.ID, userID)
	if err != nil {
		return false, 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, err
	}
	liked := removed == 0
	if liked {
		const ins = `insert into likes (target_id, target_type, user_id) values ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, ins, target.ID, string(target.Type), userID); err != nil {
			return false, 0, mapErr(err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx, `select count(*) from likes where target_id = $1`, target.ID).Scan(&count); err != nil {
		return false, 0, err
	}
	return liked, count, tx.Commit()
}

func (p *PostgresRepo) AddReport(ctx context.Context, postID, userID, reason string) (bool, error) {
	const q = `insert into reports (post_id, user_id, reason) values ($1, $2, $3) on conflict do nothing`
	res, err := p.db.ExecContext(ctx, q, postID, userID, reason)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (p *PostgresRepo) ListReports(ctx context.Context) ([]model.Report, error) {
	const q = `select post_id, count(*), array_agg(reason order by created_at) from reports
		group by post_id order by count(*) desc, post_id`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}

	type group struct {
		postID  string
		count   int
		reasons []string
	}
	var groups []group
	for rows.Next() {
		var g group
		if err := rows.Scan(&g.postID, &g.count, p.types.SQLScanner(&g.reasons)); err != nil {
			rows.Close()
			return nil, err
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Report, 0, len(groups))
	for _, g := range groups {
		post, err := p.GetPost(ctx, g.postID)
		if err != nil {
			return nil, fmt.Errorf("reported post %s: %w", g.postID, err)
		}
		out = append(out, model.Report{Post: *post, Count: g.count, Reasons: g.reasons})
	}
	return out, nil
}

func (p *PostgresRepo) DismissReports(ctx context.Context, postID string) error {
	res, err := p.db.ExecContext(ctx, `delete from reports where post_id = $1`, postID)
	return affected(res, err)
}
