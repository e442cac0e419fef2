package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withForeignKeys(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// withForeignKeys turns on FK enforcement (and so ON DELETE CASCADE) for
// every connection the driver opens.
func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS articles (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        title TEXT,
        body TEXT NOT NULL,
        tags TEXT NOT NULL DEFAULT '', -- normalized, comma-joined
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS comments (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        article_id INTEGER NOT NULL,
        body TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (article_id) REFERENCES articles (id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_articles_created_at ON articles (created_at);
    CREATE INDEX IF NOT EXISTS idx_comments_article_id ON comments (article_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

const articleColumns = "id, title, body, tags, created_at"

func scanArticle(scanner interface{ Scan(dest ...any) error }) (*Article, error) {
	var (
		article Article
		title   sql.NullString
		tags    string
	)
	if err := scanner.Scan(&article.ID, &title, &article.Body, &tags, &article.CreatedAt); err != nil {
		return nil, err
	}
	if title.Valid {
		article.Title = &title.String
	}
	article.Tags = splitTags(tags)
	return &article, nil
}

func splitTags(joined string) []string {
	tags := []string{}
	for _, t := range strings.Split(joined, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// likeContains builds a LIKE pattern matching s anywhere, with wildcards in s
// escaped for ESCAPE '\'.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Article methods
func (s *SQLiteStore) CreateArticle(ctx context.Context, title *string, body string, tags []string) (*Article, error) {
	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO articles (title, body, tags, created_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare article insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	res, err := stmt.ExecContext(ctx, title, body, strings.Join(tags, ","), now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute article insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read article id: %w", err)
	}

	if tags == nil {
		tags = []string{}
	}
	return &Article{ID: id, Title: title, Body: body, Tags: tags, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetArticleByID(ctx context.Context, id int64) (*Article, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	article, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return article, nil
}

// ListArticles returns articles newest first. A non-empty tag keeps only
// articles whose stored tag string contains it.
func (s *SQLiteStore) ListArticles(ctx context.Context, tag string) ([]Article, error) {
	query := "SELECT " + articleColumns + " FROM articles"
	var args []any
	if tag != "" {
		query += ` WHERE tags LIKE ? ESCAPE '\'`
		args = append(args, likeContains(tag))
	}
	query += " ORDER BY created_at DESC, id DESC"

	return s.queryArticles(ctx, query, args...)
}

// FindSimilarArticles returns up to limit other articles whose stored tag
// string contains at least one of article's tags, newest first.
func (s *SQLiteStore) FindSimilarArticles(ctx context.Context, article *Article, limit int) ([]Article, error) {
	if article == nil || len(article.Tags) == 0 || limit <= 0 {
		return []Article{}, nil
	}

	conds := make([]string, 0, len(article.Tags))
	args := make([]any, 0, len(article.Tags)+2)
	for _, t := range article.Tags {
		conds = append(conds, `tags LIKE ? ESCAPE '\'`)
		args = append(args, likeContains(t))
	}
	args = append(args, article.ID, limit)

	query := "SELECT " + articleColumns + " FROM articles WHERE (" + strings.Join(conds, " OR ") + ")" +
		" AND id != ? ORDER BY created_at DESC, id DESC LIMIT ?"
	return s.queryArticles(ctx, query, args...)
}

func (s *SQLiteStore) queryArticles(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate articles: %w", err)
	}
	return articles, nil
}

// DeleteArticle removes an article; its comments go with it through the
// foreign key cascade.
func (s *SQLiteStore) DeleteArticle(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM articles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete article: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("article not found, nothing deleted")
	}
	return nil
}

// Comment methods
func (s *SQLiteStore) CreateComment(ctx context.Context, articleID int64, body string) (*Comment, error) {
	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO comments (article_id, body, created_at) VALUES (?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare comment insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	res, err := stmt.ExecContext(ctx, articleID, body, now)
	if err != nil {
		return nil, fmt.Errorf("failed to execute comment insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read comment id: %w", err)
	}
	return &Comment{ID: id, ArticleID: articleID, Body: body, CreatedAt: now}, nil
}

// GetCommentsByArticleID returns the comments of an article oldest first.
func (s *SQLiteStore) GetCommentsByArticleID(ctx context.Context, articleID int64) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, article_id, body, created_at FROM comments WHERE article_id = ? ORDER BY created_at ASC, id ASC", articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}
