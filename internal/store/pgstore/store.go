// Package pgstore implements the catalog store on PostgreSQL with plain
// SQL: sqlx over the pgx stdlib driver, with goqu as the statement
// builder for the read queries. Borrow and return rows use UUID keys.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/seed"
	"github.com/bookstacks/catalog/internal/store"
)

var _ store.Store = (*Store)(nil)

var dialect = goqu.Dialect("postgres")

type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("PostgreSQL store initialized")
	return s, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS authors (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS publishers (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS genres (
	id   SERIAL PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	id             SERIAL PRIMARY KEY,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL UNIQUE,
	phone          TEXT NOT NULL DEFAULT '',
	books_borrowed INT  NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS books (
	id               SERIAL PRIMARY KEY,
	title            TEXT NOT NULL,
	edition          INT  NOT NULL DEFAULT 1,
	isbn             TEXT NOT NULL DEFAULT '',
	publication_year INT  NOT NULL DEFAULT 0,
	shelf_location   TEXT NOT NULL DEFAULT '',
	available        BOOLEAN NOT NULL DEFAULT TRUE,
	movie_release    DATE
);
CREATE TABLE IF NOT EXISTS book_authors (
	book_id   INT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	author_id INT NOT NULL REFERENCES authors (id) ON DELETE CASCADE,
	PRIMARY KEY (book_id, author_id)
);
CREATE TABLE IF NOT EXISTS book_publishers (
	book_id      INT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	publisher_id INT NOT NULL REFERENCES publishers (id) ON DELETE CASCADE,
	PRIMARY KEY (book_id, publisher_id)
);
CREATE TABLE IF NOT EXISTS book_genres (
	book_id  INT NOT NULL REFERENCES books (id) ON DELETE CASCADE,
	genre_id INT NOT NULL REFERENCES genres (id) ON DELETE CASCADE,
	PRIMARY KEY (book_id, genre_id)
);
CREATE TABLE IF NOT EXISTS borrows (
	id          UUID PRIMARY KEY,
	book_id     INT NOT NULL REFERENCES books (id),
	user_id     INT NOT NULL REFERENCES users (id),
	borrow_date TIMESTAMPTZ NOT NULL,
	due_date    TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS returns (
	id          UUID PRIMARY KEY,
	borrow_id   UUID NOT NULL UNIQUE REFERENCES borrows (id),
	return_date TIMESTAMPTZ NOT NULL,
	fine        NUMERIC(10, 2) NOT NULL DEFAULT 0,
	overdue     BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS borrows_book_latest ON borrows (book_id, borrow_date DESC, created_at DESC);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

type bookRow struct {
	ID              int        `db:"id"`
	Title           string     `db:"title"`
	Edition         int        `db:"edition"`
	ISBN            string     `db:"isbn"`
	PublicationYear int        `db:"publication_year"`
	ShelfLocation   string     `db:"shelf_location"`
	Available       bool       `db:"available"`
	MovieRelease    *time.Time `db:"movie_release"`
}

type namedRow struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

type userRow struct {
	ID            int    `db:"id"`
	Name          string `db:"name"`
	Email         string `db:"email"`
	Phone         string `db:"phone"`
	BooksBorrowed int    `db:"books_borrowed"`
}

type borrowRow struct {
	ID         string    `db:"id"`
	BookID     int       `db:"book_id"`
	UserID     int       `db:"user_id"`
	BorrowDate time.Time `db:"borrow_date"`
	DueDate    time.Time `db:"due_date"`
	CreatedAt  time.Time `db:"created_at"`
}

type relationRow struct {
	BookID    int `db:"book_id"`
	RelatedID int `db:"related_id"`
}

func intID(id int) string {
	return strconv.Itoa(id)
}

func parseIntID(id string) (int, bool) {
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func borrowFromRow(r borrowRow) entities.Borrow {
	return entities.Borrow{
		ID:         r.ID,
		BookID:     intID(r.BookID),
		UserID:     intID(r.UserID),
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
	}
}

func (s *Store) relations(ctx context.Context, table, column string) (map[int][]string, error) {
	query, args, err := dialect.From(table).
		Select(goqu.C("book_id"), goqu.C(column).As("related_id")).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []relationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	rel := make(map[int][]string)
	for _, r := range rows {
		rel[r.BookID] = append(rel[r.BookID], intID(r.RelatedID))
	}
	return rel, nil
}

func (s *Store) ListBooks(ctx context.Context) ([]entities.Book, error) {
	query, args, err := dialect.From("books").
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []bookRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	authorRels, err := s.relations(ctx, "book_authors", "author_id")
	if err != nil {
		return nil, err
	}
	publisherRels, err := s.relations(ctx, "book_publishers", "publisher_id")
	if err != nil {
		return nil, err
	}
	genreRels, err := s.relations(ctx, "book_genres", "genre_id")
	if err != nil {
		return nil, err
	}

	books := make([]entities.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, entities.Book{
			ID:              intID(r.ID),
			Title:           r.Title,
			Edition:         r.Edition,
			ISBN:            r.ISBN,
			PublicationYear: r.PublicationYear,
			ShelfLocation:   r.ShelfLocation,
			Available:       r.Available,
			MovieRelease:    r.MovieRelease,
			AuthorIDs:       authorRels[r.ID],
			PublisherIDs:    publisherRels[r.ID],
			GenreIDs:        genreRels[r.ID],
		})
	}
	return books, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (entities.Book, error) {
	rowID, ok := parseIntID(id)
	if !ok {
		return entities.Book{}, entities.ErrBookNotFound
	}

	query, args, err := dialect.From("books").
		Where(goqu.C("id").Eq(rowID)).
		Prepared(true).ToSQL()
	if err != nil {
		return entities.Book{}, err
	}

	var row bookRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Book{}, entities.ErrBookNotFound
	}
	if err != nil {
		return entities.Book{}, err
	}

	book := entities.Book{
		ID:              intID(row.ID),
		Title:           row.Title,
		Edition:         row.Edition,
		ISBN:            row.ISBN,
		PublicationYear: row.PublicationYear,
		ShelfLocation:   row.ShelfLocation,
		Available:       row.Available,
		MovieRelease:    row.MovieRelease,
	}

	for _, rel := range []struct {
		table  string
		column string
		dest   *[]string
	}{
		{"book_authors", "author_id", &book.AuthorIDs},
		{"book_publishers", "publisher_id", &book.PublisherIDs},
		{"book_genres", "genre_id", &book.GenreIDs},
	} {
		query, args, err := dialect.From(rel.table).
			Select(goqu.C(rel.column)).
			Where(goqu.C("book_id").Eq(row.ID)).
			Prepared(true).ToSQL()
		if err != nil {
			return entities.Book{}, err
		}
		var ids []int
		if err := s.db.SelectContext(ctx, &ids, query, args...); err != nil {
			return entities.Book{}, err
		}
		for _, relID := range ids {
			*rel.dest = append(*rel.dest, intID(relID))
		}
	}

	return book, nil
}

func (s *Store) listNamed(ctx context.Context, table string) ([]entities.NamedEntity, error) {
	query, args, err := dialect.From(table).
		Order(goqu.C("id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []namedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]entities.NamedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.NamedEntity{ID: intID(r.ID), Name: r.Name})
	}
	return out, nil
}

func (s *Store) getNamed(ctx context.Context, table, id string, notFound error) (entities.NamedEntity, error) {
	rowID, ok := parseIntID(id)
	if !ok {
		return entities.NamedEntity{}, notFound
	}

	query, args, err := dialect.From(table).
		Where(goqu.C("id").Eq(rowID)).
		Prepared(true).ToSQL()
	if err != nil {
		return entities.NamedEntity{}, err
	}

	var row namedRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.NamedEntity{}, notFound
	}
	if err != nil {
		return entities.NamedEntity{}, err
	}
	return entities.NamedEntity{ID: intID(row.ID), Name: row.Name}, nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "authors")
}

func (s *Store) ListPublishers(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "publishers")
}

func (s *Store) ListGenres(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "genres")
}

func (s *Store) GetAuthor(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "authors", id, entities.ErrAuthorNotFound)
}

func (s *Store) GetPublisher(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "publishers", id, entities.ErrPublisherNotFound)
}

func (s *Store) GetGenre(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "genres", id, entities.ErrGenreNotFound)
}

func (s *Store) ListUsers(ctx context.Context) ([]entities.User, error) {
	query, args, err := dialect.From("users").
		Order(goqu.C("name").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	out := make([]entities.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.User{
			ID:            intID(r.ID),
			Name:          r.Name,
			Email:         r.Email,
			Phone:         r.Phone,
			BooksBorrowed: r.BooksBorrowed,
		})
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (entities.User, error) {
	rowID, ok := parseIntID(id)
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}

	query, args, err := dialect.From("users").
		Where(goqu.C("id").Eq(rowID)).
		Prepared(true).ToSQL()
	if err != nil {
		return entities.User{}, err
	}

	var row userRow
	err = s.db.GetContext(ctx, &row, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, err
	}
	return entities.User{
		ID:            intID(row.ID),
		Name:          row.Name,
		Email:         row.Email,
		Phone:         row.Phone,
		BooksBorrowed: row.BooksBorrowed,
	}, nil
}

// LatestBorrows uses DISTINCT ON to keep one row per book, preferring
// the most recent borrow date with insertion order as tie-break.
func (s *Store) LatestBorrows(ctx context.Context) (map[string]entities.Borrow, error) {
	const query = `
SELECT DISTINCT ON (book_id) id, book_id, user_id, borrow_date, due_date, created_at
FROM borrows
ORDER BY book_id, borrow_date DESC, created_at DESC
`
	var rows []borrowRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, err
	}

	latest := make(map[string]entities.Borrow, len(rows))
	for _, r := range rows {
		latest[intID(r.BookID)] = borrowFromRow(r)
	}
	return latest, nil
}

func (s *Store) ActiveBorrow(ctx context.Context, bookID string) (entities.Borrow, error) {
	rowID, ok := parseIntID(bookID)
	if !ok {
		return entities.Borrow{}, entities.ErrBookNotFound
	}

	const query = `
SELECT b.id, b.book_id, b.user_id, b.borrow_date, b.due_date, b.created_at
FROM borrows b
WHERE b.book_id = $1
  AND NOT EXISTS (SELECT 1 FROM returns r WHERE r.borrow_id = b.id)
ORDER BY b.borrow_date DESC, b.created_at DESC
LIMIT 1
`
	var row borrowRow
	err := s.db.GetContext(ctx, &row, query, rowID)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Borrow{}, entities.ErrNoActiveBorrow
	}
	if err != nil {
		return entities.Borrow{}, err
	}
	return borrowFromRow(row), nil
}

func (s *Store) BorrowBook(ctx context.Context, bookID, userID string, borrowDate, dueDate time.Time) (entities.Borrow, error) {
	bID, ok := parseIntID(bookID)
	if !ok {
		return entities.Borrow{}, entities.ErrBookNotFound
	}
	uID, ok := parseIntID(userID)
	if !ok {
		return entities.Borrow{}, entities.ErrUserNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return entities.Borrow{}, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET available = FALSE WHERE id = $1 AND available = TRUE`, bID)
	if err != nil {
		return entities.Borrow{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return entities.Borrow{}, err
	}
	if affected == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM books WHERE id = $1)`, bID); err != nil {
			return entities.Borrow{}, err
		}
		if !exists {
			return entities.Borrow{}, entities.ErrBookNotFound
		}
		return entities.Borrow{}, entities.ErrBookUnavailable
	}

	borrowID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO borrows (id, book_id, user_id, borrow_date, due_date) VALUES ($1, $2, $3, $4, $5)`,
		borrowID, bID, uID, borrowDate, dueDate)
	if err != nil {
		return entities.Borrow{}, err
	}

	res, err = tx.ExecContext(ctx,
		`UPDATE users SET books_borrowed = books_borrowed + 1 WHERE id = $1`, uID)
	if err != nil {
		return entities.Borrow{}, err
	}
	if affected, err = res.RowsAffected(); err != nil {
		return entities.Borrow{}, err
	}
	if affected == 0 {
		return entities.Borrow{}, entities.ErrUserNotFound
	}

	if err := tx.Commit(); err != nil {
		return entities.Borrow{}, err
	}

	return entities.Borrow{
		ID:         borrowID,
		BookID:     bookID,
		UserID:     userID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	}, nil
}

func (s *Store) ReturnBook(ctx context.Context, borrow entities.Borrow, ret entities.Return) (entities.Return, error) {
	bID, ok := parseIntID(borrow.BookID)
	if !ok {
		return entities.Return{}, entities.ErrBookNotFound
	}
	uID, ok := parseIntID(borrow.UserID)
	if !ok {
		return entities.Return{}, entities.ErrUserNotFound
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return entities.Return{}, err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET available = TRUE WHERE id = $1 AND available = FALSE`, bID)
	if err != nil {
		return entities.Return{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return entities.Return{}, err
	}
	if affected == 0 {
		return entities.Return{}, entities.ErrNoActiveBorrow
	}

	returnID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO returns (id, borrow_id, return_date, fine, overdue) VALUES ($1, $2, $3, $4, $5)`,
		returnID, borrow.ID, ret.ReturnDate, ret.Fine, ret.Overdue)
	if err != nil {
		return entities.Return{}, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET books_borrowed = books_borrowed - 1 WHERE id = $1 AND books_borrowed > 0`, uID)
	if err != nil {
		return entities.Return{}, err
	}

	if err := tx.Commit(); err != nil {
		return entities.Return{}, err
	}

	ret.ID = returnID
	ret.BorrowID = borrow.ID
	return ret, nil
}

func (s *Store) Reset(ctx context.Context) error {
	const dropSQL = `
DROP TABLE IF EXISTS returns, borrows, book_authors, book_publishers, book_genres, books, authors, publishers, genres, users CASCADE
`
	if _, err := s.db.ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return err
	}
	return s.load(ctx, seed.Data())
}

func (s *Store) load(ctx context.Context, data seed.Catalog) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insertNamed := func(table string, names []string) ([]int, error) {
		ids := make([]int, len(names))
		for i, name := range names {
			var id int
			err := tx.GetContext(ctx, &id,
				fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING id`, table), name)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return ids, nil
	}

	authorIDs, err := insertNamed("authors", data.Authors)
	if err != nil {
		return err
	}
	publisherIDs, err := insertNamed("publishers", data.Publishers)
	if err != nil {
		return err
	}
	genreIDs, err := insertNamed("genres", data.Genres)
	if err != nil {
		return err
	}

	for _, u := range data.Users {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (name, email, phone) VALUES ($1, $2, $3)`,
			u.Name, u.Email, u.Phone)
		if err != nil {
			return err
		}
	}

	for _, b := range data.Books {
		var bookID int
		err := tx.GetContext(ctx, &bookID, `
INSERT INTO books (title, edition, isbn, publication_year, shelf_location, available, movie_release)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)
RETURNING id`,
			b.Title, b.Edition, b.ISBN, b.PublicationYear, b.ShelfLocation, b.MovieRelease)
		if err != nil {
			return err
		}

		for _, idx := range b.Authors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_authors (book_id, author_id) VALUES ($1, $2)`,
				bookID, authorIDs[idx]); err != nil {
				return err
			}
		}
		for _, idx := range b.Publishers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_publishers (book_id, publisher_id) VALUES ($1, $2)`,
				bookID, publisherIDs[idx]); err != nil {
				return err
			}
		}
		for _, idx := range b.Genres {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO book_genres (book_id, genre_id) VALUES ($1, $2)`,
				bookID, genreIDs[idx]); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}
