// Package sqlstore implements the catalog store on SQLite via GORM.
// It is the default backend and the one the test suite runs against.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/seed"
	"github.com/bookstacks/catalog/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	log.Printf("SQLite store initialized at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&authorRow{},
		&publisherRow{},
		&genreRow{},
		&userRow{},
		&bookRow{},
		&borrowRow{},
		&returnRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// parseID decodes a string ID into a row ID. A malformed ID cannot match
// any row, so callers treat a false result as not-found.
func parseID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(n), true
}

func bookFromRow(r bookRow) entities.Book {
	b := entities.Book{
		ID:              idString(r.ID),
		Title:           r.Title,
		Edition:         r.Edition,
		ISBN:            r.ISBN,
		PublicationYear: r.PublicationYear,
		ShelfLocation:   r.ShelfLocation,
		Available:       r.Available,
		MovieRelease:    r.MovieRelease,
	}
	for _, a := range r.Authors {
		b.AuthorIDs = append(b.AuthorIDs, idString(a.ID))
	}
	for _, p := range r.Publishers {
		b.PublisherIDs = append(b.PublisherIDs, idString(p.ID))
	}
	for _, g := range r.Genres {
		b.GenreIDs = append(b.GenreIDs, idString(g.ID))
	}
	return b
}

func borrowFromRow(r borrowRow) entities.Borrow {
	return entities.Borrow{
		ID:         idString(r.ID),
		BookID:     idString(r.BookID),
		UserID:     idString(r.UserID),
		BorrowDate: r.BorrowDate,
		DueDate:    r.DueDate,
	}
}

func userFromRow(r userRow) entities.User {
	return entities.User{
		ID:            idString(r.ID),
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		BooksBorrowed: r.BooksBorrowed,
	}
}

func (s *Store) ListBooks(ctx context.Context) ([]entities.Book, error) {
	var rows []bookRow
	err := s.db.WithContext(ctx).
		Preload("Authors").
		Preload("Publishers").
		Preload("Genres").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	books := make([]entities.Book, 0, len(rows))
	for _, r := range rows {
		books = append(books, bookFromRow(r))
	}
	return books, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (entities.Book, error) {
	rowID, ok := parseID(id)
	if !ok {
		return entities.Book{}, entities.ErrBookNotFound
	}

	var row bookRow
	err := s.db.WithContext(ctx).
		Preload("Authors").
		Preload("Publishers").
		Preload("Genres").
		First(&row, rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Book{}, entities.ErrBookNotFound
	}
	if err != nil {
		return entities.Book{}, err
	}
	return bookFromRow(row), nil
}

func (s *Store) ListAuthors(ctx context.Context) ([]entities.NamedEntity, error) {
	var rows []authorRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.NamedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.NamedEntity{ID: idString(r.ID), Name: r.Name})
	}
	return out, nil
}

func (s *Store) ListPublishers(ctx context.Context) ([]entities.NamedEntity, error) {
	var rows []publisherRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.NamedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.NamedEntity{ID: idString(r.ID), Name: r.Name})
	}
	return out, nil
}

func (s *Store) ListGenres(ctx context.Context) ([]entities.NamedEntity, error) {
	var rows []genreRow
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.NamedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, entities.NamedEntity{ID: idString(r.ID), Name: r.Name})
	}
	return out, nil
}

func (s *Store) GetAuthor(ctx context.Context, id string) (entities.NamedEntity, error) {
	rowID, ok := parseID(id)
	if !ok {
		return entities.NamedEntity{}, entities.ErrAuthorNotFound
	}
	var row authorRow
	err := s.db.WithContext(ctx).First(&row, rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.NamedEntity{}, entities.ErrAuthorNotFound
	}
	if err != nil {
		return entities.NamedEntity{}, err
	}
	return entities.NamedEntity{ID: idString(row.ID), Name: row.Name}, nil
}

func (s *Store) GetPublisher(ctx context.Context, id string) (entities.NamedEntity, error) {
	rowID, ok := parseID(id)
	if !ok {
		return entities.NamedEntity{}, entities.ErrPublisherNotFound
	}
	var row publisherRow
	err := s.db.WithContext(ctx).First(&row, rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.NamedEntity{}, entities.ErrPublisherNotFound
	}
	if err != nil {
		return entities.NamedEntity{}, err
	}
	return entities.NamedEntity{ID: idString(row.ID), Name: row.Name}, nil
}

func (s *Store) GetGenre(ctx context.Context, id string) (entities.NamedEntity, error) {
	rowID, ok := parseID(id)
	if !ok {
		return entities.NamedEntity{}, entities.ErrGenreNotFound
	}
	var row genreRow
	err := s.db.WithContext(ctx).First(&row, rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.NamedEntity{}, entities.ErrGenreNotFound
	}
	if err != nil {
		return entities.NamedEntity{}, err
	}
	return entities.NamedEntity{ID: idString(row.ID), Name: row.Name}, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]entities.User, error) {
	var rows []userRow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entities.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, userFromRow(r))
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (entities.User, error) {
	rowID, ok := parseID(id)
	if !ok {
		return entities.User{}, entities.ErrUserNotFound
	}
	var row userRow
	err := s.db.WithContext(ctx).First(&row, rowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, err
	}
	return userFromRow(row), nil
}

func (s *Store) LatestBorrows(ctx context.Context) (map[string]entities.Borrow, error) {
	var rows []borrowRow
	err := s.db.WithContext(ctx).
		Order("borrow_date DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]entities.Borrow)
	for _, r := range rows {
		key := idString(r.BookID)
		if _, seen := latest[key]; !seen {
			latest[key] = borrowFromRow(r)
		}
	}
	return latest, nil
}

func (s *Store) ActiveBorrow(ctx context.Context, bookID string) (entities.Borrow, error) {
	rowID, ok := parseID(bookID)
	if !ok {
		return entities.Borrow{}, entities.ErrBookNotFound
	}

	var row borrowRow
	err := s.db.WithContext(ctx).
		Where("book_id = ?", rowID).
		Where("id NOT IN (?)", s.db.Model(&returnRow{}).Select("borrow_id")).
		Order("borrow_date DESC").
		Order("id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Borrow{}, entities.ErrNoActiveBorrow
	}
	if err != nil {
		return entities.Borrow{}, err
	}
	return borrowFromRow(row), nil
}

// BorrowBook flips availability with a conditional update inside a
// transaction so concurrent borrow attempts cannot both succeed.
func (s *Store) BorrowBook(ctx context.Context, bookID, userID string, borrowDate, dueDate time.Time) (entities.Borrow, error) {
	bID, ok := parseID(bookID)
	if !ok {
		return entities.Borrow{}, entities.ErrBookNotFound
	}
	uID, ok := parseID(userID)
	if !ok {
		return entities.Borrow{}, entities.ErrUserNotFound
	}

	var created borrowRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookRow{}).
			Where("id = ? AND available = ?", bID, true).
			Update("available", false)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&bookRow{}).Where("id = ?", bID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return entities.ErrBookNotFound
			}
			return entities.ErrBookUnavailable
		}

		created = borrowRow{
			BookID:     bID,
			UserID:     uID,
			BorrowDate: borrowDate,
			DueDate:    dueDate,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		res = tx.Model(&userRow{}).
			Where("id = ?", uID).
			UpdateColumn("books_borrowed", gorm.Expr("books_borrowed + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return entities.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return entities.Borrow{}, err
	}
	return borrowFromRow(created), nil
}

func (s *Store) ReturnBook(ctx context.Context, borrow entities.Borrow, ret entities.Return) (entities.Return, error) {
	borrowID, ok := parseID(borrow.ID)
	if !ok {
		return entities.Return{}, entities.ErrBorrowNotFound
	}
	bookID, ok := parseID(borrow.BookID)
	if !ok {
		return entities.Return{}, entities.ErrBookNotFound
	}
	userID, ok := parseID(borrow.UserID)
	if !ok {
		return entities.Return{}, entities.ErrUserNotFound
	}

	var created returnRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&bookRow{}).
			Where("id = ? AND available = ?", bookID, false).
			Update("available", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return entities.ErrNoActiveBorrow
		}

		created = returnRow{
			BorrowID:   borrowID,
			ReturnDate: ret.ReturnDate,
			Fine:       ret.Fine,
			Overdue:    ret.Overdue,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		return tx.Model(&userRow{}).
			Where("id = ? AND books_borrowed > 0", userID).
			UpdateColumn("books_borrowed", gorm.Expr("books_borrowed - ?", 1)).Error
	})
	if err != nil {
		return entities.Return{}, err
	}

	return entities.Return{
		ID:         idString(created.ID),
		BorrowID:   idString(created.BorrowID),
		ReturnDate: created.ReturnDate,
		Fine:       created.Fine,
		Overdue:    created.Overdue,
	}, nil
}

// Reset drops all catalog tables and reloads the seed dataset.
func (s *Store) Reset(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	err := db.Migrator().DropTable(
		"book_authors", "book_publishers", "book_genres",
		&returnRow{}, &borrowRow{}, &bookRow{},
		&authorRow{}, &publisherRow{}, &genreRow{}, &userRow{},
	)
	if err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	if err := s.migrate(); err != nil {
		return err
	}
	return s.load(ctx, seed.Data())
}

func (s *Store) load(ctx context.Context, data seed.Catalog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		authors := make([]authorRow, len(data.Authors))
		for i, name := range data.Authors {
			authors[i] = authorRow{Name: name}
		}
		if err := tx.Create(&authors).Error; err != nil {
			return err
		}

		publishers := make([]publisherRow, len(data.Publishers))
		for i, name := range data.Publishers {
			publishers[i] = publisherRow{Name: name}
		}
		if err := tx.Create(&publishers).Error; err != nil {
			return err
		}

		genres := make([]genreRow, len(data.Genres))
		for i, name := range data.Genres {
			genres[i] = genreRow{Name: name}
		}
		if err := tx.Create(&genres).Error; err != nil {
			return err
		}

		users := make([]userRow, len(data.Users))
		for i, u := range data.Users {
			users[i] = userRow{Name: u.Name, Email: u.Email, Phone: u.Phone}
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}

		for _, b := range data.Books {
			row := bookRow{
				Title:           b.Title,
				Edition:         b.Edition,
				ISBN:            b.ISBN,
				PublicationYear: b.PublicationYear,
				ShelfLocation:   b.ShelfLocation,
				Available:       true,
				MovieRelease:    b.MovieRelease,
			}
			for _, idx := range b.Authors {
				row.Authors = append(row.Authors, authors[idx])
			}
			for _, idx := range b.Publishers {
				row.Publishers = append(row.Publishers, publishers[idx])
			}
			for _, idx := range b.Genres {
				row.Genres = append(row.Genres, genres[idx])
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
