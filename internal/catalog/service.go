// Package catalog implements the storage-agnostic core of the library
// catalog: view-model aggregation for the catalog page and entity
// detail pages, plus the borrow/return mutations with due dates and
// late fines. All data access goes through the store.Store interface so
// the same logic serves every backend.
package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/store"
)

// DefaultFineDailyRate is the fine charged per day a return is late, in
// currency units.
const DefaultFineDailyRate = 1.0

// dueDateFor produces the due date for a loan: one calendar month
// after the borrow date.
func dueDateFor(borrowDate time.Time) time.Time {
	return borrowDate.AddDate(0, 1, 0)
}

// EntityKind enumerates the entity types the detail endpoint serves.
type EntityKind string

const (
	KindBook      EntityKind = "book"
	KindAuthor    EntityKind = "author"
	KindPublisher EntityKind = "publisher"
	KindGenre     EntityKind = "genre"
	KindUser      EntityKind = "user"
)

// ParseEntityKind validates a raw entity kind string.
func ParseEntityKind(raw string) (EntityKind, error) {
	switch k := EntityKind(raw); k {
	case KindBook, KindAuthor, KindPublisher, KindGenre, KindUser:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", entities.ErrUnknownEntityKind, raw)
	}
}

// Detail is a field-label → value view-model for a single entity.
type Detail map[string]any

type Service struct {
	store    store.Store
	fineRate float64
}

// NewService creates the catalog service. A fineRate of 0 falls back to
// DefaultFineDailyRate.
func NewService(s store.Store, fineRate float64) *Service {
	if fineRate <= 0 {
		fineRate = DefaultFineDailyRate
	}
	return &Service{store: s, fineRate: fineRate}
}

func nameMap(all []entities.NamedEntity, ids []string) map[string]string {
	names := make(map[string]string, len(all))
	for _, e := range all {
		names[e.ID] = e.Name
	}
	m := make(map[string]string, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			m[id] = name
		}
	}
	return m
}

// ListCatalog assembles the full catalog page: one view-model per book
// in the store's listing order, all users (ordered by name) and the
// unavailable books (ordered by title). An empty store yields empty
// slices.
func (s *Service) ListCatalog(ctx context.Context) (View, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list books: %w", err)
	}
	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list authors: %w", err)
	}
	publishers, err := s.store.ListPublishers(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list publishers: %w", err)
	}
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list genres: %w", err)
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list users: %w", err)
	}
	latest, err := s.store.LatestBorrows(ctx)
	if err != nil {
		return View{}, fmt.Errorf("list borrows: %w", err)
	}

	usersByID := make(map[string]entities.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	view := View{
		Books:       make([]BookView, 0, len(books)),
		Users:       users,
		Unavailable: make([]BookRef, 0),
	}

	for _, b := range books {
		bv := BookView{
			ID:              b.ID,
			Title:           b.Title,
			Edition:         b.Edition,
			ISBN:            b.ISBN,
			PublicationYear: b.PublicationYear,
			ShelfLocation:   b.ShelfLocation,
			Available:       b.Available,
			Authors:         nameMap(authors, b.AuthorIDs),
			Publishers:      nameMap(publishers, b.PublisherIDs),
			Genres:          nameMap(genres, b.GenreIDs),
		}

		if !b.Available {
			if borrow, ok := latest[b.ID]; ok {
				if u, ok := usersByID[borrow.UserID]; ok {
					bv.Borrower = map[string]string{u.ID: u.Name}
				}
				borrowDate := borrow.BorrowDate
				dueDate := borrow.DueDate
				bv.BorrowDate = &borrowDate
				bv.DueDate = &dueDate
			}
			view.Unavailable = append(view.Unavailable, BookRef{ID: b.ID, Title: b.Title})
		}

		view.Books = append(view.Books, bv)
	}

	sort.Slice(view.Users, func(i, j int) bool {
		return view.Users[i].Name < view.Users[j].Name
	})
	sort.Slice(view.Unavailable, func(i, j int) bool {
		return view.Unavailable[i].Title < view.Unavailable[j].Title
	})

	return view, nil
}

// EntityDetail produces the detail view-model for one entity. The kind
// dispatch is a typed switch instead of per-type query strings; each
// branch calls the store's typed fetch.
func (s *Service) EntityDetail(ctx context.Context, kind EntityKind, id string) (Detail, error) {
	switch kind {
	case KindBook:
		return s.bookDetail(ctx, id)
	case KindAuthor:
		a, err := s.store.GetAuthor(ctx, id)
		if err != nil {
			return nil, err
		}
		return Detail{"name": a.Name}, nil
	case KindPublisher:
		p, err := s.store.GetPublisher(ctx, id)
		if err != nil {
			return nil, err
		}
		return Detail{"name": p.Name}, nil
	case KindGenre:
		g, err := s.store.GetGenre(ctx, id)
		if err != nil {
			return nil, err
		}
		return Detail{"name": g.Name}, nil
	case KindUser:
		u, err := s.store.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		return Detail{"name": u.Name, "email": u.Email, "phone": u.Phone}, nil
	default:
		return nil, fmt.Errorf("%w: %q", entities.ErrUnknownEntityKind, kind)
	}
}

func (s *Service) bookDetail(ctx context.Context, id string) (Detail, error) {
	b, err := s.store.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}

	authors, err := s.store.ListAuthors(ctx)
	if err != nil {
		return nil, err
	}
	publishers, err := s.store.ListPublishers(ctx)
	if err != nil {
		return nil, err
	}
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, err
	}

	detail := Detail{
		"title":            b.Title,
		"edition":          b.Edition,
		"isbn":             b.ISBN,
		"publication_year": b.PublicationYear,
		"shelf_location":   b.ShelfLocation,
		"available":        b.Available,
		"authors":          nameMap(authors, b.AuthorIDs),
		"publishers":       nameMap(publishers, b.PublisherIDs),
		"genres":           nameMap(genres, b.GenreIDs),
	}

	if !b.Available {
		borrow, err := s.store.ActiveBorrow(ctx, b.ID)
		if err == nil {
			detail["borrow_date"] = borrow.BorrowDate
			detail["due_date"] = borrow.DueDate
			if u, uerr := s.store.GetUser(ctx, borrow.UserID); uerr == nil {
				detail["borrower"] = map[string]string{
					"name":  u.Name,
					"email": u.Email,
					"phone": u.Phone,
				}
			}
		}
	}

	return detail, nil
}

// Borrow checks both parties exist, then lets the store flip the
// availability flag conditionally so two concurrent borrows of the same
// book cannot both succeed. The due date is one calendar month out.
func (s *Service) Borrow(ctx context.Context, bookID, userID string, borrowDate time.Time) (entities.Borrow, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return entities.Borrow{}, err
	}
	return s.store.BorrowBook(ctx, bookID, userID, borrowDate, dueDateFor(borrowDate))
}

// Return closes the book's active borrow, computing the fine from the
// whole days between due date and return date.
func (s *Service) Return(ctx context.Context, bookID string, returnDate time.Time) (entities.Return, error) {
	borrow, err := s.store.ActiveBorrow(ctx, bookID)
	if err != nil {
		return entities.Return{}, err
	}

	late := daysLate(returnDate, borrow.DueDate)
	ret := entities.Return{
		BorrowID:   borrow.ID,
		ReturnDate: returnDate,
		Fine:       s.fine(late),
		Overdue:    late > 0,
	}
	return s.store.ReturnBook(ctx, borrow, ret)
}

// OverdueLoans reports every active borrow past due as of the given
// time, with the fine accrued so far. Used by the overdue sweep.
func (s *Service) OverdueLoans(ctx context.Context, asOf time.Time) ([]OverdueLoan, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.store.LatestBorrows(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	usersByID := make(map[string]entities.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	var overdue []OverdueLoan
	for _, b := range books {
		if b.Available {
			continue
		}
		borrow, ok := latest[b.ID]
		if !ok {
			continue
		}
		late := daysLate(asOf, borrow.DueDate)
		if late <= 0 {
			continue
		}
		loan := OverdueLoan{
			BookID:      b.ID,
			Title:       b.Title,
			UserID:      borrow.UserID,
			DueDate:     borrow.DueDate,
			DaysLate:    late,
			AccruedFine: s.fine(late),
		}
		if u, ok := usersByID[borrow.UserID]; ok {
			loan.UserName = u.Name
			loan.UserEmail = u.Email
		}
		overdue = append(overdue, loan)
	}
	return overdue, nil
}

func (s *Service) fine(daysLate int) float64 {
	if daysLate <= 0 {
		return 0
	}
	return math.Round(float64(daysLate)*s.fineRate*100) / 100
}

// daysLate counts whole calendar days between the due date and the
// return date, ignoring time-of-day. Zero or negative means on time.
func daysLate(returned, due time.Time) int {
	r := time.Date(returned.Year(), returned.Month(), returned.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(r.Sub(d) / (24 * time.Hour))
}
