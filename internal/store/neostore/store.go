// Package neostore implements the catalog store on Neo4j. The catalog
// maps naturally onto a graph: books link to authors, publishers and
// genres through relationships, and every loan is a Borrow node between
// a user and a book, closed by a Return node.
//
//	(:User)-[:BORROWED]->(:Borrow)-[:OF]->(:Book)
//	(:Return)-[:CLOSES]->(:Borrow)
//	(:Book)-[:WRITTEN_BY]->(:Author)
//	(:Book)-[:PUBLISHED_BY]->(:Publisher)
//	(:Book)-[:HAS_GENRE]->(:Genre)
//
// Nodes carry UUID string ids. Mutations run inside managed write
// transactions so the availability flip, the loan node and the user
// counter move together.
package neostore

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/seed"
	"github.com/bookstacks/catalog/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	driver neo4j.DriverWithContext
}

// Open connects to Neo4j and verifies the connection.
func Open(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	log.Printf("Neo4j store initialized")
	return &Store{driver: driver}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.driver.Close(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.driver.VerifyConnectivity(ctx)
}

func (s *Store) readSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
}

func (s *Store) writeSession(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
}

func propString(props map[string]any, key string) string {
	v, _ := props[key].(string)
	return v
}

func propInt(props map[string]any, key string) int {
	v, _ := props[key].(int64)
	return int(v)
}

func propBool(props map[string]any, key string) bool {
	v, _ := props[key].(bool)
	return v
}

func propTime(props map[string]any, key string) *time.Time {
	if v, ok := props[key].(time.Time); ok {
		return &v
	}
	return nil
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func bookFromRecord(record *neo4j.Record) (entities.Book, error) {
	raw, ok := record.Get("b")
	if !ok {
		return entities.Book{}, fmt.Errorf("book node missing from record")
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return entities.Book{}, fmt.Errorf("unexpected book value %T", raw)
	}

	authors, _ := record.Get("authors")
	publishers, _ := record.Get("publishers")
	genres, _ := record.Get("genres")

	return entities.Book{
		ID:              propString(node.Props, "id"),
		Title:           propString(node.Props, "title"),
		Edition:         propInt(node.Props, "edition"),
		ISBN:            propString(node.Props, "isbn"),
		PublicationYear: propInt(node.Props, "publication_year"),
		ShelfLocation:   propString(node.Props, "shelf_location"),
		Available:       propBool(node.Props, "available"),
		MovieRelease:    propTime(node.Props, "movie_release"),
		AuthorIDs:       stringList(authors),
		PublisherIDs:    stringList(publishers),
		GenreIDs:        stringList(genres),
	}, nil
}

const bookQuery = `
MATCH (b:Book)
%s
OPTIONAL MATCH (b)-[:WRITTEN_BY]->(a:Author)
WITH b, collect(a.id) AS authors
OPTIONAL MATCH (b)-[:PUBLISHED_BY]->(p:Publisher)
WITH b, authors, collect(p.id) AS publishers
OPTIONAL MATCH (b)-[:HAS_GENRE]->(g:Genre)
RETURN b, authors, publishers, collect(g.id) AS genres
ORDER BY b.created_at, b.title
`

func (s *Store) ListBooks(ctx context.Context) ([]entities.Book, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]entities.Book, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(bookQuery, ""), nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		books := make([]entities.Book, 0, len(records))
		for _, record := range records {
			book, err := bookFromRecord(record)
			if err != nil {
				return nil, err
			}
			books = append(books, book)
		}
		return books, nil
	})
}

func (s *Store) GetBook(ctx context.Context, id string) (entities.Book, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (entities.Book, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(bookQuery, "WHERE b.id = $id"), map[string]any{"id": id})
		if err != nil {
			return entities.Book{}, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return entities.Book{}, entities.ErrBookNotFound
		}
		return bookFromRecord(record)
	})
}

func (s *Store) listNamed(ctx context.Context, label string) ([]entities.NamedEntity, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s) RETURN n.id AS id, n.name AS name ORDER BY n.name`, label)
	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]entities.NamedEntity, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]entities.NamedEntity, 0, len(records))
		for _, record := range records {
			id, _ := record.Get("id")
			name, _ := record.Get("name")
			out = append(out, entities.NamedEntity{
				ID:   id.(string),
				Name: name.(string),
			})
		}
		return out, nil
	})
}

func (s *Store) getNamed(ctx context.Context, label, id string, notFound error) (entities.NamedEntity, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s {id: $id}) RETURN n.name AS name`, label)
	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (entities.NamedEntity, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": id})
		if err != nil {
			return entities.NamedEntity{}, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return entities.NamedEntity{}, notFound
		}
		name, _ := record.Get("name")
		return entities.NamedEntity{ID: id, Name: name.(string)}, nil
	})
}

func (s *Store) ListAuthors(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "Author")
}

func (s *Store) ListPublishers(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "Publisher")
}

func (s *Store) ListGenres(ctx context.Context) ([]entities.NamedEntity, error) {
	return s.listNamed(ctx, "Genre")
}

func (s *Store) GetAuthor(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "Author", id, entities.ErrAuthorNotFound)
}

func (s *Store) GetPublisher(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "Publisher", id, entities.ErrPublisherNotFound)
}

func (s *Store) GetGenre(ctx context.Context, id string) (entities.NamedEntity, error) {
	return s.getNamed(ctx, "Genre", id, entities.ErrGenreNotFound)
}

func userFromNode(node neo4j.Node) entities.User {
	return entities.User{
		ID:            propString(node.Props, "id"),
		Name:          propString(node.Props, "name"),
		Email:         propString(node.Props, "email"),
		Phone:         propString(node.Props, "phone"),
		BooksBorrowed: propInt(node.Props, "books_borrowed"),
	}
}

func (s *Store) ListUsers(ctx context.Context) ([]entities.User, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]entities.User, error) {
		res, err := tx.Run(ctx, `MATCH (u:User) RETURN u ORDER BY u.name`, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		out := make([]entities.User, 0, len(records))
		for _, record := range records {
			raw, _ := record.Get("u")
			out = append(out, userFromNode(raw.(neo4j.Node)))
		}
		return out, nil
	})
}

func (s *Store) GetUser(ctx context.Context, id string) (entities.User, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (entities.User, error) {
		res, err := tx.Run(ctx, `MATCH (u:User {id: $id}) RETURN u`, map[string]any{"id": id})
		if err != nil {
			return entities.User{}, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return entities.User{}, entities.ErrUserNotFound
		}
		raw, _ := record.Get("u")
		return userFromNode(raw.(neo4j.Node)), nil
	})
}

func borrowFromRecord(record *neo4j.Record) entities.Borrow {
	raw, _ := record.Get("br")
	node := raw.(neo4j.Node)
	bookID, _ := record.Get("book_id")
	userID, _ := record.Get("user_id")

	borrow := entities.Borrow{
		ID:     propString(node.Props, "id"),
		BookID: bookID.(string),
		UserID: userID.(string),
	}
	if t := propTime(node.Props, "borrow_date"); t != nil {
		borrow.BorrowDate = *t
	}
	if t := propTime(node.Props, "due_date"); t != nil {
		borrow.DueDate = *t
	}
	return borrow
}

func (s *Store) LatestBorrows(ctx context.Context) (map[string]entities.Borrow, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	const query = `
MATCH (u:User)-[:BORROWED]->(br:Borrow)-[:OF]->(b:Book)
RETURN br, b.id AS book_id, u.id AS user_id
ORDER BY br.borrow_date DESC, br.created_at DESC
`
	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (map[string]entities.Borrow, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}

		latest := make(map[string]entities.Borrow)
		for _, record := range records {
			borrow := borrowFromRecord(record)
			if _, seen := latest[borrow.BookID]; !seen {
				latest[borrow.BookID] = borrow
			}
		}
		return latest, nil
	})
}

func (s *Store) ActiveBorrow(ctx context.Context, bookID string) (entities.Borrow, error) {
	session := s.readSession(ctx)
	defer session.Close(ctx)

	const query = `
MATCH (u:User)-[:BORROWED]->(br:Borrow)-[:OF]->(b:Book {id: $book_id})
WHERE NOT (:Return)-[:CLOSES]->(br)
RETURN br, b.id AS book_id, u.id AS user_id
ORDER BY br.borrow_date DESC, br.created_at DESC
LIMIT 1
`
	return neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) (entities.Borrow, error) {
		res, err := tx.Run(ctx, query, map[string]any{"book_id": bookID})
		if err != nil {
			return entities.Borrow{}, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return entities.Borrow{}, entities.ErrNoActiveBorrow
		}
		return borrowFromRecord(record), nil
	})
}

func (s *Store) BorrowBook(ctx context.Context, bookID, userID string, borrowDate, dueDate time.Time) (entities.Borrow, error) {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	borrowID := uuid.NewString()
	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (struct{}, error) {
		var zero struct{}

		// Conditional flip; no row back means missing or already out.
		res, err := tx.Run(ctx, `
MATCH (b:Book {id: $book_id})
WHERE b.available
SET b.available = false
RETURN b.id
`, map[string]any{"book_id": bookID})
		if err != nil {
			return zero, err
		}
		if _, err := res.Single(ctx); err != nil {
			exists, err := tx.Run(ctx,
				`MATCH (b:Book {id: $book_id}) RETURN b.id`,
				map[string]any{"book_id": bookID})
			if err != nil {
				return zero, err
			}
			if _, err := exists.Single(ctx); err != nil {
				return zero, entities.ErrBookNotFound
			}
			return zero, entities.ErrBookUnavailable
		}

		res, err = tx.Run(ctx, `
MATCH (u:User {id: $user_id}), (b:Book {id: $book_id})
SET u.books_borrowed = u.books_borrowed + 1
CREATE (u)-[:BORROWED]->(br:Borrow {
	id: $borrow_id,
	borrow_date: $borrow_date,
	due_date: $due_date,
	created_at: datetime()
})-[:OF]->(b)
RETURN br.id
`, map[string]any{
			"user_id":     userID,
			"book_id":     bookID,
			"borrow_id":   borrowID,
			"borrow_date": borrowDate,
			"due_date":    dueDate,
		})
		if err != nil {
			return zero, err
		}
		if _, err := res.Single(ctx); err != nil {
			return zero, entities.ErrUserNotFound
		}
		return zero, nil
	})
	if err != nil {
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
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	returnID := uuid.NewString()
	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (struct{}, error) {
		var zero struct{}

		res, err := tx.Run(ctx, `
MATCH (b:Book {id: $book_id})
WHERE NOT b.available
SET b.available = true
RETURN b.id
`, map[string]any{"book_id": borrow.BookID})
		if err != nil {
			return zero, err
		}
		if _, err := res.Single(ctx); err != nil {
			return zero, entities.ErrNoActiveBorrow
		}

		res, err = tx.Run(ctx, `
MATCH (br:Borrow {id: $borrow_id})
CREATE (r:Return {
	id: $return_id,
	return_date: $return_date,
	fine: $fine,
	overdue: $overdue
})-[:CLOSES]->(br)
RETURN r.id
`, map[string]any{
			"borrow_id":   borrow.ID,
			"return_id":   returnID,
			"return_date": ret.ReturnDate,
			"fine":        ret.Fine,
			"overdue":     ret.Overdue,
		})
		if err != nil {
			return zero, err
		}
		if _, err := res.Single(ctx); err != nil {
			return zero, entities.ErrBorrowNotFound
		}

		_, err = tx.Run(ctx, `
MATCH (u:User {id: $user_id})
WHERE u.books_borrowed > 0
SET u.books_borrowed = u.books_borrowed - 1
`, map[string]any{"user_id": borrow.UserID})
		return zero, err
	})
	if err != nil {
		return entities.Return{}, err
	}

	ret.ID = returnID
	ret.BorrowID = borrow.ID
	return ret, nil
}

func (s *Store) Reset(ctx context.Context) error {
	session := s.writeSession(ctx)
	defer session.Close(ctx)

	_, err := neo4j.ExecuteWrite(ctx, session, func(tx neo4j.ManagedTransaction) (struct{}, error) {
		var zero struct{}

		if _, err := tx.Run(ctx, `MATCH (n) DETACH DELETE n`, nil); err != nil {
			return zero, err
		}
		return zero, loadSeed(ctx, tx, seed.Data())
	})
	return err
}

func loadSeed(ctx context.Context, tx neo4j.ManagedTransaction, data seed.Catalog) error {
	createNamed := func(label string, names []string) ([]string, error) {
		query := fmt.Sprintf(`CREATE (n:%s {id: $id, name: $name})`, label)
		ids := make([]string, len(names))
		for i, name := range names {
			ids[i] = uuid.NewString()
			if _, err := tx.Run(ctx, query, map[string]any{"id": ids[i], "name": name}); err != nil {
				return nil, err
			}
		}
		return ids, nil
	}

	authorIDs, err := createNamed("Author", data.Authors)
	if err != nil {
		return err
	}
	publisherIDs, err := createNamed("Publisher", data.Publishers)
	if err != nil {
		return err
	}
	genreIDs, err := createNamed("Genre", data.Genres)
	if err != nil {
		return err
	}

	for _, u := range data.Users {
		_, err := tx.Run(ctx, `
CREATE (u:User {id: $id, name: $name, email: $email, phone: $phone, books_borrowed: 0})
`, map[string]any{
			"id":    uuid.NewString(),
			"name":  u.Name,
			"email": u.Email,
			"phone": u.Phone,
		})
		if err != nil {
			return err
		}
	}

	// Cypher's datetime() is fixed per transaction, so creation
	// timestamps come from the client: strictly increasing values keep
	// the books in insertion order.
	seededAt := time.Now().UTC()
	for i, b := range data.Books {
		bookID := uuid.NewString()
		params := map[string]any{
			"id":               bookID,
			"title":            b.Title,
			"edition":          b.Edition,
			"isbn":             b.ISBN,
			"publication_year": b.PublicationYear,
			"shelf_location":   b.ShelfLocation,
			"created_at":       seededAt.Add(time.Duration(i) * time.Millisecond),
		}
		query := `
CREATE (b:Book {
	id: $id,
	title: $title,
	edition: $edition,
	isbn: $isbn,
	publication_year: $publication_year,
	shelf_location: $shelf_location,
	available: true,
	created_at: $created_at
})`
		if b.MovieRelease != nil {
			params["movie_release"] = *b.MovieRelease
			query = `
CREATE (b:Book {
	id: $id,
	title: $title,
	edition: $edition,
	isbn: $isbn,
	publication_year: $publication_year,
	shelf_location: $shelf_location,
	available: true,
	created_at: $created_at,
	movie_release: $movie_release
})`
		}
		if _, err := tx.Run(ctx, query, params); err != nil {
			return err
		}

		link := func(query string, targetIDs []string, indexes []int) error {
			for _, idx := range indexes {
				_, err := tx.Run(ctx, query, map[string]any{
					"book_id":   bookID,
					"target_id": targetIDs[idx],
				})
				if err != nil {
					return err
				}
			}
			return nil
		}

		if err := link(`
MATCH (b:Book {id: $book_id}), (a:Author {id: $target_id})
CREATE (b)-[:WRITTEN_BY]->(a)`, authorIDs, b.Authors); err != nil {
			return err
		}
		if err := link(`
MATCH (b:Book {id: $book_id}), (p:Publisher {id: $target_id})
CREATE (b)-[:PUBLISHED_BY]->(p)`, publisherIDs, b.Publishers); err != nil {
			return err
		}
		if err := link(`
MATCH (b:Book {id: $book_id}), (g:Genre {id: $target_id})
CREATE (b)-[:HAS_GENRE]->(g)`, genreIDs, b.Genres); err != nil {
			return err
		}
	}

	return nil
}
