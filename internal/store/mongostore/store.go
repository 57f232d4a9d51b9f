// Package mongostore implements the catalog store on MongoDB. Documents
// keep the collection and field names of the reference dataset: books
// carry an is_available flag plus ObjectID arrays for authors, genres
// and publishers.
//
// MongoDB has no multi-document transactions on standalone servers, so
// borrow and return run as sequenced writes with the availability flag
// flipped first through a conditional FindOneAndUpdate. The flag is the
// authoritative lock; a failure after the flip is logged and leaves a
// state the next sweep or return can repair.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bookstacks/catalog/internal/entities"
	"github.com/bookstacks/catalog/internal/seed"
	"github.com/bookstacks/catalog/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Open connects to MongoDB and verifies the connection.
func Open(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Printf("MongoDB store initialized (database %q)", dbName)
	return &Store{client: client, db: client.Database(dbName)}, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

type bookDoc struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	Title           string               `bson:"title"`
	IsAvailable     bool                 `bson:"is_available"`
	Edition         int                  `bson:"edition"`
	ISBN            string               `bson:"isbn"`
	PublicationYear int                  `bson:"publication_year"`
	ShelfLocation   string               `bson:"shelf_location"`
	Authors         []primitive.ObjectID `bson:"authors"`
	Genres          []primitive.ObjectID `bson:"genres"`
	Publishers      []primitive.ObjectID `bson:"publishers"`
	MovieRelease    *time.Time           `bson:"movie_release,omitempty"`
}

type namedDoc struct {
	ID   primitive.ObjectID `bson:"_id,omitempty"`
	Name string             `bson:"name"`
}

type userDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Email         string             `bson:"email"`
	TelNo         string             `bson:"tel_no"`
	BooksBorrowed int                `bson:"books_borrowed"`
}

type borrowDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BookID     primitive.ObjectID `bson:"book_id"`
	UserID     primitive.ObjectID `bson:"user_id"`
	BorrowDate time.Time          `bson:"borrow_date"`
	DueDate    time.Time          `bson:"due_date"`
}

type returnDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	BorrowID   primitive.ObjectID `bson:"borrow_id"`
	ReturnDate time.Time          `bson:"return_date"`
	Fine       float64            `bson:"fine"`
	Overdue    bool               `bson:"overdue"`
}

func oidStrings(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}

func bookFromDoc(d bookDoc) entities.Book {
	return entities.Book{
		ID:              d.ID.Hex(),
		Title:           d.Title,
		Edition:         d.Edition,
		ISBN:            d.ISBN,
		PublicationYear: d.PublicationYear,
		ShelfLocation:   d.ShelfLocation,
		Available:       d.IsAvailable,
		MovieRelease:    d.MovieRelease,
		AuthorIDs:       oidStrings(d.Authors),
		PublisherIDs:    oidStrings(d.Publishers),
		GenreIDs:        oidStrings(d.Genres),
	}
}

func userFromDoc(d userDoc) entities.User {
	return entities.User{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.TelNo,
		BooksBorrowed: d.BooksBorrowed,
	}
}

func borrowFromDoc(d borrowDoc) entities.Borrow {
	return entities.Borrow{
		ID:         d.ID.Hex(),
		BookID:     d.BookID.Hex(),
		UserID:     d.UserID.Hex(),
		BorrowDate: d.BorrowDate,
		DueDate:    d.DueDate,
	}
}

func (s *Store) ListBooks(ctx context.Context) ([]entities.Book, error) {
	// ObjectIDs are monotonic within a process, so _id ascending is the
	// insertion order the seed loads books in.
	cursor, err := s.db.Collection("books").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []bookDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	books := make([]entities.Book, 0, len(docs))
	for _, d := range docs {
		books = append(books, bookFromDoc(d))
	}
	return books, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (entities.Book, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entities.Book{}, entities.ErrBookNotFound
	}

	var doc bookDoc
	err = s.db.Collection("books").FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.Book{}, entities.ErrBookNotFound
	}
	if err != nil {
		return entities.Book{}, err
	}
	return bookFromDoc(doc), nil
}

func (s *Store) listNamed(ctx context.Context, collection string) ([]entities.NamedEntity, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []namedDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]entities.NamedEntity, 0, len(docs))
	for _, d := range docs {
		out = append(out, entities.NamedEntity{ID: d.ID.Hex(), Name: d.Name})
	}
	return out, nil
}

func (s *Store) getNamed(ctx context.Context, collection, id string, notFound error) (entities.NamedEntity, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entities.NamedEntity{}, notFound
	}

	var doc namedDoc
	err = s.db.Collection(collection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.NamedEntity{}, notFound
	}
	if err != nil {
		return entities.NamedEntity{}, err
	}
	return entities.NamedEntity{ID: doc.ID.Hex(), Name: doc.Name}, nil
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
	cursor, err := s.db.Collection("users").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]entities.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, userFromDoc(d))
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (entities.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return entities.User{}, entities.ErrUserNotFound
	}

	var doc userDoc
	err = s.db.Collection("users").FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.User{}, entities.ErrUserNotFound
	}
	if err != nil {
		return entities.User{}, err
	}
	return userFromDoc(doc), nil
}

// LatestBorrows keeps one borrow per book; ObjectIDs embed a timestamp
// so _id descending breaks ties between equal borrow dates.
func (s *Store) LatestBorrows(ctx context.Context) (map[string]entities.Borrow, error) {
	cursor, err := s.db.Collection("borrows").Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{
			{Key: "borrow_date", Value: -1},
			{Key: "_id", Value: -1},
		}))
	if err != nil {
		return nil, err
	}
	var docs []borrowDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	latest := make(map[string]entities.Borrow)
	for _, d := range docs {
		key := d.BookID.Hex()
		if _, seen := latest[key]; !seen {
			latest[key] = borrowFromDoc(d)
		}
	}
	return latest, nil
}

func (s *Store) ActiveBorrow(ctx context.Context, bookID string) (entities.Borrow, error) {
	oid, err := primitive.ObjectIDFromHex(bookID)
	if err != nil {
		return entities.Borrow{}, entities.ErrBookNotFound
	}

	cursor, err := s.db.Collection("borrows").Find(ctx, bson.M{"book_id": oid},
		options.Find().SetSort(bson.D{
			{Key: "borrow_date", Value: -1},
			{Key: "_id", Value: -1},
		}).SetLimit(1))
	if err != nil {
		return entities.Borrow{}, err
	}
	var docs []borrowDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return entities.Borrow{}, err
	}
	if len(docs) == 0 {
		return entities.Borrow{}, entities.ErrNoActiveBorrow
	}
	borrow := docs[0]

	count, err := s.db.Collection("returns").CountDocuments(ctx, bson.M{"borrow_id": borrow.ID})
	if err != nil {
		return entities.Borrow{}, err
	}
	if count > 0 {
		return entities.Borrow{}, entities.ErrNoActiveBorrow
	}
	return borrowFromDoc(borrow), nil
}

func (s *Store) BorrowBook(ctx context.Context, bookID, userID string, borrowDate, dueDate time.Time) (entities.Borrow, error) {
	bookOID, err := primitive.ObjectIDFromHex(bookID)
	if err != nil {
		return entities.Borrow{}, entities.ErrBookNotFound
	}
	userOID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return entities.Borrow{}, entities.ErrUserNotFound
	}

	// The conditional flip is the lock: only one caller can move the
	// flag from true to false.
	err = s.db.Collection("books").FindOneAndUpdate(ctx,
		bson.M{"_id": bookOID, "is_available": true},
		bson.M{"$set": bson.M{"is_available": false}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, countErr := s.db.Collection("books").CountDocuments(ctx, bson.M{"_id": bookOID})
		if countErr != nil {
			return entities.Borrow{}, countErr
		}
		if count == 0 {
			return entities.Borrow{}, entities.ErrBookNotFound
		}
		return entities.Borrow{}, entities.ErrBookUnavailable
	}
	if err != nil {
		return entities.Borrow{}, err
	}

	doc := borrowDoc{
		BookID:     bookOID,
		UserID:     userOID,
		BorrowDate: borrowDate,
		DueDate:    dueDate,
	}
	res, err := s.db.Collection("borrows").InsertOne(ctx, doc)
	if err != nil {
		s.release(ctx, bookOID)
		return entities.Borrow{}, err
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)

	upd, err := s.db.Collection("users").UpdateByID(ctx, userOID,
		bson.M{"$inc": bson.M{"books_borrowed": 1}})
	if err != nil {
		return entities.Borrow{}, err
	}
	if upd.MatchedCount == 0 {
		log.Printf("borrow %s recorded for unknown user %s", doc.ID.Hex(), userID)
		return entities.Borrow{}, entities.ErrUserNotFound
	}

	return borrowFromDoc(doc), nil
}

// release undoes the availability flip after a failed borrow.
func (s *Store) release(ctx context.Context, bookOID primitive.ObjectID) {
	_, err := s.db.Collection("books").UpdateByID(ctx, bookOID,
		bson.M{"$set": bson.M{"is_available": true}})
	if err != nil {
		log.Printf("failed to release book %s after aborted borrow: %v", bookOID.Hex(), err)
	}
}

func (s *Store) ReturnBook(ctx context.Context, borrow entities.Borrow, ret entities.Return) (entities.Return, error) {
	bookOID, err := primitive.ObjectIDFromHex(borrow.BookID)
	if err != nil {
		return entities.Return{}, entities.ErrBookNotFound
	}
	userOID, err := primitive.ObjectIDFromHex(borrow.UserID)
	if err != nil {
		return entities.Return{}, entities.ErrUserNotFound
	}
	borrowOID, err := primitive.ObjectIDFromHex(borrow.ID)
	if err != nil {
		return entities.Return{}, entities.ErrBorrowNotFound
	}

	err = s.db.Collection("books").FindOneAndUpdate(ctx,
		bson.M{"_id": bookOID, "is_available": false},
		bson.M{"$set": bson.M{"is_available": true}},
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return entities.Return{}, entities.ErrNoActiveBorrow
	}
	if err != nil {
		return entities.Return{}, err
	}

	doc := returnDoc{
		BorrowID:   borrowOID,
		ReturnDate: ret.ReturnDate,
		Fine:       ret.Fine,
		Overdue:    ret.Overdue,
	}
	res, err := s.db.Collection("returns").InsertOne(ctx, doc)
	if err != nil {
		return entities.Return{}, err
	}

	_, err = s.db.Collection("users").UpdateOne(ctx,
		bson.M{"_id": userOID, "books_borrowed": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"books_borrowed": -1}})
	if err != nil {
		log.Printf("failed to decrement borrow count for user %s: %v", borrow.UserID, err)
	}

	ret.ID = res.InsertedID.(primitive.ObjectID).Hex()
	ret.BorrowID = borrow.ID
	return ret, nil
}

var collections = []string{"users", "books", "authors", "genres", "publishers", "borrows", "returns"}

func (s *Store) Reset(ctx context.Context) error {
	for _, name := range collections {
		if err := s.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("failed to drop collection %s: %w", name, err)
		}
	}
	return s.load(ctx, seed.Data())
}

func (s *Store) load(ctx context.Context, data seed.Catalog) error {
	insertNamed := func(collection string, names []string) ([]primitive.ObjectID, error) {
		docs := make([]interface{}, 0, len(names))
		for _, name := range names {
			docs = append(docs, namedDoc{Name: name})
		}
		res, err := s.db.Collection(collection).InsertMany(ctx, docs)
		if err != nil {
			return nil, err
		}
		ids := make([]primitive.ObjectID, len(res.InsertedIDs))
		for i, id := range res.InsertedIDs {
			ids[i] = id.(primitive.ObjectID)
		}
		return ids, nil
	}

	authorIDs, err := insertNamed("authors", data.Authors)
	if err != nil {
		return err
	}
	genreIDs, err := insertNamed("genres", data.Genres)
	if err != nil {
		return err
	}
	publisherIDs, err := insertNamed("publishers", data.Publishers)
	if err != nil {
		return err
	}

	users := make([]interface{}, 0, len(data.Users))
	for _, u := range data.Users {
		users = append(users, userDoc{Name: u.Name, Email: u.Email, TelNo: u.Phone})
	}
	if _, err := s.db.Collection("users").InsertMany(ctx, users); err != nil {
		return err
	}

	pick := func(ids []primitive.ObjectID, indexes []int) []primitive.ObjectID {
		out := make([]primitive.ObjectID, 0, len(indexes))
		for _, i := range indexes {
			out = append(out, ids[i])
		}
		return out
	}

	books := make([]interface{}, 0, len(data.Books))
	for _, b := range data.Books {
		books = append(books, bookDoc{
			Title:           b.Title,
			IsAvailable:     true,
			Edition:         b.Edition,
			ISBN:            b.ISBN,
			PublicationYear: b.PublicationYear,
			ShelfLocation:   b.ShelfLocation,
			Authors:         pick(authorIDs, b.Authors),
			Genres:          pick(genreIDs, b.Genres),
			Publishers:      pick(publisherIDs, b.Publishers),
			MovieRelease:    b.MovieRelease,
		})
	}
	if _, err := s.db.Collection("books").InsertMany(ctx, books); err != nil {
		return err
	}
	return nil
}
