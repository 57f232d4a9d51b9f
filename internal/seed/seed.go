// Package seed holds the initial catalog dataset. Every store adapter
// loads it on Reset so all backends start from the same state.
package seed

import "time"

type User struct {
	Name  string
	Email string
	Phone string
}

// Book references authors/publishers/genres by index into the Catalog
// slices; adapters translate indexes into their own keys after inserting
// the related entities.
type Book struct {
	Title           string
	Edition         int
	ISBN            string
	PublicationYear int
	ShelfLocation   string
	MovieRelease    *time.Time
	Authors         []int
	Publishers      []int
	Genres          []int
}

type Catalog struct {
	Users      []User
	Authors    []string
	Publishers []string
	Genres     []string
	Books      []Book
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Data returns the default catalog dataset.
func Data() Catalog {
	return Catalog{
		Users: []User{
			{Name: "Lothar Gorman", Email: "lothar_gorman@example.com", Phone: "(230) 865-2886"},
			{Name: "Jakob Hofmann", Email: "jakob_hofmann@example.com"},
			{Name: "Tadday Müller", Email: "tadday_mueller@example.com", Phone: "(307) 601-0688"},
			{Name: "Susanne Messer", Email: "susanne_messer@example.com"},
			{Name: "Jan Waltz", Email: "jan_waltz@example.com", Phone: "(645) 989-5053"},
		},
		Authors:    []string{"J.K. Rowling", "Kevin Kwan"},
		Publishers: []string{"Bloomsbury", "Scholastic", "Doubleday"},
		Genres: []string{
			"Fantasy", "Adventure", "Young Adult",
			"Contemporary Fiction", "Romance", "Comedy",
		},
		Books: []Book{
			{
				Title: "Harry Potter and the Philosopher's Stone", Edition: 1,
				ISBN: "9780747532743", PublicationYear: 1997, ShelfLocation: "A1",
				MovieRelease: date(2001, time.November, 22),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Chamber of Secrets", Edition: 1,
				ISBN: "9780747538486", PublicationYear: 1998, ShelfLocation: "A1",
				MovieRelease: date(2002, time.November, 14),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Prisoner of Azkaban", Edition: 1,
				ISBN: "9780747542155", PublicationYear: 1999, ShelfLocation: "A1",
				MovieRelease: date(2004, time.June, 3),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Goblet of Fire", Edition: 1,
				ISBN: "9780747546245", PublicationYear: 2000, ShelfLocation: "A1",
				MovieRelease: date(2005, time.November, 16),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Order of the Phoenix", Edition: 1,
				ISBN: "9780747551003", PublicationYear: 2003, ShelfLocation: "A1",
				MovieRelease: date(2007, time.July, 12),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Half-Blood Prince", Edition: 1,
				ISBN: "9780747581086", PublicationYear: 2005, ShelfLocation: "A1",
				MovieRelease: date(2009, time.July, 16),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Harry Potter and the Deathly Hallows", Edition: 1,
				ISBN: "9780747591054", PublicationYear: 2007, ShelfLocation: "A1",
				MovieRelease: date(2018, time.August, 23),
				Authors:      []int{0}, Publishers: []int{0, 1}, Genres: []int{0, 1, 2},
			},
			{
				Title: "Crazy Rich Asians", Edition: 1,
				ISBN: "9780385537447", PublicationYear: 2013, ShelfLocation: "B2",
				MovieRelease: date(2010, time.November, 17),
				Authors:      []int{1}, Publishers: []int{2}, Genres: []int{3, 4, 5},
			},
			{
				Title: "China Rich Girlfriend", Edition: 1,
				ISBN: "9780385537478", PublicationYear: 2015, ShelfLocation: "B2",
				Authors: []int{1}, Publishers: []int{2}, Genres: []int{3, 4, 5},
			},
			{
				Title: "Rich People Problems", Edition: 1,
				ISBN: "9780385537485", PublicationYear: 2017, ShelfLocation: "B2",
				Authors: []int{1}, Publishers: []int{2}, Genres: []int{3, 4, 5},
			},
		},
	}
}
