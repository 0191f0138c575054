package boltpersistence_test

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dogmatiq/procyon/persistence"
	. "github.com/dogmatiq/procyon/persistence/boltpersistence"
	"github.com/dogmatiq/procyon/persistence/internal/storetest"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.etcd.io/bbolt"
)

// begin starts a session on a BoltDB provider.
func begin(ctx context.Context, p persistence.Provider) (storetest.Transaction, error) {
	b := p.(interface {
		Begin(context.Context) (*Session, error)
	})

	return b.Begin(ctx)
}

var _ = Describe("type Provider", func() {
	storetest.Declare(
		func(ctx context.Context) storetest.Out {
			return storetest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					db, close := openTemp()

					return &Provider{
						DB: db,
					}, close
				},
				Begin: begin,
			}
		},
		nil,
	)
})

var _ = Describe("type FileProvider", func() {
	storetest.Declare(
		func(ctx context.Context) storetest.Out {
			return storetest.Out{
				NewProvider: func() (persistence.Provider, func()) {
					db, close := openTemp()

					path := db.Path() // capture the temp path of the DB.
					db.Close()        // close the original DB so that the file is not locked.

					return &FileProvider{
						Path: path,
					}, close
				},
				Begin: begin,
			}
		},
		nil,
	)

	Describe("func Open()", func() {
		It("returns an error if the DB can not be opened", func() {
			db, close := openTemp()
			defer close()

			provider := &FileProvider{
				Path: db.Path(), // use the same file as the (open) DB.
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()

			b, err := provider.Open(ctx, "<process>")
			if b != nil {
				b.Close()
			}
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("closes the file when the last backend is closed", func() {
			filename, remove := tempFile()
			defer remove()

			provider := &FileProvider{
				Path: filename,
			}

			b1, err := provider.Open(context.Background(), "<process-1>")
			Expect(err).ShouldNot(HaveOccurred())

			b2, err := provider.Open(context.Background(), "<process-2>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(b1.Close()).To(Succeed())
			Expect(b2.Close()).To(Succeed())

			db, err := bbolt.Open(filename, 0600, &bbolt.Options{Timeout: time.Second})
			Expect(err).ShouldNot(HaveOccurred())
			db.Close()
		})
	})

	Describe("func Begin()", func() {
		It("returns an error if no backends are open", func() {
			provider := &FileProvider{
				Path: "<unused>",
			}

			_, err := provider.Begin(context.Background())
			Expect(err).To(MatchError(persistence.ErrStoreClosed))
		})
	})
})

// openTemp opens a BoltDB database using a temporary file.
//
// The returned function must be used to close the database, instead of
// DB.Close().
func openTemp() (*bbolt.DB, func()) {
	filename, remove := tempFile()

	db, err := bbolt.Open(filename, 0600, nil)
	if err != nil {
		panic(err)
	}

	return db, func() {
		db.Close()
		remove()
	}
}

// tempFile returns the name of a temporary file to be used for a BoltDB
// database.
//
// It returns a function that deletes the temporary file.
func tempFile() (string, func()) {
	f, err := os.CreateTemp("", "*.boltdb")
	if err != nil {
		panic(err)
	}

	if err := f.Close(); err != nil {
		panic(err)
	}

	file := f.Name()

	if err := os.Remove(file); err != nil {
		panic(err)
	}

	var once sync.Once
	return file, func() {
		once.Do(func() {
			os.Remove(file)
		})
	}
}
