package yum

// DB is one of multiple possible databases in a Yum repository.
type DB interface {
	// Name is the type of database as it appears in repomd.xml (E.g.
	// "primary_db")
	Name() string

	// Path is the file path of the uncompressed database file.
	Path() string

	// Begin starts a transaction.
	Begin() (Tx, error)

	// Close closes the database, releasing any open resources.
	Close() error
}

// Tx is an in-progress database transaction.
// A transaction must end with a call to Commit or Rollback.
type Tx interface {
	Commit() error
	Rollback() error

	// AddPackage adds packages to the database.
	AddPackage(...*Package) error
}
