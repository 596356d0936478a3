/*
Package librpm provides access to an RPM package database and transaction
engine.

All native calls go through an Engine. The cgo binding to librpm lives in
librpm/native and is only compiled with the "librpm" build tag; a pure Go
engine backed by a directory of .rpm files lives in librpm/memengine. Engines
register themselves by name, much like database/sql drivers:

	import (
		"github.com/cavaliercoder/rpmq/librpm"
		_ "github.com/cavaliercoder/rpmq/librpm/native"
	)

	db, err := librpm.Default().Open(ctx, "")
	if err != nil {
		return err
	}

	it, err := db.InstalledPackages(ctx)
	if err != nil {
		return err
	}
	defer it.Close()

	for it.Next() {
		fmt.Println(it.Package())
	}

The native engine is single threaded and keeps process wide state. Every
database or transaction call is serialized through the lock of a State. A
lease on that lock is a *GlobalTS; it is held for the whole life of a
MatchIterator or a Transaction.

Headers are reference counted views over engine memory. Values decoded from a
Header borrow that memory and must not outlive it. Package values are fully
copied and safe to keep.
*/
package librpm
