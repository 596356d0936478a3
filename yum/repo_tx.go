package yum

import "emperror.dev/errors"

// A RepoTx is a "super-transaction" that applies all its actions to a list of
// underlying database transactions.
type RepoTx []Tx

// Commit commits all underlying database transactions.
func (c RepoTx) Commit() error {
	for _, tx := range c {
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Rollback aborts all underlying database transactions. It attempts every
// rollback and returns the combined errors.
func (c RepoTx) Rollback() error {
	var errs []error
	for _, tx := range c {
		errs = append(errs, tx.Rollback())
	}
	return errors.Combine(errs...)
}

// AddPackage adds packages to all underlying databases.
func (c RepoTx) AddPackage(pkgs ...*Package) error {
	for _, tx := range c {
		if err := tx.AddPackage(pkgs...); err != nil {
			return err
		}
	}
	return nil
}
