package loanbook

import (
	"context"

	"github.com/andreyvit/loanstore"
)

func deleteWhere(tx *loanstore.Tx, collection string, fields []string, values ...string) (int, error) {
	coll, err := tx.Schema().CollectionNamed(collection)
	if err != nil {
		return 0, err
	}
	return tx.DeleteWhere(coll, fields, values)
}

// DeleteCustomer removes the customer along with its mappings and collections.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	var mappings, collections int
	err := s.db.Write(ctx, func(tx *loanstore.Tx) error {
		if _, err := loanstore.DeleteByKey[Customer](tx, id); err != nil {
			return err
		}
		var err error
		mappings, err = deleteWhere(tx, MappingsCollection, []string{"customerId"}, id)
		if err != nil {
			return err
		}
		collections, err = deleteWhere(tx, CollectionsCollection, []string{"customerId"}, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("loanbook: customer deleted", "customer", id, "mappings", mappings, "collections", collections)
	return nil
}

// DeleteLoan removes the loan and its mappings. Collections recorded against
// the loan stay as payment history.
func (s *Store) DeleteLoan(ctx context.Context, id string) error {
	var mappings int
	err := s.db.Write(ctx, func(tx *loanstore.Tx) error {
		if _, err := loanstore.DeleteByKey[Loan](tx, id); err != nil {
			return err
		}
		var err error
		mappings, err = deleteWhere(tx, MappingsCollection, []string{"loanId"}, id)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("loanbook: loan deleted", "loan", id, "mappings", mappings)
	return nil
}

// DeleteMapping removes every mapping of the customer and loan pair, then
// every collection recorded against it.
func (s *Store) DeleteMapping(ctx context.Context, customerID, loanID string) error {
	var mappings, collections int
	err := s.db.Write(ctx, func(tx *loanstore.Tx) error {
		var err error
		mappings, err = deleteWhere(tx, MappingsCollection, naturalKey, customerID, loanID)
		if err != nil {
			return err
		}
		collections, err = deleteWhere(tx, CollectionsCollection, naturalKey, customerID, loanID)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("loanbook: mapping deleted", "customer", customerID, "loan", loanID, "mappings", mappings, "collections", collections)
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		_, err := loanstore.DeleteByKey[User](tx, id)
		return err
	})
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	return s.db.Write(ctx, func(tx *loanstore.Tx) error {
		_, err := loanstore.DeleteByKey[Collection](tx, id)
		return err
	})
}
