package loanbook

import (
	"context"

	"github.com/andreyvit/loanstore"
)

// IntegrityReport lists records whose references no longer resolve.
type IntegrityReport struct {
	OrphanMappings    []*Mapping
	OrphanCollections []*Collection
}

func (r *IntegrityReport) OK() bool {
	return len(r.OrphanMappings) == 0 && len(r.OrphanCollections) == 0
}

// CheckIntegrity looks for mappings whose customer or loan is gone, and
// collections whose customer is gone or whose mapping is gone while the loan
// still exists. Collections of a deleted loan are expected and not reported.
// An empty companyID checks every company.
func (s *Store) CheckIntegrity(ctx context.Context, companyID string) (*IntegrityReport, error) {
	report := &IntegrityReport{}
	err := s.db.Read(ctx, func(tx *loanstore.Tx) error {
		mappings, err := tenantRows[Mapping](tx, companyID)
		if err != nil {
			return err
		}
		for _, m := range mappings {
			if !loanstore.Exists[Customer](tx, m.CustomerID) || !loanstore.Exists[Loan](tx, m.LoanID) {
				report.OrphanMappings = append(report.OrphanMappings, m)
				s.logger.Warn("loanbook: orphaned mapping", "mapping", m.ID, "company", m.CompanyID, "customer", m.CustomerID, "loan", m.LoanID)
			}
		}

		collections, err := tenantRows[Collection](tx, companyID)
		if err != nil {
			return err
		}
		for _, c := range collections {
			orphan := !loanstore.Exists[Customer](tx, c.CustomerID)
			if !orphan && loanstore.Exists[Loan](tx, c.LoanID) {
				mapped, err := loanstore.QueryByCompoundKey[Mapping](tx, naturalKey, []string{c.CustomerID, c.LoanID})
				if err != nil {
					return err
				}
				orphan = len(mapped) == 0
			}
			if orphan {
				report.OrphanCollections = append(report.OrphanCollections, c)
				s.logger.Warn("loanbook: orphaned collection", "collection", c.ID, "company", c.CompanyID, "customer", c.CustomerID, "loan", c.LoanID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func tenantRows[Row any](tx *loanstore.Tx, companyID string) ([]*Row, error) {
	if companyID == "" {
		return loanstore.All[Row](tx)
	}
	return loanstore.QueryByTenant[Row](tx, companyID)
}
