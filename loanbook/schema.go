package loanbook

import (
	"github.com/andreyvit/loanstore"
)

// SchemaVersion is the current schema version. Version history:
//
//	1: companies, users, customers, loans, mappings, collections
//	2: companyId indices on customers, loans, mappings, collections
//	3: agentId index on mappings
const SchemaVersion = 3

const (
	CompaniesCollection   = "companies"
	UsersCollection       = "users"
	CustomersCollection   = "customers"
	LoansCollection       = "loans"
	MappingsCollection    = "mappings"
	CollectionsCollection = "collections"

	SettingsMap = "settings"
)

var naturalKey = []string{"customerId", "loanId"}

type schemaDef struct {
	scm            *loanstore.Schema
	legacyImported *loanstore.SKey
	session        *loanstore.SKey
}

var current = defineSchema(SchemaVersion)

// Schema returns the current schema.
func Schema() *loanstore.Schema {
	return current.scm
}

// defineSchema declares the schema as of version ver. Older versions exist for
// upgrade tests.
func defineSchema(ver uint64) *schemaDef {
	scm := loanstore.NewSchema(ver)
	tenant := func(idx *loanstore.Index) *loanstore.Index {
		return idx.Since(2)
	}

	loanstore.DefineCollection[Company](scm, CompaniesCollection, func(b *loanstore.CollectionBuilder[Company]) {
		b.AddIndex(loanstore.AddIndex("name", "name"))
		b.AddIndex(loanstore.AddIndex("email", "email").Unique())
	})
	loanstore.DefineCollection[User](scm, UsersCollection, func(b *loanstore.CollectionBuilder[User]) {
		b.AddIndex(loanstore.AddIndex("companyId", "companyId"))
		b.AddIndex(loanstore.AddIndex("email", "email"))
		b.AddIndex(loanstore.AddIndex("role", "role"))
		b.AddIndex(loanstore.AddIndex("companyEmail", "companyId", "email").Unique())
		b.SuppressContentWhenLogging()
	})
	loanstore.DefineCollection[Customer](scm, CustomersCollection, func(b *loanstore.CollectionBuilder[Customer]) {
		b.AddIndex(loanstore.AddIndex("name", "name"))
		if ver >= 2 {
			b.AddIndex(tenant(loanstore.AddIndex("companyId", "companyId")))
		}
	})
	loanstore.DefineCollection[Loan](scm, LoansCollection, func(b *loanstore.CollectionBuilder[Loan]) {
		if ver >= 2 {
			b.AddIndex(tenant(loanstore.AddIndex("companyId", "companyId")))
		}
	})
	loanstore.DefineCollection[Mapping](scm, MappingsCollection, func(b *loanstore.CollectionBuilder[Mapping]) {
		b.AddIndex(loanstore.AddIndex("customerId", "customerId"))
		b.AddIndex(loanstore.AddIndex("loanId", "loanId"))
		b.AddIndex(loanstore.AddIndex("customerLoan", naturalKey...))
		if ver >= 2 {
			b.AddIndex(tenant(loanstore.AddIndex("companyId", "companyId")))
		}
		if ver >= 3 {
			b.AddIndex(loanstore.AddIndex("agentId", "agentId").Since(3))
		}
	})
	loanstore.DefineCollection[Collection](scm, CollectionsCollection, func(b *loanstore.CollectionBuilder[Collection]) {
		b.AddIndex(loanstore.AddIndex("customerId", "customerId"))
		b.AddIndex(loanstore.AddIndex("loanId", "loanId"))
		b.AddIndex(loanstore.AddIndex("collectionDate", "collectionDate"))
		b.AddIndex(loanstore.AddIndex("customerLoan", naturalKey...))
		if ver >= 2 {
			b.AddIndex(tenant(loanstore.AddIndex("companyId", "companyId")))
		}
	})

	settings := loanstore.AddKVMap(scm, SettingsMap)
	return &schemaDef{
		scm:            scm,
		legacyImported: loanstore.AddSingletonKey(settings, "legacy_imported"),
		session:        loanstore.AddSingletonKey(settings, "collection_session").JSON(),
	}
}
