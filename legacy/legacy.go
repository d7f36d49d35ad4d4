// Package legacy imports the flat JSON buckets left by the old single-tenant
// version of the app. The import runs once: a flag in the store marks it done.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"github.com/andreyvit/loanstore/loanbook"
)

const (
	CustomersBucket = "collection_customers"
	LoansBucket     = "collection_loans"
	MappingsBucket  = "collection_mappings"
	RecordsBucket   = "collection_records"
)

var ErrNoTenant = errors.New("legacy record has no companyId and no default company is configured")

// Source reads a legacy bucket, a JSON array of records. Absent buckets read as nil.
type Source interface {
	ReadBucket(name string) ([]byte, error)
}

// DirSource reads <dir>/<bucket>.json files.
type DirSource string

func (d DirSource) ReadBucket(name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(string(d), name+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

type MapSource map[string]string

func (m MapSource) ReadBucket(name string) ([]byte, error) {
	s, ok := m[name]
	if !ok {
		return nil, nil
	}
	return []byte(s), nil
}

// Target is where imported records go; *loanbook.Store implements it.
type Target interface {
	LegacyImported(ctx context.Context) (bool, error)
	MarkLegacyImported(ctx context.Context) error
	SaveCustomer(ctx context.Context, customer *loanbook.Customer) (*loanbook.Customer, error)
	SaveLoan(ctx context.Context, loan *loanbook.Loan) (*loanbook.Loan, error)
	SaveMapping(ctx context.Context, mapping *loanbook.Mapping) (*loanbook.Mapping, error)
	SaveCollection(ctx context.Context, collection *loanbook.Collection) (*loanbook.Collection, error)
}

type Options struct {
	// DefaultCompanyID adopts records that predate tenants.
	DefaultCompanyID string
	Logger           *slog.Logger
}

type Result struct {
	Skipped     bool
	Customers   int
	Loans       int
	Mappings    int
	Collections int
}

type Importer struct {
	src    Source
	dst    Target
	opt    Options
	logger *slog.Logger
}

func New(src Source, dst Target, opt Options) *Importer {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Importer{src: src, dst: dst, opt: opt, logger: logger}
}

// Run imports every legacy bucket unless a previous run has completed. Records
// are saved one by one; the done flag is only set once all of them are in, so
// a failed run is retried in full next time.
func (im *Importer) Run(ctx context.Context) (Result, error) {
	var res Result
	done, err := im.dst.LegacyImported(ctx)
	if err != nil {
		return res, err
	}
	if done {
		im.logger.Debug("legacy: already imported")
		return Result{Skipped: true}, nil
	}

	steps := []struct {
		bucket string
		count  *int
		save   func(ctx context.Context, r gjson.Result) error
	}{
		{CustomersBucket, &res.Customers, im.importCustomer},
		{LoansBucket, &res.Loans, im.importLoan},
		{MappingsBucket, &res.Mappings, im.importMapping},
		{RecordsBucket, &res.Collections, im.importCollection},
	}
	for _, step := range steps {
		raw, err := im.src.ReadBucket(step.bucket)
		if err != nil {
			return res, fmt.Errorf("legacy: reading %s: %w", step.bucket, err)
		}
		if raw == nil {
			im.logger.Debug("legacy: bucket absent", "bucket", step.bucket)
			continue
		}
		if !gjson.ValidBytes(raw) {
			return res, fmt.Errorf("legacy: %s is not valid JSON", step.bucket)
		}
		arr := gjson.ParseBytes(raw)
		if !arr.IsArray() {
			return res, fmt.Errorf("legacy: %s is not a JSON array", step.bucket)
		}
		for i, r := range arr.Array() {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := step.save(ctx, r); err != nil {
				return res, fmt.Errorf("legacy: %s[%d]: %w", step.bucket, i, err)
			}
			*step.count++
		}
	}

	if err := im.dst.MarkLegacyImported(ctx); err != nil {
		return res, err
	}
	im.logger.Info("legacy: imported", "customers", res.Customers, "loans", res.Loans, "mappings", res.Mappings, "collections", res.Collections)
	return res, nil
}
