package legacy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/andreyvit/loanstore/loanbook"
)

var legacyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("loanbook:legacy"))

// header holds what every legacy record carries, or gets defaulted.
type header struct {
	id        string
	companyID string
	createdAt time.Time
}

// readHeader fills in the id and tenant of a legacy record. Records without an
// id get one derived from their content, so re-imports land on the same row.
func (im *Importer) readHeader(bucket string, r gjson.Result) (header, error) {
	h := header{
		id:        r.Get("id").String(),
		companyID: r.Get("companyId").String(),
		createdAt: parseTime(r.Get("createdAt").String()),
	}
	if h.id == "" {
		h.id = uuid.NewSHA1(legacyNamespace, []byte(bucket+"\x00"+r.Raw)).String()
	}
	if h.companyID == "" {
		h.companyID = im.opt.DefaultCompanyID
	}
	if h.companyID == "" {
		return h, fmt.Errorf("%w: %s", ErrNoTenant, h.id)
	}
	return h, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// parseDate accepts both plain dates and full ISO timestamps.
func parseDate(s string) loanbook.Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == 'T' {
		s = s[:10]
	}
	return loanbook.Date(s)
}

// parseAmount reads a number that may have been stored as a JSON number or
// string. Missing and empty values are zero.
func parseAmount(r gjson.Result, path string) (decimal.Decimal, error) {
	v := r.Get(path)
	s := strings.TrimSpace(v.String())
	if !v.Exists() || s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

func (im *Importer) importCustomer(ctx context.Context, r gjson.Result) error {
	h, err := im.readHeader(CustomersBucket, r)
	if err != nil {
		return err
	}
	_, err = im.dst.SaveCustomer(ctx, &loanbook.Customer{
		ID:        h.id,
		CompanyID: h.companyID,
		Name:      r.Get("name").String(),
		Phone:     r.Get("phone").String(),
		Address:   r.Get("address").String(),
		Email:     r.Get("email").String(),
		CreatedAt: h.createdAt,
	})
	return err
}

func (im *Importer) importLoan(ctx context.Context, r gjson.Result) error {
	h, err := im.readHeader(LoansBucket, r)
	if err != nil {
		return err
	}
	amount, err := parseAmount(r, "loanAmount")
	if err != nil {
		return err
	}
	daily, err := parseAmount(r, "dailyCollection")
	if err != nil {
		return err
	}
	_, err = im.dst.SaveLoan(ctx, &loanbook.Loan{
		ID:              h.id,
		CompanyID:       h.companyID,
		LoanAmount:      amount,
		DailyCollection: daily,
		Description:     r.Get("description").String(),
		CreatedAt:       h.createdAt,
	})
	return err
}

func (im *Importer) importMapping(ctx context.Context, r gjson.Result) error {
	h, err := im.readHeader(MappingsBucket, r)
	if err != nil {
		return err
	}
	_, err = im.dst.SaveMapping(ctx, &loanbook.Mapping{
		ID:         h.id,
		CompanyID:  h.companyID,
		CustomerID: r.Get("customerId").String(),
		LoanID:     r.Get("loanId").String(),
		AgentID:    r.Get("agentId").String(),
		StartDate:  parseDate(r.Get("startDate").String()),
		CreatedAt:  h.createdAt,
	})
	return err
}

func (im *Importer) importCollection(ctx context.Context, r gjson.Result) error {
	h, err := im.readHeader(RecordsBucket, r)
	if err != nil {
		return err
	}
	amount, err := parseAmount(r, "amount")
	if err != nil {
		return err
	}
	_, err = im.dst.SaveCollection(ctx, &loanbook.Collection{
		ID:             h.id,
		CompanyID:      h.companyID,
		CustomerID:     r.Get("customerId").String(),
		LoanID:         r.Get("loanId").String(),
		AgentID:        r.Get("agentId").String(),
		Amount:         amount,
		CollectionDate: parseDate(r.Get("collectionDate").String()),
		Notes:          r.Get("notes").String(),
		CreatedAt:      h.createdAt,
	})
	return err
}
