package domain

import (
	"strconv"
	"strings"
)

// Column headers as they appear in the ticket export. In a raw export the
// SLA column holds the ticket creation date; in a generated report it holds
// the age in days and the creation date moves to Created Date.
const (
	ColCaseNumber    = "Case Number"
	ColCreated       = "Created Date"
	ColSLA           = "SLA"
	ColCustomerName  = "Customer Name"
	ColCustomerPhone = "Customer Phone"
	ColStreet        = "Street"
	ColPostalCode    = "Zip/Postal Code"
	ColComplaint     = "Customer Complaint"
	ColProduct       = "Product Description"
	ColStatus        = "LineItem Status"
	ColTechnician    = "Technician Name"
	ColRemarks       = "remarks"
)

const (
	StatusNew       = "New"
	StatusCompleted = "Completed"

	// NotFoundRemark is written when a ticket has no annotation in the source snapshot.
	NotFoundRemark = "0/Not found"

	GrandTotal = "Grand Total"
)

// RequiredColumns must all be present in a ticket export.
var RequiredColumns = []string{
	ColCaseNumber,
	ColSLA,
	ColCustomerName,
	ColCustomerPhone,
	ColStreet,
	ColPostalCode,
	ColComplaint,
	ColProduct,
	ColStatus,
	ColTechnician,
}

// DetailColumns is the column order of the detail sheet.
var DetailColumns = []string{
	ColCaseNumber,
	ColSLA,
	ColCreated,
	ColCustomerName,
	ColCustomerPhone,
	ColStreet,
	ColPostalCode,
	ColComplaint,
	ColProduct,
	ColStatus,
	ColTechnician,
	ColRemarks,
}

type Record struct {
	CaseNumber    string
	CustomerName  string
	CustomerPhone string
	Street        string
	PostalCode    string
	Complaint     string
	Product       string
	Status        string
	Technician    string
	Created       string // raw creation date text
	Age           *int // whole days before the reference date; nil when Created does not parse
	Remarks       string
	HasRemarks    bool
	Extra         map[string]string
}

// Field returns the value stored under an export column name.
func (r Record) Field(col string) string {
	switch col {
	case ColCaseNumber:
		return r.CaseNumber
	case ColCreated:
		return r.Created
	case ColSLA:
		return r.AgeLabel()
	case ColCustomerName:
		return r.CustomerName
	case ColCustomerPhone:
		return r.CustomerPhone
	case ColStreet:
		return r.Street
	case ColPostalCode:
		return r.PostalCode
	case ColComplaint:
		return r.Complaint
	case ColProduct:
		return r.Product
	case ColStatus:
		return r.Status
	case ColTechnician:
		return r.Technician
	case ColRemarks:
		return r.Remarks
	}
	return r.Extra[col]
}

// SetField is the inverse of Field. Unknown columns land in Extra.
func (r *Record) SetField(col, val string) {
	switch col {
	case ColCaseNumber:
		r.CaseNumber = strings.TrimSpace(val)
	case ColCreated:
		r.Created = val
	case ColSLA:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			r.Age = &n
			return
		}
		if r.Created == "" {
			r.Created = val
		}
	case ColCustomerName:
		r.CustomerName = val
	case ColCustomerPhone:
		r.CustomerPhone = val
	case ColStreet:
		r.Street = val
	case ColPostalCode:
		r.PostalCode = val
	case ColComplaint:
		r.Complaint = val
	case ColProduct:
		r.Product = val
	case ColStatus:
		r.Status = strings.TrimSpace(val)
	case ColTechnician:
		r.Technician = val
	case ColRemarks:
		r.Remarks = val
		r.HasRemarks = true
	default:
		r.setExtra(col, val)
	}
}

// Clone returns a copy that shares no maps or pointers with r.
func (r Record) Clone() Record {
	out := r
	if r.Age != nil {
		age := *r.Age
		out.Age = &age
	}
	if r.Extra != nil {
		out.Extra = make(map[string]string, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func (r *Record) setExtra(col, val string) {
	if r.Extra == nil {
		r.Extra = make(map[string]string)
	}
	r.Extra[col] = val
}

// AgeLabel renders the age metric, empty when unknown.
func (r Record) AgeLabel() string {
	if r.Age == nil {
		return ""
	}
	return strconv.Itoa(*r.Age)
}

// Dataset is an ordered set of records sharing one header row.
type Dataset struct {
	Columns []string
	Records []Record
}

func (d Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (d Dataset) Len() int { return len(d.Records) }

// ReconciliationResult carries the updated target and the identifiers whose remark changed.
type ReconciliationResult struct {
	Target     Dataset
	Changed    []string
	Protected  int
	NotFound   int
	Unchanged  int
	BackupPath string

	changedSet map[string]struct{}
}

func (r *ReconciliationResult) MarkChanged(id string) {
	if r.changedSet == nil {
		r.changedSet = make(map[string]struct{})
	}
	if _, ok := r.changedSet[id]; ok {
		return
	}
	r.changedSet[id] = struct{}{}
	r.Changed = append(r.Changed, id)
}

func (r ReconciliationResult) IsChanged(id string) bool {
	_, ok := r.changedSet[id]
	return ok
}

// ChangedSet returns a copy of the changed identifiers as a lookup set.
func (r ReconciliationResult) ChangedSet() map[string]bool {
	out := make(map[string]bool, len(r.Changed))
	for _, id := range r.Changed {
		out[id] = true
	}
	return out
}
