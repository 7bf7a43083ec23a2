package evidence

import "strings"

// Kind is the type of an evidence document.
type Kind int

const (
	KindContract Kind = iota
	KindInvoices
	KindUsage
)

// String returns the label used for the kind in manifests and fallback ids.
func (k Kind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindInvoices:
		return "invoices"
	case KindUsage:
		return "usage"
	}
	return "unknown"
}

// Kinds returns all document kinds in bundle order.
func Kinds() []Kind {
	return []Kind{KindContract, KindInvoices, KindUsage}
}

// Document is an immutable evidence text keyed by its identifier.
type Document struct {
	ID   string
	Text string
}

// Empty reports whether the document carries no text.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// Bundle holds the three documents of a brief request.
type Bundle struct {
	Contract Document
	Invoices Document
	Usage    Document
}

// Get returns the document of the given kind.
func (b Bundle) Get(k Kind) Document {
	switch k {
	case KindInvoices:
		return b.Invoices
	case KindUsage:
		return b.Usage
	default:
		return b.Contract
	}
}

// DocIDs returns the contract, invoices and usage ids in that order.
func (b Bundle) DocIDs() []string {
	return []string{b.Contract.ID, b.Invoices.ID, b.Usage.ID}
}
