package marketplace

// Code identifies an external marketplace.
type Code string

const (
	// CodeVinted represents the Vinted marketplace
	CodeVinted Code = "VINTED"
	// CodeEbay represents the eBay marketplace
	CodeEbay Code = "EBAY"
	// CodeEtsy represents the Etsy marketplace
	CodeEtsy Code = "ETSY"
)

// IsValid returns true if the marketplace code is valid
func (c Code) IsValid() bool {
	switch c {
	case CodeVinted, CodeEbay, CodeEtsy:
		return true
	default:
		return false
	}
}

// String returns the string representation of Code
func (c Code) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the marketplace
func (c Code) DisplayName() string {
	switch c {
	case CodeVinted:
		return "Vinted"
	case CodeEbay:
		return "eBay"
	case CodeEtsy:
		return "Etsy"
	default:
		return string(c)
	}
}

// AllCodes returns every supported marketplace code.
func AllCodes() []Code {
	return []Code{CodeVinted, CodeEbay, CodeEtsy}
}
