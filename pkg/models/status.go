package models

// DomainStatus represents how a single base domain finished within a run
type DomainStatus string

const (
	DomainStatusUnset        DomainStatus = ""              // Zero value = unset/unknown
	DomainStatusSuccess      DomainStatus = "success"       // At least one entry produced
	DomainStatusFailed       DomainStatus = "failed"        // No entries and errors are not ignored
	DomainStatusEmptyIgnored DomainStatus = "empty_ignored" // No entries, skipped because ignore_errors is set
	DomainStatusCancelled    DomainStatus = "cancelled"     // Run was cancelled or hit its wall-clock budget
)

// String implements fmt.Stringer for logging
func (s DomainStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known terminal value
func (s DomainStatus) IsValid() bool {
	switch s {
	case DomainStatusSuccess, DomainStatusFailed, DomainStatusEmptyIgnored, DomainStatusCancelled:
		return true
	}
	return false
}
