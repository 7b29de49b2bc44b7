package model

import (
	"fmt"
	"strings"
)

// Hosting is the deployment type of a license or transaction.
type Hosting uint8

const (
	HostingServer Hosting = iota + 1
	HostingDataCenter
	HostingCloud
)

func (h Hosting) String() string {
	switch h {
	case HostingServer:
		return "Server"
	case HostingDataCenter:
		return "Data Center"
	case HostingCloud:
		return "Cloud"
	default:
		return "Unknown"
	}
}

// ParseHosting accepts the marketplace spellings, case-insensitively.
func ParseHosting(s string) (Hosting, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "server":
		return HostingServer, nil
	case "data center", "datacenter":
		return HostingDataCenter, nil
	case "cloud":
		return HostingCloud, nil
	default:
		return 0, fmt.Errorf("%w: unknown hosting %q", ErrInvalidInput, s)
	}
}

// LicenseStatus is the marketplace status of a license.
type LicenseStatus uint8

const (
	StatusActive LicenseStatus = iota + 1
	StatusInactive
)

func (s LicenseStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// ParseLicenseStatus maps marketplace statuses; "cancelled" counts as inactive.
func ParseLicenseStatus(s string) (LicenseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "inactive", "cancelled":
		return StatusInactive, nil
	default:
		return 0, fmt.Errorf("%w: unknown license status %q", ErrInvalidInput, s)
	}
}

// SaleType classifies a transaction.
type SaleType uint8

const (
	SaleNew SaleType = iota + 1
	SaleRenewal
	SaleUpgrade
	SaleRefund
	SaleDowngrade
)

func (t SaleType) String() string {
	switch t {
	case SaleNew:
		return "New"
	case SaleRenewal:
		return "Renewal"
	case SaleUpgrade:
		return "Upgrade"
	case SaleRefund:
		return "Refund"
	case SaleDowngrade:
		return "Downgrade"
	default:
		return "Unknown"
	}
}

// ParseSaleType rejects anything outside the closed set.
func ParseSaleType(s string) (SaleType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new":
		return SaleNew, nil
	case "renewal":
		return SaleRenewal, nil
	case "upgrade":
		return SaleUpgrade, nil
	case "refund":
		return SaleRefund, nil
	case "downgrade":
		return SaleDowngrade, nil
	default:
		return 0, fmt.Errorf("%w: unknown sale type %q", ErrInvalidInput, s)
	}
}

// ContactRole is the role a contact plays on a marketplace record.
type ContactRole uint8

const (
	RoleTechnical ContactRole = iota + 1
	RoleBilling
	RolePartner
)

func (r ContactRole) String() string {
	switch r {
	case RoleTechnical:
		return "technical"
	case RoleBilling:
		return "billing"
	case RolePartner:
		return "partner"
	default:
		return "unknown"
	}
}

// ParseContactRole maps a role name.
func ParseContactRole(s string) (ContactRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "technical", "tech":
		return RoleTechnical, nil
	case "billing":
		return RoleBilling, nil
	case "partner":
		return RolePartner, nil
	default:
		return 0, fmt.Errorf("%w: unknown contact role %q", ErrInvalidInput, s)
	}
}
