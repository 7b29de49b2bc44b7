package dataset

import "github.com/shopspring/decimal"

// document is the on-disk dataset shape. Field names follow the marketplace API.
type document struct {
	Licenses     []licenseDoc     `json:"licenses"`
	Transactions []transactionDoc `json:"transactions"`
	Groups       [][]string       `json:"groups,omitempty"`
	Deals        []dealDoc        `json:"deals"`
	Contacts     []contactDoc     `json:"contacts,omitempty"`
}

type contactRefDoc struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type licenseDoc struct {
	ID               string          `json:"id"`
	AddonKey         string          `json:"addonKey"`
	Tier             int             `json:"tier"`
	Hosting          string          `json:"hosting"`
	Status           string          `json:"status"`
	MaintenanceStart string          `json:"maintenanceStart"`
	MaintenanceEnd   string          `json:"maintenanceEnd,omitempty"`
	Evaluation       bool            `json:"evaluation,omitempty"`
	Sandbox          bool            `json:"sandbox,omitempty"`
	Partner          string          `json:"partner,omitempty"`
	Contacts         []contactRefDoc `json:"contacts,omitempty"`
}

type transactionDoc struct {
	ID           string          `json:"id"`
	LicenseID    string          `json:"licenseId"`
	SaleDate     string          `json:"saleDate"`
	SaleType     string          `json:"saleType"`
	Tier         int             `json:"tier"`
	Hosting      string          `json:"hosting,omitempty"`
	VendorAmount decimal.Decimal `json:"vendorAmount"`
	Partner      string          `json:"partner,omitempty"`
	Contacts     []contactRefDoc `json:"contacts,omitempty"`
}

type dealDoc struct {
	ID             string          `json:"id"`
	Name           string          `json:"name,omitempty"`
	AddonKey       string          `json:"addonKey,omitempty"`
	Stage          string          `json:"stage"`
	Amount         decimal.Decimal `json:"amount"`
	CloseDate      string          `json:"closeDate,omitempty"`
	Tier           int             `json:"tier,omitempty"`
	Hosting        string          `json:"hosting,omitempty"`
	LicenseIDs     []string        `json:"licenseIds"`
	TransactionIDs []string        `json:"transactionIds,omitempty"`
	Contacts       []string        `json:"contacts,omitempty"`
	Companies      []string        `json:"companies,omitempty"`
	Partner        string          `json:"partner,omitempty"`
}

type contactDoc struct {
	Email       string   `json:"email"`
	OtherEmails []string `json:"otherEmails,omitempty"`
	Type        string   `json:"type"`
	Company     string   `json:"company,omitempty"`
}
