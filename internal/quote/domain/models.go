package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ContractType selects the quote workflow: contract quotes nest per-vendor
// distributions, pack quotes carry a flat asset list.
type ContractType string

const (
	ContractTypeContract ContractType = "contract"
	ContractTypePack     ContractType = "pack"
)

func (t ContractType) Valid() bool {
	return t == ContractTypeContract || t == ContractTypePack
}

// Quote is the aggregate root. It survives across versions; editable data
// lives on the versions themselves.
type Quote struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID   `gorm:"not null;uniqueIndex:ux_quotes_org_number,priority:1" json:"organization_id"`
	OwnerID         snowflake.ID   `gorm:"not null;index" json:"owner_id"`
	QuoteNumber     int64          `gorm:"not null;uniqueIndex:ux_quotes_org_number,priority:2" json:"quote_number"`
	ContractType    ContractType   `gorm:"not null" json:"contract_type"`
	CustomerName    string         `gorm:"not null" json:"customer_name"`
	CustomerCountry string         `gorm:"not null" json:"customer_country"`
	ActiveVersionID snowflake.ID   `gorm:"not null" json:"active_version_id"`
	SubmittedAt     *time.Time     `json:"submitted_at,omitempty"`
	Alive           bool           `gorm:"not null;default:true" json:"alive"`
	Active          bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (q *Quote) Submitted() bool {
	return q.SubmittedAt != nil
}

// QuoteState is the compact read model for workflow UIs.
type QuoteState struct {
	Stage           string       `json:"stage"`
	Status          string       `json:"status"`
	Alive           bool         `json:"alive"`
	Active          bool         `json:"active"`
	ActiveVersionID snowflake.ID `json:"active_version_id"`
}

// ValidationResult is the outcome of the submission gate.
type ValidationResult struct {
	IsPassed bool     `json:"is_passed"`
	Messages []string `json:"messages,omitempty"`
}

// ValidationGate decides whether a quote may be submitted. The default
// implementation lives in this service; deployments can swap it out.
type ValidationGate interface {
	Validate(ctx context.Context, quote *Quote) (ValidationResult, error)
}

// SubmissionError carries the gate's messages to the caller verbatim.
type SubmissionError struct {
	Messages []string
}

func (e *SubmissionError) Error() string {
	return "submission_blocked"
}

type CreateQuoteRequest struct {
	ContractType    ContractType
	CustomerName    string
	CustomerCountry string
	Currency        string
}

type Service interface {
	Create(ctx context.Context, req CreateQuoteRequest) (Quote, error)
	Get(ctx context.Context, id snowflake.ID) (Quote, error)
	GetState(ctx context.Context, id snowflake.ID) (QuoteState, error)
	Submit(ctx context.Context, id snowflake.ID) (Quote, error)
	Unravel(ctx context.Context, id snowflake.ID) (Quote, error)
	SetAliveness(ctx context.Context, id snowflake.ID, alive bool) (Quote, error)
	SetActiveness(ctx context.Context, id snowflake.ID, active bool) (Quote, error)
	Replicate(ctx context.Context, id snowflake.ID) (Quote, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrQuoteNotFound       = errors.New("quote_not_found")
	ErrQuoteSubmitted      = errors.New("quote_submitted")
	ErrQuoteDead           = errors.New("quote_dead")
	ErrInvalidContractType = errors.New("invalid_contract_type")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidActor        = errors.New("invalid_actor")
)
