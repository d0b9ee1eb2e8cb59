package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/*
  zoyktech_transactions = one row per payment attempt sent to Zoyktech
  - provider_order_id is the join key with every callback
  - status only moves forward; terminal statuses are sticky
  - transaction_id (provider reference) is written once, on completion
*/

type Transaction struct {
	TransactionID uuid.UUID `gorm:"column:transaction_id;type:uuid;primaryKey" json:"transaction_id"`

	// Local references (course order)
	TransactionLocalOrderID string `gorm:"column:transaction_local_order_id;type:varchar(64);not null;index" json:"transaction_local_order_id"`
	TransactionCourseID     string `gorm:"column:transaction_course_id;type:varchar(64);not null;index" json:"transaction_course_id"`
	TransactionUserID       string `gorm:"column:transaction_user_id;type:varchar(64);not null;index" json:"transaction_user_id"`

	// Provider references
	TransactionProviderOrderID string  `gorm:"column:transaction_provider_order_id;type:varchar(100);not null;uniqueIndex:uq_zoyktech_tx_provider_order_id" json:"transaction_provider_order_id"`
	TransactionProviderRef     *string `gorm:"column:transaction_provider_ref;type:varchar(100)" json:"transaction_provider_ref"`
	TransactionProviderID      int     `gorm:"column:transaction_provider_id;not null" json:"transaction_provider_id"`

	// Money
	TransactionAmount   decimal.Decimal `gorm:"column:transaction_amount;type:numeric(12,2);not null" json:"transaction_amount"`
	TransactionCurrency string          `gorm:"column:transaction_currency;type:varchar(3);not null;default:'ZMW'" json:"transaction_currency"`

	// Payer snapshots (fixed at creation)
	TransactionPayerContact string  `gorm:"column:transaction_payer_contact;type:varchar(20);not null" json:"transaction_payer_contact"`
	TransactionPayerEmail   *string `gorm:"column:transaction_payer_email;type:varchar(255)" json:"transaction_payer_email"`
	TransactionPayerName    *string `gorm:"column:transaction_payer_name;type:varchar(255)" json:"transaction_payer_name"`
	TransactionCourseTitle  *string `gorm:"column:transaction_course_title;type:varchar(255)" json:"transaction_course_title"`

	TransactionStatus TransactionStatus `gorm:"column:transaction_status;type:varchar(20);not null;default:'pending';index" json:"transaction_status"`

	// Raw provider exchange (write-once)
	TransactionRawRequest  datatypes.JSON `gorm:"column:transaction_raw_request;type:jsonb" json:"transaction_raw_request,omitempty"`
	TransactionRawResponse datatypes.JSON `gorm:"column:transaction_raw_response;type:jsonb" json:"transaction_raw_response,omitempty"`

	TransactionCreatedAt time.Time `gorm:"column:transaction_created_at;not null;autoCreateTime" json:"transaction_created_at"`
	TransactionUpdatedAt time.Time `gorm:"column:transaction_updated_at;not null;autoUpdateTime;index" json:"transaction_updated_at"`
}

func (Transaction) TableName() string {
	return "zoyktech_transactions"
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TransactionID == uuid.Nil {
		t.TransactionID = uuid.New()
	}
	if t.TransactionStatus == "" {
		t.TransactionStatus = TransactionStatusPending
	}
	if t.TransactionCurrency == "" {
		t.TransactionCurrency = "ZMW"
	}
	return nil
}

func (t *Transaction) IsTerminal() bool {
	return t.TransactionStatus.IsTerminal()
}
