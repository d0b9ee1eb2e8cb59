package model

type TransactionStatus string
type CallbackEventSource string
type CallbackEventOutcome string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
	TransactionStatusExpired    TransactionStatus = "expired"
)

// Terminal statuses never change once stored.
var TerminalStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusFailed,
	TransactionStatusCancelled,
	TransactionStatusExpired,
}

var NonTerminalStatuses = []TransactionStatus{
	TransactionStatusPending,
	TransactionStatusProcessing,
}

func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusExpired:
		return true
	}
	return false
}

func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing:
		return true
	}
	return s.IsTerminal()
}

// StatusMessage is the payer-facing text for a status.
func StatusMessage(s TransactionStatus) string {
	switch s {
	case TransactionStatusPending:
		return "Payment is pending. Please complete the payment on your mobile device."
	case TransactionStatusProcessing:
		return "Payment is being processed. Please wait..."
	case TransactionStatusCompleted:
		return "Payment completed successfully!"
	case TransactionStatusFailed:
		return "Payment failed. Please try again."
	case TransactionStatusCancelled:
		return "Payment was cancelled."
	case TransactionStatusExpired:
		return "Payment has expired. Please try again."
	default:
		return "Unknown payment status."
	}
}

// Zoyktech mobile-money network ids
const (
	ProviderAirtelMoney = 289
	ProviderMTNMoney    = 237
	ProviderSimulator   = 14
)

func ProviderName(id int) string {
	switch id {
	case ProviderAirtelMoney:
		return "Airtel Money"
	case ProviderMTNMoney:
		return "MTN Mobile Money"
	case ProviderSimulator:
		return "Simulator"
	default:
		return "Unknown"
	}
}

const (
	CallbackEventSourceCallback CallbackEventSource = "callback"
	CallbackEventSourceSweep    CallbackEventSource = "sweep"
)

const (
	CallbackEventOutcomeTransitioned CallbackEventOutcome = "transitioned"
	CallbackEventOutcomeAlreadyFinal CallbackEventOutcome = "already_final"
	CallbackEventOutcomeRejected     CallbackEventOutcome = "rejected"
	CallbackEventOutcomeError        CallbackEventOutcome = "error"
)
