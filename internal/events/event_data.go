package events

// EventData is the interface that all event data types must implement.
// This allows for type-safe event data while maintaining flexibility.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TransactionExecutedData contains data for TransactionExecuted events
type TransactionExecutedData struct {
	TransactionID  string `json:"transaction_id"`
	AgentID        string `json:"agent_id"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Recipient      string `json:"recipient"`
	SettlementHash string `json:"settlement_hash,omitempty"`
}

// EventType returns the event type for TransactionExecutedData
func (d *TransactionExecutedData) EventType() EventType { return TransactionExecuted }

// TransactionFailedData contains data for TransactionFailed events
type TransactionFailedData struct {
	TransactionID string `json:"transaction_id"`
	AgentID       string `json:"agent_id"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason"`
}

// EventType returns the event type for TransactionFailedData
func (d *TransactionFailedData) EventType() EventType { return TransactionFailed }

// FundsLockedData contains data for FundsLocked events
type FundsLockedData struct {
	AgentID string `json:"agent_id"`
	Amount  string `json:"amount"`
	Purpose string `json:"purpose"`
}

// EventType returns the event type for FundsLockedData
func (d *FundsLockedData) EventType() EventType { return FundsLocked }

// FundsUnlockedData contains data for FundsUnlocked events
type FundsUnlockedData struct {
	AgentID string `json:"agent_id"`
	Amount  string `json:"amount"`
}

// EventType returns the event type for FundsUnlockedData
func (d *FundsUnlockedData) EventType() EventType { return FundsUnlocked }

// BudgetUpdatedData contains data for BudgetUpdated events
type BudgetUpdatedData struct {
	AgentID   string `json:"agent_id"`
	Category  string `json:"category"`
	Spent     string `json:"spent"`
	Remaining string `json:"remaining"`
}

// EventType returns the event type for BudgetUpdatedData
func (d *BudgetUpdatedData) EventType() EventType { return BudgetUpdated }

// RevenueRecordedData contains data for RevenueRecorded events
type RevenueRecordedData struct {
	TransactionID string   `json:"transaction_id"`
	Revenue       string   `json:"revenue"`
	RealizedROI   *float64 `json:"realized_roi,omitempty"`
}

// EventType returns the event type for RevenueRecordedData
func (d *RevenueRecordedData) EventType() EventType { return RevenueRecorded }

// SystemHaltedData contains data for SystemHalted events
type SystemHaltedData struct {
	Reason   string `json:"reason"`
	Details  string `json:"details"`
	HaltedAt string `json:"halted_at"`
}

// EventType returns the event type for SystemHaltedData
func (d *SystemHaltedData) EventType() EventType { return SystemHalted }

// SystemPausedData contains data for SystemPaused events
type SystemPausedData struct {
	Details string `json:"details,omitempty"`
}

// EventType returns the event type for SystemPausedData
func (d *SystemPausedData) EventType() EventType { return SystemPaused }

// SystemResumedData contains data for SystemResumed events
type SystemResumedData struct{}

// EventType returns the event type for SystemResumedData
func (d *SystemResumedData) EventType() EventType { return SystemResumed }

// OpportunityDeclinedData contains data for OpportunityDeclined events
type OpportunityDeclinedData struct {
	OpportunityID string `json:"opportunity_id"`
	Reasoning     string `json:"reasoning"`
}

// EventType returns the event type for OpportunityDeclinedData
func (d *OpportunityDeclinedData) EventType() EventType { return OpportunityDeclined }
