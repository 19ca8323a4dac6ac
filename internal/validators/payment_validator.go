package validators

type DepositRequest struct {
	Amount           float64 `json:"amount" validate:"required,amount"`
	GatewayPaymentID string  `json:"gateway_payment_id" validate:"required,min=4,max=128"`
	Provider         string  `json:"provider" validate:"omitempty,oneof=razorpay stripe"`
}

type DepositOrderRequest struct {
	Amount   float64 `json:"amount" validate:"required,amount"`
	Provider string  `json:"provider" validate:"omitempty,oneof=razorpay stripe"`
}

type BankAccountRequest struct {
	AccountNumber string `json:"account_number" validate:"required,account_number"`
	IFSCCode      string `json:"ifsc_code" validate:"required,ifsc_code"`
	AccountName   string `json:"account_name" validate:"required,min=2,max=100"`
	BankName      string `json:"bank_name" validate:"omitempty,max=100"`
}

type WithdrawalRequest struct {
	Amount        float64             `json:"amount" validate:"required,amount"`
	PaymentMethod string              `json:"payment_method" validate:"required,oneof=bank_transfer upi"`
	BankAccount   *BankAccountRequest `json:"bank_account" validate:"required_if=PaymentMethod bank_transfer"`
	UPIID         string              `json:"upi_id" validate:"required_if=PaymentMethod upi,upi_id"`
}

type WithdrawalDecisionRequest struct {
	AdminNotes string `json:"admin_notes" validate:"omitempty,max=500"`
}

type WithdrawalRejectRequest struct {
	AdminNotes string `json:"admin_notes" validate:"required,min=3,max=500"`
}

type PlanPurchaseRequest struct {
	PlanID           string `json:"plan_id" validate:"required,object_id"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required,min=4,max=128"`
	Provider         string `json:"provider" validate:"omitempty,oneof=razorpay stripe"`
}

// ValidateWithdrawal also sanitizes the free-text payout fields.
func ValidateWithdrawal(req *WithdrawalRequest) ValidationErrors {
	if req.BankAccount != nil {
		req.BankAccount.AccountName = SanitizeInput(req.BankAccount.AccountName)
		req.BankAccount.BankName = SanitizeInput(req.BankAccount.BankName)
	}
	return ValidateStruct(req)
}

func ValidateReject(req *WithdrawalRejectRequest) ValidationErrors {
	req.AdminNotes = SanitizeInput(req.AdminNotes)
	return ValidateStruct(req)
}
