package backend

import (
	"github.com/jrsteele09/quiz-admin/accounts"
	"github.com/jrsteele09/quiz-admin/internal/utils"
	"github.com/jrsteele09/quiz-admin/payments"
)

type wireUser struct {
	ID            utils.FlexString `json:"id"`
	FullName      string           `json:"full_name"`
	Email         string           `json:"email"`
	PhoneNumber   utils.FlexString `json:"phone_number"`
	CountryCode   utils.FlexString `json:"country_code"`
	ReferenceCode string           `json:"reference_code"`
	BusinessPlan  string           `json:"business_plan"`
	Gender        string           `json:"gender"`
	DOB           utils.FlexTime   `json:"dob"`
	Verified      utils.FlexBool   `json:"verified"`
	Coin          utils.FlexFloat  `json:"coin"`
	Status        string           `json:"status"`
	PauseStart    utils.FlexTime   `json:"pause_start"`
	BlockDate     utils.FlexTime   `json:"block_date"`
	Trust         utils.FlexBool   `json:"trust"`
	CreatedAt     utils.FlexTime   `json:"created_at"`
}

func (w wireUser) account() accounts.Account {
	return accounts.Account{
		ID:            string(w.ID),
		FullName:      w.FullName,
		Email:         w.Email,
		PhoneNumber:   string(w.PhoneNumber),
		CountryCode:   string(w.CountryCode),
		ReferenceCode: w.ReferenceCode,
		BusinessPlan:  w.BusinessPlan,
		Gender:        w.Gender,
		DOB:           w.DOB.Ptr(),
		Verified:      bool(w.Verified),
		Coin:          float64(w.Coin),
		Status:        accounts.NormalizeStatus(w.Status),
		PauseStart:    w.PauseStart.Ptr(),
		BlockDate:     w.BlockDate.Ptr(),
		Trust:         bool(w.Trust),
		CreatedAt:     w.CreatedAt.Ptr(),
	}
}

type wirePayment struct {
	ID          utils.FlexString `json:"id"`
	UserID      utils.FlexString `json:"user_id"`
	FullName    string           `json:"full_name"`
	Email       string           `json:"email"`
	Amount      utils.FlexFloat  `json:"amount"`
	Method      string           `json:"method"`
	UTRNumber   string           `json:"utr_number"`
	Status      string           `json:"status"`
	Due         utils.FlexBool   `json:"due"`
	PaymentDate utils.FlexTime   `json:"payment_date"`
}

func (w wirePayment) payment() payments.Payment {
	return payments.Payment{
		ID:          string(w.ID),
		UserID:      string(w.UserID),
		FullName:    w.FullName,
		Email:       w.Email,
		Amount:      float64(w.Amount),
		Method:      w.Method,
		UTRNumber:   w.UTRNumber,
		Status:      w.Status,
		Due:         bool(w.Due),
		PaymentDate: w.PaymentDate.Ptr(),
	}
}
