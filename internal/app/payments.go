package app

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"lydistories/internal/util"
	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

const (
	otpLength         = 6
	txnIDLength       = 12
	txnIDPrefix       = "TXN"
	maxTxnIDAttempts  = 3
	txnIDAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	simulatedProvider = "simulated mobile money"
)

// PaymentQuote is returned by InitiatePayment. The confirmation code
// travels in the response only because the provider is simulated; a
// real integration would deliver it over SMS instead.
type PaymentQuote struct {
	PaymentID     string  `json:"payment_id"`
	TransactionID string  `json:"transaction_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PhoneNumber   string  `json:"phone_number"`
	OTPHint       string  `json:"otp_hint"`
	Message       string  `json:"message"`
}

// PaymentReceipt is returned by ConfirmPayment once access is granted.
type PaymentReceipt struct {
	TransactionID string `json:"transaction_id"`
	ContentID     string `json:"content_id"`
	ContentTitle  string `json:"content_title"`
	Message       string `json:"message"`
}

// InitiatePayment starts a purchase: it freezes the content's current
// price on a pending payment row and issues the confirmation code.
// A user who already holds access cannot start another purchase.
func (a *App) InitiatePayment(user domain.User, contentID, phoneNumber string) (PaymentQuote, error) {
	contentID = strings.TrimSpace(contentID)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if contentID == "" {
		return PaymentQuote{}, ErrPaymentFields
	}
	// The duplicate-purchase check comes first: a user who already holds
	// access gets a conflict no matter what phone number they typed.
	granted, err := a.store.HasGrant(user.ID, contentID)
	if err != nil {
		return PaymentQuote{}, fmt.Errorf("check grant: %w", err)
	}
	if granted {
		return PaymentQuote{}, ErrAlreadyGranted
	}
	if phoneNumber == "" {
		return PaymentQuote{}, ErrPaymentFields
	}
	if !validPhoneNumber(phoneNumber) {
		return PaymentQuote{}, ErrInvalidPhone
	}
	content, ok, err := a.store.GetContent(contentID)
	if err != nil {
		return PaymentQuote{}, fmt.Errorf("load content: %w", err)
	}
	if !ok {
		return PaymentQuote{}, ErrContentNotFound
	}

	otp, err := generateNumericCode(otpLength)
	if err != nil {
		return PaymentQuote{}, fmt.Errorf("generate code: %w", err)
	}
	var payment domain.Payment
	for attempt := 0; attempt < maxTxnIDAttempts; attempt++ {
		txnID, genErr := generateTransactionID()
		if genErr != nil {
			return PaymentQuote{}, fmt.Errorf("generate transaction id: %w", genErr)
		}
		payment = domain.Payment{
			ID:            util.NewID(),
			UserID:        user.ID,
			ContentID:     content.ID,
			PhoneNumber:   phoneNumber,
			Amount:        content.Price,
			Currency:      domain.DefaultCurrency,
			TransactionID: txnID,
			OTPCode:       otp,
			Status:        domain.PaymentPending,
			CreatedAt:     time.Now().UTC(),
		}
		err = a.store.CreatePayment(payment)
		if !errors.Is(err, store.ErrDuplicate) {
			break
		}
		slog.Warn("transaction id collision, regenerating", "attempt", attempt+1)
	}
	if err != nil {
		return PaymentQuote{}, fmt.Errorf("create payment: %w", err)
	}

	return PaymentQuote{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      payment.Currency,
		PhoneNumber:   payment.PhoneNumber,
		OTPHint:       otp,
		Message:       fmt.Sprintf("Payment of %s %.0f initiated via %s. Enter the confirmation code to complete your purchase.", payment.Currency, payment.Amount, simulatedProvider),
	}, nil
}

// ConfirmPayment checks the confirmation code against the caller's
// pending payment and, on success, flips it to confirmed and grants
// access in a single transaction. A payment that is missing, owned by
// someone else, or already processed looks the same to the caller.
func (a *App) ConfirmPayment(user domain.User, paymentID, code string) (PaymentReceipt, error) {
	paymentID = strings.TrimSpace(paymentID)
	code = strings.TrimSpace(code)
	if paymentID == "" || code == "" {
		return PaymentReceipt{}, ErrConfirmFields
	}
	payment, ok, err := a.store.GetPaymentForUser(paymentID, user.ID)
	if err != nil {
		return PaymentReceipt{}, fmt.Errorf("load payment: %w", err)
	}
	if !ok || payment.Status != domain.PaymentPending {
		return PaymentReceipt{}, ErrPaymentNotFound
	}
	if payment.OTPCode != code {
		return PaymentReceipt{}, ErrInvalidOTP
	}
	flipped, err := a.store.ConfirmPaymentAndGrant(payment.ID, util.NewID())
	if err != nil {
		return PaymentReceipt{}, fmt.Errorf("confirm payment: %w", err)
	}
	if !flipped {
		// Lost a race with a concurrent confirmation of the same payment.
		return PaymentReceipt{}, ErrPaymentNotFound
	}

	title := ""
	if content, ok, err := a.store.GetContent(payment.ContentID); err == nil && ok {
		title = content.Title
	}
	slog.Info("payment confirmed",
		"payment_id", payment.ID,
		"transaction_id", payment.TransactionID,
		"user_id", user.ID,
		"content_id", payment.ContentID,
		"amount", payment.Amount)
	return PaymentReceipt{
		TransactionID: payment.TransactionID,
		ContentID:     payment.ContentID,
		ContentTitle:  title,
		Message:       "Payment confirmed. You now have full access.",
	}, nil
}

// PaymentHistory lists the caller's payments, newest first, with
// content titles joined in.
func (a *App) PaymentHistory(user domain.User) ([]domain.Payment, error) {
	payments, err := a.store.ListPaymentsByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// validPhoneNumber accepts Ugandan-style numbers: a local form with a
// leading zero or an international form with the +256 country code,
// digits only after the prefix.
func validPhoneNumber(phone string) bool {
	var rest string
	switch {
	case strings.HasPrefix(phone, "+256"):
		rest = phone[len("+256"):]
	case strings.HasPrefix(phone, "0"):
		rest = phone[1:]
	default:
		return false
	}
	if len(rest) < 8 {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// generateNumericCode returns n cryptographically random decimal digits.
func generateNumericCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// generateTransactionID returns a provider-style reference such as
// "TXN8F3K2M9Q1Z7B".
func generateTransactionID() (string, error) {
	chars := make([]byte, txnIDLength)
	for i := range chars {
		v, err := rand.Int(rand.Reader, big.NewInt(int64(len(txnIDAlphabet))))
		if err != nil {
			return "", err
		}
		chars[i] = txnIDAlphabet[v.Int64()]
	}
	return txnIDPrefix + string(chars), nil
}
