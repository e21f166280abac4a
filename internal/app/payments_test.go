package app

import (
	"errors"
	"strings"
	"testing"
	"time"

	"lydistories/pkg/domain"
	"lydistories/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	sessions, err := store.NewJWTSessionStore("test-secret-please-rotate", time.Hour, store.JWTOptions{})
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	return New(st, sessions, nil), st
}

func seedUser(t *testing.T, a *App, name, email string) domain.User {
	t.Helper()
	user, _, err := a.Register(name, email, "hunter2x")
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func seedContent(t *testing.T, st *store.MemoryStore, title string, price float64) domain.Content {
	t.Helper()
	item := domain.Content{
		ID:        "content-" + strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Title:     title,
		Category:  domain.CategoryBook,
		Price:     price,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := st.SaveContent(item); err != nil {
		t.Fatalf("save content: %v", err)
	}
	return item
}

func TestPaymentFullFlow(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Aisha", "aisha@example.com")
	item := seedContent(t, st, "Market Guide", 5000)

	quote, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if quote.Amount != 5000 || quote.Currency != "UGX" {
		t.Fatalf("quote amount = %v %s, want 5000 UGX", quote.Amount, quote.Currency)
	}
	if len(quote.OTPHint) != 6 {
		t.Fatalf("otp length = %d, want 6", len(quote.OTPHint))
	}
	if !strings.HasPrefix(quote.TransactionID, "TXN") || len(quote.TransactionID) != 15 {
		t.Fatalf("transaction id %q has wrong shape", quote.TransactionID)
	}

	granted, err := a.HasAccess(user, item.ID)
	if err != nil || granted {
		t.Fatalf("access before confirm = %v, %v; want false, nil", granted, err)
	}

	receipt, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if receipt.ContentID != item.ID || receipt.ContentTitle != item.Title {
		t.Fatalf("receipt = %+v, want content %s", receipt, item.ID)
	}

	granted, err = a.HasAccess(user, item.ID)
	if err != nil || !granted {
		t.Fatalf("access after confirm = %v, %v; want true, nil", granted, err)
	}

	history, err := a.PaymentHistory(user)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != domain.PaymentConfirmed {
		t.Fatalf("history = %+v, want one confirmed payment", history)
	}
	if history[0].ContentTitle != item.Title {
		t.Fatalf("history title = %q, want %q", history[0].ContentTitle, item.Title)
	}
}

func TestInitiateValidation(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Brian", "brian@example.com")
	item := seedContent(t, st, "City Atlas", 2000)

	cases := []struct {
		name      string
		contentID string
		phone     string
		wantErr   error
	}{
		{"missing phone", item.ID, "", ErrPaymentFields},
		{"missing content", "", "0700000000", ErrPaymentFields},
		{"bad prefix", item.ID, "700000000", ErrInvalidPhone},
		{"letters in number", item.ID, "07000abc00", ErrInvalidPhone},
		{"too short", item.ID, "0700", ErrInvalidPhone},
		{"unknown content", "nope", "0700000000", ErrContentNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.InitiatePayment(user, tc.contentID, tc.phone); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}

	if _, err := a.InitiatePayment(user, item.ID, "+256700000000"); err != nil {
		t.Fatalf("international format rejected: %v", err)
	}
}

func TestInitiateAfterGrantRejected(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Clare", "clare@example.com")
	item := seedContent(t, st, "Night Tales", 3000)

	quote, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Once access is granted, no new purchase can start, even with a
	// perfectly valid phone number and even with an invalid one.
	if _, err := a.InitiatePayment(user, item.ID, "0700000000"); !errors.Is(err, ErrAlreadyGranted) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyGranted)
	}
	if _, err := a.InitiatePayment(user, item.ID, "not-a-number"); !errors.Is(err, ErrAlreadyGranted) {
		t.Fatalf("err with bad phone = %v, want %v", err, ErrAlreadyGranted)
	}
}

func TestConfirmWrongCodeKeepsPaymentPending(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Denis", "denis@example.com")
	item := seedContent(t, st, "Farm Notes", 1500)

	quote, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	wrong := "000000"
	if wrong == quote.OTPHint {
		wrong = "111111"
	}
	if _, err := a.ConfirmPayment(user, quote.PaymentID, wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidOTP)
	}

	granted, err := a.HasAccess(user, item.ID)
	if err != nil || granted {
		t.Fatalf("access after wrong code = %v, %v; want false, nil", granted, err)
	}

	// The payment stays pending, so the right code still works.
	if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); err != nil {
		t.Fatalf("confirm after retry: %v", err)
	}
}

func TestConfirmTwiceReportsNotFound(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Esther", "esther@example.com")
	item := seedContent(t, st, "Travel Log", 2500)

	quote, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("second confirm err = %v, want %v", err, ErrPaymentNotFound)
	}

	grants, err := st.ListGrantsByUser(user.ID)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want exactly 1", len(grants))
	}
}

func TestConfirmSomeoneElsesPayment(t *testing.T) {
	a, st := newTestApp(t)
	owner := seedUser(t, a, "Frank", "frank@example.com")
	other := seedUser(t, a, "Grace", "grace@example.com")
	item := seedContent(t, st, "Short Stories", 1000)

	quote, err := a.InitiatePayment(owner, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	// Another user probing the payment ID learns nothing beyond "not found",
	// even with the right code.
	if _, err := a.ConfirmPayment(other, quote.PaymentID, quote.OTPHint); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrPaymentNotFound)
	}
}

func TestAmountFrozenAtInitiation(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Hawa", "hawa@example.com")
	item := seedContent(t, st, "Old Edition", 5000)

	quote, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	// Reprice the content while the payment is pending.
	item.Price = 9000
	if err := st.SaveContent(item); err != nil {
		t.Fatalf("reprice: %v", err)
	}

	if _, err := a.ConfirmPayment(user, quote.PaymentID, quote.OTPHint); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	history, err := a.PaymentHistory(user)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Amount != 5000 {
		t.Fatalf("recorded amount = %v, want the price at initiation (5000)", history[0].Amount)
	}
}

func TestAdminAlwaysHasAccess(t *testing.T) {
	a, st := newTestApp(t)
	admin := seedUser(t, a, "Root", "root@example.com")
	admin.Role = domain.RoleAdmin
	if err := st.SaveUser(admin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}
	item := seedContent(t, st, "Premium Report", 8000)

	granted, err := a.HasAccess(admin, item.ID)
	if err != nil || !granted {
		t.Fatalf("admin access = %v, %v; want true, nil", granted, err)
	}
}

func TestMultiplePendingPaymentsAllowed(t *testing.T) {
	a, st := newTestApp(t)
	user := seedUser(t, a, "Irene", "irene@example.com")
	item := seedContent(t, st, "Poetry", 1200)

	first, err := a.InitiatePayment(user, item.ID, "0700000000")
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	second, err := a.InitiatePayment(user, item.ID, "0711111111")
	if err != nil {
		t.Fatalf("second initiate: %v", err)
	}
	if first.TransactionID == second.TransactionID {
		t.Fatal("transaction ids must differ")
	}

	// Confirming one grants access; the other is now orphaned but
	// confirming it must not mint a second grant.
	if _, err := a.ConfirmPayment(user, first.PaymentID, first.OTPHint); err != nil {
		t.Fatalf("confirm first: %v", err)
	}
	if _, err := a.ConfirmPayment(user, second.PaymentID, second.OTPHint); err != nil {
		t.Fatalf("confirm second: %v", err)
	}
	grants, err := st.ListGrantsByUser(user.ID)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 {
		t.Fatalf("grants = %d, want 1", len(grants))
	}
}
