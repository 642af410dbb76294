package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/richardliu001/ledger-service/internal/apperr"
	"github.com/richardliu001/ledger-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalTransfer_MovesFunds(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 50, 0)

	tx, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount:                   dec("30.00"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.CheckingAccNumber,
		PIN:                      "1234",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccessful, tx.Status)
	assert.Equal(t, model.CategoryTransferInternal, tx.Category)
	assert.Equal(t, "USD", tx.Currency)
	assert.True(t, len(tx.Reference) >= 11)

	assert.Equal(t, "70.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Equal(t, "80.00", f.reload(t, b.ID).CheckingBalance.StringFixed(2))

	rows := f.history(t, tx.ID)
	require.Len(t, rows, 1)
	assert.Zero(t, countFlag(rows, model.MetaCreditPosted))

	stored, err := f.engine.GetTransaction(f.ctx, tx.Reference, a.UserID)
	require.NoError(t, err)
	require.NotNil(t, stored.Meta)
	assert.Equal(t, b.CheckingAccNumber, stored.Meta.BeneficiaryAccountNumber)
	assert.Equal(t, "Test Bank", stored.Meta.BeneficiaryBankName)

	assert.Contains(t, f.notes.titles(a.UserID), "Payment Successful")
	assert.Contains(t, f.notes.titles(b.UserID), "Funds Received")
}

func TestInternalTransfer_SavingsNumberCreditsSavings(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 0, 5)

	_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount:                   dec("25"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.SavingsAccNumber,
		PIN:                      "1234",
	})
	require.NoError(t, err)
	got := f.reload(t, b.ID)
	assert.Equal(t, "30.00", got.SavingsBalance.StringFixed(2))
	assert.True(t, got.CheckingBalance.IsZero())
}

func TestInternalTransfer_InsufficientFunds(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 10, 0)
	b := f.open(t, "5678", 0, 0)

	_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount:                   dec("20"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.CheckingAccNumber,
		PIN:                      "1234",
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	assert.Equal(t, "10.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Zero(t, f.txCount(t))

	// the whole balance cannot be moved either
	_, err = f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount:                   dec("10"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.CheckingAccNumber,
		PIN:                      "1234",
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestInternalTransfer_WrongPinIsAtomic(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 50, 0)

	_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount:                   dec("30"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.CheckingAccNumber,
		PIN:                      "9999",
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidPin)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Equal(t, "50.00", f.reload(t, b.ID).CheckingBalance.StringFixed(2))
	assert.Zero(t, f.txCount(t))
}

func TestInternalTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 0, 0)

	base := InternalTransferRequest{
		Amount:                   dec("1"),
		AccountType:              model.SubAccountChecking,
		BeneficiaryAccountNumber: b.CheckingAccNumber,
		PIN:                      "1234",
	}
	cases := []struct {
		name string
		mut  func(r *InternalTransferRequest)
		want error
	}{
		{"zero amount", func(r *InternalTransferRequest) { r.Amount = dec("0") }, apperr.ErrInvalidAmount},
		{"negative amount", func(r *InternalTransferRequest) { r.Amount = dec("-5") }, apperr.ErrInvalidAmount},
		{"bad account type", func(r *InternalTransferRequest) { r.AccountType = "brokerage" }, apperr.ErrInvalidAccountType},
		{"pin with letters", func(r *InternalTransferRequest) { r.PIN = "12a4" }, apperr.ErrInvalidPinFormat},
		{"empty pin", func(r *InternalTransferRequest) { r.PIN = "" }, apperr.ErrInvalidPinFormat},
		{"short number", func(r *InternalTransferRequest) { r.BeneficiaryAccountNumber = "123" }, apperr.ErrInvalidAccountNumber},
		{"unknown number", func(r *InternalTransferRequest) { r.BeneficiaryAccountNumber = "99999999" }, apperr.ErrAccountNotFound},
		{"own checking", func(r *InternalTransferRequest) { r.BeneficiaryAccountNumber = a.CheckingAccNumber }, apperr.ErrSameAccountTransfer},
		{"own savings", func(r *InternalTransferRequest) { r.BeneficiaryAccountNumber = a.SavingsAccNumber }, apperr.ErrSameAccountTransfer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mut(&req)
			_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.txCount(t))
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
}

func TestInternalTransfer_ConcurrentOppositeDirections(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1111", 100, 0)
	b := f.open(t, "2222", 100, 0)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	send := func(from *model.Account, pin, to string) {
		defer wg.Done()
		_, err := f.engine.CreateInternalTransfer(f.ctx, from.UserID, InternalTransferRequest{
			Amount:                   dec("1.50"),
			AccountType:              model.SubAccountChecking,
			BeneficiaryAccountNumber: to,
			PIN:                      pin,
		})
		errs <- err
	}
	for i := 0; i < n; i++ {
		wg.Add(2)
		go send(a, "1111", b.CheckingAccNumber)
		go send(b, "2222", a.CheckingAccNumber)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	ga, gb := f.reload(t, a.ID), f.reload(t, b.ID)
	assert.Equal(t, "100.00", ga.CheckingBalance.StringFixed(2))
	assert.Equal(t, "100.00", gb.CheckingBalance.StringFixed(2))
	assert.Equal(t, "200.00", ga.CheckingBalance.Add(gb.CheckingBalance).StringFixed(2))
	assert.EqualValues(t, 2*n, f.txCount(t))
}

func TestDeposit_ConfirmTwiceCreditsOnce(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, "1234", 0, 0)

	dep, err := f.engine.CreateDeposit(f.ctx, c.UserID, DepositRequest{
		Amount:         dec("50.00"),
		Method:         model.MethodWire,
		AccountType:    model.SubAccountSavings,
		ProofReference: "uploads/proof-1.png",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, dep.Status)
	assert.True(t, f.reload(t, c.ID).SavingsBalance.IsZero())

	require.NoError(t, f.engine.ConfirmDeposit(f.ctx, dep.Reference))
	require.NoError(t, f.engine.ConfirmDeposit(f.ctx, dep.Reference))

	assert.Equal(t, "50.00", f.reload(t, c.ID).SavingsBalance.StringFixed(2))
	rows := f.history(t, dep.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, countFlag(rows, model.MetaCreditPosted))
	// marker lands on the seed row
	assert.True(t, rows[0].Metadata.Flag(model.MetaCreditPosted))
	assert.Contains(t, rows[0].Note, "Credited 50.00 to SAVINGS")

	got, err := f.engine.GetTransaction(f.ctx, dep.Reference, c.UserID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccessful, got.Status)

	titles := f.notes.titles(c.UserID)
	assert.Contains(t, titles, "Deposit Pending")
	n := 0
	for _, title := range titles {
		if title == "Deposit Successful" {
			n++
		}
	}
	assert.Equal(t, 1, n)
}

func TestDeposit_ConcurrentConfirms(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, "1234", 0, 0)
	dep, err := f.engine.CreateDeposit(f.ctx, c.UserID, DepositRequest{
		Amount:         dec("75"),
		Method:         model.MethodBank,
		AccountType:    model.SubAccountChecking,
		ProofReference: "proof",
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.engine.ConfirmDeposit(f.ctx, dep.Reference))
		}()
	}
	wg.Wait()

	assert.Equal(t, "75.00", f.reload(t, c.ID).CheckingBalance.StringFixed(2))
	assert.Equal(t, 1, countFlag(f.history(t, dep.ID), model.MetaCreditPosted))
}

func TestDeposit_Validation(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, "1234", 0, 0)
	base := DepositRequest{
		Amount:         dec("10"),
		Method:         model.MethodWire,
		AccountType:    model.SubAccountChecking,
		ProofReference: "proof",
	}
	cases := []struct {
		name string
		mut  func(r *DepositRequest)
		want error
	}{
		{"internal method", func(r *DepositRequest) { r.Method = model.MethodInternal }, apperr.ErrCategoryMethodMismatch},
		{"no proof", func(r *DepositRequest) { r.ProofReference = " " }, apperr.ErrMissingProof},
		{"bad currency", func(r *DepositRequest) { r.Currency = "US" }, apperr.ErrInvalidCurrency},
		{"digit currency", func(r *DepositRequest) { r.Currency = "U5D" }, apperr.ErrInvalidCurrency},
		{"no account type", func(r *DepositRequest) { r.AccountType = "" }, apperr.ErrInvalidAccountType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mut(&req)
			_, err := f.engine.CreateDeposit(f.ctx, c.UserID, req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}

	req := base
	req.Currency = "eur"
	dep, err := f.engine.CreateDeposit(f.ctx, c.UserID, req)
	require.NoError(t, err)
	assert.Equal(t, "EUR", dep.Currency)

	_, err = f.engine.CreateDeposit(f.ctx, uuid.New(), base)
	assert.ErrorIs(t, err, apperr.ErrAccountNotFound)
}

func TestConfirmDeposit_Rejections(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)

	assert.ErrorIs(t, f.engine.ConfirmDeposit(f.ctx, "TRXNOPE0000"), apperr.ErrTransactionNotFound)

	wd, err := f.engine.CreateWithdrawal(f.ctx, a.UserID, WithdrawalRequest{
		Amount: dec("10"), Method: model.MethodBank, AccountType: model.SubAccountChecking, PIN: "1234",
	})
	require.NoError(t, err)
	assert.ErrorIs(t, f.engine.ConfirmDeposit(f.ctx, wd.Reference), apperr.ErrInvalidTransition)

	dep, err := f.engine.CreateDeposit(f.ctx, a.UserID, DepositRequest{
		Amount: dec("10"), Method: model.MethodBank, AccountType: model.SubAccountChecking, ProofReference: "p",
	})
	require.NoError(t, err)
	_, err = f.engine.SetStatus(f.ctx, dep.Reference, model.StatusFailed, "proof unreadable")
	require.NoError(t, err)
	assert.ErrorIs(t, f.engine.ConfirmDeposit(f.ctx, dep.Reference), apperr.ErrInvalidTransition)
	assert.Equal(t, "90.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
}

func TestExternalTransfer_DebitsAndRefundsOnCancel(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)

	tx, err := f.engine.CreateExternalTransfer(f.ctx, a.UserID, ExternalTransferRequest{
		Amount:      dec("40"),
		Method:      model.MethodWire,
		AccountType: model.SubAccountChecking,
		PIN:         "1234",
		Beneficiary: Beneficiary{
			Name:          "Grace Hopper",
			AccountNumber: "GB29NWBK60161331926819",
			BankName:      "Other Bank",
			SwiftCode:     "NWBKGB2L",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, tx.Status)
	require.NotNil(t, tx.Meta)
	assert.Equal(t, "Grace Hopper", tx.Meta.BeneficiaryName)
	assert.Equal(t, "NWBKGB2L", tx.Meta.BankSwiftCode)
	assert.Equal(t, "60.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Contains(t, f.notes.titles(a.UserID), "Transfer Pending")

	got, err := f.engine.SetStatus(f.ctx, tx.Reference, model.StatusCancelled, "beneficiary bank rejected")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, "beneficiary bank rejected", got.ErrorMessage)
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))

	// re-applying is a no-op
	_, err = f.engine.SetStatus(f.ctx, tx.Reference, model.StatusCancelled, "again")
	require.NoError(t, err)
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))

	rows := f.history(t, tx.ID)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, countFlag(rows, model.MetaRefundPosted))
	assert.Equal(t, "pending", rows[1].Metadata[model.MetaStatusFrom])
	assert.Equal(t, "cancelled", rows[1].Metadata[model.MetaStatusTo])

	_, err = f.engine.SetStatus(f.ctx, tx.Reference, model.StatusSuccessful, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	titles := f.notes.titles(a.UserID)
	assert.Contains(t, titles, "Transfer Cancelled")
	assert.Contains(t, titles, "Funds Returned")
}

func TestExternalTransfer_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	base := ExternalTransferRequest{
		Amount:      dec("10"),
		Method:      model.MethodBank,
		AccountType: model.SubAccountChecking,
		PIN:         "1234",
		Beneficiary: Beneficiary{Name: "Ada", BankName: "Far Bank"},
	}
	cases := []struct {
		name string
		mut  func(r *ExternalTransferRequest)
		want error
	}{
		{"internal method", func(r *ExternalTransferRequest) { r.Method = model.MethodInternal }, apperr.ErrCategoryMethodMismatch},
		{"no name", func(r *ExternalTransferRequest) { r.Beneficiary.Name = "" }, apperr.ErrMissingBeneficiaryDetails},
		{"no bank", func(r *ExternalTransferRequest) { r.Beneficiary.BankName = "" }, apperr.ErrMissingBeneficiaryDetails},
		{"wrong pin", func(r *ExternalTransferRequest) { r.PIN = "0000" }, apperr.ErrInvalidPin},
		{"overdraft", func(r *ExternalTransferRequest) { r.Amount = dec("100") }, apperr.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mut(&req)
			_, err := f.engine.CreateExternalTransfer(f.ctx, a.UserID, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.txCount(t))
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
}

func TestWithdrawal_FailRefundsAndSuccessKeepsDebit(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 0, 80)

	w1, err := f.engine.CreateWithdrawal(f.ctx, a.UserID, WithdrawalRequest{
		Amount: dec("30"), Method: model.MethodBank, AccountType: model.SubAccountSavings, PIN: "1234",
	})
	require.NoError(t, err)
	w2, err := f.engine.CreateWithdrawal(f.ctx, a.UserID, WithdrawalRequest{
		Amount: dec("20"), Method: model.MethodWire, AccountType: model.SubAccountSavings, PIN: "1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", f.reload(t, a.ID).SavingsBalance.StringFixed(2))

	_, err = f.engine.SetStatus(f.ctx, w1.Reference, model.StatusFailed, "payout rejected")
	require.NoError(t, err)
	_, err = f.engine.SetStatus(f.ctx, w2.Reference, model.StatusSuccessful, "paid out")
	require.NoError(t, err)

	assert.Equal(t, "60.00", f.reload(t, a.ID).SavingsBalance.StringFixed(2))
	assert.Zero(t, countFlag(f.history(t, w2.ID), model.MetaRefundPosted))

	_, err = f.engine.SetStatus(f.ctx, w1.Reference, "settled", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
}

func TestInactiveAccountCannotMoveMoney(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 100, 0)
	require.NoError(t, f.accounts.Deactivate(f.ctx, b.UserID))

	_, err := f.engine.CreateWithdrawal(f.ctx, b.UserID, WithdrawalRequest{
		Amount: dec("1"), Method: model.MethodBank, AccountType: model.SubAccountChecking, PIN: "5678",
	})
	assert.ErrorIs(t, err, apperr.ErrAccountInactive)

	_, err = f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount: dec("1"), AccountType: model.SubAccountChecking, BeneficiaryAccountNumber: b.CheckingAccNumber, PIN: "1234",
	})
	assert.ErrorIs(t, err, apperr.ErrAccountInactive)
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
}

func TestIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 100, 0)
	req := WithdrawalRequest{
		Amount: dec("10"), Method: model.MethodBank, AccountType: model.SubAccountChecking, PIN: "1234",
		IdempotencyKey: "wd-1",
	}

	first, err := f.engine.CreateWithdrawal(f.ctx, a.UserID, req)
	require.NoError(t, err)
	again, err := f.engine.CreateWithdrawal(f.ctx, a.UserID, req)
	require.NoError(t, err)
	assert.Equal(t, first.Reference, again.Reference)
	assert.Equal(t, "90.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.EqualValues(t, 1, f.txCount(t))

	changed := req
	changed.Amount = dec("11")
	_, err = f.engine.CreateWithdrawal(f.ctx, a.UserID, changed)
	assert.ErrorIs(t, err, apperr.ErrIdempotencyConflict)

	other := req
	other.PIN = "5678"
	_, err = f.engine.CreateWithdrawal(f.ctx, b.UserID, other)
	assert.ErrorIs(t, err, apperr.ErrIdempotencyConflict)
	assert.Equal(t, "100.00", f.reload(t, b.ID).CheckingBalance.StringFixed(2))
}

func TestGetTransaction_Visibility(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 0, 0)
	stranger := f.open(t, "0000", 0, 0)

	tx, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount: dec("5"), AccountType: model.SubAccountChecking, BeneficiaryAccountNumber: b.CheckingAccNumber, PIN: "1234",
	})
	require.NoError(t, err)

	_, err = f.engine.GetTransaction(f.ctx, tx.Reference, a.UserID)
	assert.NoError(t, err)
	_, err = f.engine.GetTransaction(f.ctx, tx.Reference, b.UserID)
	assert.NoError(t, err)
	_, err = f.engine.GetTransaction(f.ctx, tx.Reference, stranger.UserID)
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)
	_, err = f.engine.GetTransaction(f.ctx, tx.Reference, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrTransactionNotFound)

	hist, err := f.engine.ListHistory(f.ctx, b.UserID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.NotNil(t, hist[0].Transaction)
	assert.Equal(t, tx.Reference, hist[0].Transaction.Reference)

	hist, err = f.engine.ListHistory(f.ctx, stranger.UserID, 10)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 0, 0)
	f.notes.fail = true

	tx, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
		Amount: dec("10"), AccountType: model.SubAccountChecking, BeneficiaryAccountNumber: b.CheckingAccNumber, PIN: "1234",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuccessful, tx.Status)
	assert.Equal(t, "10.00", f.reload(t, b.ID).CheckingBalance.StringFixed(2))
}

func TestPostCredit_PreconditionsAreNoOps(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, "1234", 0, 0)
	dest := c.ID
	cases := []*model.Transaction{
		{Category: model.CategoryWithdrawal, Status: model.StatusSuccessful, DestinationAccountID: &dest, AccountType: model.SubAccountChecking, Amount: dec("1")},
		{Category: model.CategoryDeposit, Status: model.StatusPending, DestinationAccountID: &dest, AccountType: model.SubAccountChecking, Amount: dec("1")},
		{Category: model.CategoryDeposit, Status: model.StatusSuccessful, AccountType: model.SubAccountChecking, Amount: dec("1")},
		{Category: model.CategoryDeposit, Status: model.StatusSuccessful, DestinationAccountID: &dest, Amount: dec("1")},
		{Category: model.CategoryDeposit, Status: model.StatusSuccessful, DestinationAccountID: &dest, AccountType: model.SubAccountChecking},
	}
	for _, tx := range cases {
		assert.NoError(t, f.engine.postCredit(f.ctx, tx))
	}
	assert.True(t, f.reload(t, c.ID).CheckingBalance.IsZero())
}

func TestRecordMarker_CreatesRowWhenHistoryEmpty(t *testing.T) {
	f := newFixture(t)
	c := f.open(t, "1234", 0, 0)
	dest := c.ID
	tx := &model.Transaction{
		Category: model.CategoryDeposit, Method: model.MethodWire, AccountType: model.SubAccountSavings,
		DestinationAccountID: &dest, Amount: dec("12.50"), Currency: "USD",
		Status: model.StatusSuccessful, InitiatedBy: c.UserID,
	}
	require.NoError(t, f.repo.CreateTransaction(f.ctx, f.db, tx, 1))

	require.NoError(t, f.engine.postCredit(f.ctx, tx))
	require.NoError(t, f.engine.postCredit(f.ctx, tx))

	rows := f.history(t, tx.ID)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Metadata.Flag(model.MetaCreditPosted))
	assert.Equal(t, "12.50", f.reload(t, c.ID).SavingsBalance.StringFixed(2))
}

func TestAmountsMustBeWholeCents(t *testing.T) {
	f := newFixture(t)
	a := f.open(t, "1234", 100, 0)
	b := f.open(t, "5678", 50, 0)

	for _, amt := range []string{"0.005", "0.001", "10.999", "1000000000000"} {
		_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
			Amount:                   dec(amt),
			AccountType:              model.SubAccountChecking,
			BeneficiaryAccountNumber: b.CheckingAccNumber,
			PIN:                      "1234",
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, amt)

		_, err = f.engine.CreateDeposit(f.ctx, a.UserID, DepositRequest{
			Amount: dec(amt), Method: model.MethodBank, AccountType: model.SubAccountSavings, ProofReference: "slip",
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, amt)

		_, err = f.engine.CreateWithdrawal(f.ctx, a.UserID, WithdrawalRequest{
			Amount: dec(amt), Method: model.MethodBank, AccountType: model.SubAccountChecking, PIN: "1234",
		})
		assert.ErrorIs(t, err, apperr.ErrInvalidAmount, amt)
	}
	assert.Zero(t, f.txCount(t))
	assert.Equal(t, "100.00", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Equal(t, "50.00", f.reload(t, b.ID).CheckingBalance.StringFixed(2))

	// one cent and trailing zeros are fine
	for _, amt := range []string{"0.01", "0.500"} {
		_, err := f.engine.CreateInternalTransfer(f.ctx, a.UserID, InternalTransferRequest{
			Amount:                   dec(amt),
			AccountType:              model.SubAccountChecking,
			BeneficiaryAccountNumber: b.CheckingAccNumber,
			PIN:                      "1234",
		})
		require.NoError(t, err, amt)
	}
	assert.Equal(t, "99.49", f.reload(t, a.ID).CheckingBalance.StringFixed(2))
	assert.Equal(t, "50.51", f.reload(t, b.ID).CheckingBalance.StringFixed(2))
}
