package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUpfront(t *testing.T) {
	amount, err := Upfront(dec("2000"), dec("12"))
	require.NoError(t, err)
	assert.Equal(t, "240.00", amount.StringFixed(2))

	amount, err = Upfront(dec("999.99"), dec("12"))
	require.NoError(t, err)
	assert.Equal(t, "120.00", amount.StringFixed(2))

	for _, total := range []string{"0", "-100"} {
		_, err := Upfront(dec(total), dec("12"))
		assert.Equal(t, apperror.ErrCodeInvalidInput, apperror.CodeOf(err))
	}

	_, err = Upfront(dec("100"), dec("101"))
	assert.Equal(t, apperror.ErrCodeInvalidInput, apperror.CodeOf(err))
}

func TestManualSlice(t *testing.T) {
	slice, err := ManualSlice(dec("2000"), dec("12"), 4)
	require.NoError(t, err)
	assert.Equal(t, "440.00", slice.StringFixed(2))

	_, err = ManualSlice(dec("2000"), dec("12"), 0)
	assert.Equal(t, apperror.ErrCodeInvalidInput, apperror.CodeOf(err))

	_, err = ManualSlice(dec("0"), dec("12"), 3)
	assert.Equal(t, apperror.ErrCodeInvalidInput, apperror.CodeOf(err))
}

func TestManualAmount_LastTaskTakesRemainder(t *testing.T) {
	snap := Snapshot{
		TotalBudget: dec("100"),
		Invoices:    []models.Invoice{invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "12")},
	}

	var amounts []string
	for i := 0; i < 6; i++ {
		amount, err := ManualAmount(snap, dec("12"), 6)
		require.NoError(t, err, "задача %d", i)
		amounts = append(amounts, amount.StringFixed(2))
		snap.Invoices = append(snap.Invoices, invoice("", models.InvoiceTypeCompletionManual, models.InvoiceStatusSent, amount.String()))
	}

	assert.Equal(t, []string{"14.67", "14.67", "14.67", "14.67", "14.67", "14.65"}, amounts)
	assert.True(t, Summarize(snap, "").Remaining.IsZero())

	_, err := ManualAmount(snap, dec("12"), 6)
	assert.Equal(t, apperror.ErrCodeBudgetIntegrity, apperror.CodeOf(err))
}

func TestManualAmount(t *testing.T) {
	tests := []struct {
		name     string
		budget   string
		tasks    int
		invoices []models.Invoice
		want     string
	}{
		{"ровная доля", "2000", 4, []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "240"),
		}, "440.00"},
		{"предоплата ещё не выставлена", "2000", 1, nil, "1760.00"},
		{"отменённый счёт не считается", "90", 3, []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "10.80"),
			invoice("JD-000002", models.InvoiceTypeCompletionManual, models.InvoiceStatusPaid, "26.40"),
			invoice("JD-000003", models.InvoiceTypeCompletionManual, models.InvoiceStatusCancelled, "26.40"),
		}, "26.40"},
		{"доля больше остатка", "100", 3, []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "12"),
			invoice("JD-000002", models.InvoiceTypeCompletionManual, models.InvoiceStatusPaid, "80"),
		}, "8.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, err := ManualAmount(Snapshot{TotalBudget: dec(tt.budget), Invoices: tt.invoices}, dec("12"), tt.tasks)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amount.StringFixed(2))
		})
	}
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, "1760.00", Remaining(dec("2000"), dec("240")).StringFixed(2))
	assert.Equal(t, "880.00", Remaining(dec("2000"), dec("240"), dec("440"), dec("440")).StringFixed(2))
}

func TestProjectProgress(t *testing.T) {
	p := ProjectProgress(nil)
	assert.True(t, p.AllApproved)
	assert.Zero(t, p.TotalTasks)
	assert.True(t, p.PercentComplete.IsZero())

	p = ProjectProgress([]models.Task{{Approved: true}, {Approved: false}, {Approved: true}})
	assert.Equal(t, 3, p.TotalTasks)
	assert.Equal(t, 2, p.ApprovedTasks)
	assert.Equal(t, "66.67", p.PercentComplete.StringFixed(2))
	assert.False(t, p.AllApproved)
}

func invoice(number, typ, status, amount string) models.Invoice {
	return models.Invoice{InvoiceNumber: number, InvoiceType: typ, Status: status, TotalAmount: dec(amount)}
}

func TestCheckIntegrity_Final(t *testing.T) {
	snap := Snapshot{
		TotalBudget: dec("2000"),
		Invoices: []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "240"),
		},
	}

	r := CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionFinal, Amount: dec("1760")}, DefaultEpsilon)
	assert.True(t, r.Valid(), r.Discrepancies)
	assert.NoError(t, r.Err())
	assert.Equal(t, "1760.00", r.Remaining.StringFixed(2))

	r = CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionFinal, Amount: dec("1760.02")}, DefaultEpsilon)
	assert.False(t, r.Valid())
	assert.ErrorIs(t, r.Err(), apperror.New(apperror.ErrCodeBudgetIntegrity, ""))

	r = CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionFinal, Amount: dec("1760.01")}, DefaultEpsilon)
	assert.True(t, r.Valid(), "расхождение в пределах epsilon допустимо")
}

func TestCheckIntegrity_ExcludesCandidateItself(t *testing.T) {
	snap := Snapshot{
		TotalBudget: dec("2000"),
		Invoices: []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "240"),
			invoice("JD-000002", models.InvoiceTypeCompletionFinal, models.InvoiceStatusProcessing, "1760"),
		},
	}

	r := CheckIntegrity(snap, Candidate{InvoiceNumber: "JD-000002", InvoiceType: models.InvoiceTypeCompletionFinal, Amount: dec("1760")}, DefaultEpsilon)
	assert.True(t, r.Valid(), r.Discrepancies)
}

func TestCheckIntegrity_OrphanedAndDuplicateInvoices(t *testing.T) {
	snap := Snapshot{
		TotalBudget: dec("2000"),
		Invoices: []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "240"),
			invoice("JD-000002", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "600"),
			invoice("JD-000003", models.InvoiceTypeCompletionFinal, models.InvoiceStatusPaid, "1760"),
		},
	}

	r := CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionManual, Amount: dec("100")}, DefaultEpsilon)
	assert.False(t, r.Valid())
	assert.GreaterOrEqual(t, len(r.Discrepancies), 3)
}

func TestCheckIntegrity_ManualExceedsRemaining(t *testing.T) {
	snap := Snapshot{
		TotalBudget: dec("1000"),
		Invoices: []models.Invoice{
			invoice("JD-000001", models.InvoiceTypeCompletionUpfront, models.InvoiceStatusPaid, "120"),
			invoice("JD-000002", models.InvoiceTypeCompletionManual, models.InvoiceStatusPaid, "800"),
			invoice("JD-000003", models.InvoiceTypeCompletionManual, models.InvoiceStatusCancelled, "800"),
		},
	}

	r := CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionManual, Amount: dec("80")}, DefaultEpsilon)
	assert.True(t, r.Valid(), r.Discrepancies)

	r = CheckIntegrity(snap, Candidate{InvoiceType: models.InvoiceTypeCompletionManual, Amount: dec("80.02")}, DefaultEpsilon)
	assert.False(t, r.Valid())
}
