package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-payments/internal/models"
	"github.com/ignatzorin/freelance-payments/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-payments/internal/storage"
)

func TestMaintenance_ProjectReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assigned, _ := h.completionProject(t, "2000", 2)
	_, err := h.payments.ExecuteUpfront(ctx, h.commissioner, assigned.Project.ID, "")
	require.NoError(t, err)

	report, err := NewMaintenanceService(h.store).ProjectReport(ctx, assigned.Project.ID)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, "240", report.Upfront.String())
	assert.Equal(t, "1760", report.Remaining.String())
}

func TestMaintenance_Reconciliations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, tasks := h.milestoneProject(t, "700")
	inv := h.readyMilestoneInvoice(t, tasks[0].ID)

	h.store.FailNextCommit(errors.New("connection reset"))
	_, err := h.payments.Execute(ctx, h.commissioner, inv.InvoiceNumber, "")
	requireCode(t, err, apperror.ErrCodePaymentUnresolved)

	items, err := NewMaintenanceService(h.store).Reconciliations(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.ReconciliationOpen, items[0].Status)
}

func TestMaintenance_PurgeIdempotency(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, tasks := h.milestoneProject(t, "700")
	inv := h.readyMilestoneInvoice(t, tasks[0].ID)
	_, err := h.payments.Execute(ctx, h.commissioner, inv.InvoiceNumber, "purge-me")
	require.NoError(t, err)

	svc := NewMaintenanceService(h.store)
	n, err := svc.PurgeIdempotency(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.PurgeIdempotency(ctx, time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMaintenance_ExportInvoice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _, tasks := h.milestoneProject(t, "700")
	inv := h.readyMilestoneInvoice(t, tasks[0].ID)

	root := t.TempDir()
	archive, err := storage.NewInvoiceArchive(root, 1)
	require.NoError(t, err)

	path, err := NewMaintenanceService(h.store).ExportInvoice(ctx, inv.InvoiceNumber, archive)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber+".pdf", path)

	data, err := os.ReadFile(filepath.Join(root, path))
	require.NoError(t, err)
	assert.True(t, len(data) > 4 && string(data[:4]) == "%PDF")

	_, err = NewMaintenanceService(h.store).ExportInvoice(ctx, "XX-999999", archive)
	requireCode(t, err, apperror.ErrCodeInvoiceNotFound)
}
