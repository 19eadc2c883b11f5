package service

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"

	"github.com/ignatzorin/freelance-payments/internal/models"
)

// RenderPDF формирует печатную форму счёта.
// Стандартный шрифт maroto не содержит кириллицы, поэтому подписи на английском.
func (s *InvoiceService) RenderPDF(ctx context.Context, actor Actor, number string) ([]byte, error) {
	inv, err := s.Get(ctx, actor, number)
	if err != nil {
		return nil, err
	}
	return renderInvoicePDF(inv)
}

func renderInvoicePDF(inv *models.Invoice) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(12, func() {
			m.Col(12, func() {
				m.Text("Invoice "+inv.InvoiceNumber, props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
	})

	details := [][]string{
		{"Project", inv.ProjectID.String()},
		{"Type", inv.InvoiceType},
		{"Status", inv.Status},
		{"Issued", inv.IssuedAt.Format("2006-01-02")},
	}
	if inv.SentAt != nil {
		details = append(details, []string{"Sent", inv.SentAt.Format("2006-01-02")})
	}
	if inv.PaidAt != nil {
		details = append(details, []string{"Paid", inv.PaidAt.Format("2006-01-02")})
	}
	for _, row := range details {
		label, value := row[0], row[1]
		m.Row(7, func() {
			m.Col(4, func() {
				m.Text(label, props.Text{Style: consts.Bold, Size: 10})
			})
			m.Col(8, func() {
				m.Text(value, props.Text{Size: 10})
			})
		})
	}

	m.Row(10, func() {})

	rows := make([][]string, 0, len(inv.Milestones))
	for _, item := range inv.Milestones {
		rows = append(rows, []string{item.Description, money(item.Rate.StringFixed(2), inv.Currency)})
	}
	m.TableList([]string{"Description", "Amount"}, rows, props.TableList{
		HeaderProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{8, 4},
		},
		ContentProp: props.TableListContent{
			Size:      10,
			GridSizes: []uint{8, 4},
		},
		Align:                consts.Left,
		AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
		HeaderContentSpace:   1,
	})

	totals := [][]string{
		{"Platform fee", money(inv.PaymentDetails.PlatformFee.StringFixed(2), inv.Currency)},
		{"Freelancer amount", money(inv.PaymentDetails.FreelancerAmount.StringFixed(2), inv.Currency)},
		{"Total", money(inv.TotalAmount.StringFixed(2), inv.Currency)},
	}
	for _, row := range totals {
		label, value := row[0], row[1]
		m.Row(7, func() {
			m.Col(8, func() {
				m.Text(label, props.Text{Align: consts.Right, Size: 10})
			})
			m.Col(4, func() {
				m.Text(value, props.Text{Align: consts.Right, Style: consts.Bold, Size: 10})
			})
		})
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(amount, currency string) string {
	return amount + " " + currency
}
