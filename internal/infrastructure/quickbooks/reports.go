package quickbooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/flocon/backend/internal/domain/costing"
	"github.com/flocon/backend/internal/domain/integration"
)

// ReportGateway implements integration.ReportGateway
type ReportGateway struct {
	client *Client
}

// NewReportGateway creates a new ReportGateway
func NewReportGateway(client *Client) *ReportGateway {
	return &ReportGateway{client: client}
}

// GeneralLedger fetches the general ledger of a job
func (g *ReportGateway) GeneralLedger(ctx context.Context, realmID string, query integration.ReportQuery) (*integration.FetchedReport, error) {
	return g.fetch(ctx, realmID, "GeneralLedger", query)
}

// ProfitAndLoss fetches the profit and loss statement of a job
func (g *ReportGateway) ProfitAndLoss(ctx context.Context, realmID string, query integration.ReportQuery) (*integration.FetchedReport, error) {
	return g.fetch(ctx, realmID, "ProfitAndLoss", query)
}

func (g *ReportGateway) fetch(ctx context.Context, realmID, name string, query integration.ReportQuery) (*integration.FetchedReport, error) {
	params := url.Values{}
	params.Set("start_date", query.Range.StartString())
	params.Set("end_date", query.Range.EndString())
	if query.JobID != "" {
		params.Set("customer", query.JobID)
	}
	basis := query.Basis
	if !basis.IsValid() {
		basis = costing.BasisAccrual
	}
	params.Set("accounting_method", string(basis))

	var body reportBody
	payload, err := g.client.do(ctx, realmID, request{
		operation: "report_" + name,
		method:    http.MethodGet,
		path:      "reports/" + name,
		query:     params,
		read:      true,
	}, &body)
	if err != nil {
		return nil, err
	}

	report := parseReport(&body)
	if report.Basis == "" {
		report.Basis = basis
	}
	return &integration.FetchedReport{Report: report, Payload: payload}, nil
}

// ParseReport decodes a raw report payload
func ParseReport(payload []byte) (*costing.Report, error) {
	var body reportBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	return parseReport(&body), nil
}

func parseReport(body *reportBody) *costing.Report {
	report := &costing.Report{
		Name:        body.Header.ReportName,
		Basis:       costing.AccountingBasis(body.Header.ReportBasis),
		StartPeriod: body.Header.StartPeriod,
		EndPeriod:   body.Header.EndPeriod,
	}
	for _, col := range body.Columns.Column {
		c := costing.Column{Title: col.ColTitle, Type: col.ColType}
		for _, md := range col.MetaData {
			if md.Name == "ColKey" {
				c.Key = md.Value
			}
		}
		report.Columns = append(report.Columns, c)
	}
	report.Rows = parseRows(body.Rows.Row)
	return report
}

func parseRows(rows []reportRow) []costing.Row {
	if len(rows) == 0 {
		return nil
	}
	out := make([]costing.Row, 0, len(rows))
	for _, r := range rows {
		row := costing.Row{
			Type:  costing.RowType(r.Type),
			Group: r.Group,
			Cells: parseCells(r.ColData),
		}
		if r.Header != nil {
			row.Header = parseCells(r.Header.ColData)
		}
		if r.Rows != nil {
			row.Rows = parseRows(r.Rows.Row)
		}
		if r.Summary != nil {
			row.Summary = parseCells(r.Summary.ColData)
		}
		// Rows without a type are sections when they nest, data otherwise
		if row.Type == "" {
			if r.Rows != nil || r.Header != nil {
				row.Type = costing.RowTypeSection
			} else {
				row.Type = costing.RowTypeData
			}
		}
		out = append(out, row)
	}
	return out
}

func parseCells(data []colData) []costing.Cell {
	if len(data) == 0 {
		return nil
	}
	cells := make([]costing.Cell, len(data))
	for i, d := range data {
		cells[i] = costing.Cell{Value: d.Value, ID: d.ID}
	}
	return cells
}

var _ integration.ReportGateway = (*ReportGateway)(nil)
