// Package sheetsapi reads spreadsheet metadata through the Sheets v4 API.
//
// The gviz endpoint addresses tabs by numeric gid only; this package lists a
// spreadsheet's tabs so that a tab can also be addressed by its title.
package sheetsapi

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ajitpratap0/nebula-sheets/pkg/config"
	"github.com/ajitpratap0/nebula-sheets/pkg/errors"
)

// SheetInfo describes one tab of a spreadsheet.
type SheetInfo struct {
	ID          int64  `json:"sheet_id"`
	Title       string `json:"title"`
	Index       int64  `json:"index"`
	RowCount    int64  `json:"row_count"`
	ColumnCount int64  `json:"column_count"`
}

// Client wraps the generated Sheets service.
type Client struct {
	svc    *sheets.Service
	logger *zap.Logger
}

// NewClient creates a Sheets API client. Callers pass the credentials and,
// in tests, the endpoint through opts.
func NewClient(ctx context.Context, logger *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "cannot create sheets service")
	}
	return &Client{
		svc:    svc,
		logger: logger.With(zap.String("component", "sheets_api")),
	}, nil
}

// ListSheets returns the tabs of a spreadsheet in display order.
func (c *Client) ListSheets(ctx context.Context, spreadsheetID string) ([]SheetInfo, error) {
	resp, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields(googleapi.Field("sheets.properties")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, apiError(err, spreadsheetID)
	}

	out := make([]SheetInfo, 0, len(resp.Sheets))
	for _, sh := range resp.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		p := sh.Properties
		info := SheetInfo{
			ID:    p.SheetId,
			Title: p.Title,
			Index: p.Index,
		}
		if p.GridProperties != nil {
			info.RowCount = p.GridProperties.RowCount
			info.ColumnCount = p.GridProperties.ColumnCount
		}
		out = append(out, info)
	}

	c.logger.Debug("listed sheets",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.Int("count", len(out)))
	return out, nil
}

// ResolveSheetID maps a tab title to its gid. Titles are matched exactly
// first, then case-insensitively.
func (c *Client) ResolveSheetID(ctx context.Context, spreadsheetID, title string) (string, error) {
	list, err := c.ListSheets(ctx, spreadsheetID)
	if err != nil {
		return "", err
	}

	var fold *SheetInfo
	for i := range list {
		if list[i].Title == title {
			return strconv.FormatInt(list[i].ID, 10), nil
		}
		if fold == nil && strings.EqualFold(list[i].Title, title) {
			fold = &list[i]
		}
	}
	if fold != nil {
		return strconv.FormatInt(fold.ID, 10), nil
	}

	return "", errors.Newf(errors.CodeInvalidOption, "sheet %q not found in spreadsheet", title).
		WithDetail(errors.DetailOption, config.OptionSheetName)
}

func apiError(err error, spreadsheetID string) error {
	var gerr *googleapi.Error
	if stderrors.As(err, &gerr) {
		e := errors.Newf(errors.CodeHTTPStatus, "sheets api returned status %d", gerr.Code).
			WithDetail(errors.DetailStatusCode, gerr.Code).
			WithDetail("spreadsheet_id", spreadsheetID)
		if gerr.Message != "" {
			e.WithDetail(errors.DetailReason, gerr.Message)
		}
		e.Cause = err
		return e
	}
	return errors.Wrap(err, errors.CodeTransport, "sheets api request failed").
		WithDetail("spreadsheet_id", spreadsheetID)
}
