package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fintrack/config"
	"fintrack/middleware"
	"fintrack/models"
	"fintrack/repository"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeaders = []string{
	"ID", "Date", "Time", "Type", "Category", "Description", "Amount", "Currency",
	"Display", "From Account", "To Account", "Notes", "Location",
}

// ExportHandler 交易导出处理器，过滤条件与搜索接口一致
type ExportHandler struct {
	cfg     *config.Config
	finance *repository.FinanceRepository
}

// NewExportHandler 创建导出处理器
func NewExportHandler(cfg *config.Config, finance *repository.FinanceRepository) *ExportHandler {
	return &ExportHandler{cfg: cfg, finance: finance}
}

// displayAmount 按币种格式化金额，未知币种保留两位小数
func displayAmount(amount float64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	cur := money.GetCurrency(code)
	if cur == nil {
		return fmt.Sprintf("%.2f %s", amount, code)
	}
	minor := decimal.NewFromFloat(amount).Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), code).Display()
}

func optionalName(name *string) string {
	if name == nil {
		return ""
	}
	return *name
}

func exportRow(e models.EntryDetail) []string {
	return []string{
		strconv.FormatUint(uint64(e.ID), 10),
		e.Date,
		e.Timestamp.UTC().Format(exportTimeLayout),
		e.EntryType,
		e.Category,
		e.Description,
		fmt.Sprintf("%.2f", e.Amount),
		e.Currency,
		displayAmount(e.Amount, e.Currency),
		optionalName(e.FromAccountName),
		optionalName(e.ToAccountName),
		e.Notes,
		e.Location,
	}
}

// load 解析过滤条件并查询，出错时已写入响应
func (h *ExportHandler) load(c *gin.Context) ([]models.EntryDetail, bool) {
	filter, msg := parseSearchFilter(c)
	if msg != "" {
		BadRequest(c, msg)
		return nil, false
	}
	entries, err := h.finance.SearchEntries(c.Request.Context(), middleware.GetCurrentUsername(c), filter)
	if err != nil {
		respondError(c, err, "Failed to export entries")
		return nil, false
	}
	return entries, true
}

func exportFilename(ext string) string {
	return fmt.Sprintf("fintrack_entries_%s.%s", time.Now().UTC().Format("20060102"), ext)
}

// ExportCSV 导出交易为 CSV
// @Summary 导出交易 CSV
// @Description 支持与搜索接口相同的过滤参数
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param category query string false "分类子串"
// @Param entry_type query string false "交易类型"
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Param account_id query int false "账户"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response
// @Router /api/entries/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	entries, ok := h.load(c)
	if !ok {
		return
	}

	buf := new(bytes.Buffer)
	// BOM，Excel 打开时按 UTF-8 识别
	buf.WriteString("\xEF\xBB\xBF")
	writer := csv.NewWriter(buf)

	if err := writer.Write(exportHeaders); err != nil {
		InternalError(c, "Failed to generate CSV")
		return
	}
	for _, e := range entries {
		if err := writer.Write(exportRow(e)); err != nil {
			InternalError(c, "Failed to generate CSV")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "Failed to generate CSV")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", exportFilename("csv")))
	c.Header("Content-Length", strconv.Itoa(buf.Len()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportXLSX 导出交易为 Excel
// @Summary 导出交易 Excel
// @Description 支持与搜索接口相同的过滤参数，末行为合计
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param category query string false "分类子串"
// @Param entry_type query string false "交易类型"
// @Param start_date query string false "开始日期 (2024-01-01)"
// @Param end_date query string false "结束日期 (2024-12-31)"
// @Param account_id query int false "账户"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response
// @Router /api/entries/export/xlsx [get]
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	entries, ok := h.load(c)
	if !ok {
		return
	}

	f, err := buildWorkbook(entries)
	if err != nil {
		respondError(c, err, "Failed to generate Excel")
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", exportFilename("xlsx")))
	if err := f.Write(c.Writer); err != nil {
		respondError(c, err, "Failed to generate Excel")
	}
}

var cellBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
}

// buildWorkbook 生成单表工作簿：表头、每条交易一行、合计行
func buildWorkbook(entries []models.EntryDetail) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Entries"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    cellBorder,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	dataStyle, _ := f.NewStyle(&excelize.Style{Border: cellBorder})
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true, Size: 11},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"FFC000"}, Pattern: 1},
		Border: cellBorder,
	})

	last, _ := excelize.ColumnNumberToName(len(exportHeaders))
	f.SetColWidth(sheet, "A", "E", 14)
	f.SetColWidth(sheet, "F", "F", 32)
	f.SetColWidth(sheet, "G", last, 16)

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	total := decimal.Zero
	for i, e := range entries {
		row := i + 2
		for col, value := range exportRow(e) {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, value)
		}
		// 金额列写数值，便于在表格里继续计算
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.ID)
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), e.Amount)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", last, row), dataStyle)
		total = total.Add(decimal.NewFromFloat(e.Amount))
	}

	summaryRow := len(entries) + 2
	totalValue, _ := total.Round(2).Float64()
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	f.MergeCell(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("F%d", summaryRow))
	f.SetCellValue(sheet, fmt.Sprintf("G%d", summaryRow), totalValue)
	f.SetCellValue(sheet, fmt.Sprintf("H%d", summaryRow), fmt.Sprintf("%d entries", len(entries)))
	f.MergeCell(sheet, fmt.Sprintf("H%d", summaryRow), fmt.Sprintf("%s%d", last, summaryRow))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("%s%d", last, summaryRow), summaryStyle)

	return f, nil
}
