// internal/services/draft_export.go
package services

import (
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	apperrors "github.com/Corphon/Ravlo/internal/errors"
	"github.com/Corphon/Ravlo/internal/styling"
)

const draftSheet = "Drafts"

// ExportXLSX 把草稿列表写成电子表格，每行一个草稿
func (s *DraftService) ExportXLSX(w io.Writer) (int, error) {
	drafts := s.List()

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", draftSheet); err != nil {
		return 0, apperrors.NewProcessingError("创建工作表失败", err)
	}

	// StreamWriter 适合大量行
	sw, err := f.NewStreamWriter(draftSheet)
	if err != nil {
		return 0, apperrors.NewProcessingError("创建工作表失败", err)
	}

	header := []interface{}{"id", "title", "content", "plain_content", "saved_at"}
	if err := sw.SetRow("A1", header); err != nil {
		return 0, apperrors.NewProcessingError("写入表头失败", err)
	}

	for i, d := range drafts {
		row := []interface{}{
			d.ID,
			d.Title,
			d.Content,
			styling.Decode(d.Content),
			time.UnixMilli(d.Timestamp).UTC().Format(time.RFC3339),
		}
		cellAddr, _ := excelize.CoordinatesToCellName(1, i+2) // A2, A3, ...
		if err := sw.SetRow(cellAddr, row); err != nil {
			return 0, apperrors.NewProcessingError("写入草稿行失败", err)
		}
	}
	if err := sw.Flush(); err != nil {
		return 0, apperrors.NewProcessingError("写入工作表失败", err)
	}

	if err := f.Write(w); err != nil {
		return 0, apperrors.NewProcessingError("写出电子表格失败", err)
	}
	return len(drafts), nil
}
