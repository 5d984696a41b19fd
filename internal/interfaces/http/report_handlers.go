package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/briceletutour/AlcomV4-sub001/internal/apperror"
	"github.com/briceletutour/AlcomV4-sub001/internal/domain/entity"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportLedger streams the approval ledger of one request type as xlsx
func (h *Handlers) ExportLedger(c *gin.Context) {
	requestType := entity.RequestType(strings.ToUpper(strings.TrimSpace(c.Query("type"))))
	if requestType == "" {
		respondError(c, h.logger, apperror.Validation("type", "is required"))
		return
	}

	var buf bytes.Buffer
	rows, err := h.services.Reports.ExportLedger(c.Request.Context(), requestType, &buf)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	filename := fmt.Sprintf("approvals-%s-%s.xlsx", strings.ToLower(string(requestType)), time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Row-Count", strconv.Itoa(rows))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
