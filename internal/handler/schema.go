package handler

import (
	"net/http"

	"github.com/cortexai/askql/internal/models"
	"github.com/cortexai/askql/internal/schema"
	"github.com/cortexai/askql/internal/service"
)

// SchemaHandler handles GET /api/v1/schema
type SchemaHandler struct {
	dialect service.Dialect
}

func NewSchemaHandler(dialect service.Dialect) *SchemaHandler {
	return &SchemaHandler{dialect: dialect}
}

// Schema lists the tables and columns questions can be answered from.
func (h *SchemaHandler) Schema(w http.ResponseWriter, r *http.Request) {
	tables := make([]models.SchemaTable, len(schema.Tables))
	for i, t := range schema.Tables {
		tables[i] = models.SchemaTable{Name: t.Name, Columns: t.Columns, TimeSeries: t.TimeSeries}
	}
	models.WriteJSON(w, http.StatusOK, models.SchemaResponse{
		Dialect: string(h.dialect),
		RowCap:  schema.RowCap,
		Tables:  tables,
	})
}
