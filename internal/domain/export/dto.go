// internal/domain/export/dto.go
package export

type CreateExportRequest struct {
	OrganizationID int64        `json:"organization_id" binding:"required"`
	MapID          int64        `json:"map_id" binding:"required"`
	Format         ExportFormat `json:"format" binding:"required,oneof=geojson kml png pdf"`
}

type DecideExportRequest struct {
	Reason string `json:"reason"`
}

type ExportListFilters struct {
	Status   *ExportStatus `form:"status"`
	MapID    *int64        `form:"map_id"`
	UserID   *int64        `form:"-"` // set by the service, never bound from the request
	Page     int           `form:"page" binding:"min=0"`
	PageSize int           `form:"page_size" binding:"min=0,max=100"`
}

type ExportListResponse struct {
	Exports    []Job `json:"exports"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}
