package model

import (
	"strings"
	"time"

	"github.com/ivankudzin/roadreport/internal/domain/enums"
)

type Report struct {
	ID        int64              `json:"id"`
	OwnerID   int64              `json:"owner_id"`
	MediaRef  string             `json:"media_ref"`
	MediaKind enums.MediaKind    `json:"media_kind"`
	Caption   string             `json:"caption"`
	Category  string             `json:"category"`
	Status    enums.ReportStatus `json:"status"`
	Location  Location           `json:"location"`
	Note      string             `json:"note"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (r Report) HasLocation() bool {
	return r.Location.IsSet()
}

func (r Report) HasNote() bool {
	return strings.TrimSpace(r.Note) != ""
}
