package school

import (
	"context"
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

type School struct {
	bun.BaseModel `bun:"table:schools,alias:s"`

	ID        int       `bun:"id,pk,autoincrement" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Address   string    `bun:"address,notnull" json:"address"`
	City      string    `bun:"city,notnull" json:"city"`
	State     string    `bun:"state,notnull" json:"state"`
	Contact   string    `bun:"contact,notnull" json:"contact"`
	EmailID   string    `bun:"email_id,notnull" json:"email_id"`
	Image     string    `bun:"image" json:"image"` // public URL; empty or NULL when no image
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

var _ bun.AfterCreateTableHook = (*School)(nil)

// AfterCreateTable adds the index backing the newest-first listing.
func (*School) AfterCreateTable(ctx context.Context, query *bun.CreateTableQuery) error {
	_, err := query.DB().NewCreateIndex().
		Model((*School)(nil)).
		Index("schools_created_at_idx").
		IfNotExists().
		ColumnExpr("created_at DESC").
		ColumnExpr("id DESC").
		Exec(ctx)
	return err
}

func (s School) HasImage() bool {
	return s.Image != ""
}

// Form holds the raw values of the "add school" form.
type Form struct {
	Name    string `form:"name" validate:"min=2,max=100,schoolname,notblank"`
	Address string `form:"address" validate:"min=10,max=200,notblank"`
	City    string `form:"city" validate:"min=2,max=50,city,notblank"`
	State   string `form:"state" validate:"min=2,max=50,statename,notblank"`
	Contact string `form:"contact" validate:"min=10,max=15,contact,notblank"`
	EmailID string `form:"email_id" validate:"min=5,max=100,email,notblank"`

	// Images are checked by the struct-level image rule.
	Images []ImageFile `form:"image" validate:"-"`
}

// ImageFile is one file attached to the image field.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// Image returns the attached image, or nil when none was supplied.
func (f Form) Image() *ImageFile {
	if len(f.Images) == 0 {
		return nil
	}
	return &f.Images[0]
}

func (f Form) record(imageURL string) *School {
	return &School{
		Name:    f.Name,
		Address: f.Address,
		City:    f.City,
		State:   f.State,
		Contact: f.Contact,
		EmailID: f.EmailID,
		Image:   imageURL,
	}
}

// CreatedEvent is published after a school has been stored.
type CreatedEvent struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Image     string    `json:"image,omitempty"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

const CreatedEventType = "school.created"

func (e CreatedEvent) MessageKey() string {
	return strconv.Itoa(e.ID)
}

func (e CreatedEvent) EventType() string {
	return CreatedEventType
}
