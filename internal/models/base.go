package models

// Base carries the integer identifier shared by every persisted record.
// Identifiers come from the counters collection, so they grow monotonically
// per collection.
type Base struct {
	ID int64 `bson:"_id" json:"id"`
}

func (m *Base) SetID(id int64) {
	m.ID = id
}

func (m *Base) GetID() int64 {
	return m.ID
}

// IBase is implemented by every model that embeds Base.
type IBase interface {
	SetID(id int64)
	GetID() int64
}
