package api

import "time"

// Item представляет одну запись коллекции в wire-формате.
// ID назначается сервером при первом успешном create; до этого запись
// идентифицируется только по LocalID, который клиент генерирует один раз
// и сохраняет на всё время жизни записи.
type Item struct {
	Date        time.Time `json:"date"`
	ID          string    `json:"id,omitempty"`
	LocalID     string    `json:"_localId,omitempty"`
	UserID      string    `json:"userId,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Cinema      bool      `json:"cinema"`
}

// Matches reports whether the item represents the same logical record
// as the given identity: server ID first, LocalID as fallback.
func (it *Item) Matches(id, localID string) bool {
	if it.ID != "" && id != "" && it.ID == id {
		return true
	}
	return it.LocalID != "" && localID != "" && it.LocalID == localID
}

// ItemPatch представляет частичное обновление записи.
// Поля-указатели остаются nil, если сервер (или push-событие) не прислал
// соответствующее значение — так при merge отличимо "не задано" от нуля.
type ItemPatch struct {
	Date        *time.Time `json:"date,omitempty"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Price       *float64   `json:"price,omitempty"`
	Cinema      *bool      `json:"cinema,omitempty"`
	ID          string     `json:"id,omitempty"`
	LocalID     string     `json:"_localId,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

// Apply merges the defined patch fields into the item.
// Undefined (nil) fields keep the item's stored values; identity fields
// are only ever acquired, never cleared.
func (p *ItemPatch) Apply(it *Item) {
	if p.ID != "" {
		it.ID = p.ID
	}
	if p.LocalID != "" {
		it.LocalID = p.LocalID
	}
	if p.UserID != "" {
		it.UserID = p.UserID
	}
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Date != nil {
		it.Date = *p.Date
	}
	if p.Cinema != nil {
		it.Cinema = *p.Cinema
	}
	if p.Price != nil {
		it.Price = *p.Price
	}
}

// ToItem materializes the patch as a standalone item (for records that
// are not yet present in the replica).
func (p *ItemPatch) ToItem() Item {
	var it Item
	p.Apply(&it)
	return it
}

// AsPatch converts a full item into a patch with every field defined.
// Used by the server when broadcasting push events.
func (it *Item) AsPatch() ItemPatch {
	name := it.Name
	description := it.Description
	date := it.Date
	cinema := it.Cinema
	price := it.Price
	return ItemPatch{
		ID:          it.ID,
		LocalID:     it.LocalID,
		UserID:      it.UserID,
		Name:        &name,
		Description: &description,
		Date:        &date,
		Cinema:      &cinema,
		Price:       &price,
	}
}
