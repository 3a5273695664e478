package models

// Image is a picture attached to a post. The schema allows several per post
// but only the first one (lowest id) is shown.
type Image struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	PostID    uint   `gorm:"not null;index" json:"post_id"`
	ImagePath string `gorm:"size:255;not null" json:"image_path"`
}
