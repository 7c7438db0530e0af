package scope

import "gorm.io/gorm"

// OrderByTranscript orders archived turns the way they were appended.
func OrderByTranscript(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}
