package models

import (
	"log"

	"github.com/parishops/registry_backend/config"
)

// Record tables (baptism_records and friends) are owned by the church
// data importer and deliberately not migrated here; their shape is
// discovered at runtime through the column prober.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Report{}, &Recipient{}, &Assignment{}, &AuditEntry{},
		&Job{},
		&MailerOutboxRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
