// Package models holds the GORM persistence models backing the sync and
// catalog domains. Domain entities stay free of ORM tags; mappers in the
// repository layer convert between the two representations.
//
// sync.go holds the pipeline models (ActionType, Job, Task, Batch),
// catalog.go the category mappings, and product_record.go the cached
// marketplace product snapshots.
package models
