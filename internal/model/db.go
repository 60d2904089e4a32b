package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Organization{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Group{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Link{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&EntryBackup{}); err != nil {
		return err
	}

	return nil
}
