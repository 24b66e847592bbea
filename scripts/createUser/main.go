// Command createUser creates or updates a login account.
//
//	go run ./scripts/createUser -username staff -email staff@example.com -password secret123 -staff
package main

import (
	"flag"
	"log"

	"gorm.io/gorm/clause"

	"lms/config"
	authController "lms/controllers/auth"
	"lms/database"
	"lms/logger"
	"lms/models"
)

func main() {
	username := flag.String("username", "", "login name")
	email := flag.String("email", "", "email address")
	password := flag.String("password", "", "plain text password")
	name := flag.String("name", "", "full name sent to credit providers")
	country := flag.String("country", "", "ISO 3166-1 alpha-2 country code")
	staff := flag.Bool("staff", false, "grant global staff")
	superuser := flag.Bool("superuser", false, "grant superuser")
	flag.Parse()

	if *username == "" || *email == "" || len(*password) < 8 {
		log.Fatal("username, email and a password of at least 8 characters are required")
	}

	config.LoadConfig()
	if err := logger.Init(config.AppConfig.AppMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	database.ConnectDb()
	db := database.Database.Db

	hashed, err := authController.HashPassword(*password)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	user := models.User{
		Username:    *username,
		Email:       *email,
		Password:    hashed,
		IsStaff:     *staff,
		IsSuperuser: *superuser,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password", "is_staff", "is_superuser", "updated_at"}),
	}).Create(&user).Error; err != nil {
		log.Fatalf("Error saving user: %v", err)
	}
	if err := db.Where("username = ?", *username).First(&user).Error; err != nil {
		log.Fatalf("Error reloading user: %v", err)
	}

	profile := models.UserProfile{UserID: user.ID, Name: *name, Country: *country}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "country", "updated_at"}),
	}).Create(&profile).Error; err != nil {
		log.Fatalf("Error saving profile: %v", err)
	}

	log.Printf("User %s (id=%d) saved. staff=%v superuser=%v", user.Username, user.ID, user.IsStaff, user.IsSuperuser)
}
