package main

import (
	"log"

	"lms/config"
	courseStructureController "lms/controllers/courseStructure"
	creditController "lms/controllers/credit"
	"lms/database"
	"lms/logger"
	"lms/modulestore"
	"lms/routers"
	"lms/services/structure"
	"lms/utils"
)

func main() {
	config.LoadConfig()
	if err := logger.Init(config.AppConfig.AppMode); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	database.ConnectDb()
	db := database.Database.Db

	generator := structure.NewGenerator(db, modulestore.New(db))
	courseStructureController.SetGenerator(generator)
	if config.AppConfig.EmailSender != "" {
		creditController.SetNotifier(utils.NewEmailNotifier(db))
	}

	scheduler, err := utils.InitializeStructureScheduler(generator, config.AppConfig.StructureCron)
	if err != nil {
		logger.Log.Fatalf("Invalid STRUCTURE_CRON %q: %v", config.AppConfig.StructureCron, err)
	}
	defer scheduler.Stop()

	app := routers.New(true)

	logger.Log.Infof("Server is running on port %s", config.AppConfig.Port)
	if err := app.Listen(":" + config.AppConfig.Port); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
}
