package main

import (
	"errors"
	"fmt"

	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/database"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const demoPassword = "ivalora-demo"

var demoUsers = []models.UserAuth{
	{Username: "owner", Email: "owner@ivalora.demo", Name: "Demo Owner", Role: models.RoleOwner},
	{Username: "admin", Email: "admin@ivalora.demo", Name: "Demo Admin", Role: models.RoleAdmin},
	{Username: "staff", Email: "staff@ivalora.demo", Name: "Demo Staff", Role: models.RoleStaff},
}

var demoUnits = []struct {
	imei, label, sell, cost string
	status                  models.StockStatus
}{
	{"356938035643809", "iPhone 13 128GB Midnight", "8999000", "7500000", models.StockAvailable},
	{"356938035643817", "iPhone 14 Pro 256GB Deep Purple", "15499000", "13200000", models.StockAvailable},
	{"353915110245567", "Samsung Galaxy S23 8/256 Phantom Black", "10999000", "9100000", models.StockAvailable},
	{"353915110245575", "Samsung Galaxy A54 8/256 Awesome Lime", "4999000", "4150000", models.StockAvailable},
	{"862190052368014", "Xiaomi Redmi Note 13 Pro 8/256 Midnight Black", "3899000", "3250000", models.StockAvailable},
	{"862190052368022", "Xiaomi 13T 12/256 Alpine Blue", "6499000", "5600000", models.StockReturnPending},
	{"867388061044791", "OPPO Reno10 5G 8/256 Silvery Grey", "5999000", "5000000", models.StockAvailable},
	{"867388061044809", "vivo V29 12/256 Peak Blue", "5499000", "4600000", models.StockService},
	{"490154203237518", "iPad 9th Gen 64GB Space Grey", "4799000", "4100000", models.StockSold},
	{"359876101122334", "Google Pixel 7a 8/128 Charcoal", "5299000", "4400000", models.StockAvailable},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.GetLogger().WithError(err).Fatal("failed to load configuration")
	}
	log := config.SetupLogger(cfg)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.UserAuth{}, &models.InventoryUnit{}); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	hashed, err := utils.HashPassword(demoPassword)
	if err != nil {
		log.WithError(err).Fatal("hash password")
	}

	users := 0
	for _, u := range demoUsers {
		var existing models.UserAuth
		err := db.Where("email = ?", u.Email).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Fatal("look up user")
		}
		u.Password = hashed
		u.IsActive = true
		if err := db.Create(&u).Error; err != nil {
			log.WithError(err).WithField("email", u.Email).Fatal("create user")
		}
		users++
	}

	units := make([]models.InventoryUnit, 0, len(demoUnits))
	for _, d := range demoUnits {
		units = append(units, models.InventoryUnit{
			IMEI:         d.imei,
			ProductLabel: d.label,
			SellingPrice: decimal.RequireFromString(d.sell),
			CostPrice:    decimal.RequireFromString(d.cost),
			StockStatus:  d.status,
		})
	}
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "imei"}}, DoNothing: true}).Create(&units)
	if res.Error != nil {
		log.WithError(res.Error).Fatal("create units")
	}

	log.WithField("users", users).WithField("units", res.RowsAffected).Info("demo data seeded")
	fmt.Printf("Demo users share the password %q\n", demoPassword)
}
