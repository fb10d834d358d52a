package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/booking/scheduler/internal/infra/persistence/commonrepo"
	"github.com/booking/scheduler/internal/infra/persistence/roomrepo"
	"github.com/booking/scheduler/internal/orm"
	"github.com/booking/scheduler/pkg/config"
)

// 现场房间与继电器的布线对照，房间ID即门ID，要和 gateway.door_map 的键对上
var sampleRooms = []roomrepo.RoomPo{
	{Mode: commonrepo.Mode{ID: 9}, Name: "棋牌室9", RelayControllerID: "controller1", RelayPort: 1, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 10}, Name: "棋牌室10", RelayControllerID: "controller1", RelayPort: 2, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 11}, Name: "棋牌室11", RelayControllerID: "controller1", RelayPort: 3, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 12}, Name: "棋牌室12", RelayControllerID: "controller1", RelayPort: 4, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 14}, Name: "棋牌室14", RelayControllerID: "controller2", RelayPort: 1, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 15}, Name: "棋牌室15", RelayControllerID: "controller2", RelayPort: 2, IsAvailable: true},
	{Mode: commonrepo.Mode{ID: 16}, Name: "棋牌室16", RelayControllerID: "controller2", RelayPort: 3, IsAvailable: true},
}

func main() {
	var configPath string
	var seed bool
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.BoolVar(&seed, "seed", false, "insert sample rooms after migration")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// orm.New 内部执行 AutoMigrate，建出全部表
	storage, err := orm.New(orm.Config{
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	defer storage.Close()

	fmt.Println("Migration completed successfully!")

	if !seed {
		return
	}

	db := storage.DB()
	for i := range sampleRooms {
		room := &sampleRooms[i]
		res := db.Where("id = ?", room.ID).FirstOrCreate(room)
		if res.Error != nil {
			log.Printf("Error seeding room %s: %v", room.Name, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			fmt.Printf("Seeded room: %s (controller=%s port=%d)\n",
				room.Name, room.RelayControllerID, room.RelayPort)
		}
	}
	fmt.Println("Seeding completed!")
}
