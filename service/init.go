/*
 * @module service/init
 * @description 服务初始化模块,负责数据库连接、日志存储、配置加载与决策引擎装配
 * @architecture 分层架构 - 服务层
 * @stateFlow 应用启动时执行初始化流程:数据库 -> 迁移 -> 配置 -> 存储 -> 引擎冷启动 -> 调度器
 * @rules 数据库不可用为致命错误;Redis不可用降级为内存日志存储;单一模型类型冷启动失败不阻止服务启动
 * @dependencies gorm.io/gorm, gorm.io/driver/postgres, governance-engine-service/service/engine
 * @refs main.go, api/routes.go
 */

package service

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"governance-engine-service/service/audit"
	"governance-engine-service/service/config"
	"governance-engine-service/service/engine"
	"governance-engine-service/service/models"
	"governance-engine-service/service/predlog"
)

var (
	DB                   *gorm.DB
	GlobalConfig         *config.Manager
	GlobalEngine         *engine.DecisionEngine
	GlobalDriftScheduler *engine.DriftScheduler
)

func init() {
	initDatabase()
	runMigrations()
	initConfig()
	initEngine()
	startScheduler()
}

// initDatabase 初始化数据库连接
func initDatabase() {
	var dsn string

	// 优先使用DATABASE_URL环境变量
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		dsn = databaseURL
	} else {
		host := getEnvWithDefault("DB_HOST", "localhost")
		port := getEnvWithDefault("DB_PORT", "5432")
		user := getEnvWithDefault("DB_USER", "postgres")
		password := getEnvWithDefault("DB_PASSWORD", "postgres")
		dbname := getEnvWithDefault("DB_NAME", "postgres")
		sslmode := getEnvWithDefault("DB_SSLMODE", "disable")
		schema := getEnvWithDefault("DB_SCHEMA", "public")

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s search_path=%s",
			host, port, user, password, dbname, sslmode, schema)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	log.Println("数据库连接成功")
}

// runMigrations 执行数据库迁移
func runMigrations() {
	err := DB.AutoMigrate(
		&models.ModelVersion{},
		&models.ABTest{},
		&models.FeedbackRecord{},
		&models.DriftCheckRecord{},
	)
	if err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	log.Println("数据库迁移完成")
}

// initConfig 加载引擎配置并启动热加载监听
func initConfig() {
	path := getEnvWithDefault("ENGINE_CONFIG_PATH", "config/engine.yaml")

	var err error
	GlobalConfig, err = config.NewManager(path)
	if err != nil {
		log.Fatalf("引擎配置加载失败: %v", err)
	}
	if err := GlobalConfig.Watch(); err != nil {
		slog.Warn("配置热加载监听启动失败", "error", err)
	}
}

// initEngine 装配决策引擎:日志存储、审计发布器、引擎冷启动
func initEngine() {
	cfg := GlobalConfig.Current()

	// 预测日志优先使用Redis,连接失败降级为内存存储(仅进程内可见)
	var store predlog.Store
	redisStore, err := predlog.NewRedisStore(cfg.RecentWindowSize, cfg.DriftWindow())
	if err != nil {
		slog.Warn("Redis不可用,预测日志降级为内存存储", "error", err)
		store = predlog.NewMemoryStore(cfg.RecentWindowSize)
	} else {
		store = redisStore
	}

	publisher := audit.NewPublisherFromEnv(cfg.AuditTopic)

	GlobalEngine = engine.NewDecisionEngine(DB, store, publisher, GlobalConfig)
	GlobalEngine.Bootstrap()
}

// startScheduler 启动周期漂移检测调度器
func startScheduler() {
	GlobalDriftScheduler = engine.NewDriftScheduler(GlobalEngine.DriftMonitor(), GlobalConfig)
	if err := GlobalDriftScheduler.Start(); err != nil {
		slog.Error("漂移检测调度器启动失败", "error", err)
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
