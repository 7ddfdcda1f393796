package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"shopchat/apps/chat-service/dao"
	"shopchat/apps/chat-service/handler"
	"shopchat/apps/chat-service/model"
	"shopchat/apps/chat-service/service"
	"shopchat/pkg/server"
	"shopchat/pkg/telemetry"
)

func main() {
	// 创建应用程序
	app := server.NewApplication("chat-service")

	// 初始化链路追踪
	if err := telemetry.InitGlobal(telemetry.DefaultConfig("chat-service")); err != nil {
		panic("Failed to initialize telemetry: " + err.Error())
	}
	defer telemetry.ShutdownGlobal(context.Background())

	// 启用HTTP服务器
	app.EnableHTTP()

	// 启用gRPC服务器，当前只承载健康检查
	app.EnableGRPC()

	// 初始化PostgreSQL连接
	postgreSQL := app.GetPostgreSQL()

	// 自动迁移数据库表结构
	if err := postgreSQL.AutoMigrate(
		&model.Customer{},
		&model.Admin{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.Message{},
	); err != nil {
		panic("Failed to migrate database: " + err.Error())
	}

	// 初始化DAO层
	conversationDAO := dao.NewConversationDAO(postgreSQL)
	identityDAO := dao.NewIdentityDAO(postgreSQL)

	// 初始化Service层
	cfg := app.GetConfig()
	svc, err := service.NewService(
		conversationDAO,
		identityDAO,
		app.GetRedisClient(),
		app.GetKafkaProducer(),
		cfg.App.CustomerJWTSecret,
		cfg.App.AdminJWTSecret,
		cfg.Chat.MachineID,
		app.GetLogger(),
	)
	if err != nil {
		panic("Failed to initialize service: " + err.Error())
	}

	// 初始化Handler
	httpHandler := handler.NewHTTPHandler(svc, app.GetAdminAuthMiddleware(), app.GetLogger())
	wsHandler := handler.NewWSHandler(svc, app.GetLogger())

	// 注册HTTP路由
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
		wsHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
